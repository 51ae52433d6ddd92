package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/usecase"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a request. Failures wrap
// domain.ErrValidation so handlers map them like any other bad input.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

// BalanceChangeRequest credits or debits one owner.
type BalanceChangeRequest struct {
	Currency string            `json:"currency" validate:"required"`
	Amount   decimal.Decimal   `json:"amount"`
	Kind     domain.EntryKind  `json:"kind,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *BalanceChangeRequest) ToUseCaseInput(owner string) usecase.BalanceChangeInput {
	return usecase.BalanceChangeInput{
		Owner:    owner,
		Currency: r.Currency,
		Amount:   r.Amount,
		Kind:     r.Kind,
		Metadata: r.Metadata,
	}
}

// ItemChangeRequest grants or consumes items.
type ItemChangeRequest struct {
	ItemID    string     `json:"item_id" validate:"required"`
	Quantity  int64      `json:"quantity" validate:"gt=0"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ItemChangeRequest) ToUseCaseInput(owner string) usecase.ItemChangeInput {
	return usecase.ItemChangeInput{
		Owner:     owner,
		ItemID:    r.ItemID,
		Quantity:  r.Quantity,
		ExpiresAt: r.ExpiresAt,
	}
}

// CreateTransferRequest represents a request to create a transfer.
type CreateTransferRequest struct {
	From     string            `json:"from" validate:"required"`
	To       string            `json:"to" validate:"required"`
	Currency string            `json:"currency" validate:"required"`
	Amount   decimal.Decimal   `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() usecase.TransferInput {
	return usecase.TransferInput{
		From:     r.From,
		To:       r.To,
		Currency: r.Currency,
		Amount:   r.Amount,
		Metadata: r.Metadata,
	}
}

// PlaceOrderRequest represents a request to place a market order.
type PlaceOrderRequest struct {
	Owner        string          `json:"owner" validate:"required"`
	Side         string          `json:"side" validate:"required,oneof=BUY SELL"`
	ItemID       string          `json:"item_id" validate:"required"`
	Currency     string          `json:"currency" validate:"required"`
	Quantity     int64           `json:"quantity" validate:"gt=0"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// ToUseCaseInput converts to use case input.
func (r *PlaceOrderRequest) ToUseCaseInput() usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		Owner:        r.Owner,
		Side:         domain.OrderSide(r.Side),
		ItemID:       r.ItemID,
		Currency:     r.Currency,
		Quantity:     r.Quantity,
		PricePerUnit: r.PricePerUnit,
	}
}
