package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite returns the side this side trades against.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusActive
}

// MarketOrder is a standing offer to buy or sell items for a currency.
type MarketOrder struct {
	ID             string          `json:"id"`
	Seq            uint64          `json:"seq"`
	Owner          string          `json:"owner"`
	Side           OrderSide       `json:"side"`
	ItemID         string          `json:"item_id"`
	Currency       string          `json:"currency"`
	Quantity       int64           `json:"quantity"`
	FilledQuantity int64           `json:"filled_quantity"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// Remaining is the unfilled quantity.
func (o *MarketOrder) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Value is quantity times price.
func (o *MarketOrder) Value() decimal.Decimal {
	return o.PricePerUnit.Mul(decimal.NewFromInt(o.Quantity))
}

// RemainingValue is the escrow a BUY order still holds.
func (o *MarketOrder) RemainingValue() decimal.Decimal {
	return o.PricePerUnit.Mul(decimal.NewFromInt(o.Remaining()))
}

// ExpiredAt reports whether the order's horizon has passed at now.
func (o *MarketOrder) ExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Validate checks the fields supplied at placement.
func (o *MarketOrder) Validate() error {
	if err := ValidateOwner(o.Owner); err != nil {
		return err
	}
	if !o.Side.Valid() {
		return ErrInvalidSide
	}
	if err := ValidateItemID(o.ItemID); err != nil {
		return err
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !o.PricePerUnit.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// Fill records qty executed. Reaching quantity moves the order to FILLED.
func (o *MarketOrder) Fill(qty int64, now time.Time) error {
	if o.Status != OrderStatusActive {
		return fmt.Errorf("%w: %s is %s", ErrOrderNotActive, o.ID, o.Status)
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > o.Remaining() {
		return fmt.Errorf("%w: %d > %d", ErrOverfill, qty, o.Remaining())
	}
	o.FilledQuantity += qty
	if o.FilledQuantity == o.Quantity {
		o.Status = OrderStatusFilled
	}
	o.UpdatedAt = now
	return nil
}

// Cancel moves an active order to CANCELLED.
func (o *MarketOrder) Cancel(now time.Time) error {
	return o.close(OrderStatusCancelled, now)
}

// Expire moves an active order to EXPIRED.
func (o *MarketOrder) Expire(now time.Time) error {
	return o.close(OrderStatusExpired, now)
}

func (o *MarketOrder) close(to OrderStatus, now time.Time) error {
	if o.Status != OrderStatusActive {
		return fmt.Errorf("%w: %s is %s", ErrOrderNotActive, o.ID, o.Status)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// CheckInvariants verifies the fill bounds.
func (o *MarketOrder) CheckInvariants() error {
	if o.FilledQuantity < 0 || o.FilledQuantity > o.Quantity {
		return fmt.Errorf("%w: order %s filled %d of %d", ErrInvariantViolation, o.ID, o.FilledQuantity, o.Quantity)
	}
	if o.Status == OrderStatusFilled && o.FilledQuantity != o.Quantity {
		return fmt.Errorf("%w: order %s filled status with %d remaining", ErrInvariantViolation, o.ID, o.Remaining())
	}
	return nil
}

// Trade records one execution between a BUY and a SELL order.
type Trade struct {
	BuyOrderID     string          `json:"buy_order_id"`
	SellOrderID    string          `json:"sell_order_id"`
	Buyer          string          `json:"buyer"`
	Seller         string          `json:"seller"`
	ItemID         string          `json:"item_id"`
	Currency       string          `json:"currency"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Total          decimal.Decimal `json:"total"`
	Fee            decimal.Decimal `json:"fee"`
	SellerReceives decimal.Decimal `json:"seller_receives"`
	BuyerRefund    decimal.Decimal `json:"buyer_refund"`
	EntryID        uint64          `json:"entry_id"`
	BuyFilled      bool            `json:"buy_filled"`
	SellFilled     bool            `json:"sell_filled"`
	ExecutedAt     time.Time       `json:"executed_at"`
}
