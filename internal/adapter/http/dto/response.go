package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/usecase"
)

// BalanceResponse is one currency of an account.
type BalanceResponse struct {
	Total     decimal.Decimal `json:"total"`
	Locked    decimal.Decimal `json:"locked"`
	Available decimal.Decimal `json:"available"`
	Earned    decimal.Decimal `json:"earned"`
	Spent     decimal.Decimal `json:"spent"`
}

// BalanceFromDomain converts a domain balance to response.
func BalanceFromDomain(b domain.Balance) BalanceResponse {
	return BalanceResponse{
		Total:     b.Total,
		Locked:    b.Locked,
		Available: b.Available(),
		Earned:    b.Earned,
		Spent:     b.Spent,
	}
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	Owner        string                     `json:"owner"`
	Balances     map[string]BalanceResponse `json:"balances"`
	CreatedAt    time.Time                  `json:"created_at"`
	LastActivity time.Time                  `json:"last_activity"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.CurrencyAccount) *AccountResponse {
	resp := &AccountResponse{
		Owner:        a.Owner,
		Balances:     make(map[string]BalanceResponse, len(a.Balances)),
		CreatedAt:    a.CreatedAt,
		LastActivity: a.LastActivity,
	}
	for code, b := range a.Balances {
		if b == nil {
			continue
		}
		resp.Balances[code] = BalanceFromDomain(*b)
	}
	return resp
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID          uint64            `json:"id"`
	Source      string            `json:"source,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Currency    string            `json:"currency"`
	Amount      decimal.Decimal   `json:"amount"`
	Fee         decimal.Decimal   `json:"fee"`
	Kind        domain.EntryKind  `json:"kind"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		Source:      e.Source,
		Destination: e.Destination,
		Currency:    e.Currency,
		Amount:      e.Amount,
		Fee:         e.Fee,
		Kind:        e.Kind,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		Metadata:    e.Metadata,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i := range entries {
		result[i] = EntryFromDomain(&entries[i])
	}
	return result
}

// HoldingResponse is one stack of items.
type HoldingResponse struct {
	ItemID     string     `json:"item_id"`
	Quantity   int64      `json:"quantity"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// InventoryResponse lists the holdings of one owner.
type InventoryResponse struct {
	Owner    string            `json:"owner"`
	Holdings []HoldingResponse `json:"holdings"`
}

// InventoryFromDomain converts holdings to response.
func InventoryFromDomain(owner string, holdings []domain.InventoryHolding) *InventoryResponse {
	resp := &InventoryResponse{Owner: owner, Holdings: make([]HoldingResponse, len(holdings))}
	for i, h := range holdings {
		resp.Holdings[i] = HoldingResponse{
			ItemID:     h.ItemID,
			Quantity:   h.Quantity,
			AcquiredAt: h.AcquiredAt,
			ExpiresAt:  h.ExpiresAt,
		}
	}
	return resp
}

// OrderResponse represents a market order in API responses.
type OrderResponse struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Side           string          `json:"side"`
	ItemID         string          `json:"item_id"`
	Currency       string          `json:"currency"`
	Quantity       int64           `json:"quantity"`
	FilledQuantity int64           `json:"filled_quantity"`
	Remaining      int64           `json:"remaining"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// OrderFromDomain converts domain order to response.
func OrderFromDomain(o *domain.MarketOrder) *OrderResponse {
	return &OrderResponse{
		ID:             o.ID,
		Owner:          o.Owner,
		Side:           string(o.Side),
		ItemID:         o.ItemID,
		Currency:       o.Currency,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Remaining:      o.Remaining(),
		PricePerUnit:   o.PricePerUnit,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		ExpiresAt:      o.ExpiresAt,
	}
}

// OrdersFromDomain converts domain orders to responses.
func OrdersFromDomain(orders []domain.MarketOrder) []*OrderResponse {
	result := make([]*OrderResponse, len(orders))
	for i := range orders {
		result[i] = OrderFromDomain(&orders[i])
	}
	return result
}

// TradeResponse is one execution.
type TradeResponse struct {
	BuyOrderID     string          `json:"buy_order_id"`
	SellOrderID    string          `json:"sell_order_id"`
	Buyer          string          `json:"buyer"`
	Seller         string          `json:"seller"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Total          decimal.Decimal `json:"total"`
	Fee            decimal.Decimal `json:"fee"`
	SellerReceives decimal.Decimal `json:"seller_receives"`
	BuyerRefund    decimal.Decimal `json:"buyer_refund"`
	EntryID        uint64          `json:"entry_id"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// PlaceOrderResponse is the result of placing an order.
type PlaceOrderResponse struct {
	Order  *OrderResponse  `json:"order"`
	Trades []TradeResponse `json:"trades"`
}

// PlaceOrderFromDomain converts a placement result to response.
func PlaceOrderFromDomain(res *usecase.PlaceOrderResult) *PlaceOrderResponse {
	resp := &PlaceOrderResponse{
		Order:  OrderFromDomain(&res.Order),
		Trades: make([]TradeResponse, len(res.Trades)),
	}
	for i, t := range res.Trades {
		resp.Trades[i] = TradeResponse{
			BuyOrderID:     t.BuyOrderID,
			SellOrderID:    t.SellOrderID,
			Buyer:          t.Buyer,
			Seller:         t.Seller,
			Quantity:       t.Quantity,
			UnitPrice:      t.UnitPrice,
			Total:          t.Total,
			Fee:            t.Fee,
			SellerReceives: t.SellerReceives,
			BuyerRefund:    t.BuyerRefund,
			EntryID:        t.EntryID,
			ExecutedAt:     t.ExecutedAt,
		}
	}
	return resp
}

// SweepResponse reports orders expired by a sweep.
type SweepResponse struct {
	Expired []*OrderResponse `json:"expired"`
}

// SnapshotResponse reports a stored snapshot.
type SnapshotResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
