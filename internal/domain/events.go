package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a domain event.
type EventKind string

const (
	EventCurrencyCredited EventKind = "currency.credited"
	EventCurrencyDebited  EventKind = "currency.debited"
	EventTransfer         EventKind = "transfer.completed"
	EventItemsGranted     EventKind = "inventory.granted"
	EventItemsConsumed    EventKind = "inventory.consumed"
	EventOrderPlaced      EventKind = "order.placed"
	EventTrade            EventKind = "trade.executed"
	EventOrderFilled      EventKind = "order.filled"
	EventOrderCancelled   EventKind = "order.cancelled"
	EventOrderExpired     EventKind = "order.expired"
)

// Event describes a completed state change. Events are emitted after the
// change is visible and never describe a partial operation.
type Event struct {
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	Owners     []string        `json:"owners"`
	Currency   string          `json:"currency,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Fee        decimal.Decimal `json:"fee"`
	Quantity   int64           `json:"quantity,omitempty"`
	Price      decimal.Decimal `json:"price"`
	OrderID    string          `json:"order_id,omitempty"`
	EntryID    uint64          `json:"entry_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// PartitionKey groups events of the same market or owner for ordered delivery.
func (e Event) PartitionKey() string {
	if e.ItemID != "" && e.Currency != "" {
		return e.ItemID + "/" + e.Currency
	}
	if len(e.Owners) > 0 {
		return e.Owners[0]
	}
	return string(e.Kind)
}
