package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a journal entry.
type EntryKind string

const (
	EntryKindTransfer    EntryKind = "transfer"
	EntryKindTrade       EntryKind = "trade"
	EntryKindReward      EntryKind = "reward"
	EntryKindPenalty     EntryKind = "penalty"
	EntryKindPurchase    EntryKind = "purchase"
	EntryKindSale        EntryKind = "sale"
	EntryKindInvestment  EntryKind = "investment"
	EntryKindDividend    EntryKind = "dividend"
	EntryKindDailyBonus  EntryKind = "daily_bonus"
	EntryKindAchievement EntryKind = "achievement"
	EntryKindTournament  EntryKind = "tournament"
	EntryKindMinigame    EntryKind = "minigame"
	EntryKindAuction     EntryKind = "auction"
	EntryKindGambling    EntryKind = "gambling"
)

var entryKinds = map[EntryKind]bool{
	EntryKindTransfer: true, EntryKindTrade: true, EntryKindReward: true,
	EntryKindPenalty: true, EntryKindPurchase: true, EntryKindSale: true,
	EntryKindInvestment: true, EntryKindDividend: true, EntryKindDailyBonus: true,
	EntryKindAchievement: true, EntryKindTournament: true, EntryKindMinigame: true,
	EntryKindAuction: true, EntryKindGambling: true,
}

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	return entryKinds[k]
}

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
	EntryStatusCancelled EntryStatus = "cancelled"
	EntryStatusRefunded  EntryStatus = "refunded"
)

// Metadata keys used on trade entries.
const (
	MetaItemID        = "item_id"
	MetaQuantity      = "quantity"
	MetaUnitPrice     = "unit_price"
	MetaBuyOrderID    = "buy_order_id"
	MetaSellOrderID   = "sell_order_id"
	MetaSellerReceive = "seller_receives"
	MetaReason        = "reason"
)

// LedgerEntry is one immutable record of a value movement.
type LedgerEntry struct {
	ID          uint64            `json:"id"`
	Source      string            `json:"source,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Currency    string            `json:"currency"`
	Amount      decimal.Decimal   `json:"amount"`
	Fee         decimal.Decimal   `json:"fee"`
	Kind        EntryKind         `json:"kind"`
	Status      EntryStatus       `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Involves reports whether owner is the source or destination.
func (e *LedgerEntry) Involves(owner string) bool {
	return e.Source == owner || e.Destination == owner
}

// Validate checks the fields a caller must supply.
func (e *LedgerEntry) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Fee.IsNegative() {
		return ErrInvalidAmount
	}
	if !e.Kind.Valid() {
		return wrap(ErrValidation, "unknown entry kind "+string(e.Kind))
	}
	if e.Source == "" && e.Destination == "" {
		return ErrInvalidOwner
	}
	return nil
}
