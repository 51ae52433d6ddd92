package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotVersion is the current encoding version.
const SnapshotVersion = 1

// DailyTotal is the running sum of one owner's entries of a kind on a day.
type DailyTotal struct {
	Owner    string          `json:"owner"`
	Currency string          `json:"currency"`
	Kind     EntryKind       `json:"kind"`
	Day      string          `json:"day"`
	Amount   decimal.Decimal `json:"amount"`
}

// DailyStat counts completed entries and volume per currency per day.
type DailyStat struct {
	Currency string          `json:"currency"`
	Day      string          `json:"day"`
	Count    int64           `json:"count"`
	Volume   decimal.Decimal `json:"volume"`
}

// Snapshot is a consistent copy of all engine state.
type Snapshot struct {
	Version       int                        `json:"version"`
	TakenAt       time.Time                  `json:"taken_at"`
	Accounts      []*CurrencyAccount         `json:"accounts"`
	Holdings      []InventoryHolding         `json:"holdings"`
	Orders        []MarketOrder              `json:"orders"`
	Journal       []LedgerEntry              `json:"journal"`
	NextEntryID   uint64                     `json:"next_entry_id"`
	NextOrderSeq  uint64                     `json:"next_order_seq"`
	FeesCollected map[string]decimal.Decimal `json:"fees_collected"`
	DailyTotals   []DailyTotal               `json:"daily_totals"`
	DailyStats    []DailyStat                `json:"daily_stats"`
}

// EncodeSnapshot serialises s to JSON.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and sanity checks an encoded snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, s.Version)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Check verifies the structural invariants of a snapshot before it is restored.
func (s *Snapshot) Check() error {
	seen := make(map[string]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a == nil || a.Owner == "" || seen[a.Owner] {
			return fmt.Errorf("%w: bad or duplicate account", ErrSnapshotCorrupt)
		}
		seen[a.Owner] = true
		if a.Balances == nil {
			a.Balances = make(map[string]*Balance)
		}
		for c, b := range a.Balances {
			if b == nil {
				return fmt.Errorf("%w: nil balance %s/%s", ErrSnapshotCorrupt, a.Owner, c)
			}
		}
		if err := a.CheckInvariants(); err != nil {
			return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
		}
	}
	exposure := make(map[[2]string]int64)
	expose := func(owner, itemID string, qty int64) error {
		k := [2]string{owner, itemID}
		n, ok := AddQuantity(exposure[k], qty)
		if !ok {
			return fmt.Errorf("%w: %s holds too many %s", ErrSnapshotCorrupt, owner, itemID)
		}
		exposure[k] = n
		return nil
	}
	for i := range s.Holdings {
		h := &s.Holdings[i]
		if h.Quantity <= 0 || h.Owner == "" {
			return fmt.Errorf("%w: bad holding for %q", ErrSnapshotCorrupt, h.Owner)
		}
		if err := expose(h.Owner, h.ItemID, h.Quantity); err != nil {
			return err
		}
	}
	ids := make(map[string]bool, len(s.Orders))
	for i := range s.Orders {
		o := &s.Orders[i]
		if ids[o.ID] {
			return fmt.Errorf("%w: duplicate order %s", ErrSnapshotCorrupt, o.ID)
		}
		ids[o.ID] = true
		if err := o.CheckInvariants(); err != nil {
			return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
		}
		if o.Seq >= s.NextOrderSeq {
			return fmt.Errorf("%w: order %s sequence ahead of counter", ErrSnapshotCorrupt, o.ID)
		}
		if o.Status == OrderStatusActive {
			if err := expose(o.Owner, o.ItemID, o.Remaining()); err != nil {
				return err
			}
		}
	}
	for i := range s.Journal {
		if s.Journal[i].ID >= s.NextEntryID {
			return fmt.Errorf("%w: entry %d ahead of counter", ErrSnapshotCorrupt, s.Journal[i].ID)
		}
	}
	return nil
}
