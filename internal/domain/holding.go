package domain

import (
	"math"
	"sort"
	"time"
)

// AddQuantity sums two non-negative quantities. When the sum does not fit
// in an int64 it returns math.MaxInt64 and false.
func AddQuantity(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return math.MaxInt64, false
	}
	return a + b, true
}

// InventoryHolding is a stack of identical items owned by one user.
type InventoryHolding struct {
	Owner      string     `json:"owner"`
	ItemID     string     `json:"item_id"`
	Quantity   int64      `json:"quantity"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the holding can no longer be used at now.
func (h *InventoryHolding) Expired(now time.Time) bool {
	return h.ExpiresAt != nil && !now.Before(*h.ExpiresAt)
}

// SameStack reports whether item and expiry match, so quantities may coalesce.
func (h *InventoryHolding) SameStack(itemID string, expiresAt *time.Time) bool {
	if h.ItemID != itemID {
		return false
	}
	if h.ExpiresAt == nil || expiresAt == nil {
		return h.ExpiresAt == nil && expiresAt == nil
	}
	return h.ExpiresAt.Equal(*expiresAt)
}

// Inventory is every holding of one owner, oldest first.
type Inventory struct {
	Owner    string
	Holdings []*InventoryHolding
}

// Add credits qty of item, coalescing with an identical stack. It fails
// without change when the owner's total of item would overflow.
func (inv *Inventory) Add(itemID string, qty int64, expiresAt *time.Time, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if _, ok := AddQuantity(inv.Total(itemID), qty); !ok {
		return ErrTooManyItems
	}
	for _, h := range inv.Holdings {
		if h.SameStack(itemID, expiresAt) {
			h.Quantity += qty
			return nil
		}
	}
	var exp *time.Time
	if expiresAt != nil {
		e := *expiresAt
		exp = &e
	}
	inv.Holdings = append(inv.Holdings, &InventoryHolding{
		Owner:      inv.Owner,
		ItemID:     itemID,
		Quantity:   qty,
		AcquiredAt: now,
		ExpiresAt:  exp,
	})
	return nil
}

// Count sums non-expired quantity of item.
func (inv *Inventory) Count(itemID string, now time.Time) int64 {
	var n int64
	for _, h := range inv.Holdings {
		if h.ItemID == itemID && !h.Expired(now) {
			n, _ = AddQuantity(n, h.Quantity)
		}
	}
	return n
}

// Total sums every holding of item, expired or not.
func (inv *Inventory) Total(itemID string) int64 {
	var n int64
	for _, h := range inv.Holdings {
		if h.ItemID == itemID {
			n, _ = AddQuantity(n, h.Quantity)
		}
	}
	return n
}

// Remove takes qty of item oldest-first across non-expired holdings.
// It is all-or-nothing.
func (inv *Inventory) Remove(itemID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if inv.Count(itemID, now) < qty {
		return ErrNotEnoughItems
	}

	candidates := make([]*InventoryHolding, 0, len(inv.Holdings))
	for _, h := range inv.Holdings {
		if h.ItemID == itemID && !h.Expired(now) {
			candidates = append(candidates, h)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AcquiredAt.Before(candidates[j].AcquiredAt)
	})

	left := qty
	for _, h := range candidates {
		take := min(h.Quantity, left)
		h.Quantity -= take
		left -= take
		if left == 0 {
			break
		}
	}
	inv.compact(now)
	return nil
}

// Sweep drops expired holdings. It returns the number removed.
func (inv *Inventory) Sweep(now time.Time) int {
	before := len(inv.Holdings)
	inv.compact(now)
	return before - len(inv.Holdings)
}

func (inv *Inventory) compact(now time.Time) {
	kept := inv.Holdings[:0]
	for _, h := range inv.Holdings {
		if h.Quantity > 0 && !h.Expired(now) {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(inv.Holdings); i++ {
		inv.Holdings[i] = nil
	}
	inv.Holdings = kept
}

// Active returns copies of the non-expired holdings.
func (inv *Inventory) Active(now time.Time) []InventoryHolding {
	out := make([]InventoryHolding, 0, len(inv.Holdings))
	for _, h := range inv.Holdings {
		if !h.Expired(now) {
			out = append(out, *h)
		}
	}
	return out
}
