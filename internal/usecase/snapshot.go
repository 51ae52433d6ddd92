package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// Snapshot copies all state while every operation is paused.
func (s *State) Snapshot(now time.Time) *domain.Snapshot {
	s.barrier.Lock()
	defer s.barrier.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &domain.Snapshot{
		Version:      domain.SnapshotVersion,
		TakenAt:      now,
		Accounts:     make([]*domain.CurrencyAccount, 0, len(s.accounts)),
		Holdings:     []domain.InventoryHolding{},
		Orders:       make([]domain.MarketOrder, 0, len(s.orders)),
		NextOrderSeq: s.orderSeq,
	}

	for _, owner := range sortedKeys(s.accounts) {
		snap.Accounts = append(snap.Accounts, s.accounts[owner].Clone())
	}
	for _, owner := range sortedKeys(s.inventory) {
		for _, h := range s.inventory[owner].Holdings {
			if h.Quantity > 0 {
				snap.Holdings = append(snap.Holdings, copyHolding(h))
			}
		}
	}
	for _, o := range s.orders {
		snap.Orders = append(snap.Orders, *o)
	}
	sort.Slice(snap.Orders, func(i, j int) bool { return snap.Orders[i].Seq < snap.Orders[j].Seq })

	s.journal.snapshotInto(snap)
	return snap
}

// Restore replaces all state with snap. snap is checked first; on error the
// current state is left untouched.
func (s *State) Restore(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", domain.ErrSnapshotCorrupt)
	}
	if snap.Version != domain.SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", domain.ErrSnapshotCorrupt, snap.Version)
	}
	if err := snap.Check(); err != nil {
		return err
	}

	accounts := make(map[string]*domain.CurrencyAccount, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accounts[a.Owner] = a.Clone()
	}

	inventory := make(map[string]*domain.Inventory)
	for i := range snap.Holdings {
		h := copyHolding(&snap.Holdings[i])
		inv, ok := inventory[h.Owner]
		if !ok {
			inv = &domain.Inventory{Owner: h.Owner}
			inventory[h.Owner] = inv
		}
		inv.Holdings = append(inv.Holdings, &h)
	}

	orders := make(map[string]*domain.MarketOrder, len(snap.Orders))
	byOwner := make(map[string][]*domain.MarketOrder)
	books := make(map[string]*orderBook)
	sorted := make([]domain.MarketOrder, len(snap.Orders))
	copy(sorted, snap.Orders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	for i := range sorted {
		o := sorted[i]
		orders[o.ID] = &o
		byOwner[o.Owner] = append(byOwner[o.Owner], &o)
		if o.Status == domain.OrderStatusActive {
			key := bookKey(o.ItemID, o.Currency)
			b, ok := books[key]
			if !ok {
				b = newOrderBook(o.ItemID, o.Currency)
				books[key] = b
			}
			b.insert(&o)
		}
	}

	s.barrier.Lock()
	defer s.barrier.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = accounts
	s.inventory = inventory
	s.orders = orders
	s.byOwner = byOwner
	s.books = books
	s.orderSeq = snap.NextOrderSeq
	if s.orderSeq == 0 {
		s.orderSeq = 1
	}
	s.journal.restoreFrom(snap)
	return nil
}

func (j *journal) snapshotInto(snap *domain.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap.Journal = make([]domain.LedgerEntry, 0, len(j.entries))
	for _, e := range j.entries {
		snap.Journal = append(snap.Journal, copyEntry(e))
	}
	snap.NextEntryID = j.nextID

	snap.FeesCollected = make(map[string]decimal.Decimal, len(j.fees))
	for c, f := range j.fees {
		snap.FeesCollected[c] = f
	}

	snap.DailyTotals = make([]domain.DailyTotal, 0, len(j.daily))
	for k, v := range j.daily {
		snap.DailyTotals = append(snap.DailyTotals, domain.DailyTotal{
			Owner: k.owner, Currency: k.currency, Kind: k.kind, Day: k.day, Amount: v,
		})
	}
	sort.Slice(snap.DailyTotals, func(a, b int) bool {
		x, y := snap.DailyTotals[a], snap.DailyTotals[b]
		if x.Owner != y.Owner {
			return x.Owner < y.Owner
		}
		if x.Currency != y.Currency {
			return x.Currency < y.Currency
		}
		if x.Kind != y.Kind {
			return x.Kind < y.Kind
		}
		return x.Day < y.Day
	})

	snap.DailyStats = make([]domain.DailyStat, 0, len(j.stats))
	for _, st := range j.stats {
		snap.DailyStats = append(snap.DailyStats, *st)
	}
	sort.Slice(snap.DailyStats, func(a, b int) bool {
		x, y := snap.DailyStats[a], snap.DailyStats[b]
		if x.Day != y.Day {
			return x.Day < y.Day
		}
		return x.Currency < y.Currency
	})
}

func (j *journal) restoreFrom(snap *domain.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = make([]*domain.LedgerEntry, 0, len(snap.Journal))
	j.byOwner = make(map[string][]*domain.LedgerEntry)
	for i := range snap.Journal {
		e := copyEntry(&snap.Journal[i])
		j.entries = append(j.entries, &e)
		for _, owner := range entryOwners(&e) {
			j.byOwner[owner] = append(j.byOwner[owner], &e)
		}
	}
	j.nextID = max(snap.NextEntryID, 1)

	j.fees = make(map[string]decimal.Decimal, len(snap.FeesCollected))
	for c, f := range snap.FeesCollected {
		j.fees[c] = f
	}
	j.daily = make(map[dailyKey]decimal.Decimal, len(snap.DailyTotals))
	for _, d := range snap.DailyTotals {
		j.daily[dailyKey{owner: d.Owner, currency: d.Currency, kind: d.Kind, day: d.Day}] = d.Amount
	}
	j.stats = make(map[statKey]*domain.DailyStat, len(snap.DailyStats))
	for _, st := range snap.DailyStats {
		c := st
		j.stats[statKey{currency: st.Currency, day: st.Day}] = &c
	}
}

func copyHolding(h *domain.InventoryHolding) domain.InventoryHolding {
	c := *h
	if h.ExpiresAt != nil {
		t := *h.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
