package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

type dailyKey struct {
	owner    string
	currency string
	kind     domain.EntryKind
	day      string
}

type statKey struct {
	currency string
	day      string
}

// journal is the append-only record of completed movements. Its mutex is
// a leaf: record is called while owner locks are held.
type journal struct {
	mu        sync.Mutex
	loc       *time.Location
	retention int

	entries []*domain.LedgerEntry
	byOwner map[string][]*domain.LedgerEntry
	nextID  uint64

	fees  map[string]decimal.Decimal
	daily map[dailyKey]decimal.Decimal
	stats map[statKey]*domain.DailyStat
}

func newJournal(loc *time.Location, retention int) *journal {
	if loc == nil {
		loc = time.UTC
	}
	return &journal{
		loc:       loc,
		retention: retention,
		byOwner:   make(map[string][]*domain.LedgerEntry),
		nextID:    1,
		fees:      make(map[string]decimal.Decimal),
		daily:     make(map[dailyKey]decimal.Decimal),
		stats:     make(map[statKey]*domain.DailyStat),
	}
}

func (j *journal) day(t time.Time) string {
	return t.In(j.loc).Format(dayLayout)
}

// record stamps and appends e. The caller must hold the locks of every owner
// the entry names so the entry becomes visible together with the mutation.
func (j *journal) record(e domain.LedgerEntry, now time.Time) domain.LedgerEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.ID = j.nextID
	j.nextID++
	e.Status = domain.EntryStatusCompleted
	e.CreatedAt = now
	completed := now
	e.CompletedAt = &completed
	if e.Fee.IsZero() {
		e.Fee = decimal.Zero
	}

	stored := e
	j.entries = append(j.entries, &stored)
	for _, owner := range entryOwners(&stored) {
		j.byOwner[owner] = append(j.byOwner[owner], &stored)
	}

	if e.Fee.IsPositive() {
		j.fees[e.Currency] = j.fees[e.Currency].Add(e.Fee)
	}

	day := j.day(now)
	if e.Source != "" {
		k := dailyKey{owner: e.Source, currency: e.Currency, kind: e.Kind, day: day}
		j.daily[k] = j.daily[k].Add(e.Amount)
	}
	sk := statKey{currency: e.Currency, day: day}
	st, ok := j.stats[sk]
	if !ok {
		st = &domain.DailyStat{Currency: e.Currency, Day: day, Volume: decimal.Zero}
		j.stats[sk] = st
	}
	st.Count++
	st.Volume = st.Volume.Add(e.Amount)

	j.trim()
	return copyEntry(&stored)
}

// trim drops entries beyond the retention limit. Day aggregates outlive
// their entries until the whole day has left the journal, so a partially
// trimmed day still reports its full sum.
func (j *journal) trim() {
	if j.retention <= 0 || len(j.entries) <= j.retention {
		return
	}
	defer j.pruneDays()
	drop := len(j.entries) - j.retention
	oldest := j.entries[drop].ID
	for _, e := range j.entries[:drop] {
		for _, owner := range entryOwners(e) {
			list := j.byOwner[owner]
			i := 0
			for i < len(list) && list[i].ID < oldest {
				i++
			}
			if i == len(list) {
				delete(j.byOwner, owner)
			} else {
				j.byOwner[owner] = list[i:]
			}
		}
	}
	j.entries = append([]*domain.LedgerEntry(nil), j.entries[drop:]...)
}

// pruneDays forgets aggregates of days older than the oldest retained entry.
func (j *journal) pruneDays() {
	if len(j.entries) == 0 {
		return
	}
	oldest := j.day(j.entries[0].CreatedAt)
	for k := range j.daily {
		if k.day < oldest {
			delete(j.daily, k)
		}
	}
	for k := range j.stats {
		if k.day < oldest {
			delete(j.stats, k)
		}
	}
}

func entryOwners(e *domain.LedgerEntry) []string {
	switch {
	case e.Source != "" && e.Destination != "" && e.Source != e.Destination:
		return []string{e.Source, e.Destination}
	case e.Source != "":
		return []string{e.Source}
	default:
		return []string{e.Destination}
	}
}

func copyEntry(e *domain.LedgerEntry) domain.LedgerEntry {
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// JournalUseCase answers questions about recorded movements.
type JournalUseCase struct {
	state *State
}

func NewJournalUseCase(state *State) *JournalUseCase {
	return &JournalUseCase{state: state}
}

// History returns up to limit entries naming owner, newest first.
func (uc *JournalUseCase) History(owner string, limit int) []domain.LedgerEntry {
	limit, _ = domain.ValidatePagination(limit, 0)

	j := uc.state.journal
	j.mu.Lock()
	defer j.mu.Unlock()

	list := j.byOwner[owner]
	n := min(limit, len(list))
	out := make([]domain.LedgerEntry, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, copyEntry(list[i]))
	}
	return out
}

// DailySum totals the amounts owner sent in currency with kind on the
// calendar day containing at.
func (uc *JournalUseCase) DailySum(owner, currency string, kind domain.EntryKind, at time.Time) decimal.Decimal {
	return uc.state.journal.dailySum(owner, currency, kind, at)
}

func (j *journal) dailySum(owner, currency string, kind domain.EntryKind, at time.Time) decimal.Decimal {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.daily[dailyKey{owner: owner, currency: currency, kind: kind, day: j.day(at)}]
}

// Entry looks up one retained entry by id.
func (uc *JournalUseCase) Entry(id uint64) (domain.LedgerEntry, error) {
	j := uc.state.journal
	j.mu.Lock()
	defer j.mu.Unlock()

	i := sort.Search(len(j.entries), func(i int) bool { return j.entries[i].ID >= id })
	if i == len(j.entries) || j.entries[i].ID != id {
		return domain.LedgerEntry{}, domain.ErrNotFound
	}
	return copyEntry(j.entries[i]), nil
}

// FeesCollected is the total fee retained by the system in currency.
func (uc *JournalUseCase) FeesCollected(currency string) decimal.Decimal {
	j := uc.state.journal
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fees[currency]
}

// Stats returns the entry count and volume per currency for the day
// containing at.
func (uc *JournalUseCase) Stats(at time.Time) []domain.DailyStat {
	j := uc.state.journal
	j.mu.Lock()
	defer j.mu.Unlock()

	day := j.day(at)
	var out []domain.DailyStat
	for k, st := range j.stats {
		if k.day == day {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Currency < out[b].Currency })
	return out
}

// Len is the number of retained entries.
func (uc *JournalUseCase) Len() int {
	j := uc.state.journal
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
