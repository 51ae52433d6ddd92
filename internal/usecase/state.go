package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/iho/goeconomy/internal/domain"
)

// State is the in-memory store every component works on.
//
// Lock order, outermost first:
//  1. barrier (shared by operations, exclusive for snapshot and restore)
//  2. one book lock from the lock table
//  3. owner locks from the lock table, all in a single Lock call
//  4. mu and the journal mutex, which are leaves
//
// An account, inventory or order is only read or written while its owner's
// lock is held; an order is additionally guarded by its book lock.
type State struct {
	barrier sync.RWMutex
	locks   *LockTable

	mu        sync.Mutex
	accounts  map[string]*domain.CurrencyAccount
	inventory map[string]*domain.Inventory
	orders    map[string]*domain.MarketOrder
	byOwner   map[string][]*domain.MarketOrder
	books     map[string]*orderBook
	orderSeq  uint64

	journal *journal
}

// NewState returns an empty store.
func NewState(loc *time.Location, retention int) *State {
	return &State{
		locks:     NewLockTable(),
		accounts:  make(map[string]*domain.CurrencyAccount),
		inventory: make(map[string]*domain.Inventory),
		orders:    make(map[string]*domain.MarketOrder),
		byOwner:   make(map[string][]*domain.MarketOrder),
		books:     make(map[string]*orderBook),
		orderSeq:  1,
		journal:   newJournal(loc, retention),
	}
}

func (s *State) lockOwners(owners ...string) func() {
	keys := make([]string, len(owners))
	for i, o := range owners {
		keys[i] = ownerKey(o)
	}
	return s.locks.Lock(keys...)
}

func (s *State) lockBook(itemID, currency string) func() {
	return s.locks.Lock(bookKey(itemID, currency))
}

// account returns the owner's account, creating it on first touch.
func (s *State) account(owner string, now time.Time) *domain.CurrencyAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[owner]
	if !ok {
		acc = domain.NewCurrencyAccount(owner, now)
		s.accounts[owner] = acc
	}
	return acc
}

func (s *State) peekAccount(owner string) (*domain.CurrencyAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[owner]
	return acc, ok
}

func (s *State) owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.accounts))
	for o := range s.accounts {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

func (s *State) inventoryOf(owner string) *domain.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.inventory[owner]
	if !ok {
		inv = &domain.Inventory{Owner: owner}
		s.inventory[owner] = inv
	}
	return inv
}

func (s *State) order(id string) (*domain.MarketOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// addOrder registers a new order and stamps its placement sequence.
func (s *State) addOrder(o *domain.MarketOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Seq = s.orderSeq
	s.orderSeq++
	s.orders[o.ID] = o
	s.byOwner[o.Owner] = append(s.byOwner[o.Owner], o)
}

func (s *State) ordersOf(owner string) []*domain.MarketOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.MarketOrder(nil), s.byOwner[owner]...)
}

// checkItemRoom fails when owner could not hold qty more of item. Room is
// measured against holdings plus the remaining quantity of active orders on
// the item, since fills and cancels move those back into the inventory. The
// owner's lock must be held.
func (s *State) checkItemRoom(owner, itemID string, qty int64) error {
	n := s.inventoryOf(owner).Total(itemID)
	for _, o := range s.ordersOf(owner) {
		if o.Status == domain.OrderStatusActive && o.ItemID == itemID {
			n, _ = domain.AddQuantity(n, o.Remaining())
		}
	}
	if _, ok := domain.AddQuantity(n, qty); !ok {
		return domain.ErrTooManyItems
	}
	return nil
}

// activeOrderCount must be called with the owner's lock held.
func (s *State) activeOrderCount(owner string) int {
	n := 0
	for _, o := range s.ordersOf(owner) {
		if o.Status == domain.OrderStatusActive {
			n++
		}
	}
	return n
}

func (s *State) book(itemID, currency string) *orderBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bookKey(itemID, currency)
	b, ok := s.books[key]
	if !ok {
		b = newOrderBook(itemID, currency)
		s.books[key] = b
	}
	return b
}

// bookList returns every book in key order.
func (s *State) bookList() []*orderBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.books))
	for k := range s.books {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*orderBook, len(keys))
	for i, k := range keys {
		out[i] = s.books[k]
	}
	return out
}
