package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
)

// Dependencies are the collaborators of the economy. Only Clock and IDGen
// are required.
type Dependencies struct {
	Clock       Clock
	IDGen       IDGenerator
	Sink        EventSink
	RateLimiter RateLimiter
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// EconomyUseCase is the single entry point to the economy. It owns the
// state, wires the components and publishes an event for every completed
// change once all locks are released.
type EconomyUseCase struct {
	config EconomyConfig
	state  *State
	clock  Clock
	idGen  IDGenerator
	sink   EventSink
	m      *metrics.Metrics
	logger zerolog.Logger

	ledger    *LedgerUseCase
	inventory *InventoryUseCase
	journal   *JournalUseCase
	market    *MarketUseCase
	recon     *ReconciliationUseCase
}

// NewEconomyUseCase validates cfg and builds an empty economy.
func NewEconomyUseCase(cfg EconomyConfig, deps Dependencies) (*EconomyUseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil || deps.IDGen == nil {
		return nil, fmt.Errorf("%w: clock and id generator are required", ErrInvalidConfig)
	}

	e := &EconomyUseCase{
		config: cfg,
		clock:  deps.Clock,
		idGen:  deps.IDGen,
		sink:   deps.Sink,
		m:      deps.Metrics,
		logger: deps.Logger.With().Str("component", "economy").Logger(),
	}
	e.state = NewState(e.config.Location(), e.config.JournalRetention)
	e.journal = NewJournalUseCase(e.state)
	e.ledger = NewLedgerUseCase(e.state, &e.config, e.clock, deps.RateLimiter)
	e.inventory = NewInventoryUseCase(e.state, e.clock, e.config.Catalog())
	e.market = NewMarketUseCase(e.state, &e.config, e.clock, e.idGen, e.inventory)
	e.recon = NewReconciliationUseCase(e.state, e.journal, &e.config, e.clock)
	return e, nil
}

// Config returns the validated rules.
func (e *EconomyUseCase) Config() EconomyConfig {
	return e.config
}

// Credit adds currency to an owner on behalf of a collaborator.
func (e *EconomyUseCase) Credit(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	entry, err := e.ledger.Credit(ctx, in)
	if err != nil {
		return nil, e.fail("credit", err)
	}
	if e.m != nil {
		e.m.CurrencyMinted.WithLabelValues(entry.Currency, string(entry.Kind)).Add(entry.Amount.InexactFloat64())
	}
	e.emit(ctx, domain.Event{
		Kind:     domain.EventCurrencyCredited,
		Owners:   []string{entry.Destination},
		Currency: entry.Currency,
		Amount:   entry.Amount,
		EntryID:  entry.ID,
	})
	return entry, nil
}

// Debit removes currency from an owner on behalf of a collaborator.
func (e *EconomyUseCase) Debit(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	entry, err := e.ledger.Debit(ctx, in)
	if err != nil {
		return nil, e.fail("debit", err)
	}
	e.debited(ctx, entry)
	return entry, nil
}

// LockFunds reserves available currency for a collaborator.
func (e *EconomyUseCase) LockFunds(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	return e.fail("lock", e.ledger.Lock(ctx, owner, currency, amount))
}

// UnlockFunds releases a reservation made with LockFunds.
func (e *EconomyUseCase) UnlockFunds(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	return e.fail("unlock", e.ledger.Unlock(ctx, owner, currency, amount))
}

// SettleLocked spends previously locked currency.
func (e *EconomyUseCase) SettleLocked(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	entry, err := e.ledger.SettleLocked(ctx, in)
	if err != nil {
		return nil, e.fail("settle", err)
	}
	e.debited(ctx, entry)
	return entry, nil
}

func (e *EconomyUseCase) debited(ctx context.Context, entry *domain.LedgerEntry) {
	if e.m != nil {
		e.m.CurrencyBurned.WithLabelValues(entry.Currency, string(entry.Kind)).Add(entry.Amount.InexactFloat64())
	}
	e.emit(ctx, domain.Event{
		Kind:     domain.EventCurrencyDebited,
		Owners:   []string{entry.Source},
		Currency: entry.Currency,
		Amount:   entry.Amount,
		EntryID:  entry.ID,
	})
}

// Transfer moves currency between two owners, charging the transfer fee.
func (e *EconomyUseCase) Transfer(ctx context.Context, in TransferInput) (*domain.LedgerEntry, error) {
	start := time.Now()
	entry, err := e.ledger.Transfer(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) && e.m != nil {
			e.m.RateLimitHits.WithLabelValues("transfer").Inc()
		}
		return nil, e.fail("transfer", err)
	}

	if e.m != nil {
		e.m.TransferDuration.Observe(time.Since(start).Seconds())
		e.m.Transfers.WithLabelValues(entry.Currency).Inc()
		e.m.TransferAmount.WithLabelValues(entry.Currency).Observe(entry.Amount.InexactFloat64())
		e.m.FeesCollected.WithLabelValues(entry.Currency, "transfer").Add(entry.Fee.InexactFloat64())
	}
	e.logger.Info().
		Str("from", entry.Source).
		Str("to", entry.Destination).
		Str("currency", entry.Currency).
		Str("amount", entry.Amount.String()).
		Str("fee", entry.Fee.String()).
		Uint64("entry_id", entry.ID).
		Msg("transfer completed")
	e.emit(ctx, domain.Event{
		Kind:     domain.EventTransfer,
		Owners:   []string{entry.Source, entry.Destination},
		Currency: entry.Currency,
		Amount:   entry.Amount,
		Fee:      entry.Fee,
		EntryID:  entry.ID,
	})
	return entry, nil
}

// GrantItems adds items to an owner's inventory.
func (e *EconomyUseCase) GrantItems(ctx context.Context, in ItemChangeInput) error {
	if err := e.inventory.Credit(ctx, in); err != nil {
		return e.fail("grant_items", err)
	}
	e.emit(ctx, domain.Event{
		Kind:     domain.EventItemsGranted,
		Owners:   []string{in.Owner},
		ItemID:   in.ItemID,
		Quantity: in.Quantity,
	})
	return nil
}

// ConsumeItems removes items from an owner's inventory, oldest first.
func (e *EconomyUseCase) ConsumeItems(ctx context.Context, in ItemChangeInput) error {
	if err := e.inventory.Debit(ctx, in); err != nil {
		return e.fail("consume_items", err)
	}
	e.emit(ctx, domain.Event{
		Kind:     domain.EventItemsConsumed,
		Owners:   []string{in.Owner},
		ItemID:   in.ItemID,
		Quantity: in.Quantity,
	})
	return nil
}

// ItemCount returns the usable quantity of an item the owner holds.
func (e *EconomyUseCase) ItemCount(ctx context.Context, owner, itemID string) (int64, error) {
	n, err := e.inventory.Count(ctx, owner, itemID)
	return n, e.fail("item_count", err)
}

// Inventory returns the owner's usable holdings.
func (e *EconomyUseCase) Inventory(ctx context.Context, owner string) ([]domain.InventoryHolding, error) {
	h, err := e.inventory.List(ctx, owner)
	return h, e.fail("inventory", err)
}

// Account returns a copy of the owner's balances.
func (e *EconomyUseCase) Account(ctx context.Context, owner string) (*domain.CurrencyAccount, error) {
	acc, err := e.ledger.Account(ctx, owner)
	return acc, e.fail("account", err)
}

// Balance returns the owner's position in one currency.
func (e *EconomyUseCase) Balance(ctx context.Context, owner, currency string) (domain.Balance, error) {
	b, err := e.ledger.Balance(ctx, owner, currency)
	return b, e.fail("balance", err)
}

// Leaderboard ranks owners by total balance in currency.
func (e *EconomyUseCase) Leaderboard(ctx context.Context, currency string, limit int) ([]LeaderboardEntry, error) {
	rows, err := e.ledger.Leaderboard(ctx, currency, limit)
	return rows, e.fail("leaderboard", err)
}

// History returns the owner's journal entries, newest first.
func (e *EconomyUseCase) History(ctx context.Context, owner string, limit int) ([]domain.LedgerEntry, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, e.fail("history", err)
	}
	return e.journal.History(owner, limit), nil
}

// DailySum totals what owner sent in currency with kind on the calendar day
// containing day, in the economy's timezone. Past days are answered while
// any of their entries are retained.
func (e *EconomyUseCase) DailySum(ctx context.Context, owner, currency string, kind domain.EntryKind, day time.Time) (decimal.Decimal, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return decimal.Zero, e.fail("daily sum", err)
	}
	return e.journal.DailySum(owner, currency, kind, day), nil
}

// Entry looks up one journal entry.
func (e *EconomyUseCase) Entry(ctx context.Context, id uint64) (domain.LedgerEntry, error) {
	entry, err := e.journal.Entry(id)
	return entry, e.fail("entry", err)
}

// PlaceOrder escrows and matches a new order. Trades executed before a
// failure are kept and reported alongside the error.
func (e *EconomyUseCase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	start := time.Now()
	res, err := e.market.PlaceOrder(ctx, in)
	if res == nil {
		return nil, e.fail("place_order", err)
	}

	if e.m != nil {
		e.m.MatchDuration.Observe(time.Since(start).Seconds())
		e.m.OrdersPlaced.WithLabelValues(string(res.Order.Side)).Inc()
	}
	e.logger.Info().
		Str("order_id", res.Order.ID).
		Str("owner", res.Order.Owner).
		Str("side", string(res.Order.Side)).
		Str("item", res.Order.ItemID).
		Str("currency", res.Order.Currency).
		Int64("quantity", res.Order.Quantity).
		Str("price", res.Order.PricePerUnit.String()).
		Int("trades", len(res.Trades)).
		Msg("order placed")

	e.emit(ctx, domain.Event{
		Kind:     domain.EventOrderPlaced,
		Owners:   []string{res.Order.Owner},
		Currency: res.Order.Currency,
		ItemID:   res.Order.ItemID,
		Quantity: res.Order.Quantity,
		Price:    res.Order.PricePerUnit,
		OrderID:  res.Order.ID,
	})
	for _, t := range res.Trades {
		e.traded(ctx, t)
	}
	return res, e.fail("place_order", err)
}

func (e *EconomyUseCase) traded(ctx context.Context, t domain.Trade) {
	if e.m != nil {
		e.m.Trades.WithLabelValues(t.Currency).Inc()
		e.m.TradedValue.WithLabelValues(t.Currency).Add(t.Total.InexactFloat64())
		e.m.FeesCollected.WithLabelValues(t.Currency, "market").Add(t.Fee.InexactFloat64())
	}
	e.emit(ctx, domain.Event{
		Kind:     domain.EventTrade,
		Owners:   []string{t.Buyer, t.Seller},
		Currency: t.Currency,
		ItemID:   t.ItemID,
		Amount:   t.Total,
		Fee:      t.Fee,
		Quantity: t.Quantity,
		Price:    t.UnitPrice,
		OrderID:  t.BuyOrderID,
		EntryID:  t.EntryID,
	})
	fills := []struct {
		filled  bool
		owner   string
		orderID string
	}{
		{t.SellFilled, t.Seller, t.SellOrderID},
		{t.BuyFilled, t.Buyer, t.BuyOrderID},
	}
	for _, f := range fills {
		if !f.filled {
			continue
		}
		e.emit(ctx, domain.Event{
			Kind:     domain.EventOrderFilled,
			Owners:   []string{f.owner},
			Currency: t.Currency,
			ItemID:   t.ItemID,
			OrderID:  f.orderID,
		})
	}
}

// CancelOrder withdraws the owner's ACTIVE order and returns its escrow.
func (e *EconomyUseCase) CancelOrder(ctx context.Context, owner, orderID string) (*domain.MarketOrder, error) {
	order, err := e.market.CancelOrder(ctx, owner, orderID)
	if err != nil {
		return nil, e.fail("cancel_order", err)
	}
	if e.m != nil {
		e.m.OrdersCancelled.Inc()
	}
	e.closed(ctx, domain.EventOrderCancelled, *order)
	return order, nil
}

func (e *EconomyUseCase) closed(ctx context.Context, kind domain.EventKind, o domain.MarketOrder) {
	e.emit(ctx, domain.Event{
		Kind:     kind,
		Owners:   []string{o.Owner},
		Currency: o.Currency,
		ItemID:   o.ItemID,
		Quantity: o.Remaining(),
		Price:    o.PricePerUnit,
		OrderID:  o.ID,
	})
}

// GetOrder returns one order by id.
func (e *EconomyUseCase) GetOrder(ctx context.Context, orderID string) (*domain.MarketOrder, error) {
	o, err := e.market.GetOrder(ctx, orderID)
	return o, e.fail("get_order", err)
}

// ListOrders returns the owner's orders; terminal ones only when all is set.
func (e *EconomyUseCase) ListOrders(ctx context.Context, owner string, all bool) ([]domain.MarketOrder, error) {
	orders, err := e.market.ListOrders(ctx, owner, all)
	return orders, e.fail("list_orders", err)
}

// OrderBook returns the depth of one market.
func (e *EconomyUseCase) OrderBook(ctx context.Context, itemID, currency string, depth int) (BookView, error) {
	v, err := e.market.Book(ctx, itemID, currency, depth)
	return v, e.fail("order_book", err)
}

// MarketStats summarises every market.
func (e *EconomyUseCase) MarketStats(ctx context.Context) []MarketStats {
	return e.market.Stats(ctx)
}

// SweepExpired expires every ACTIVE order past its horizon.
func (e *EconomyUseCase) SweepExpired(ctx context.Context) ([]domain.MarketOrder, error) {
	expired, err := e.market.SweepExpired(ctx)
	if e.m != nil {
		e.m.OrdersExpired.Add(float64(len(expired)))
	}
	if len(expired) > 0 {
		e.logger.Info().Int("count", len(expired)).Msg("expired orders swept")
	}
	for _, o := range expired {
		e.closed(ctx, domain.EventOrderExpired, o)
	}
	return expired, e.fail("sweep", err)
}

// CurrencyIndicator describes the state of one currency.
type CurrencyIndicator struct {
	Currency      string          `json:"currency"`
	Supply        decimal.Decimal `json:"supply"`
	Locked        decimal.Decimal `json:"locked"`
	Circulating   decimal.Decimal `json:"circulating"`
	FeesCollected decimal.Decimal `json:"fees_collected"`
	Holders       int             `json:"holders"`
	TodayEntries  int64           `json:"today_entries"`
	TodayVolume   decimal.Decimal `json:"today_volume"`
}

// Indicators is an economy-wide overview.
type Indicators struct {
	Currencies     []CurrencyIndicator `json:"currencies"`
	Accounts       int                 `json:"accounts"`
	ActiveOrders   int                 `json:"active_orders"`
	Markets        int                 `json:"markets"`
	JournalEntries int                 `json:"journal_entries"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// Indicators computes supply, circulation and activity per currency.
func (e *EconomyUseCase) Indicators(ctx context.Context) *Indicators {
	s := e.state
	now := e.clock.Now()

	s.barrier.Lock()
	s.mu.Lock()
	out := &Indicators{Accounts: len(s.accounts), Markets: len(s.books), ComputedAt: now}
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusActive {
			out.ActiveOrders++
		}
	}
	byCurrency := make(map[string]*CurrencyIndicator)
	for _, code := range e.config.CurrencyCodes() {
		byCurrency[code] = &CurrencyIndicator{Currency: code}
	}
	for _, acc := range s.accounts {
		for _, code := range acc.Currencies() {
			ci, ok := byCurrency[code]
			if !ok {
				continue
			}
			b := acc.Balance(code)
			ci.Supply = ci.Supply.Add(b.Total)
			ci.Locked = ci.Locked.Add(b.Locked)
			if b.Total.IsPositive() {
				ci.Holders++
			}
		}
	}
	s.mu.Unlock()
	s.barrier.Unlock()

	for _, st := range e.journal.Stats(now) {
		if ci, ok := byCurrency[st.Currency]; ok {
			ci.TodayEntries = st.Count
			ci.TodayVolume = st.Volume
		}
	}
	for _, code := range e.config.CurrencyCodes() {
		ci := byCurrency[code]
		ci.Circulating = ci.Supply.Sub(ci.Locked)
		ci.FeesCollected = e.journal.FeesCollected(code)
		out.Currencies = append(out.Currencies, *ci)
	}
	out.JournalEntries = e.journal.Len()
	return out
}

// Reconcile checks balances against open escrow.
func (e *EconomyUseCase) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	report, err := e.recon.GenerateReconciliationReport(ctx)
	if err != nil {
		return nil, e.fail("reconcile", err)
	}
	if !report.Consistent {
		e.logger.Error().
			Int("discrepancies", len(report.Discrepancies)).
			Int("order_violations", len(report.OrderViolations)).
			Msg("reconciliation found inconsistencies")
	}
	return report, nil
}

// Snapshot captures the complete state.
func (e *EconomyUseCase) Snapshot() *domain.Snapshot {
	return e.state.Snapshot(e.clock.Now())
}

// Restore replaces the complete state with snap.
func (e *EconomyUseCase) Restore(snap *domain.Snapshot) error {
	if err := e.state.Restore(snap); err != nil {
		return e.fail("restore", err)
	}
	e.logger.Info().
		Int("accounts", len(snap.Accounts)).
		Int("orders", len(snap.Orders)).
		Int("journal", len(snap.Journal)).
		Time("taken_at", snap.TakenAt).
		Msg("state restored")
	return nil
}

// SaveSnapshot captures the state and writes it to store. No engine lock is
// held while the store is written.
func (e *EconomyUseCase) SaveSnapshot(ctx context.Context, store SnapshotStore) error {
	start := time.Now()
	snap := e.Snapshot()
	if err := store.Save(ctx, snap); err != nil {
		if e.m != nil {
			e.m.SnapshotFailures.Inc()
		}
		if !errors.Is(err, domain.ErrSnapshotUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrSnapshotUnavailable, err)
		}
		return e.fail("save_snapshot", err)
	}
	if e.m != nil {
		e.m.SnapshotDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug().Int("accounts", len(snap.Accounts)).Int("orders", len(snap.Orders)).Msg("snapshot saved")
	return nil
}

// LoadSnapshot restores the latest snapshot from store. It reports false
// when the store holds none.
func (e *EconomyUseCase) LoadSnapshot(ctx context.Context, store SnapshotStore) (bool, error) {
	snap, err := store.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		e.logger.Info().Msg("no snapshot found, starting empty")
		return false, nil
	}
	if err != nil {
		return false, e.fail("load_snapshot", err)
	}
	if err := e.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}

func (e *EconomyUseCase) emit(ctx context.Context, ev domain.Event) {
	if e.sink == nil {
		return
	}
	ev.ID = e.idGen.Generate()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.clock.Now()
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		if e.m != nil {
			e.m.EventPublishFails.WithLabelValues(string(ev.Kind)).Inc()
		}
		e.logger.Warn().Err(err).Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Msg("event sink failed")
		return
	}
	if e.m != nil {
		e.m.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// fail records err against op and returns it unchanged. Business failures
// are logged at debug, faults at error.
func (e *EconomyUseCase) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	if e.m != nil {
		e.m.BusinessErrors.WithLabelValues(op, string(kind)).Inc()
	}
	if kind == domain.KindInternal {
		e.logger.Error().Err(err).Str("operation", op).Msg("operation failed")
	} else {
		e.logger.Debug().Err(err).Str("operation", op).Str("kind", string(kind)).Msg("operation rejected")
	}
	return err
}
