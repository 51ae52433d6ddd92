package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// PlaceOrderInput describes a new market order.
type PlaceOrderInput struct {
	Owner        string
	Side         domain.OrderSide
	ItemID       string
	Currency     string
	Quantity     int64
	PricePerUnit decimal.Decimal
}

// PlaceOrderResult is the order as it stands after immediate matching and
// the trades that matching produced.
type PlaceOrderResult struct {
	Order  domain.MarketOrder
	Trades []domain.Trade
}

// MarketUseCase runs the peer-to-peer order books.
type MarketUseCase struct {
	state     *State
	config    *EconomyConfig
	clock     Clock
	idGen     IDGenerator
	inventory *InventoryUseCase
}

// NewMarketUseCase creates a new MarketUseCase.
func NewMarketUseCase(state *State, config *EconomyConfig, clock Clock, idGen IDGenerator, inventory *InventoryUseCase) *MarketUseCase {
	return &MarketUseCase{
		state:     state,
		config:    config,
		clock:     clock,
		idGen:     idGen,
		inventory: inventory,
	}
}

// PlaceOrder escrows the order's assets, then matches it against the book.
// Whatever is not filled rests in the book until filled, cancelled or expired.
func (uc *MarketUseCase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	cc, err := uc.config.Currency(in.Currency)
	if err != nil {
		return nil, err
	}
	order := &domain.MarketOrder{
		Owner:        in.Owner,
		Side:         in.Side,
		ItemID:       in.ItemID,
		Currency:     in.Currency,
		Quantity:     in.Quantity,
		PricePerUnit: in.PricePerUnit,
		Status:       domain.OrderStatusActive,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := uc.inventory.validateItem(in.ItemID); err != nil {
		return nil, err
	}
	if !order.PricePerUnit.Equal(order.PricePerUnit.Truncate(cc.Precision)) {
		return nil, fmt.Errorf("%w: price has more than %d decimal places", domain.ErrInvalidPrice, cc.Precision)
	}
	if order.Value().LessThan(uc.config.Market.MinimumOrderValue) {
		return nil, fmt.Errorf("%w: minimum is %s %s", domain.ErrBelowMinimumOrderValue, uc.config.Market.MinimumOrderValue, in.Currency)
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlockBook := s.lockBook(order.ItemID, order.Currency)
	defer unlockBook()

	now := uc.clock.Now()
	if err := uc.escrow(order, now); err != nil {
		return nil, err
	}

	book := s.book(order.ItemID, order.Currency)
	trades, err := uc.match(book, order, cc, now)
	if order.Status == domain.OrderStatusActive {
		book.insert(order)
	}
	return &PlaceOrderResult{Order: *order, Trades: trades}, err
}

// escrow checks the per-owner cap, takes the order's assets and registers
// the order, all under the owner's lock.
func (uc *MarketUseCase) escrow(order *domain.MarketOrder, now time.Time) error {
	s := uc.state
	unlock := s.lockOwners(order.Owner)
	defer unlock()

	if n := s.activeOrderCount(order.Owner); n >= uc.config.Market.MaxActiveOrdersPerUser {
		return fmt.Errorf("%w: %d active orders", domain.ErrTooManyOrders, n)
	}

	switch order.Side {
	case domain.OrderSideSell:
		if err := s.inventoryOf(order.Owner).Remove(order.ItemID, order.Quantity, now); err != nil {
			return err
		}
	case domain.OrderSideBuy:
		if err := s.checkItemRoom(order.Owner, order.ItemID, order.Quantity); err != nil {
			return err
		}
		if err := s.account(order.Owner, now).Lock(order.Currency, order.Value(), now); err != nil {
			return err
		}
	}

	order.ID = uc.idGen.Generate()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.ExpiresAt = now.Add(uc.config.Market.OrderExpiryHorizon)
	s.addOrder(order)
	return nil
}

// match executes incoming against the best crossing resting orders until it
// is filled or nothing crosses. The book lock is held by the caller.
func (uc *MarketUseCase) match(book *orderBook, incoming *domain.MarketOrder, cc CurrencyConfig, now time.Time) ([]domain.Trade, error) {
	var trades []domain.Trade
	for incoming.Status == domain.OrderStatusActive {
		resting := book.bestCounter(incoming, now)
		if resting == nil {
			break
		}

		buy, sell := incoming, resting
		if incoming.Side == domain.OrderSideSell {
			buy, sell = resting, incoming
		}
		qty := min(buy.Remaining(), sell.Remaining())

		trade, err := uc.executeTrade(buy, sell, qty, resting.PricePerUnit, cc, now)
		if err != nil {
			return trades, err
		}
		book.recordTrade(trade)
		if resting.Status != domain.OrderStatusActive {
			book.remove(resting)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// executeTrade settles qty units at unitPrice between buy and sell under
// both owners' locks. Every check runs before the first mutation.
func (uc *MarketUseCase) executeTrade(buy, sell *domain.MarketOrder, qty int64, unitPrice decimal.Decimal, cc CurrencyConfig, now time.Time) (domain.Trade, error) {
	s := uc.state
	unlock := s.lockOwners(buy.Owner, sell.Owner)
	defer unlock()

	if buy.Status != domain.OrderStatusActive || sell.Status != domain.OrderStatusActive ||
		qty <= 0 || qty > buy.Remaining() || qty > sell.Remaining() {
		return domain.Trade{}, fmt.Errorf("%w: cannot match %s with %s for %d", domain.ErrInvariantViolation, buy.ID, sell.ID, qty)
	}

	currency := buy.Currency
	units := decimal.NewFromInt(qty)
	total := unitPrice.Mul(units)
	fee := domain.ComputeFee(total, uc.config.Market.MarketFeeRate, cc.Precision)
	proceeds := total.Sub(fee)
	refund := buy.PricePerUnit.Sub(unitPrice).Mul(units)

	buyer := s.account(buy.Owner, now)
	if err := buyer.ValidateLocked(currency, total.Add(refund)); err != nil {
		return domain.Trade{}, fmt.Errorf("%w: buyer escrow for %s: %v", domain.ErrInvariantViolation, buy.ID, err)
	}
	if _, ok := domain.AddQuantity(s.inventoryOf(buy.Owner).Total(buy.ItemID), qty); !ok {
		return domain.Trade{}, fmt.Errorf("%w: %s cannot receive %d %s", domain.ErrInvariantViolation, buy.Owner, qty, buy.ItemID)
	}
	seller := s.account(sell.Owner, now)

	if err := buyer.SettleLocked(currency, total, now); err != nil {
		return domain.Trade{}, fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	}
	if refund.IsPositive() {
		if err := buyer.Unlock(currency, refund, now); err != nil {
			return domain.Trade{}, fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
		}
	}
	if proceeds.IsPositive() {
		if err := seller.Credit(currency, proceeds, now); err != nil {
			return domain.Trade{}, fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
		}
	}
	if err := s.inventoryOf(buy.Owner).Add(buy.ItemID, qty, nil, now); err != nil {
		return domain.Trade{}, fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	}
	if err := buy.Fill(qty, now); err != nil {
		return domain.Trade{}, fmt.Errorf("%w: filling %s: %v", domain.ErrInvariantViolation, buy.ID, err)
	}
	if err := sell.Fill(qty, now); err != nil {
		return domain.Trade{}, fmt.Errorf("%w: filling %s: %v", domain.ErrInvariantViolation, sell.ID, err)
	}

	entry := s.journal.record(domain.LedgerEntry{
		Source:      buy.Owner,
		Destination: sell.Owner,
		Currency:    currency,
		Amount:      total,
		Fee:         fee,
		Kind:        domain.EntryKindTrade,
		Metadata: map[string]string{
			domain.MetaItemID:        buy.ItemID,
			domain.MetaQuantity:      strconv.FormatInt(qty, 10),
			domain.MetaUnitPrice:     unitPrice.String(),
			domain.MetaBuyOrderID:    buy.ID,
			domain.MetaSellOrderID:   sell.ID,
			domain.MetaSellerReceive: proceeds.String(),
		},
	}, now)

	return domain.Trade{
		BuyOrderID:     buy.ID,
		SellOrderID:    sell.ID,
		Buyer:          buy.Owner,
		Seller:         sell.Owner,
		ItemID:         buy.ItemID,
		Currency:       currency,
		Quantity:       qty,
		UnitPrice:      unitPrice,
		Total:          total,
		Fee:            fee,
		SellerReceives: proceeds,
		BuyerRefund:    refund,
		EntryID:        entry.ID,
		BuyFilled:      buy.Status == domain.OrderStatusFilled,
		SellFilled:     sell.Status == domain.OrderStatusFilled,
		ExecutedAt:     now,
	}, nil
}

// CancelOrder withdraws an ACTIVE order and returns its remaining escrow.
// A second cancel of the same order fails without touching any balance.
func (uc *MarketUseCase) CancelOrder(ctx context.Context, owner, orderID string) (*domain.MarketOrder, error) {
	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	order, ok := s.order(orderID)
	if !ok || order.Owner != owner {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	unlockBook := s.lockBook(order.ItemID, order.Currency)
	defer unlockBook()
	unlock := s.lockOwners(order.Owner)
	defer unlock()

	now := uc.clock.Now()
	if err := uc.close(order, domain.OrderStatusCancelled, now); err != nil {
		return nil, err
	}
	c := *order
	return &c, nil
}

// close returns the escrow of an ACTIVE order and moves it to status. The
// book lock and owner lock must be held.
func (uc *MarketUseCase) close(order *domain.MarketOrder, status domain.OrderStatus, now time.Time) error {
	if order.Status != domain.OrderStatusActive {
		return fmt.Errorf("%w: %s is %s", domain.ErrOrderNotActive, order.ID, order.Status)
	}

	s := uc.state
	if remaining := order.Remaining(); remaining > 0 {
		switch order.Side {
		case domain.OrderSideSell:
			if err := s.inventoryOf(order.Owner).Add(order.ItemID, remaining, nil, now); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
			}
		case domain.OrderSideBuy:
			if err := s.account(order.Owner, now).Unlock(order.Currency, order.RemainingValue(), now); err != nil {
				return fmt.Errorf("%w: returning escrow of %s: %v", domain.ErrInvariantViolation, order.ID, err)
			}
		}
	}

	var err error
	if status == domain.OrderStatusExpired {
		err = order.Expire(now)
	} else {
		err = order.Cancel(now)
	}
	if err != nil {
		return err
	}
	s.book(order.ItemID, order.Currency).remove(order)
	return nil
}

// SweepExpired moves every ACTIVE order past its horizon to EXPIRED and
// returns its escrow. Each order is checked and closed under the same locks
// CancelOrder takes, so an order is released exactly once.
func (uc *MarketUseCase) SweepExpired(ctx context.Context) ([]domain.MarketOrder, error) {
	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	now := uc.clock.Now()
	var expired []domain.MarketOrder
	for _, book := range s.bookList() {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		closed, err := uc.sweepBook(book, now)
		expired = append(expired, closed...)
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

func (uc *MarketUseCase) sweepBook(book *orderBook, now time.Time) ([]domain.MarketOrder, error) {
	s := uc.state
	unlockBook := s.lockBook(book.itemID, book.currency)
	defer unlockBook()

	var due []*domain.MarketOrder
	for _, list := range [][]*domain.MarketOrder{book.bids, book.asks} {
		for _, o := range list {
			if o.ExpiredAt(now) {
				due = append(due, o)
			}
		}
	}

	var closed []domain.MarketOrder
	for _, o := range due {
		err := func() error {
			unlock := s.lockOwners(o.Owner)
			defer unlock()
			if o.Status != domain.OrderStatusActive {
				return nil
			}
			if err := uc.close(o, domain.OrderStatusExpired, now); err != nil {
				return err
			}
			closed = append(closed, *o)
			return nil
		}()
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// GetOrder returns a copy of one order.
func (uc *MarketUseCase) GetOrder(ctx context.Context, orderID string) (*domain.MarketOrder, error) {
	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	order, ok := s.order(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	unlock := s.lockOwners(order.Owner)
	defer unlock()
	c := *order
	return &c, nil
}

// ListOrders returns the owner's orders, oldest first. Terminal orders are
// included only when all is set.
func (uc *MarketUseCase) ListOrders(ctx context.Context, owner string, all bool) ([]domain.MarketOrder, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(owner)
	defer unlock()

	out := []domain.MarketOrder{}
	for _, o := range s.ordersOf(owner) {
		if all || o.Status == domain.OrderStatusActive {
			out = append(out, *o)
		}
	}
	return out, nil
}

// Book returns the depth of one market, best prices first. depth of zero
// returns every level.
func (uc *MarketUseCase) Book(ctx context.Context, itemID, currency string, depth int) (BookView, error) {
	if _, err := uc.config.Currency(currency); err != nil {
		return BookView{}, err
	}
	if err := uc.inventory.validateItem(itemID); err != nil {
		return BookView{}, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockBook(itemID, currency)
	defer unlock()

	return s.book(itemID, currency).view(uc.clock.Now(), depth), nil
}

// Stats summarises every market that has seen an order.
func (uc *MarketUseCase) Stats(ctx context.Context) []MarketStats {
	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	now := uc.clock.Now()
	var out []MarketStats
	for _, book := range s.bookList() {
		unlock := s.lockBook(book.itemID, book.currency)
		out = append(out, book.stats(now))
		unlock()
	}
	return out
}
