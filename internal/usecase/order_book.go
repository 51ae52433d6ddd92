package usecase

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// orderBook holds the resting ACTIVE orders of one item/currency pair, each
// side sorted best first. It is guarded by the book lock.
type orderBook struct {
	itemID   string
	currency string
	bids     []*domain.MarketOrder
	asks     []*domain.MarketOrder

	trades      int64
	tradedQty   int64
	tradedValue decimal.Decimal
	lastPrice   decimal.Decimal
	lastTradeAt time.Time
}

func newOrderBook(itemID, currency string) *orderBook {
	return &orderBook{itemID: itemID, currency: currency}
}

// precedes reports whether a has priority over b on the same side:
// better price, then earlier placement.
func precedes(a, b *domain.MarketOrder) bool {
	if !a.PricePerUnit.Equal(b.PricePerUnit) {
		if a.Side == domain.OrderSideBuy {
			return a.PricePerUnit.GreaterThan(b.PricePerUnit)
		}
		return a.PricePerUnit.LessThan(b.PricePerUnit)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

func (b *orderBook) side(s domain.OrderSide) *[]*domain.MarketOrder {
	if s == domain.OrderSideBuy {
		return &b.bids
	}
	return &b.asks
}

func (b *orderBook) insert(o *domain.MarketOrder) {
	list := b.side(o.Side)
	i := sort.Search(len(*list), func(i int) bool { return precedes(o, (*list)[i]) })
	*list = append(*list, nil)
	copy((*list)[i+1:], (*list)[i:])
	(*list)[i] = o
}

func (b *orderBook) remove(o *domain.MarketOrder) {
	list := b.side(o.Side)
	for i, x := range *list {
		if x == o {
			copy((*list)[i:], (*list)[i+1:])
			(*list)[len(*list)-1] = nil
			*list = (*list)[:len(*list)-1]
			return
		}
	}
}

// bestCounter returns the highest-priority resting order on the opposite
// side whose price crosses incoming, skipping orders past their horizon.
func (b *orderBook) bestCounter(incoming *domain.MarketOrder, now time.Time) *domain.MarketOrder {
	for _, c := range *b.side(incoming.Side.Opposite()) {
		if c.ExpiredAt(now) {
			continue
		}
		if !crosses(incoming, c) {
			return nil
		}
		return c
	}
	return nil
}

func crosses(incoming, resting *domain.MarketOrder) bool {
	if incoming.Side == domain.OrderSideBuy {
		return resting.PricePerUnit.LessThanOrEqual(incoming.PricePerUnit)
	}
	return resting.PricePerUnit.GreaterThanOrEqual(incoming.PricePerUnit)
}

func (b *orderBook) recordTrade(t domain.Trade) {
	b.trades++
	b.tradedQty, _ = domain.AddQuantity(b.tradedQty, t.Quantity)
	b.tradedValue = b.tradedValue.Add(t.Total)
	b.lastPrice = t.UnitPrice
	b.lastTradeAt = t.ExecutedAt
}

// PriceLevel aggregates resting quantity at one price.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Orders   int             `json:"orders"`
}

// BookView is a depth snapshot of one market.
type BookView struct {
	ItemID   string       `json:"item_id"`
	Currency string       `json:"currency"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}

func (b *orderBook) view(now time.Time, depth int) BookView {
	return BookView{
		ItemID:   b.itemID,
		Currency: b.currency,
		Bids:     levels(b.bids, now, depth),
		Asks:     levels(b.asks, now, depth),
	}
}

func levels(orders []*domain.MarketOrder, now time.Time, depth int) []PriceLevel {
	out := []PriceLevel{}
	for _, o := range orders {
		if o.ExpiredAt(now) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.PricePerUnit) {
			out[n-1].Quantity, _ = domain.AddQuantity(out[n-1].Quantity, o.Remaining())
			out[n-1].Orders++
			continue
		}
		if depth > 0 && len(out) == depth {
			break
		}
		out = append(out, PriceLevel{Price: o.PricePerUnit, Quantity: o.Remaining(), Orders: 1})
	}
	return out
}

// MarketStats summarises one market for analytics.
type MarketStats struct {
	ItemID       string           `json:"item_id"`
	Currency     string           `json:"currency"`
	BuyOrders    int              `json:"buy_orders"`
	SellOrders   int              `json:"sell_orders"`
	BuyVolume    int64            `json:"buy_volume"`
	SellVolume   int64            `json:"sell_volume"`
	BestBid      *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk      *decimal.Decimal `json:"best_ask,omitempty"`
	AvgBuyPrice  *decimal.Decimal `json:"avg_buy_price,omitempty"`
	AvgSellPrice *decimal.Decimal `json:"avg_sell_price,omitempty"`
	Trades       int64            `json:"trades"`
	TradedQty    int64            `json:"traded_quantity"`
	TradedValue  decimal.Decimal  `json:"traded_value"`
	LastPrice    *decimal.Decimal `json:"last_price,omitempty"`
}

func (b *orderBook) stats(now time.Time) MarketStats {
	st := MarketStats{ItemID: b.itemID, Currency: b.currency, Trades: b.trades, TradedQty: b.tradedQty, TradedValue: b.tradedValue}
	st.BuyOrders, st.BuyVolume, st.BestBid, st.AvgBuyPrice = sideStats(b.bids, now)
	st.SellOrders, st.SellVolume, st.BestAsk, st.AvgSellPrice = sideStats(b.asks, now)
	if b.trades > 0 {
		p := b.lastPrice
		st.LastPrice = &p
	}
	return st
}

func sideStats(orders []*domain.MarketOrder, now time.Time) (count int, volume int64, best, avg *decimal.Decimal) {
	value := decimal.Zero
	for _, o := range orders {
		if o.ExpiredAt(now) {
			continue
		}
		if best == nil {
			p := o.PricePerUnit
			best = &p
		}
		count++
		volume, _ = domain.AddQuantity(volume, o.Remaining())
		value = value.Add(o.RemainingValue())
	}
	if volume > 0 {
		a := value.Div(decimal.NewFromInt(volume)).Round(4)
		avg = &a
	}
	return count, volume, best, avg
}
