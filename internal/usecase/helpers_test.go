package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/clock"
	"github.com/iho/goeconomy/internal/infrastructure/metrics"
	"github.com/iho/goeconomy/internal/usecase"
	"github.com/iho/goeconomy/internal/usecase/mocks"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// fixtures counts economies so each draws ids from its own namespace.
var fixtures atomic.Int64

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

type fixture struct {
	eco   *usecase.EconomyUseCase
	clock *clock.Manual
	sink  *mocks.RecordingSink
}

func newFixture(t *testing.T, mutate ...func(*usecase.EconomyConfig)) *fixture {
	t.Helper()
	cfg := usecase.DefaultEconomyConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	clk := clock.NewManual(t0)
	sink := mocks.NewRecordingSink()
	eco, err := usecase.NewEconomyUseCase(cfg, usecase.Dependencies{
		Clock:   clk,
		IDGen:   mocks.NewSequenceIDGenerator(fmt.Sprintf("f%d-", fixtures.Add(1))),
		Sink:    sink,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return &fixture{eco: eco, clock: clk, sink: sink}
}

func (f *fixture) fund(t *testing.T, owner, currency, amount string) {
	t.Helper()
	_, err := f.eco.Credit(context.Background(), usecase.BalanceChangeInput{
		Owner:    owner,
		Currency: currency,
		Amount:   dec(amount),
	})
	require.NoError(t, err)
}

func (f *fixture) grant(t *testing.T, owner, item string, qty int64) {
	t.Helper()
	require.NoError(t, f.eco.GrantItems(context.Background(), usecase.ItemChangeInput{
		Owner:    owner,
		ItemID:   item,
		Quantity: qty,
	}))
}

func (f *fixture) balance(t *testing.T, owner, currency string) domain.Balance {
	t.Helper()
	b, err := f.eco.Balance(context.Background(), owner, currency)
	require.NoError(t, err)
	return b
}

func (f *fixture) items(t *testing.T, owner, item string) int64 {
	t.Helper()
	n, err := f.eco.ItemCount(context.Background(), owner, item)
	require.NoError(t, err)
	return n
}

func (f *fixture) place(owner string, side domain.OrderSide, item string, qty int64, price string) (*usecase.PlaceOrderResult, error) {
	return f.eco.PlaceOrder(context.Background(), usecase.PlaceOrderInput{
		Owner:        owner,
		Side:         side,
		ItemID:       item,
		Currency:     "COINS",
		Quantity:     qty,
		PricePerUnit: dec(price),
	})
}

func (f *fixture) mustPlace(t *testing.T, owner string, side domain.OrderSide, item string, qty int64, price string) *usecase.PlaceOrderResult {
	t.Helper()
	res, err := f.place(owner, side, item, qty, price)
	require.NoError(t, err)
	return res
}

// requireConsistent runs reconciliation and checks that no balance or order
// is out of line.
func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := f.eco.Reconcile(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies)
	require.Empty(t, report.OrderViolations)
	require.True(t, report.Consistent)
}

// supplyPlusFees is the sum of every total plus every fee retained.
func (f *fixture) supplyPlusFees(t *testing.T, currency string) decimal.Decimal {
	t.Helper()
	for _, c := range f.eco.Indicators(context.Background()).Currencies {
		if c.Currency == currency {
			return c.Supply.Add(c.FeesCollected)
		}
	}
	t.Fatalf("currency %s missing from indicators", currency)
	return decimal.Zero
}
