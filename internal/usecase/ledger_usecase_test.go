package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/clock"
	"github.com/iho/goeconomy/internal/usecase"
	"github.com/iho/goeconomy/internal/usecase/mocks"
)

func withCoinsCap(daily string) func(*usecase.EconomyConfig) {
	return func(c *usecase.EconomyConfig) {
		cc := c.Currencies["COINS"]
		cc.DailyTransferCap = dec(daily)
		c.Currencies["COINS"] = cc
	}
}

func TestTransfer_FeeAndDailyCap(t *testing.T) {
	f := newFixture(t, withCoinsCap("150"))
	ctx := context.Background()
	f.fund(t, "u1", "COINS", "1000")

	entry, err := f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("100")})
	require.NoError(t, err)
	requireDecimal(t, "100", entry.Amount)
	requireDecimal(t, "2", entry.Fee)
	assert.Equal(t, domain.EntryKindTransfer, entry.Kind)
	assert.Equal(t, domain.EntryStatusCompleted, entry.Status)
	assert.NotNil(t, entry.CompletedAt)

	requireDecimal(t, "898", f.balance(t, "u1", "COINS").Total)
	requireDecimal(t, "100", f.balance(t, "u2", "COINS").Total)

	_, err = f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("100")})
	require.ErrorIs(t, err, domain.ErrDailyCapExceeded)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	requireDecimal(t, "898", f.balance(t, "u1", "COINS").Total)
	requireDecimal(t, "100", f.balance(t, "u2", "COINS").Total)

	// the cap counts the amount sent, not the fee
	_, err = f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("50")})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("100")})
	require.NoError(t, err)

	requireDecimal(t, "1000", f.supplyPlusFees(t, "COINS"))
	f.requireConsistent(t)
}

func TestTransfer_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "COINS", "100")
	f.fund(t, "u1", "GEMS", "5000")

	tests := []struct {
		name string
		in   usecase.TransferInput
		want error
	}{
		{"self transfer", usecase.TransferInput{From: "u1", To: "u1", Currency: "COINS", Amount: dec("20")}, domain.ErrSameOwner},
		{"unknown currency", usecase.TransferInput{From: "u1", To: "u2", Currency: "GOLD", Amount: dec("20")}, domain.ErrUnknownCurrency},
		{"zero amount", usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("0")}, domain.ErrValidation},
		{"negative amount", usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("-5")}, domain.ErrValidation},
		{"too precise", usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("20.001")}, domain.ErrValidation},
		{"below minimum", usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("5")}, domain.ErrBelowMinimumTransfer},
		{"above maximum", usecase.TransferInput{From: "u1", To: "u2", Currency: "GEMS", Amount: dec("1001")}, domain.ErrAboveMaximumTransfer},
		{"fee not covered", usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("99")}, domain.ErrInsufficientFunds},
		{"bad owner", usecase.TransferInput{From: "u 1", To: "u2", Currency: "COINS", Amount: dec("20")}, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eco.Transfer(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	requireDecimal(t, "100", f.balance(t, "u1", "COINS").Total)
	requireDecimal(t, "0", f.balance(t, "u2", "COINS").Total)
	history, err := f.eco.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2, "only the two credits are recorded")
}

func TestTransfer_ExactAvailableIncludingFee(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", "COINS", "102")

	_, err := f.eco.Transfer(context.Background(), usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("100")})
	require.NoError(t, err)
	requireDecimal(t, "0", f.balance(t, "u1", "COINS").Total)
}

func TestTransfer_LockedFundsAreNotSpendable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "COINS", "200")
	require.NoError(t, f.eco.LockFunds(ctx, "u1", "COINS", dec("150")))

	_, err := f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("50")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.NoError(t, f.eco.UnlockFunds(ctx, "u1", "COINS", dec("150")))
	_, err = f.eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("50")})
	require.NoError(t, err)
}

func TestTransfer_RateLimiter(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)

	eco, err := usecase.NewEconomyUseCase(usecase.DefaultEconomyConfig(), usecase.Dependencies{
		Clock:       clock.NewManual(t0),
		IDGen:       mocks.NewSequenceIDGenerator("id-"),
		RateLimiter: limiter,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = eco.Credit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "COINS", Amount: dec("1000")})
	require.NoError(t, err)

	in := usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("10")}

	limiter.EXPECT().Allow(gomock.Any(), "transfer:u1:COINS").Return(true, nil)
	_, err = eco.Transfer(ctx, in)
	require.NoError(t, err)

	limiter.EXPECT().Allow(gomock.Any(), "transfer:u1:COINS").Return(false, nil)
	_, err = eco.Transfer(ctx, in)
	require.ErrorIs(t, err, domain.ErrRateLimited)

	limiter.EXPECT().Allow(gomock.Any(), "transfer:u1:COINS").Return(false, errors.New("redis down"))
	_, err = eco.Transfer(ctx, in)
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	b, err := eco.Balance(ctx, "u1", "COINS")
	require.NoError(t, err)
	requireDecimal(t, "989.8", b.Total)
}

func TestTransfer_FailuresDoNotSpendRateQuota(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)

	cfg := usecase.DefaultEconomyConfig()
	withCoinsCap("100")(&cfg)
	eco, err := usecase.NewEconomyUseCase(cfg, usecase.Dependencies{
		Clock:       clock.NewManual(t0),
		IDGen:       mocks.NewSequenceIDGenerator("id-"),
		RateLimiter: limiter,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = eco.Credit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "COINS", Amount: dec("50")})
	require.NoError(t, err)

	// no Allow expectation is set, so consulting the limiter fails the test
	_, err = eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("60")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("150")})
	require.ErrorIs(t, err, domain.ErrDailyCapExceeded)

	_, err = eco.Transfer(ctx, usecase.TransferInput{From: "ghost", To: "u2", Currency: "COINS", Amount: dec("10")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	limiter.EXPECT().Allow(gomock.Any(), "transfer:u1:COINS").Return(true, nil)
	_, err = eco.Transfer(ctx, usecase.TransferInput{From: "u1", To: "u2", Currency: "COINS", Amount: dec("40")})
	require.NoError(t, err)
}

func TestTransfer_OpposingTransfersConcurrently(t *testing.T) {
	const n = 50
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "COINS", "1000")
	f.fund(t, "u2", "COINS", "1000")

	var wg sync.WaitGroup
	send := func(from, to string) {
		defer wg.Done()
		_, err := f.eco.Transfer(ctx, usecase.TransferInput{From: from, To: to, Currency: "COINS", Amount: dec("10")})
		assert.NoError(t, err)
	}
	for range n {
		wg.Add(2)
		go send("u1", "u2")
		go send("u2", "u1")
	}
	wg.Wait()

	// each side paid n fees of 0.2
	for _, owner := range []string{"u1", "u2"} {
		b := f.balance(t, owner, "COINS")
		requireDecimal(t, "990", b.Total, owner)
		requireDecimal(t, "0", b.Locked, owner)
	}
	requireDecimal(t, "2000", f.supplyPlusFees(t, "COINS"))

	history, err := f.eco.History(ctx, "u1", domain.MaxHistorySize)
	require.NoError(t, err)
	assert.Len(t, history, 2*n+1)
	f.requireConsistent(t)
}

func TestCreditDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.eco.Credit(ctx, usecase.BalanceChangeInput{
		Owner:    "u1",
		Currency: "GEMS",
		Amount:   dec("40"),
		Kind:     domain.EntryKindDailyBonus,
		Metadata: map[string]string{domain.MetaReason: "login streak"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindDailyBonus, entry.Kind)
	assert.Equal(t, "u1", entry.Destination)
	assert.Empty(t, entry.Source)

	_, err = f.eco.Debit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "GEMS", Amount: dec("15")})
	require.NoError(t, err)

	b := f.balance(t, "u1", "GEMS")
	requireDecimal(t, "25", b.Total)
	requireDecimal(t, "40", b.Earned)
	requireDecimal(t, "15", b.Spent)

	_, err = f.eco.Debit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "GEMS", Amount: dec("26")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.eco.Credit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "GEMS", Amount: dec("1"), Kind: domain.EntryKindTransfer})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.eco.Credit(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "GEMS", Amount: dec("1"), Kind: "bribe"})
	require.ErrorIs(t, err, domain.ErrValidation)

	kinds := f.sink.Kinds()
	assert.Equal(t, []domain.EventKind{domain.EventCurrencyCredited, domain.EventCurrencyDebited}, kinds)
}

func TestLockUnlockSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", "TOKENS", "100")

	require.NoError(t, f.eco.LockFunds(ctx, "u1", "TOKENS", dec("60")))
	b := f.balance(t, "u1", "TOKENS")
	requireDecimal(t, "100", b.Total)
	requireDecimal(t, "60", b.Locked)
	requireDecimal(t, "40", b.Available())

	err := f.eco.LockFunds(ctx, "u1", "TOKENS", dec("41"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	err = f.eco.UnlockFunds(ctx, "u1", "TOKENS", dec("61"))
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.eco.SettleLocked(ctx, usecase.BalanceChangeInput{Owner: "u1", Currency: "TOKENS", Amount: dec("50")})
	require.NoError(t, err)
	b = f.balance(t, "u1", "TOKENS")
	requireDecimal(t, "50", b.Total)
	requireDecimal(t, "10", b.Locked)
	requireDecimal(t, "50", b.Spent)

	require.NoError(t, f.eco.UnlockFunds(ctx, "u1", "TOKENS", dec("10")))
	requireDecimal(t, "50", f.balance(t, "u1", "TOKENS").Available())
	f.requireConsistent(t)
}

func TestAccount_UnknownOwnerIsEmpty(t *testing.T) {
	f := newFixture(t)

	acc, err := f.eco.Account(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", acc.Owner)
	assert.Empty(t, acc.Balances)

	_, err = f.eco.Balance(context.Background(), "ghost", "NOPE")
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", "COINS", "300")
	f.fund(t, "bob", "COINS", "900")
	f.fund(t, "carol", "COINS", "600")
	f.fund(t, "dave", "GEMS", "10")

	rows, err := f.eco.Leaderboard(context.Background(), "COINS", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].Owner)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "carol", rows[1].Owner)
	assert.Equal(t, 2, rows[1].Rank)

	rows, err = f.eco.Leaderboard(context.Background(), "COINS", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
