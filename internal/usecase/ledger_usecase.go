package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// BalanceChangeInput is a one-sided change made on behalf of a collaborator
// such as the shop, a quest reward or a penalty.
type BalanceChangeInput struct {
	Owner    string
	Currency string
	Amount   decimal.Decimal
	Kind     domain.EntryKind
	Metadata map[string]string
}

// TransferInput moves currency between two owners.
type TransferInput struct {
	From     string
	To       string
	Currency string
	Amount   decimal.Decimal
	Metadata map[string]string
}

// LeaderboardEntry ranks one owner by balance.
type LeaderboardEntry struct {
	Rank  int             `json:"rank"`
	Owner string          `json:"owner"`
	Total decimal.Decimal `json:"total"`
}

// LedgerUseCase owns every currency balance.
type LedgerUseCase struct {
	state   *State
	config  *EconomyConfig
	clock   Clock
	limiter RateLimiter
}

// NewLedgerUseCase creates a new LedgerUseCase. limiter may be nil.
func NewLedgerUseCase(state *State, config *EconomyConfig, clock Clock, limiter RateLimiter) *LedgerUseCase {
	return &LedgerUseCase{
		state:   state,
		config:  config,
		clock:   clock,
		limiter: limiter,
	}
}

func (uc *LedgerUseCase) validateChange(in *BalanceChangeInput, defaultKind domain.EntryKind) error {
	if err := domain.ValidateOwner(in.Owner); err != nil {
		return err
	}
	cc, err := uc.config.Currency(in.Currency)
	if err != nil {
		return err
	}
	if err := domain.ValidateAmount(in.Amount, cc.Precision); err != nil {
		return err
	}
	if in.Kind == "" {
		in.Kind = defaultKind
	}
	if !in.Kind.Valid() || in.Kind == domain.EntryKindTransfer || in.Kind == domain.EntryKindTrade {
		return fmt.Errorf("%w: kind %q cannot be used for a one-sided change", domain.ErrValidation, in.Kind)
	}
	return domain.ValidateMetadata(in.Metadata)
}

// Credit adds amount to the owner's total.
func (uc *LedgerUseCase) Credit(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	if err := uc.validateChange(&in, domain.EntryKindReward); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.Owner)
	defer unlock()

	now := uc.clock.Now()
	if err := s.account(in.Owner, now).Credit(in.Currency, in.Amount, now); err != nil {
		return nil, err
	}
	entry := s.journal.record(domain.LedgerEntry{
		Destination: in.Owner,
		Currency:    in.Currency,
		Amount:      in.Amount,
		Kind:        in.Kind,
		Metadata:    in.Metadata,
	}, now)
	return &entry, nil
}

// Debit removes amount from the owner's available balance.
func (uc *LedgerUseCase) Debit(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	if err := uc.validateChange(&in, domain.EntryKindPenalty); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.Owner)
	defer unlock()

	now := uc.clock.Now()
	if err := s.account(in.Owner, now).Debit(in.Currency, in.Amount, now); err != nil {
		return nil, err
	}
	entry := s.journal.record(domain.LedgerEntry{
		Source:   in.Owner,
		Currency: in.Currency,
		Amount:   in.Amount,
		Kind:     in.Kind,
		Metadata: in.Metadata,
	}, now)
	return &entry, nil
}

// Lock reserves amount of the owner's available balance.
func (uc *LedgerUseCase) Lock(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	return uc.withAccount(owner, currency, amount, func(acc *domain.CurrencyAccount) error {
		return acc.Lock(currency, amount, uc.clock.Now())
	})
}

// Unlock releases a reservation made with Lock.
func (uc *LedgerUseCase) Unlock(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	return uc.withAccount(owner, currency, amount, func(acc *domain.CurrencyAccount) error {
		return acc.Unlock(currency, amount, uc.clock.Now())
	})
}

func (uc *LedgerUseCase) withAccount(owner, currency string, amount decimal.Decimal, fn func(acc *domain.CurrencyAccount) error) error {
	if err := domain.ValidateOwner(owner); err != nil {
		return err
	}
	cc, err := uc.config.Currency(currency)
	if err != nil {
		return err
	}
	if err := domain.ValidateAmount(amount, cc.Precision); err != nil {
		return err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(owner)
	defer unlock()

	return fn(s.account(owner, uc.clock.Now()))
}

// SettleLocked spends previously locked funds, removing them from total.
func (uc *LedgerUseCase) SettleLocked(ctx context.Context, in BalanceChangeInput) (*domain.LedgerEntry, error) {
	if err := uc.validateChange(&in, domain.EntryKindPurchase); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.Owner)
	defer unlock()

	now := uc.clock.Now()
	if err := s.account(in.Owner, now).SettleLocked(in.Currency, in.Amount, now); err != nil {
		return nil, err
	}
	entry := s.journal.record(domain.LedgerEntry{
		Source:   in.Owner,
		Currency: in.Currency,
		Amount:   in.Amount,
		Kind:     in.Kind,
		Metadata: in.Metadata,
	}, now)
	return &entry, nil
}

// Transfer moves amount from one owner to another. The sender also pays the
// currency's transfer fee, which the system retains.
func (uc *LedgerUseCase) Transfer(ctx context.Context, in TransferInput) (*domain.LedgerEntry, error) {
	cc, err := uc.config.Currency(in.Currency)
	if err != nil {
		return nil, err
	}

	t := &domain.Transfer{
		From:     in.From,
		To:       in.To,
		Currency: in.Currency,
		Amount:   in.Amount,
		Metadata: in.Metadata,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(in.Amount, cc.Precision); err != nil {
		return nil, err
	}
	if in.Amount.LessThan(cc.MinimumTransfer) {
		return nil, fmt.Errorf("%w: minimum is %s %s", domain.ErrBelowMinimumTransfer, cc.MinimumTransfer, in.Currency)
	}
	if cc.MaximumTransfer.IsPositive() && in.Amount.GreaterThan(cc.MaximumTransfer) {
		return nil, fmt.Errorf("%w: maximum is %s %s", domain.ErrAboveMaximumTransfer, cc.MaximumTransfer, in.Currency)
	}
	t.Fee = domain.ComputeFee(in.Amount, cc.TransferFeeRate, cc.Precision)

	if uc.limiter != nil {
		// Transfers already known to fail do not spend the sender's quota.
		if err := uc.precheckTransfer(t, cc); err != nil {
			return nil, err
		}
		allowed, err := uc.limiter.Allow(ctx, "transfer:"+in.From+":"+in.Currency)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.From, in.To)
	defer unlock()

	now := uc.clock.Now()
	sender := s.account(in.From, now)
	if err := uc.checkTransfer(t, cc, sender, now); err != nil {
		return nil, err
	}
	receiver := s.account(in.To, now)

	if err := sender.Debit(in.Currency, t.Debited(), now); err != nil {
		return nil, err
	}
	if err := receiver.Credit(in.Currency, t.Amount, now); err != nil {
		return nil, fmt.Errorf("%w: credit after debit: %v", domain.ErrInvariantViolation, err)
	}

	entry := s.journal.record(domain.LedgerEntry{
		Source:      in.From,
		Destination: in.To,
		Currency:    in.Currency,
		Amount:      t.Amount,
		Fee:         t.Fee,
		Kind:        domain.EntryKindTransfer,
		Metadata:    in.Metadata,
	}, now)
	return &entry, nil
}

// precheckTransfer runs checkTransfer without changing anything, so the
// limiter can be consulted outside the owner locks.
func (uc *LedgerUseCase) precheckTransfer(t *domain.Transfer, cc CurrencyConfig) error {
	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(t.From)
	defer unlock()

	now := uc.clock.Now()
	sender, ok := s.peekAccount(t.From)
	if !ok {
		sender = domain.NewCurrencyAccount(t.From, now)
	}
	return uc.checkTransfer(t, cc, sender, now)
}

// checkTransfer applies the daily cap and the funds check. The sender's lock
// must be held.
func (uc *LedgerUseCase) checkTransfer(t *domain.Transfer, cc CurrencyConfig, sender *domain.CurrencyAccount, now time.Time) error {
	if cc.DailyTransferCap.IsPositive() {
		sent := uc.state.journal.dailySum(t.From, t.Currency, domain.EntryKindTransfer, now)
		if sent.Add(t.Amount).GreaterThan(cc.DailyTransferCap) {
			left := decimal.Max(cc.DailyTransferCap.Sub(sent), decimal.Zero)
			return fmt.Errorf("%w: %s %s left today", domain.ErrDailyCapExceeded, left, t.Currency)
		}
	}
	return sender.ValidateDebit(t.Currency, t.Debited())
}

// Account returns a copy of the owner's account. Unknown owners read as empty.
func (uc *LedgerUseCase) Account(ctx context.Context, owner string) (*domain.CurrencyAccount, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(owner)
	defer unlock()

	acc, ok := s.peekAccount(owner)
	if !ok {
		return domain.NewCurrencyAccount(owner, uc.clock.Now()), nil
	}
	return acc.Clone(), nil
}

// Balance returns the owner's position in currency.
func (uc *LedgerUseCase) Balance(ctx context.Context, owner, currency string) (domain.Balance, error) {
	if _, err := uc.config.Currency(currency); err != nil {
		return domain.Balance{}, err
	}
	acc, err := uc.Account(ctx, owner)
	if err != nil {
		return domain.Balance{}, err
	}
	return acc.Balance(currency), nil
}

// Supply sums totals and locked amounts of currency across all accounts.
// It briefly stops all mutations to read a consistent figure.
func (uc *LedgerUseCase) Supply(ctx context.Context, currency string) (total, locked decimal.Decimal) {
	s := uc.state
	s.barrier.Lock()
	defer s.barrier.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		b := acc.Balance(currency)
		total = total.Add(b.Total)
		locked = locked.Add(b.Locked)
	}
	return total, locked
}

// Leaderboard ranks owners by total balance in currency.
func (uc *LedgerUseCase) Leaderboard(ctx context.Context, currency string, limit int) ([]LeaderboardEntry, error) {
	if _, err := uc.config.Currency(currency); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	limit = min(limit, domain.MaxHistorySize)

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	var rows []LeaderboardEntry
	for _, owner := range s.owners() {
		unlock := s.lockOwners(owner)
		acc, _ := s.peekAccount(owner)
		total := acc.Balance(currency).Total
		unlock()
		if total.IsPositive() {
			rows = append(rows, LeaderboardEntry{Owner: owner, Total: total})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total.GreaterThan(rows[j].Total)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
