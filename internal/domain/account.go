package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one currency's position inside an account.
type Balance struct {
	Total  decimal.Decimal `json:"total"`
	Locked decimal.Decimal `json:"locked"`
	Earned decimal.Decimal `json:"earned"`
	Spent  decimal.Decimal `json:"spent"`
}

// Available is the part of Total not reserved by escrow.
func (b Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Locked)
}

// CurrencyAccount holds every currency balance of one owner.
// Accounts are created on first touch and never deleted.
type CurrencyAccount struct {
	Owner        string              `json:"owner"`
	Balances     map[string]*Balance `json:"balances"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActivity time.Time           `json:"last_activity"`
}

// NewCurrencyAccount returns an empty account.
func NewCurrencyAccount(owner string, now time.Time) *CurrencyAccount {
	return &CurrencyAccount{
		Owner:        owner,
		Balances:     make(map[string]*Balance),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Balance returns a copy of the currency position; unknown currencies are zero.
func (a *CurrencyAccount) Balance(currency string) Balance {
	if b, ok := a.Balances[currency]; ok {
		return *b
	}
	return Balance{}
}

func (a *CurrencyAccount) balance(currency string) *Balance {
	b, ok := a.Balances[currency]
	if !ok {
		b = &Balance{}
		a.Balances[currency] = b
	}
	return b
}

// Credit increases total by amount.
func (a *CurrencyAccount) Credit(currency string, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	b := a.balance(currency)
	b.Total = b.Total.Add(amount)
	b.Earned = b.Earned.Add(amount)
	a.LastActivity = now
	return nil
}

// ValidateDebit checks that amount can leave the available balance.
func (a *CurrencyAccount) ValidateDebit(currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance(currency).Available().LessThan(amount) {
		return fmt.Errorf("%w: need %s %s", ErrInsufficientAvailable, amount, currency)
	}
	return nil
}

// Debit decreases total by amount, never touching locked funds.
func (a *CurrencyAccount) Debit(currency string, amount decimal.Decimal, now time.Time) error {
	if err := a.ValidateDebit(currency, amount); err != nil {
		return err
	}
	b := a.balance(currency)
	b.Total = b.Total.Sub(amount)
	b.Spent = b.Spent.Add(amount)
	a.LastActivity = now
	return nil
}

// Lock moves amount from available into locked.
func (a *CurrencyAccount) Lock(currency string, amount decimal.Decimal, now time.Time) error {
	if err := a.ValidateDebit(currency, amount); err != nil {
		return err
	}
	b := a.balance(currency)
	b.Locked = b.Locked.Add(amount)
	a.LastActivity = now
	return nil
}

// ValidateLocked checks that amount is covered by locked funds.
func (a *CurrencyAccount) ValidateLocked(currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance(currency).Locked.LessThan(amount) {
		return fmt.Errorf("%w: %s %s", ErrUnlockExceedsLocked, amount, currency)
	}
	return nil
}

// Unlock releases amount of locked funds back to available.
func (a *CurrencyAccount) Unlock(currency string, amount decimal.Decimal, now time.Time) error {
	if err := a.ValidateLocked(currency, amount); err != nil {
		return err
	}
	b := a.balance(currency)
	b.Locked = b.Locked.Sub(amount)
	a.LastActivity = now
	return nil
}

// SettleLocked removes amount from both locked and total.
func (a *CurrencyAccount) SettleLocked(currency string, amount decimal.Decimal, now time.Time) error {
	if err := a.ValidateLocked(currency, amount); err != nil {
		return err
	}
	b := a.balance(currency)
	b.Locked = b.Locked.Sub(amount)
	b.Total = b.Total.Sub(amount)
	b.Spent = b.Spent.Add(amount)
	a.LastActivity = now
	return nil
}

// CheckInvariants verifies 0 <= locked <= total for every currency.
func (a *CurrencyAccount) CheckInvariants() error {
	for currency, b := range a.Balances {
		if b.Locked.IsNegative() || b.Locked.GreaterThan(b.Total) {
			return fmt.Errorf("%w: %s %s total=%s locked=%s",
				ErrInvariantViolation, a.Owner, currency, b.Total, b.Locked)
		}
	}
	return nil
}

// Currencies lists the currencies the account has touched, sorted.
func (a *CurrencyAccount) Currencies() []string {
	out := make([]string, 0, len(a.Balances))
	for c := range a.Balances {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (a *CurrencyAccount) Clone() *CurrencyAccount {
	c := *a
	c.Balances = make(map[string]*Balance, len(a.Balances))
	for k, v := range a.Balances {
		b := *v
		c.Balances[k] = &b
	}
	return &c
}
