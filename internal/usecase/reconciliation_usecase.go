package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// ReconciliationUseCase cross-checks balances against open escrow.
type ReconciliationUseCase struct {
	state   *State
	journal *JournalUseCase
	config  *EconomyConfig
	clock   Clock
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(state *State, journal *JournalUseCase, config *EconomyConfig, clock Clock) *ReconciliationUseCase {
	return &ReconciliationUseCase{state: state, journal: journal, config: config, clock: clock}
}

// ReconciliationResult is the check of one owner's currency position.
type ReconciliationResult struct {
	Owner        string          `json:"owner"`
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total"`
	Locked       decimal.Decimal `json:"locked"`
	Escrowed     decimal.Decimal `json:"escrowed"`
	IsReconciled bool            `json:"is_reconciled"`
	Problem      string          `json:"problem,omitempty"`
}

// CurrencySummary is the system-wide position of one currency.
type CurrencySummary struct {
	Currency      string          `json:"currency"`
	Supply        decimal.Decimal `json:"supply"`
	Locked        decimal.Decimal `json:"locked"`
	FeesCollected decimal.Decimal `json:"fees_collected"`
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int                     `json:"total_accounts"`
	ReconciledAccounts int                     `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResult `json:"discrepancies"`
	OrderViolations    []string                `json:"order_violations"`
	Currencies         []CurrencySummary       `json:"currencies"`
	Consistent         bool                    `json:"consistent"`
	CheckedAt          time.Time               `json:"checked_at"`
}

// GenerateReconciliationReport pauses all mutations and checks that every
// balance keeps 0 <= locked <= total, that locked funds cover the remaining
// value of the owner's active BUY orders, and that no order is overfilled.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	s := uc.state
	s.barrier.Lock()
	defer s.barrier.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &ReconciliationReport{
		Discrepancies:   make([]*ReconciliationResult, 0),
		OrderViolations: make([]string, 0),
		CheckedAt:       uc.clock.Now(),
	}

	escrow := make(map[string]map[string]decimal.Decimal)
	for _, o := range s.orders {
		if err := o.CheckInvariants(); err != nil {
			report.OrderViolations = append(report.OrderViolations, err.Error())
		}
		if o.Status != domain.OrderStatusActive || o.Side != domain.OrderSideBuy {
			continue
		}
		if escrow[o.Owner] == nil {
			escrow[o.Owner] = make(map[string]decimal.Decimal)
		}
		escrow[o.Owner][o.Currency] = escrow[o.Owner][o.Currency].Add(o.RemainingValue())
	}

	supply := make(map[string]*CurrencySummary)
	for _, owner := range sortedKeys(s.accounts) {
		acc := s.accounts[owner]
		report.TotalAccounts++
		ok := true
		for _, currency := range acc.Currencies() {
			b := acc.Balance(currency)
			res := reconcileBalance(owner, currency, b, escrow[owner][currency])
			if !res.IsReconciled {
				ok = false
				report.Discrepancies = append(report.Discrepancies, res)
			}
			sum, found := supply[currency]
			if !found {
				sum = &CurrencySummary{Currency: currency}
				supply[currency] = sum
			}
			sum.Supply = sum.Supply.Add(b.Total)
			sum.Locked = sum.Locked.Add(b.Locked)
		}
		if ok {
			report.ReconciledAccounts++
		}
	}

	for _, code := range uc.config.CurrencyCodes() {
		sum, found := supply[code]
		if !found {
			sum = &CurrencySummary{Currency: code}
		}
		sum.FeesCollected = uc.journal.FeesCollected(code)
		report.Currencies = append(report.Currencies, *sum)
	}

	report.Consistent = len(report.Discrepancies) == 0 && len(report.OrderViolations) == 0
	return report, nil
}

func reconcileBalance(owner, currency string, b domain.Balance, escrowed decimal.Decimal) *ReconciliationResult {
	res := &ReconciliationResult{
		Owner:        owner,
		Currency:     currency,
		Total:        b.Total,
		Locked:       b.Locked,
		Escrowed:     escrowed,
		IsReconciled: true,
	}
	switch {
	case b.Locked.IsNegative():
		res.Problem = "locked is negative"
	case b.Locked.GreaterThan(b.Total):
		res.Problem = "locked exceeds total"
	case b.Locked.LessThan(escrowed):
		res.Problem = "locked does not cover open buy orders"
	}
	res.IsReconciled = res.Problem == ""
	return res
}
