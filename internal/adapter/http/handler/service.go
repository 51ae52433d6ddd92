package handler

import (
	"context"

	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/usecase"
)

// AccountService is the part of the economy the account routes use.
type AccountService interface {
	Account(ctx context.Context, owner string) (*domain.CurrencyAccount, error)
	History(ctx context.Context, owner string, limit int) ([]domain.LedgerEntry, error)
	Inventory(ctx context.Context, owner string) ([]domain.InventoryHolding, error)
	ListOrders(ctx context.Context, owner string, all bool) ([]domain.MarketOrder, error)
	Credit(ctx context.Context, in usecase.BalanceChangeInput) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, in usecase.BalanceChangeInput) (*domain.LedgerEntry, error)
	GrantItems(ctx context.Context, in usecase.ItemChangeInput) error
	ConsumeItems(ctx context.Context, in usecase.ItemChangeInput) error
}

// TransferService moves currency between owners.
type TransferService interface {
	Transfer(ctx context.Context, in usecase.TransferInput) (*domain.LedgerEntry, error)
}

// MarketService is the order book surface.
type MarketService interface {
	PlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) (*usecase.PlaceOrderResult, error)
	CancelOrder(ctx context.Context, owner, orderID string) (*domain.MarketOrder, error)
	GetOrder(ctx context.Context, orderID string) (*domain.MarketOrder, error)
	OrderBook(ctx context.Context, itemID, currency string, depth int) (usecase.BookView, error)
	MarketStats(ctx context.Context) []usecase.MarketStats
}

// EconomyService reports on the economy as a whole.
type EconomyService interface {
	Indicators(ctx context.Context) *usecase.Indicators
	Leaderboard(ctx context.Context, currency string, limit int) ([]usecase.LeaderboardEntry, error)
	Reconcile(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// AdminService runs maintenance tasks on demand.
type AdminService interface {
	SaveSnapshot(ctx context.Context, store usecase.SnapshotStore) error
	SweepExpired(ctx context.Context) ([]domain.MarketOrder, error)
}
