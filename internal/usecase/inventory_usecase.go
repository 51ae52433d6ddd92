package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/goeconomy/internal/domain"
)

// ItemChangeInput grants or consumes items on behalf of a collaborator.
type ItemChangeInput struct {
	Owner     string
	ItemID    string
	Quantity  int64
	ExpiresAt *time.Time
}

// InventoryUseCase owns every item holding.
type InventoryUseCase struct {
	state   *State
	clock   Clock
	catalog ItemCatalog
}

// NewInventoryUseCase creates a new InventoryUseCase. catalog may be nil.
func NewInventoryUseCase(state *State, clock Clock, catalog ItemCatalog) *InventoryUseCase {
	return &InventoryUseCase{state: state, clock: clock, catalog: catalog}
}

func (uc *InventoryUseCase) validateItem(itemID string) error {
	if err := domain.ValidateItemID(itemID); err != nil {
		return err
	}
	if uc.catalog != nil && !uc.catalog.Exists(itemID) {
		return domain.ErrUnknownItem
	}
	return nil
}

func (uc *InventoryUseCase) validate(in ItemChangeInput) error {
	if err := domain.ValidateOwner(in.Owner); err != nil {
		return err
	}
	if err := uc.validateItem(in.ItemID); err != nil {
		return err
	}
	if in.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

// Credit adds items to the owner's inventory.
func (uc *InventoryUseCase) Credit(ctx context.Context, in ItemChangeInput) error {
	if err := uc.validate(in); err != nil {
		return err
	}
	now := uc.clock.Now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expiry must be in the future", domain.ErrValidation)
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.Owner)
	defer unlock()

	inv := s.inventoryOf(in.Owner)
	inv.Sweep(now)
	if err := s.checkItemRoom(in.Owner, in.ItemID, in.Quantity); err != nil {
		return err
	}
	return inv.Add(in.ItemID, in.Quantity, in.ExpiresAt, now)
}

// Debit removes items oldest first. It fails without change when the owner
// holds fewer than requested.
func (uc *InventoryUseCase) Debit(ctx context.Context, in ItemChangeInput) error {
	if err := uc.validate(in); err != nil {
		return err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(in.Owner)
	defer unlock()

	return s.inventoryOf(in.Owner).Remove(in.ItemID, in.Quantity, uc.clock.Now())
}

// Count returns how many usable units of item the owner holds.
func (uc *InventoryUseCase) Count(ctx context.Context, owner, itemID string) (int64, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return 0, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(owner)
	defer unlock()

	return s.inventoryOf(owner).Count(itemID, uc.clock.Now()), nil
}

// List returns the owner's usable holdings, oldest first.
func (uc *InventoryUseCase) List(ctx context.Context, owner string) ([]domain.InventoryHolding, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	s := uc.state
	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.lockOwners(owner)
	defer unlock()

	return s.inventoryOf(owner).Active(uc.clock.Now()), nil
}
