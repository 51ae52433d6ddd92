package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: ErrInvalidAmount, want: KindValidation},
		{err: fmt.Errorf("transfer: %w", ErrInsufficientAvailable), want: KindInsufficientFunds},
		{err: ErrNotEnoughItems, want: KindInsufficientQuantity},
		{err: ErrDailyCapExceeded, want: KindLimitExceeded},
		{err: ErrBelowMinimumOrderValue, want: KindLimitExceeded},
		{err: ErrOrderNotFound, want: KindNotFound},
		{err: ErrOrderNotActive, want: KindInvalidStateTransition},
		{err: ErrSnapshotCorrupt, want: KindInternal},
		{err: errors.New("disk on fire"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIsBusinessError(t *testing.T) {
	if IsBusinessError(nil) {
		t.Error("nil is not a business error")
	}
	if !IsBusinessError(ErrTooManyOrders) {
		t.Error("order cap is a business error")
	}
	if IsBusinessError(ErrInvariantViolation) {
		t.Error("invariant violation is a fault")
	}
}
