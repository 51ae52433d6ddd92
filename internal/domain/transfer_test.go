package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransfer_Validate(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		to          string
		amount      decimal.Decimal
		expectError error
	}{
		{
			name:   "valid transfer",
			from:   "alice",
			to:     "bob",
			amount: decimal.NewFromInt(100),
		},
		{
			name:        "same owner",
			from:        "alice",
			to:          "alice",
			amount:      decimal.NewFromInt(100),
			expectError: ErrSameOwner,
		},
		{
			name:        "zero amount",
			from:        "alice",
			to:          "bob",
			amount:      decimal.Zero,
			expectError: ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			from:        "alice",
			to:          "bob",
			amount:      decimal.NewFromInt(-100),
			expectError: ErrInvalidAmount,
		},
		{
			name:        "missing receiver",
			from:        "alice",
			amount:      decimal.NewFromInt(1),
			expectError: ErrInvalidOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := &Transfer{
				From:   tt.from,
				To:     tt.to,
				Amount: tt.amount,
			}

			err := transfer.Validate()

			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestComputeFee(t *testing.T) {
	tests := []struct {
		amount    string
		rate      string
		precision int32
		want      string
	}{
		{amount: "100", rate: "0.02", precision: 2, want: "2"},
		{amount: "33.33", rate: "0.05", precision: 2, want: "1.67"},
		{amount: "10", rate: "0.0125", precision: 2, want: "0.13"},
		{amount: "7", rate: "0.05", precision: 0, want: "0"},
		{amount: "10", rate: "0.05", precision: 0, want: "1"},
		{amount: "50", rate: "0", precision: 2, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"x"+tt.rate, func(t *testing.T) {
			got := ComputeFee(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.rate), tt.precision)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
