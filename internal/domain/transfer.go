package domain

import "github.com/shopspring/decimal"

// Transfer is a requested movement of currency between two owners.
type Transfer struct {
	From     string
	To       string
	Currency string
	Amount   decimal.Decimal
	Fee      decimal.Decimal
	Metadata map[string]string
}

// Validate validates transfer request.
func (t *Transfer) Validate() error {
	if err := ValidateOwner(t.From); err != nil {
		return err
	}
	if err := ValidateOwner(t.To); err != nil {
		return err
	}
	if t.From == t.To {
		return ErrSameOwner
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return ValidateMetadata(t.Metadata)
}

// Debited is what leaves the sender: amount plus fee.
func (t *Transfer) Debited() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// ComputeFee applies rate to amount and rounds half-up to precision places.
func ComputeFee(amount, rate decimal.Decimal, precision int32) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(rate).Round(precision)
}
