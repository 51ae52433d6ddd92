package domain

import "errors"

// Error kinds. Every business failure wraps exactly one of these so callers
// can classify with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientQuantity   = errors.New("insufficient quantity")
	ErrLimitExceeded          = errors.New("limit exceeded")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// ErrInternal marks faults: broken invariants, unavailable persistence.
// These are never shown to users verbatim.
var ErrInternal = errors.New("internal error")

var (
	// Ledger errors
	ErrInvalidAmount         = wrap(ErrValidation, "amount must be positive")
	ErrUnknownCurrency       = wrap(ErrValidation, "unknown currency")
	ErrSameOwner             = wrap(ErrValidation, "cannot transfer to self")
	ErrInvalidOwner          = wrap(ErrValidation, "invalid owner id")
	ErrBelowMinimumTransfer  = wrap(ErrLimitExceeded, "amount below minimum transfer")
	ErrAboveMaximumTransfer  = wrap(ErrLimitExceeded, "amount above maximum transfer")
	ErrDailyCapExceeded      = wrap(ErrLimitExceeded, "daily transfer cap exceeded")
	ErrRateLimited           = wrap(ErrLimitExceeded, "too many transfers, try again later")
	ErrInsufficientAvailable = wrap(ErrInsufficientFunds, "available balance too low")
	ErrUnlockExceedsLocked   = wrap(ErrInvalidStateTransition, "amount exceeds locked balance")

	// Inventory errors
	ErrInvalidQuantity = wrap(ErrValidation, "quantity must be positive")
	ErrUnknownItem     = wrap(ErrValidation, "unknown item")
	ErrNotEnoughItems  = wrap(ErrInsufficientQuantity, "not enough items")
	ErrTooManyItems    = wrap(ErrLimitExceeded, "item quantity exceeds what one owner can hold")

	// Market errors
	ErrInvalidPrice           = wrap(ErrValidation, "price must be positive")
	ErrInvalidSide            = wrap(ErrValidation, "side must be BUY or SELL")
	ErrBelowMinimumOrderValue = wrap(ErrLimitExceeded, "order value below minimum")
	ErrTooManyOrders          = wrap(ErrLimitExceeded, "active order limit reached")
	ErrOrderNotFound          = wrap(ErrNotFound, "order not found")
	ErrOrderNotActive         = wrap(ErrInvalidStateTransition, "order is not active")
	ErrOverfill               = wrap(ErrInvalidStateTransition, "fill exceeds remaining quantity")

	// Persistence errors
	ErrSnapshotNotFound    = wrap(ErrNotFound, "snapshot not found")
	ErrSnapshotCorrupt     = wrap(ErrInternal, "snapshot is corrupt")
	ErrSnapshotUnavailable = wrap(ErrInternal, "snapshot store unavailable")
	ErrInvariantViolation  = wrap(ErrInternal, "invariant violated")
)

// Kind names a class of failure.
type Kind string

const (
	KindValidation             Kind = "validation_error"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindInsufficientQuantity   Kind = "insufficient_quantity"
	KindLimitExceeded          Kind = "limit_exceeded"
	KindNotFound               Kind = "not_found"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindInternal               Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInternal, KindInternal},
	{ErrValidation, KindValidation},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInsufficientQuantity, KindInsufficientQuantity},
	{ErrLimitExceeded, KindLimitExceeded},
	{ErrNotFound, KindNotFound},
	{ErrInvalidStateTransition, KindInvalidStateTransition},
}

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusinessError reports whether err is an expected, user-facing failure.
func IsBusinessError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
