package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxOwnerIDLength   = 64
	MaxItemIDLength    = 64
	MaxMetadataSize    = 4096
	MaxMetadataKeys    = 32
	DefaultHistorySize = 50
	MaxHistorySize     = 1000
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)
	currencyRegex   = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,15}$`)
)

// ValidateOwner validates a user id as handed over by the chat front end.
func ValidateOwner(owner string) error {
	if owner == "" || owner != strings.TrimSpace(owner) {
		return fmt.Errorf("%w: owner cannot be empty or padded", ErrInvalidOwner)
	}
	if len(owner) > MaxOwnerIDLength {
		return fmt.Errorf("%w: owner exceeds %d characters", ErrInvalidOwner, MaxOwnerIDLength)
	}
	if !identifierRegex.MatchString(owner) {
		return fmt.Errorf("%w: %q contains forbidden characters", ErrInvalidOwner, owner)
	}
	return nil
}

// ValidateItemID validates an item catalog id.
func ValidateItemID(itemID string) error {
	if itemID == "" || len(itemID) > MaxItemIDLength || !identifierRegex.MatchString(itemID) {
		return fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	return nil
}

// ValidateCurrencyCode validates the shape of a currency code such as COINS.
func ValidateCurrencyCode(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return nil
}

// ValidateAmount validates a money amount against a currency precision.
func ValidateAmount(amount decimal.Decimal, precision int32) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(precision)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, precision)
	}
	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]string) error {
	if len(metadata) > MaxMetadataKeys {
		return fmt.Errorf("%w: metadata has more than %d keys", ErrValidation, MaxMetadataKeys)
	}
	size := 0
	for k, v := range metadata {
		size += len(k) + len(v)
	}
	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrValidation, size, MaxMetadataSize)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	if limit > MaxHistorySize {
		limit = MaxHistorySize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
