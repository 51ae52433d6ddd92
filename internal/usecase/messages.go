package usecase

import (
	"errors"

	"github.com/iho/goeconomy/internal/domain"
)

var userMessages = []struct {
	err error
	msg string
}{
	{domain.ErrSameOwner, "You cannot send currency to yourself."},
	{domain.ErrBelowMinimumTransfer, "That amount is below the minimum transfer."},
	{domain.ErrAboveMaximumTransfer, "That amount is above the maximum transfer."},
	{domain.ErrDailyCapExceeded, "You have reached today's transfer limit."},
	{domain.ErrRateLimited, "You are sending too often. Please wait a while."},
	{domain.ErrBelowMinimumOrderValue, "That order is too small."},
	{domain.ErrTooManyOrders, "You already have the maximum number of open orders."},
	{domain.ErrOrderNotFound, "That order does not exist."},
	{domain.ErrOrderNotActive, "That order is no longer open."},
	{domain.ErrUnknownCurrency, "That currency does not exist."},
	{domain.ErrUnknownItem, "That item does not exist."},
	{domain.ErrTooManyItems, "You cannot hold that many of this item."},
	{domain.ErrInvalidAmount, "Amounts must be positive."},
	{domain.ErrInvalidQuantity, "Quantities must be positive whole numbers."},
	{domain.ErrInvalidPrice, "Prices must be positive."},
	{domain.ErrInsufficientFunds, "You do not have enough available balance."},
	{domain.ErrInsufficientQuantity, "You do not have enough of that item."},
	{domain.ErrLimitExceeded, "That exceeds a limit."},
	{domain.ErrNotFound, "Not found."},
	{domain.ErrInvalidStateTransition, "That action is no longer possible."},
	{domain.ErrValidation, "That request is not valid."},
}

// UserMessage turns err into text safe to show a chat user. Faults are
// reported generically.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if domain.KindOf(err) == domain.KindInternal {
		return "Something went wrong. Please try again later."
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "That request is not valid."
}
