package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/goeconomy/internal/domain"
)

// ErrInvalidConfig is returned when economy rules fail validation.
var ErrInvalidConfig = errors.New("invalid economy config")

// CurrencyConfig holds the transfer rules of one currency.
type CurrencyConfig struct {
	Precision       int32           `yaml:"precision" json:"precision"`
	MinimumTransfer decimal.Decimal `yaml:"minimum_transfer" json:"minimum_transfer"`
	// MaximumTransfer of zero means no maximum.
	MaximumTransfer decimal.Decimal `yaml:"maximum_transfer" json:"maximum_transfer"`
	TransferFeeRate decimal.Decimal `yaml:"transfer_fee_rate" json:"transfer_fee_rate"`
	// DailyTransferCap of zero means no cap.
	DailyTransferCap decimal.Decimal `yaml:"daily_transfer_cap" json:"daily_transfer_cap"`
}

// MarketConfig holds the order book rules.
type MarketConfig struct {
	OrderExpiryHorizon     time.Duration   `yaml:"order_expiry_horizon" json:"order_expiry_horizon"`
	MaxActiveOrdersPerUser int             `yaml:"max_active_orders_per_user" json:"max_active_orders_per_user"`
	MinimumOrderValue      decimal.Decimal `yaml:"minimum_order_value" json:"minimum_order_value"`
	MarketFeeRate          decimal.Decimal `yaml:"market_fee_rate" json:"market_fee_rate"`
}

// EconomyConfig is the complete set of economy rules.
type EconomyConfig struct {
	Currencies map[string]CurrencyConfig `yaml:"currencies" json:"currencies"`
	Market     MarketConfig              `yaml:"market" json:"market"`
	// Items restricts tradable item ids. Empty accepts any well-formed id.
	Items []string `yaml:"items" json:"items"`
	// JournalRetention caps stored journal entries. Zero keeps everything.
	JournalRetention int `yaml:"journal_retention" json:"journal_retention"`
	// Timezone decides where calendar days start for daily caps.
	Timezone string `yaml:"timezone" json:"timezone"`

	location *time.Location
}

// DefaultEconomyConfig returns the stock rules of the bot economy.
func DefaultEconomyConfig() EconomyConfig {
	cur := func(fee string, minimum, daily, maximum int64) CurrencyConfig {
		return CurrencyConfig{
			Precision:        2,
			MinimumTransfer:  decimal.NewFromInt(minimum),
			MaximumTransfer:  decimal.NewFromInt(maximum),
			TransferFeeRate:  decimal.RequireFromString(fee),
			DailyTransferCap: decimal.NewFromInt(daily),
		}
	}
	return EconomyConfig{
		Currencies: map[string]CurrencyConfig{
			"COINS":      cur("0.02", 10, 10000, 50000),
			"GEMS":       cur("0.05", 1, 100, 1000),
			"TOKENS":     cur("0.01", 5, 500, 5000),
			"CREDITS":    cur("0.03", 25, 2000, 25000),
			"EXPERIENCE": cur("0.10", 100, 5000, 50000),
		},
		Market: MarketConfig{
			OrderExpiryHorizon:     7 * 24 * time.Hour,
			MaxActiveOrdersPerUser: 10,
			MinimumOrderValue:      decimal.NewFromInt(10),
			MarketFeeRate:          decimal.RequireFromString("0.05"),
		},
		Timezone: "UTC",
	}
}

// Validate checks every rule and resolves the timezone.
func (c *EconomyConfig) Validate() error {
	if len(c.Currencies) == 0 {
		return fmt.Errorf("%w: no currencies configured", ErrInvalidConfig)
	}
	for code, cc := range c.Currencies {
		if err := domain.ValidateCurrencyCode(code); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := cc.validate(); err != nil {
			return fmt.Errorf("%w: currency %s: %v", ErrInvalidConfig, code, err)
		}
	}

	m := c.Market
	switch {
	case m.OrderExpiryHorizon <= 0:
		return fmt.Errorf("%w: order expiry horizon must be positive", ErrInvalidConfig)
	case m.MaxActiveOrdersPerUser < 1:
		return fmt.Errorf("%w: max active orders must be at least 1", ErrInvalidConfig)
	case m.MinimumOrderValue.IsNegative():
		return fmt.Errorf("%w: minimum order value is negative", ErrInvalidConfig)
	case !validRate(m.MarketFeeRate):
		return fmt.Errorf("%w: market fee rate must be in [0, 1)", ErrInvalidConfig)
	}

	for _, item := range c.Items {
		if err := domain.ValidateItemID(item); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.JournalRetention < 0 {
		return fmt.Errorf("%w: journal retention is negative", ErrInvalidConfig)
	}

	tz := c.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, tz, err)
	}
	c.location = loc
	return nil
}

func (cc CurrencyConfig) validate() error {
	switch {
	case cc.Precision < 0 || cc.Precision > 8:
		return errors.New("precision must be between 0 and 8")
	case cc.MinimumTransfer.IsNegative():
		return errors.New("minimum transfer is negative")
	case cc.MaximumTransfer.IsNegative():
		return errors.New("maximum transfer is negative")
	case cc.MaximumTransfer.IsPositive() && cc.MaximumTransfer.LessThan(cc.MinimumTransfer):
		return errors.New("maximum transfer below minimum")
	case !validRate(cc.TransferFeeRate):
		return errors.New("transfer fee rate must be in [0, 1)")
	case cc.DailyTransferCap.IsNegative():
		return errors.New("daily transfer cap is negative")
	}
	return nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThan(decimal.NewFromInt(1))
}

// Currency returns the rules for code.
func (c *EconomyConfig) Currency(code string) (CurrencyConfig, error) {
	cc, ok := c.Currencies[code]
	if !ok {
		return CurrencyConfig{}, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, code)
	}
	return cc, nil
}

// CurrencyCodes lists configured currencies, sorted.
func (c *EconomyConfig) CurrencyCodes() []string {
	out := make([]string, 0, len(c.Currencies))
	for code := range c.Currencies {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Location is the timezone of calendar days.
func (c *EconomyConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Catalog builds the item catalog from Items, or nil when unrestricted.
func (c *EconomyConfig) Catalog() ItemCatalog {
	if len(c.Items) == 0 {
		return nil
	}
	cat := make(StaticCatalog, len(c.Items))
	for _, item := range c.Items {
		cat[strings.TrimSpace(item)] = struct{}{}
	}
	return cat
}

// StaticCatalog is a fixed set of item ids.
type StaticCatalog map[string]struct{}

// Exists reports whether itemID is in the catalog.
func (c StaticCatalog) Exists(itemID string) bool {
	_, ok := c[itemID]
	return ok
}
