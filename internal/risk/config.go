package risk

import "time"

// Config holds the account-level risk limits
type Config struct {
	MaxPositions            int           `yaml:"max_positions" default:"5" validate:"gte=1"`
	BasePositionSizePercent float64       `yaml:"base_position_size_percent" default:"10" validate:"gt=0,lte=100"`
	BaseStopLossPercent     float64       `yaml:"base_stop_loss_percent" default:"2" validate:"gt=0,lte=50"`
	BaseTakeProfitPercent   float64       `yaml:"base_take_profit_percent" default:"3" validate:"gt=0,lte=100"`
	DailyLossLimitPercent   float64       `yaml:"daily_loss_limit_percent" default:"5" validate:"gt=0,lte=100"`
	MaxPortfolioHeat        float64       `yaml:"max_portfolio_heat" default:"15" validate:"gt=0,lte=100"`
	MinBuyingPower          float64       `yaml:"min_buying_power" default:"100" validate:"gte=0"`
	EstimatedNewHeat        float64       `yaml:"estimated_new_heat" default:"2.5" validate:"gte=0"`
	SizeSafetyFactor        float64       `yaml:"size_safety_factor" default:"0.95" validate:"gt=0,lte=1"`
	MaxStopLossPercent      float64       `yaml:"max_stop_loss_percent" default:"5" validate:"gt=0"`
	MaxTakeProfitPercent    float64       `yaml:"max_take_profit_percent" default:"10" validate:"gt=0"`
	EmergencyCooldown       time.Duration `yaml:"emergency_cooldown" default:"1h"`
	LockLease               time.Duration `yaml:"lock_lease" default:"60s"`
}

// DefaultConfig returns the limits used when nothing is configured
func DefaultConfig() Config {
	return Config{
		MaxPositions:            5,
		BasePositionSizePercent: 10,
		BaseStopLossPercent:     2,
		BaseTakeProfitPercent:   3,
		DailyLossLimitPercent:   5,
		MaxPortfolioHeat:        15,
		MinBuyingPower:          100,
		EstimatedNewHeat:        2.5,
		SizeSafetyFactor:        0.95,
		MaxStopLossPercent:      5,
		MaxTakeProfitPercent:    10,
		EmergencyCooldown:       time.Hour,
		LockLease:               time.Minute,
	}
}
