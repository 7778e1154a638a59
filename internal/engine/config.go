package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the spacing of simulated timesteps.
type Frequency string

const (
	Hourly Frequency = "1h"
	Daily  Frequency = "1d"
	Weekly Frequency = "1w"
)

var frequencyToDuration = map[Frequency]time.Duration{
	Hourly: time.Hour,
	Daily:  24 * time.Hour,
	Weekly: 7 * 24 * time.Hour,
}

// PeriodsPerYear is used to annualize per-period return statistics.
var periodsPerYear = map[Frequency]float64{
	Hourly: 24 * 365,
	Daily:  365,
	Weekly: 52,
}

func (f Frequency) Duration() time.Duration {
	return frequencyToDuration[f]
}

func (f Frequency) PeriodsPerYear() float64 {
	return periodsPerYear[f]
}

// Config is the immutable input to a single backtest run. Validate it
// once at construction; the engine only re-checks defensively.
type Config struct {
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	// CommissionRate is charged as quantity * price * rate on every
	// fill, buys and sells alike. Must be in [0, 1).
	CommissionRate decimal.Decimal
	// MaxPositionSize is the fraction of total portfolio value one fill
	// may commit, scaled by signal strength.
	MaxPositionSize decimal.Decimal
	// MaxPositions caps the number of concurrently open instruments.
	MaxPositions int
	Frequency    Frequency
	RiskFreeRate decimal.Decimal
	// AllowShort permits selling more than held. Off by default.
	AllowShort bool
}

func NewConfig(start, end time.Time, initialCapital decimal.Decimal) Config {
	return Config{
		Start:           start,
		End:             end,
		InitialCapital:  initialCapital,
		CommissionRate:  decimal.Zero,
		MaxPositionSize: decimal.NewFromFloat(0.1),
		MaxPositions:    5,
		Frequency:       Daily,
		RiskFreeRate:    decimal.Zero,
	}
}

func (c Config) Validate() error {
	if !c.End.After(c.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", InvalidConfigErr, c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial capital %s must be positive", InvalidConfigErr, c.InitialCapital)
	}
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: commission rate %s outside [0,1)", InvalidConfigErr, c.CommissionRate)
	}
	if c.MaxPositionSize.LessThanOrEqual(decimal.Zero) || c.MaxPositionSize.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: max position size %s outside (0,1]", InvalidConfigErr, c.MaxPositionSize)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("%w: max positions %d must be at least 1", InvalidConfigErr, c.MaxPositions)
	}
	if _, ok := frequencyToDuration[c.Frequency]; !ok {
		return fmt.Errorf("%w: unsupported frequency %q", InvalidConfigErr, c.Frequency)
	}
	return nil
}
