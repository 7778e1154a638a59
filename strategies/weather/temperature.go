package weather

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"weathertrader/internal/engine"
	"weathertrader/types"
)

// TemperatureConfig parameterizes the temperature-threshold strategy.
type TemperatureConfig struct {
	// Location filters weather readings; empty takes the first.
	Location string
	// HotThresholdC triggers buys when the temperature is at or above
	// it; ColdThresholdC triggers sells at or below it.
	HotThresholdC  float64
	ColdThresholdC float64
	// ScaleC maps degrees beyond a threshold onto signal strength:
	// strength = min(1, exceedance/ScaleC).
	ScaleC float64
	// MinStrength drops signals weaker than this.
	MinStrength float64
}

func (c TemperatureConfig) Validate() error {
	if c.HotThresholdC <= c.ColdThresholdC {
		return fmt.Errorf("hot threshold %.1f must exceed cold threshold %.1f", c.HotThresholdC, c.ColdThresholdC)
	}
	if c.ScaleC <= 0 {
		return fmt.Errorf("scale %.1f must be positive", c.ScaleC)
	}
	if c.MinStrength < 0 || c.MinStrength > 1 {
		return fmt.Errorf("min strength %.2f outside [0,1]", c.MinStrength)
	}
	return nil
}

// Temperature buys every quoted instrument when the temperature
// crosses the hot threshold and sells open positions when it crosses
// the cold one, with strength scaled by how far past the threshold the
// reading is.
type Temperature struct {
	cfg TemperatureConfig
}

func NewTemperature(cfg TemperatureConfig) (*Temperature, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("temperature config: %w", err)
	}
	return &Temperature{cfg: cfg}, nil
}

func (s *Temperature) Name() string { return "temperature" }

func (s *Temperature) GenerateSignals(sc engine.StrategyContext) ([]types.Signal, error) {
	reading, ok := readingFor(sc, s.cfg.Location)
	if !ok {
		return nil, nil
	}

	var signals []types.Signal
	switch {
	case reading.TemperatureC >= s.cfg.HotThresholdC:
		strength := exceedanceStrength(reading.TemperatureC-s.cfg.HotThresholdC, s.cfg.ScaleC)
		if strength < s.cfg.MinStrength {
			return nil, nil
		}
		for _, m := range sc.Markets {
			signals = append(signals, types.NewSignal(
				m.Instrument(), types.SideBuy, decimal.NewFromFloat(strength),
				fmt.Sprintf("temperature %.1fC above hot threshold %.1fC", reading.TemperatureC, s.cfg.HotThresholdC),
				sc.Time,
			))
		}

	case reading.TemperatureC <= s.cfg.ColdThresholdC:
		strength := exceedanceStrength(s.cfg.ColdThresholdC-reading.TemperatureC, s.cfg.ScaleC)
		if strength < s.cfg.MinStrength {
			return nil, nil
		}
		for _, m := range sc.Markets {
			inst := m.Instrument()
			if !holding(sc, inst) {
				continue
			}
			signals = append(signals, types.NewSignal(
				inst, types.SideSell, decimal.NewFromFloat(strength),
				fmt.Sprintf("temperature %.1fC below cold threshold %.1fC", reading.TemperatureC, s.cfg.ColdThresholdC),
				sc.Time,
			))
		}
	}
	return signals, nil
}

func exceedanceStrength(exceedance, scale float64) float64 {
	return math.Min(1, exceedance/scale)
}
