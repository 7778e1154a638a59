package weather

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"weathertrader/internal/engine"
	"weathertrader/types"
)

// WindConfig parameterizes the wind-speed strategy.
type WindConfig struct {
	Location string
	// GaleThresholdKph triggers buys at or above it; CalmExitKph
	// closes positions at or below it.
	GaleThresholdKph float64
	CalmExitKph      float64
	// ScaleKph maps speed beyond the gale threshold onto strength.
	ScaleKph float64
}

func (c WindConfig) Validate() error {
	if c.GaleThresholdKph <= c.CalmExitKph {
		return fmt.Errorf("gale threshold %.1f must exceed calm exit %.1f", c.GaleThresholdKph, c.CalmExitKph)
	}
	if c.ScaleKph <= 0 {
		return fmt.Errorf("scale %.1f must be positive", c.ScaleKph)
	}
	return nil
}

// Wind buys when sustained wind crosses the gale threshold and exits
// once it drops back to calm.
type Wind struct {
	cfg WindConfig
}

func NewWind(cfg WindConfig) (*Wind, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("wind config: %w", err)
	}
	return &Wind{cfg: cfg}, nil
}

func (s *Wind) Name() string { return "wind" }

func (s *Wind) GenerateSignals(sc engine.StrategyContext) ([]types.Signal, error) {
	reading, ok := readingFor(sc, s.cfg.Location)
	if !ok {
		return nil, nil
	}

	var signals []types.Signal
	switch {
	case reading.WindSpeedKph >= s.cfg.GaleThresholdKph:
		strength := math.Min(1, (reading.WindSpeedKph-s.cfg.CalmExitKph)/s.cfg.ScaleKph)
		for _, m := range sc.Markets {
			signals = append(signals, types.NewSignal(
				m.Instrument(), types.SideBuy, decimal.NewFromFloat(strength),
				fmt.Sprintf("wind %.1fkph at or above gale threshold %.1fkph", reading.WindSpeedKph, s.cfg.GaleThresholdKph),
				sc.Time,
			))
		}

	case reading.WindSpeedKph <= s.cfg.CalmExitKph:
		for _, m := range sc.Markets {
			inst := m.Instrument()
			if !holding(sc, inst) {
				continue
			}
			signals = append(signals, types.NewSignal(
				inst, types.SideSell, decimal.NewFromInt(1),
				fmt.Sprintf("wind %.1fkph at or below calm exit %.1fkph", reading.WindSpeedKph, s.cfg.CalmExitKph),
				sc.Time,
			))
		}
	}
	return signals, nil
}
