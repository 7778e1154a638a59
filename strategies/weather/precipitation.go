package weather

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"weathertrader/internal/engine"
	"weathertrader/types"
)

// PrecipitationConfig parameterizes the precipitation strategy.
type PrecipitationConfig struct {
	Location string
	// WetThresholdMM triggers buys when the reading's precipitation is
	// at or above it.
	WetThresholdMM float64
	// DryExitMM closes positions once precipitation falls to or below
	// it.
	DryExitMM float64
	// ScaleMM maps millimetres beyond the wet threshold onto strength.
	ScaleMM float64
}

func (c PrecipitationConfig) Validate() error {
	if c.WetThresholdMM <= c.DryExitMM {
		return fmt.Errorf("wet threshold %.2f must exceed dry exit %.2f", c.WetThresholdMM, c.DryExitMM)
	}
	if c.ScaleMM <= 0 {
		return fmt.Errorf("scale %.2f must be positive", c.ScaleMM)
	}
	return nil
}

// Precipitation buys when rainfall crosses the wet threshold and exits
// once conditions turn dry again.
type Precipitation struct {
	cfg PrecipitationConfig
}

func NewPrecipitation(cfg PrecipitationConfig) (*Precipitation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("precipitation config: %w", err)
	}
	return &Precipitation{cfg: cfg}, nil
}

func (s *Precipitation) Name() string { return "precipitation" }

func (s *Precipitation) GenerateSignals(sc engine.StrategyContext) ([]types.Signal, error) {
	reading, ok := readingFor(sc, s.cfg.Location)
	if !ok {
		return nil, nil
	}

	var signals []types.Signal
	switch {
	case reading.PrecipitationMM >= s.cfg.WetThresholdMM:
		// Measured from the dry exit so a reading exactly at the wet
		// threshold still carries non-zero strength.
		strength := math.Min(1, (reading.PrecipitationMM-s.cfg.DryExitMM)/s.cfg.ScaleMM)
		for _, m := range sc.Markets {
			signals = append(signals, types.NewSignal(
				m.Instrument(), types.SideBuy, decimal.NewFromFloat(strength),
				fmt.Sprintf("precipitation %.2fmm at or above %.2fmm", reading.PrecipitationMM, s.cfg.WetThresholdMM),
				sc.Time,
			))
		}

	case reading.PrecipitationMM <= s.cfg.DryExitMM:
		for _, m := range sc.Markets {
			inst := m.Instrument()
			if !holding(sc, inst) {
				continue
			}
			signals = append(signals, types.NewSignal(
				inst, types.SideSell, decimal.NewFromInt(1),
				fmt.Sprintf("precipitation %.2fmm at or below dry exit %.2fmm", reading.PrecipitationMM, s.cfg.DryExitMM),
				sc.Time,
			))
		}
	}
	return signals, nil
}
