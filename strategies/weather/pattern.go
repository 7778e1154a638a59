package weather

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"weathertrader/internal/engine"
	"weathertrader/types"
)

// PatternConfig parameterizes the multi-factor pattern strategy.
type PatternConfig struct {
	Location string
	// Lookback is how many readings of visible history feed the
	// anomaly score.
	Lookback int
	// EntryScore opens positions when the composite anomaly score is
	// at or above it; ExitScore closes them at or below it.
	EntryScore float64
	ExitScore  float64
	// Factor weights; they are normalized at validation, so only
	// their ratio matters.
	TempWeight   float64
	WindWeight   float64
	PrecipWeight float64
}

func (c PatternConfig) Validate() error {
	if c.Lookback < 2 {
		return fmt.Errorf("lookback %d must be at least 2", c.Lookback)
	}
	if c.EntryScore <= c.ExitScore {
		return fmt.Errorf("entry score %.2f must exceed exit score %.2f", c.EntryScore, c.ExitScore)
	}
	if c.TempWeight+c.WindWeight+c.PrecipWeight <= 0 {
		return fmt.Errorf("factor weights must sum to a positive value")
	}
	return nil
}

// Pattern scores how anomalous current conditions are against the
// lookback window across temperature, wind and precipitation, and
// trades the composite: buy on a strong anomaly, exit when conditions
// normalize.
type Pattern struct {
	cfg PatternConfig
}

func NewPattern(cfg PatternConfig) (*Pattern, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pattern config: %w", err)
	}
	return &Pattern{cfg: cfg}, nil
}

func (s *Pattern) Name() string { return "pattern" }

func (s *Pattern) GenerateSignals(sc engine.StrategyContext) ([]types.Signal, error) {
	reading, ok := readingFor(sc, s.cfg.Location)
	if !ok {
		return nil, nil
	}

	window := lookbackWindow(sc.WeatherHistory, s.cfg.Location, s.cfg.Lookback)
	if len(window) < s.cfg.Lookback {
		return nil, nil
	}

	score := s.anomalyScore(reading, window)

	var signals []types.Signal
	switch {
	case score >= s.cfg.EntryScore:
		strength := math.Min(1, score/(s.cfg.EntryScore*2))
		for _, m := range sc.Markets {
			signals = append(signals, types.NewSignal(
				m.Instrument(), types.SideBuy, decimal.NewFromFloat(strength),
				fmt.Sprintf("weather anomaly score %.2f at or above entry %.2f", score, s.cfg.EntryScore),
				sc.Time,
			))
		}

	case score <= s.cfg.ExitScore:
		for _, m := range sc.Markets {
			inst := m.Instrument()
			if !holding(sc, inst) {
				continue
			}
			signals = append(signals, types.NewSignal(
				inst, types.SideSell, decimal.NewFromInt(1),
				fmt.Sprintf("weather anomaly score %.2f at or below exit %.2f", score, s.cfg.ExitScore),
				sc.Time,
			))
		}
	}
	return signals, nil
}

// anomalyScore is the weighted mean of per-factor deviations from the
// window mean, each expressed in window standard deviations and capped
// so one wild factor cannot dominate unboundedly.
func (s *Pattern) anomalyScore(reading types.WeatherSnapshot, window []types.WeatherSnapshot) float64 {
	temps := make([]float64, len(window))
	winds := make([]float64, len(window))
	precips := make([]float64, len(window))
	for i, w := range window {
		temps[i] = w.TemperatureC
		winds[i] = w.WindSpeedKph
		precips[i] = w.PrecipitationMM
	}

	total := s.cfg.TempWeight + s.cfg.WindWeight + s.cfg.PrecipWeight
	score := s.cfg.TempWeight/total*deviation(reading.TemperatureC, temps) +
		s.cfg.WindWeight/total*deviation(reading.WindSpeedKph, winds) +
		s.cfg.PrecipWeight/total*deviation(reading.PrecipitationMM, precips)
	return score
}

const maxFactorDeviation = 5.0

func deviation(x float64, window []float64) float64 {
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	var varianceSum float64
	for _, v := range window {
		diff := v - mean
		varianceSum += diff * diff
	}
	sd := math.Sqrt(varianceSum / float64(len(window)))
	if sd == 0 {
		return 0
	}
	return math.Min(math.Abs(x-mean)/sd, maxFactorDeviation)
}

func lookbackWindow(history []types.WeatherSnapshot, location string, n int) []types.WeatherSnapshot {
	var window []types.WeatherSnapshot
	for i := len(history) - 1; i >= 0 && len(window) < n; i-- {
		if location == "" || history[i].Location == location {
			window = append(window, history[i])
		}
	}
	return window
}
