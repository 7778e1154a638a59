package weather

import (
	"fmt"

	"weathertrader/internal/engine"
)

// New builds a strategy by family name from a flat parameter map, the
// same shape the optimizer sweeps over. Missing parameters take the
// documented defaults.
func New(name, location string, params map[string]float64) (engine.Strategy, error) {
	get := func(key string, def float64) float64 {
		if v, ok := params[key]; ok {
			return v
		}
		return def
	}

	switch name {
	case "temperature":
		return NewTemperature(TemperatureConfig{
			Location:       location,
			HotThresholdC:  get("hot_threshold_c", 30),
			ColdThresholdC: get("cold_threshold_c", 5),
			ScaleC:         get("scale_c", 10),
			MinStrength:    get("min_strength", 0.1),
		})
	case "precipitation":
		return NewPrecipitation(PrecipitationConfig{
			Location:       location,
			WetThresholdMM: get("wet_threshold_mm", 5),
			DryExitMM:      get("dry_exit_mm", 0.5),
			ScaleMM:        get("scale_mm", 20),
		})
	case "wind":
		return NewWind(WindConfig{
			Location:         location,
			GaleThresholdKph: get("gale_threshold_kph", 60),
			CalmExitKph:      get("calm_exit_kph", 20),
			ScaleKph:         get("scale_kph", 40),
		})
	case "pattern":
		return NewPattern(PatternConfig{
			Location:     location,
			Lookback:     int(get("lookback", 24)),
			EntryScore:   get("entry_score", 1.5),
			ExitScore:    get("exit_score", 0.5),
			TempWeight:   get("temp_weight", 1),
			WindWeight:   get("wind_weight", 1),
			PrecipWeight: get("precip_weight", 1),
		})
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Factory curries New for the optimizer, which varies only the
// parameter map between evaluations.
func Factory(name, location string) engine.StrategyFactory {
	return func(params map[string]float64) (engine.Strategy, error) {
		return New(name, location, params)
	}
}
