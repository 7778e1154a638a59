package weather

import (
	"math"
	"testing"

	"weathertrader/types"
)

func testWind(t *testing.T) *Wind {
	t.Helper()
	strat, err := NewWind(WindConfig{
		Location:         "nyc",
		GaleThresholdKph: 60,
		CalmExitKph:      20,
		ScaleKph:         40,
	})
	if err != nil {
		t.Fatalf("NewWind: %v", err)
	}
	return strat
}

func TestWindSignals(t *testing.T) {
	tests := []struct {
		name    string
		windKph float64
		holding bool
		want    map[string]types.Side
	}{
		{
			name:    "gale buys",
			windKph: 80,
			want:    map[string]types.Side{"wind-nyc:yes": types.SideBuy},
		},
		{
			name:    "exactly at the gale threshold buys",
			windKph: 60,
			want:    map[string]types.Side{"wind-nyc:yes": types.SideBuy},
		},
		{
			name:    "breeze between the bands does nothing",
			windKph: 40,
			want:    nil,
		},
		{
			name:    "calm closes held positions",
			windKph: 10,
			holding: true,
			want:    map[string]types.Side{"wind-nyc:yes": types.SideSell},
		},
		{
			name:    "calm with nothing held stays quiet",
			windKph: 10,
			want:    nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := testContext(nycReading(20, tc.windKph, 0), "wind-nyc:yes")
			if tc.holding {
				sc = withHolding(sc, "wind-nyc:yes")
			}

			signals, err := testWind(t).GenerateSignals(sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertSides(t, signals, tc.want)
		})
	}
}

func TestWindStrengthScaling(t *testing.T) {
	strat := testWind(t)

	sc := testContext(nycReading(20, 60, 0), "wind-nyc:yes")
	signals, err := strat.GenerateSignals(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals: got %d want 1", len(signals))
	}
	// (60 - 20) / 40 = 1, measured from the calm exit.
	if got := signals[0].Strength.InexactFloat64(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("strength: got %v want 1", got)
	}
}

func TestWindConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WindConfig
		wantErr bool
	}{
		{name: "valid", cfg: WindConfig{GaleThresholdKph: 60, CalmExitKph: 20, ScaleKph: 40}},
		{
			name:    "gale below calm exit",
			cfg:     WindConfig{GaleThresholdKph: 10, CalmExitKph: 20, ScaleKph: 40},
			wantErr: true,
		},
		{
			name:    "zero scale",
			cfg:     WindConfig{GaleThresholdKph: 60, CalmExitKph: 20},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWind(tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
