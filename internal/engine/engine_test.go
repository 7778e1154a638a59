package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

var testStart = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := NewConfig(testStart, testStart.Add(48*time.Hour), decimal.NewFromInt(10000))
	cfg.Frequency = Hourly
	return cfg
}

func TestRunNoSignalsKeepsCapitalFlat(t *testing.T) {
	provider := sliceProvider{slices: quoteSeries("rain-nyc", "yes", "0.50", "0.55", "0.60")}
	eng := NewEngine(provider)

	result, err := eng.Run(context.Background(), holdStrategy{}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalTrades != 0 {
		t.Fatalf("trades: got %d want 0", result.TotalTrades)
	}
	if len(result.EquityCurve) != 3 {
		t.Fatalf("equity points: got %d want 3", len(result.EquityCurve))
	}
	for i, point := range result.EquityCurve {
		if !point.Value.Equal(decimal.NewFromInt(10000)) {
			t.Fatalf("equity[%d]: got %s want 10000", i, point.Value)
		}
	}
	if !result.TotalReturn.IsZero() {
		t.Fatalf("total return: got %s want 0", result.TotalReturn)
	}
}

func TestRunBuyThenSellRealizesProfit(t *testing.T) {
	provider := sliceProvider{slices: quoteSeries("rain-nyc", "yes", "100", "110")}
	strat := &scriptStrategy{script: map[int][]types.Signal{
		0: {{Instrument: "rain-nyc:yes", Side: types.SideBuy, SizeOverride: decimal.NewFromInt(1)}},
		1: {{Instrument: "rain-nyc:yes", Side: types.SideSell, SizeOverride: decimal.NewFromInt(1)}},
	}}
	eng := NewEngine(provider)

	result, err := eng.Run(context.Background(), strat, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalTrades != 2 {
		t.Fatalf("trades: got %d want 2", result.TotalTrades)
	}
	closing := result.Trades[1]
	if !closing.Closing {
		t.Fatalf("second trade not marked closing")
	}
	if want := decimal.NewFromInt(10); !closing.RealizedPnL.Equal(want) {
		t.Fatalf("realized pnl: got %s want %s", closing.RealizedPnL, want)
	}
	if want := decimal.NewFromInt(10010); !result.FinalValue.Equal(want) {
		t.Fatalf("final value: got %s want %s", result.FinalValue, want)
	}
	if want := decimal.RequireFromString("0.001"); !result.TotalReturn.Equal(want) {
		t.Fatalf("total return: got %s want %s", result.TotalReturn, want)
	}
	// Open positions are gone, so the final equity point is pure cash.
	if !result.EquityCurve[1].Value.Equal(decimal.NewFromInt(10010)) {
		t.Fatalf("final equity: got %s want 10010", result.EquityCurve[1].Value)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	provider := sliceProvider{slices: quoteSeries("rain-nyc", "yes", "0.50", "0.60", "0.40", "0.70")}
	newStrat := func() Strategy {
		return &scriptStrategy{script: map[int][]types.Signal{
			0: {{Instrument: "rain-nyc:yes", Side: types.SideBuy, Strength: decimal.NewFromInt(1)}},
			2: {{Instrument: "rain-nyc:yes", Side: types.SideSell, Strength: decimal.NewFromInt(1)}},
		}}
	}
	eng := NewEngine(provider)

	first, err := eng.Run(context.Background(), newStrat(), testConfig())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.Run(context.Background(), newStrat(), testConfig())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.TotalTrades != second.TotalTrades {
		t.Fatalf("trade counts differ: %d vs %d", first.TotalTrades, second.TotalTrades)
	}
	if !first.FinalValue.Equal(second.FinalValue) {
		t.Fatalf("final values differ: %s vs %s", first.FinalValue, second.FinalValue)
	}
	for i := range first.EquityCurve {
		if !first.EquityCurve[i].Value.Equal(second.EquityCurve[i].Value) {
			t.Fatalf("equity[%d] differs: %s vs %s", i, first.EquityCurve[i].Value, second.EquityCurve[i].Value)
		}
	}
}

func TestRunMaxPositionsLimitsNewInstruments(t *testing.T) {
	slices := []types.TimeSlice{{
		Time: testStart,
		Markets: []types.MarketSnapshot{
			quote(testStart, "rain-nyc", "yes", "0.50"),
			quote(testStart, "heat-ldn", "yes", "0.50"),
		},
	}}
	strat := &scriptStrategy{script: map[int][]types.Signal{
		0: {
			{Instrument: "rain-nyc:yes", Side: types.SideBuy, SizeOverride: decimal.NewFromInt(1)},
			{Instrument: "heat-ldn:yes", Side: types.SideBuy, SizeOverride: decimal.NewFromInt(1)},
		},
	}}
	cfg := testConfig()
	cfg.MaxPositions = 1

	result, err := NewEngine(sliceProvider{slices: slices}).Run(context.Background(), strat, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTrades != 1 {
		t.Fatalf("trades: got %d want 1", result.TotalTrades)
	}
	if result.Trades[0].Instrument != "rain-nyc:yes" {
		t.Fatalf("filled instrument: got %s want rain-nyc:yes", result.Trades[0].Instrument)
	}
}

func TestRunHistoryNeverContainsTheFuture(t *testing.T) {
	slices := quoteSeries("rain-nyc", "yes", "0.50", "0.55", "0.60")
	for i := range slices {
		slices[i].Weather = []types.WeatherSnapshot{{
			Timestamp:    slices[i].Time,
			Location:     "nyc",
			TemperatureC: 20 + float64(i),
		}}
	}

	spy := &lookaheadSpy{}
	_, err := NewEngine(sliceProvider{slices: slices}).Run(context.Background(), spy, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := spy.historyLens, []int{1, 2, 3}; len(got) != len(want) {
		t.Fatalf("steps: got %d want %d", len(got), len(want))
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("weather history len at step %d: got %d want %d", i, got[i], want[i])
			}
		}
	}
	if spy.sawFuture {
		t.Fatalf("strategy observed data timestamped after the current step")
	}
}

func TestRunSignalForUnquotedInstrumentIsSkipped(t *testing.T) {
	provider := sliceProvider{slices: quoteSeries("rain-nyc", "yes", "0.50")}
	strat := &scriptStrategy{script: map[int][]types.Signal{
		0: {{Instrument: "ghost:yes", Side: types.SideBuy, Strength: decimal.NewFromInt(1)}},
	}}

	result, err := NewEngine(provider).Run(context.Background(), strat, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTrades != 0 {
		t.Fatalf("trades: got %d want 0", result.TotalTrades)
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxPositions = 0
		_, err := NewEngine(sliceProvider{}).Run(context.Background(), holdStrategy{}, cfg)
		if !errors.Is(err, InvalidConfigErr) {
			t.Fatalf("got %v, want InvalidConfigErr", err)
		}
	})

	t.Run("no data", func(t *testing.T) {
		_, err := NewEngine(sliceProvider{}).Run(context.Background(), holdStrategy{}, testConfig())
		if !errors.Is(err, InsufficientDataErr) {
			t.Fatalf("got %v, want InsufficientDataErr", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		providerErr := errors.New("store offline")
		_, err := NewEngine(sliceProvider{err: providerErr}).Run(context.Background(), holdStrategy{}, testConfig())
		if !errors.Is(err, providerErr) {
			t.Fatalf("got %v, want wrapped provider error", err)
		}
	})

	t.Run("strategy failure aborts with context", func(t *testing.T) {
		provider := sliceProvider{slices: quoteSeries("rain-nyc", "yes", "0.50", "0.55")}
		boom := errors.New("bad parameters")
		strat := &failingStrategy{failAt: 1, err: boom}

		_, err := NewEngine(provider).Run(context.Background(), strat, testConfig())

		var stratErr *StrategyError
		if !errors.As(err, &stratErr) {
			t.Fatalf("got %v, want *StrategyError", err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("StrategyError does not unwrap to the cause")
		}
		if !stratErr.Time.Equal(testStart.Add(time.Hour)) {
			t.Fatalf("failure time: got %s want %s", stratErr.Time, testStart.Add(time.Hour))
		}
	})
}

// ----------------Helper functions----------------

type sliceProvider struct {
	slices []types.TimeSlice
	err    error
}

func (p sliceProvider) Slices(ctx context.Context, start, end time.Time) ([]types.TimeSlice, error) {
	return p.slices, p.err
}

func quote(ts time.Time, marketID, outcome, prob string) types.MarketSnapshot {
	return types.MarketSnapshot{
		Timestamp:   ts,
		MarketID:    marketID,
		Outcome:     outcome,
		Probability: decimal.RequireFromString(prob),
		Volume:      decimal.NewFromInt(100),
	}
}

// quoteSeries builds hourly slices quoting one instrument at the given
// prices.
func quoteSeries(marketID, outcome string, prices ...string) []types.TimeSlice {
	slices := make([]types.TimeSlice, 0, len(prices))
	for i, price := range prices {
		ts := testStart.Add(time.Duration(i) * time.Hour)
		slices = append(slices, types.TimeSlice{
			Time:    ts,
			Markets: []types.MarketSnapshot{quote(ts, marketID, outcome, price)},
		})
	}
	return slices
}

type holdStrategy struct{}

func (holdStrategy) Name() string { return "hold" }

func (holdStrategy) GenerateSignals(StrategyContext) ([]types.Signal, error) { return nil, nil }

// scriptStrategy replays a fixed set of signals keyed by step index.
type scriptStrategy struct {
	script map[int][]types.Signal
	step   int
}

func (s *scriptStrategy) Name() string { return "script" }

func (s *scriptStrategy) GenerateSignals(sc StrategyContext) ([]types.Signal, error) {
	signals := s.script[s.step]
	s.step++
	return signals, nil
}

type failingStrategy struct {
	failAt int
	err    error
	step   int
}

func (s *failingStrategy) Name() string { return "failing" }

func (s *failingStrategy) GenerateSignals(sc StrategyContext) ([]types.Signal, error) {
	defer func() { s.step++ }()
	if s.step == s.failAt {
		return nil, s.err
	}
	return nil, nil
}

// lookaheadSpy records how much history each step exposes and whether
// any of it is dated after the step itself.
type lookaheadSpy struct {
	historyLens []int
	sawFuture   bool
}

func (s *lookaheadSpy) Name() string { return "lookahead-spy" }

func (s *lookaheadSpy) GenerateSignals(sc StrategyContext) ([]types.Signal, error) {
	s.historyLens = append(s.historyLens, len(sc.WeatherHistory))
	for _, w := range sc.WeatherHistory {
		if w.Timestamp.After(sc.Time) {
			s.sawFuture = true
			return nil, fmt.Errorf("future reading %s visible at %s", w.Timestamp, sc.Time)
		}
	}
	for _, hist := range sc.MarketHistory {
		for _, m := range hist {
			if m.Timestamp.After(sc.Time) {
				s.sawFuture = true
				return nil, fmt.Errorf("future quote %s visible at %s", m.Timestamp, sc.Time)
			}
		}
	}
	return nil, nil
}
