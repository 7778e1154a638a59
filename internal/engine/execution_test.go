package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

func testFillConfig() Config {
	cfg := NewConfig(time.Unix(0, 0).UTC(), time.Unix(86400, 0).UTC(), decimal.NewFromInt(10000))
	cfg.CommissionRate = decimal.RequireFromString("0.001")
	return cfg
}

func TestFillSizing(t *testing.T) {
	now := time.Unix(3600, 0).UTC()

	tests := []struct {
		name      string
		signal    types.Signal
		price     string
		portfolio *portfolio
		cfg       func(Config) Config
		wantQty   string
		wantNil   bool
	}{
		{
			name:      "full strength buy commits the max position fraction",
			signal:    types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.NewFromInt(1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
			// qty = 1 * 0.1 * 10000 / 0.50
			wantQty: "2000",
		},
		{
			name:      "half strength halves the quantity",
			signal:    types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.RequireFromString("0.5"), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
			wantQty:   "1000",
		},
		{
			name:      "strength above one clamps to one",
			signal:    types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.NewFromInt(3), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
			wantQty:   "2000",
		},
		{
			name:      "negative strength clamps to zero and rejects",
			signal:    types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.NewFromInt(-1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
			wantNil:   true,
		},
		{
			name: "size override wins over strength sizing",
			signal: types.Signal{
				Instrument:   "rain-nyc:yes",
				Side:         types.SideBuy,
				Strength:     decimal.NewFromInt(1),
				SizeOverride: decimal.NewFromInt(7),
				CreatedAt:    now,
			},
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
			wantQty:   "7",
		},
		{
			name:   "sell capped at held quantity",
			signal: types.NewSignal("rain-nyc:yes", types.SideSell, decimal.NewFromInt(1), "", now),
			price:  "0.50",
			portfolio: testPortfolio("10000", false, map[string]*types.Position{
				"rain-nyc:yes": {
					Instrument: "rain-nyc:yes",
					Quantity:   decimal.NewFromInt(5),
					AvgCost:    decimal.RequireFromString("0.40"),
					LastPrice:  decimal.RequireFromString("0.40"),
				},
			}),
			wantQty: "5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testFillConfig()
			if tc.cfg != nil {
				cfg = tc.cfg(cfg)
			}
			trade := fill(tc.signal, decimal.RequireFromString(tc.price), tc.portfolio, cfg, now)
			if tc.wantNil {
				if trade != nil {
					t.Fatalf("expected rejection, got trade %+v", trade)
				}
				return
			}
			if trade == nil {
				t.Fatalf("expected a trade, got rejection")
			}
			if !trade.Quantity.Equal(decimal.RequireFromString(tc.wantQty)) {
				t.Fatalf("quantity: got %s want %s", trade.Quantity, tc.wantQty)
			}
			wantCommission := trade.Quantity.Mul(trade.Price).Mul(cfg.CommissionRate)
			if !trade.Commission.Equal(wantCommission) {
				t.Fatalf("commission: got %s want %s", trade.Commission, wantCommission)
			}
			if trade.ID == "" {
				t.Fatalf("trade has no id")
			}
			if !trade.Timestamp.Equal(now) {
				t.Fatalf("timestamp: got %s want %s", trade.Timestamp, now)
			}
		})
	}
}

func TestFillRejections(t *testing.T) {
	now := time.Unix(3600, 0).UTC()

	openPosition := func(instruments ...string) map[string]*types.Position {
		positions := make(map[string]*types.Position, len(instruments))
		for _, inst := range instruments {
			positions[inst] = &types.Position{
				Instrument: inst,
				Quantity:   decimal.NewFromInt(1),
				AvgCost:    decimal.RequireFromString("0.50"),
				LastPrice:  decimal.RequireFromString("0.50"),
			}
		}
		return positions
	}

	tests := []struct {
		name      string
		signal    types.Signal
		price     string
		portfolio *portfolio
		cfg       func(Config) Config
	}{
		{
			name:      "hold signal",
			signal:    types.NewSignal("rain-nyc:yes", types.SideHold, decimal.NewFromInt(1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
		},
		{
			name:      "unknown side",
			signal:    types.NewSignal("rain-nyc:yes", types.Side("SHRUG"), decimal.NewFromInt(1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
		},
		{
			name:      "zero price",
			signal:    types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.NewFromInt(1), "", now),
			price:     "0",
			portfolio: testPortfolio("10000", false, nil),
		},
		{
			name:      "sell with nothing held",
			signal:    types.NewSignal("rain-nyc:yes", types.SideSell, decimal.NewFromInt(1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
		},
		{
			name:      "new instrument past the position cap",
			signal:    types.NewSignal("wind-chi:yes", types.SideBuy, decimal.NewFromInt(1), "", now),
			price:     "0.50",
			portfolio: testPortfolio("10000", false, openPosition("rain-nyc:yes", "heat-ldn:no")),
			cfg: func(c Config) Config {
				c.MaxPositions = 2
				return c
			},
		},
		{
			name: "cost with commission exceeds cash",
			signal: types.Signal{
				Instrument:   "rain-nyc:yes",
				Side:         types.SideBuy,
				SizeOverride: decimal.NewFromInt(20000),
				CreatedAt:    now,
			},
			price:     "0.50",
			portfolio: testPortfolio("10000", false, nil),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testFillConfig()
			if tc.cfg != nil {
				cfg = tc.cfg(cfg)
			}
			if trade := fill(tc.signal, decimal.RequireFromString(tc.price), tc.portfolio, cfg, now); trade != nil {
				t.Fatalf("expected rejection, got trade %+v", trade)
			}
		})
	}
}

func TestFillAddingToOpenPositionSkipsCap(t *testing.T) {
	now := time.Unix(3600, 0).UTC()
	p := testPortfolio("10000", false, map[string]*types.Position{
		"rain-nyc:yes": {
			Instrument: "rain-nyc:yes",
			Quantity:   decimal.NewFromInt(1),
			AvgCost:    decimal.RequireFromString("0.50"),
			LastPrice:  decimal.RequireFromString("0.50"),
		},
	})
	cfg := testFillConfig()
	cfg.MaxPositions = 1

	signal := types.NewSignal("rain-nyc:yes", types.SideBuy, decimal.NewFromInt(1), "", now)
	if trade := fill(signal, decimal.RequireFromString("0.60"), p, cfg, now); trade == nil {
		t.Fatalf("adding to an open position must not count against the cap")
	}
}
