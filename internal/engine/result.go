package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

// Result is the immutable summary of one finished run. It serializes
// to a flat JSON record for the reporting layer.
type Result struct {
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	InitialCapital decimal.Decimal `json:"initialCapital"`
	FinalValue     decimal.Decimal `json:"finalValue"`

	TotalReturn      decimal.Decimal `json:"totalReturn"`
	AnnualizedReturn decimal.Decimal `json:"annualizedReturn"`
	Volatility       decimal.Decimal `json:"volatility"`
	SharpeRatio      decimal.Decimal `json:"sharpeRatio"`
	MaxDrawdown      decimal.Decimal `json:"maxDrawdown"`
	WinRate          decimal.Decimal `json:"winRate"`
	TotalTrades      int             `json:"totalTrades"`
	TotalFees        decimal.Decimal `json:"totalFees"`

	EquityCurve []types.EquityPoint `json:"equityCurve"`
	Trades      []types.Trade       `json:"trades"`

	// Metrics carries strategy-agnostic extras (profit factor,
	// expectancy) and anything a strategy chooses to publish.
	Metrics map[string]decimal.Decimal `json:"metrics"`
}
