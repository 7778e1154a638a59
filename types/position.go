package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the open holding for one instrument. Quantity is signed,
// positive means long. Owned exclusively by the portfolio ledger.
type Position struct {
	Instrument string
	Quantity   decimal.Decimal
	AvgCost    decimal.Decimal
	LastPrice  decimal.Decimal
	OpenedAt   time.Time
}

// PortfolioView is a read-only snapshot of the portfolio handed to
// strategies and the execution simulator. Mutating it has no effect on
// the ledger.
type PortfolioView struct {
	Cash      decimal.Decimal
	Positions map[string]PositionSnapshot
	Time      time.Time
}

type PositionSnapshot struct {
	Instrument string
	Quantity   decimal.Decimal
	AvgCost    decimal.Decimal
	LastPrice  decimal.Decimal
	OpenedAt   time.Time
}

// TotalValue is cash plus the mark-to-market value of open positions at
// their last observed prices.
func (v PortfolioView) TotalValue() decimal.Decimal {
	value := v.Cash
	for _, pos := range v.Positions {
		value = value.Add(pos.Quantity.Mul(pos.LastPrice))
	}
	return value
}
