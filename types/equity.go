package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is the total portfolio value at one simulated timestep.
// The ordered sequence of points is the equity curve.
type EquityPoint struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}
