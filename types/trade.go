package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable log entry for one simulated fill. Closing is
// true when the fill reduced or closed an existing position, in which
// case RealizedPnL carries the realized profit or loss. The trade log
// is append-only and is the source of truth for trade counts and win
// rate.
type Trade struct {
	ID          string          `json:"id"`
	Instrument  string          `json:"instrument"`
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	Timestamp   time.Time       `json:"timestamp"`
	Closing     bool            `json:"closing"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	Reason      string          `json:"reason,omitempty"`
}
