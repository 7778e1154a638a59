package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// Signal is a strategy's recommended action for one instrument at one
// timestep. Signals live only for the timestep that produced them.
type Signal struct {
	Instrument string
	Side       Side
	// Strength is the strategy's confidence in [0, 1]. It scales the
	// position size unless SizeOverride is set.
	Strength decimal.Decimal
	// SizeOverride, when non-zero, is the exact quantity to trade.
	SizeOverride decimal.Decimal
	Reason       string
	CreatedAt    time.Time
}

func NewSignal(instrument string, side Side, strength decimal.Decimal, reason string, createdAt time.Time) Signal {
	return Signal{
		Instrument: instrument,
		Side:       side,
		Strength:   strength,
		Reason:     reason,
		CreatedAt:  createdAt,
	}
}
