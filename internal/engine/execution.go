package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"weathertrader/types"
)

var one = decimal.NewFromInt(1)

// fill converts a signal into a trade at the current price, or returns
// nil when the fill is rejected. Rejections are expected and frequent;
// the engine logs them and moves on.
//
// Without the short flag, a sell larger than the open position is
// capped at the held quantity rather than rejected outright; only a
// sell with nothing held is rejected.
//
// The fill price is the snapshot price the engine passes in. There is
// no slippage model beyond commission.
func fill(signal types.Signal, price decimal.Decimal, p *portfolio, cfg Config, now time.Time) *types.Trade {
	if signal.Side == types.SideHold {
		return nil
	}
	if signal.Side != types.SideBuy && signal.Side != types.SideSell {
		return nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	qty := targetQuantity(signal, price, p, cfg)

	pos := p.positions[signal.Instrument]
	held := decimal.Zero
	if pos != nil {
		held = pos.Quantity
	}

	if signal.Side == types.SideSell && !cfg.AllowShort {
		// Cap sells at the open quantity; nothing held means nothing
		// to sell.
		if held.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		qty = decimal.Min(qty, held)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	// Opening a new instrument counts against the concurrency cap.
	if pos == nil && len(p.positions) >= cfg.MaxPositions {
		return nil
	}

	commission := qty.Mul(price).Mul(cfg.CommissionRate)

	if signal.Side == types.SideBuy {
		cost := qty.Mul(price).Add(commission)
		if cost.GreaterThan(p.cash) {
			return nil
		}
	} else if commission.GreaterThan(p.cash.Add(qty.Mul(price))) {
		return nil
	}

	return &types.Trade{
		ID:         uuid.NewString(),
		Instrument: signal.Instrument,
		Side:       signal.Side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Timestamp:  now,
		Reason:     signal.Reason,
	}
}

// targetQuantity sizes the fill as strength x max position size x total
// portfolio value at the current price, unless the signal overrides the
// size explicitly.
func targetQuantity(signal types.Signal, price decimal.Decimal, p *portfolio, cfg Config) decimal.Decimal {
	if signal.SizeOverride.GreaterThan(decimal.Zero) {
		return signal.SizeOverride
	}
	strength := clamp01(signal.Strength)
	total := p.markToMarket(nil)
	return strength.Mul(cfg.MaxPositionSize).Mul(total).Div(price)
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
