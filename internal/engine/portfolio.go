package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"weathertrader/types"
)

var (
	InsufficientBalanceErr = errors.New("insufficient balance when applying fill")
	ShortSellNotAllowedErr = errors.New("short sell not allowed, fill sells more than held")
)

// portfolio is the authoritative ledger of cash and positions. It is
// the only writer of Position and Trade records, and each engine run
// owns exactly one, so no locking is needed.
type portfolio struct {
	cash       decimal.Decimal
	positions  map[string]*types.Position
	trades     []types.Trade
	allowShort bool
}

func newPortfolio(initialCash decimal.Decimal, allowShort bool) *portfolio {
	return &portfolio{
		cash:       initialCash,
		positions:  make(map[string]*types.Position),
		allowShort: allowShort,
	}
}

// applyFill updates cash and the instrument's position, computes the
// realized P&L on any reducing fill, and appends the trade to the log.
// The execution simulator already rejected unaffordable fills; the
// errors here are defensive.
func (p *portfolio) applyFill(t types.Trade) error {
	signed := t.Quantity
	switch t.Side {
	case types.SideBuy:
	case types.SideSell:
		signed = signed.Neg()
	default:
		return UnknownSideErr
	}

	newCash := p.cash.Sub(t.Price.Mul(signed)).Sub(t.Commission)
	if newCash.IsNegative() {
		return InsufficientBalanceErr
	}

	pos := p.positions[t.Instrument]
	if pos == nil {
		pos = &types.Position{Instrument: t.Instrument, OpenedAt: t.Timestamp}
		p.positions[t.Instrument] = pos
	}

	oldQty := pos.Quantity
	newQty := oldQty.Add(signed)
	if !p.allowShort && newQty.IsNegative() {
		return ShortSellNotAllowedErr
	}
	p.cash = newCash

	switch {
	case oldQty.IsZero():
		pos.AvgCost = t.Price
		pos.OpenedAt = t.Timestamp

	case sameSide(oldQty, newQty) && newQty.Abs().GreaterThan(oldQty.Abs()):
		// Same-direction add: weighted average entry.
		pos.AvgCost = weightedAvg(pos.AvgCost, oldQty.Abs(), t.Price, signed.Abs())

	default:
		// Reducing, closing, or flipping: realize P&L on the closed
		// quantity against the average entry.
		closed := decimal.Min(oldQty.Abs(), signed.Abs())
		direction := decimal.NewFromInt(1)
		if oldQty.IsNegative() {
			direction = decimal.NewFromInt(-1)
		}
		t.Closing = true
		t.RealizedPnL = t.Price.Sub(pos.AvgCost).Mul(closed).Mul(direction)
		if !sameSide(oldQty, newQty) && !newQty.IsZero() {
			// Flip: the leftover quantity opens at the fill price.
			pos.AvgCost = t.Price
			pos.OpenedAt = t.Timestamp
		}
	}

	pos.Quantity = newQty
	pos.LastPrice = t.Price
	if newQty.IsZero() {
		delete(p.positions, t.Instrument)
	}

	p.trades = append(p.trades, t)
	return nil
}

// markToMarket values the portfolio at the given prices without
// mutating any position. Instruments missing from prices are valued at
// their last observed price.
func (p *portfolio) markToMarket(prices map[string]decimal.Decimal) decimal.Decimal {
	value := p.cash
	for instrument, pos := range p.positions {
		price, ok := prices[instrument]
		if !ok {
			price = pos.LastPrice
		}
		value = value.Add(pos.Quantity.Mul(price))
	}
	return value
}

// updateMarks records the latest observed price per open position so
// later valuations have a mark even when an instrument goes quiet.
func (p *portfolio) updateMarks(prices map[string]decimal.Decimal) {
	for instrument, pos := range p.positions {
		if price, ok := prices[instrument]; ok {
			pos.LastPrice = price
		}
	}
}

func (p *portfolio) snapshot(curTime time.Time) types.PortfolioView {
	view := types.PortfolioView{
		Cash:      p.cash,
		Positions: make(map[string]types.PositionSnapshot, len(p.positions)),
		Time:      curTime,
	}
	for instrument, pos := range p.positions {
		view.Positions[instrument] = types.PositionSnapshot{
			Instrument: pos.Instrument,
			Quantity:   pos.Quantity,
			AvgCost:    pos.AvgCost,
			LastPrice:  pos.LastPrice,
			OpenedAt:   pos.OpenedAt,
		}
	}
	return view
}

func sameSide(a, b decimal.Decimal) bool {
	return (a.GreaterThan(decimal.Zero) && b.GreaterThan(decimal.Zero)) ||
		(a.LessThan(decimal.Zero) && b.LessThan(decimal.Zero))
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
