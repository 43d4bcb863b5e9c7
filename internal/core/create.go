package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
)

// Factories build root orders from trading intents. Size is always expressed
// in the instrument the order spends and is truncated to its precision.

func sized(side domain.Side, ep ExchangePair, size decimal.Decimal) (domain.Quantity, error) {
	if size.IsNegative() {
		return domain.Quantity{}, fmt.Errorf("%w: size %s", domain.ErrNegativeQuantity, size)
	}
	return side.Instrument(ep.Pair).Quantity(size)
}

func MarketOrder(side domain.Side, ep ExchangePair, price, size decimal.Decimal, portfolio *Portfolio) (*Order, error) {
	q, err := sized(side, ep, size)
	if err != nil {
		return nil, err
	}
	return NewOrder(portfolio.Clock().Step(), side, domain.Market, ep, q, portfolio, price)
}

func LimitOrder(side domain.Side, ep ExchangePair, limitPrice, size decimal.Decimal, portfolio *Portfolio, opts ...OrderOption) (*Order, error) {
	q, err := sized(side, ep, size)
	if err != nil {
		return nil, err
	}
	return NewOrder(portfolio.Clock().Step(), side, domain.Limit, ep, q, portfolio, limitPrice, opts...)
}

// HiddenLimitOrder behaves like LimitOrder but is recorded as MARKET, so the
// limit is not reported as a visible book order.
func HiddenLimitOrder(side domain.Side, ep ExchangePair, limitPrice, size decimal.Decimal, portfolio *Portfolio, opts ...OrderOption) (*Order, error) {
	q, err := sized(side, ep, size)
	if err != nil {
		return nil, err
	}
	limit, err := criteria.NewLimit(limitPrice)
	if err != nil {
		return nil, err
	}
	opts = append([]OrderOption{WithCriteria(limit)}, opts...)
	return NewOrder(portfolio.Clock().Step(), side, domain.Market, ep, q, portfolio, limitPrice, opts...)
}

// RiskManagedOrder attaches a single opposite-side exit that fires when the
// price leaves the [down, up] band around the entry price.
func RiskManagedOrder(side domain.Side, typ domain.OrderType, ep ExchangePair, price, size, downPct, upPct decimal.Decimal,
	portfolio *Portfolio, opts ...OrderOption) (*Order, error) {
	down, up, err := stops(downPct, upPct)
	if err != nil {
		return nil, err
	}
	q, err := sized(side, ep, size)
	if err != nil {
		return nil, err
	}
	o, err := NewOrder(portfolio.Clock().Step(), side, typ, ep, q, portfolio, price, opts...)
	if err != nil {
		return nil, err
	}
	return o.AddOrderSpec(OrderSpec{
		Side:         side.Opposite(),
		Type:         domain.Market,
		ExchangePair: ep,
		Criteria:     criteria.Xor{Left: down, Right: up},
	}), nil
}

// BracketOrder attaches separate stop-loss and take-profit exits. The first
// one to fill cancels the other.
func BracketOrder(side domain.Side, typ domain.OrderType, ep ExchangePair, price, size, downPct, upPct decimal.Decimal,
	portfolio *Portfolio, opts ...OrderOption) (*Order, error) {
	down, up, err := stops(downPct, upPct)
	if err != nil {
		return nil, err
	}
	q, err := sized(side, ep, size)
	if err != nil {
		return nil, err
	}
	o, err := NewOrder(portfolio.Clock().Step(), side, typ, ep, q, portfolio, price, opts...)
	if err != nil {
		return nil, err
	}
	for _, c := range []criteria.Criteria{down, up} {
		o.AddOrderSpec(OrderSpec{
			Side:         side.Opposite(),
			Type:         domain.Market,
			ExchangePair: ep,
			Criteria:     c,
			OCOGroup:     "bracket",
		})
	}
	return o, nil
}

func stops(downPct, upPct decimal.Decimal) (criteria.Stop, criteria.Stop, error) {
	down, err := criteria.NewStop(criteria.Down, downPct)
	if err != nil {
		return criteria.Stop{}, criteria.Stop{}, err
	}
	up, err := criteria.NewStop(criteria.Up, upPct)
	if err != nil {
		return criteria.Stop{}, criteria.Stop{}, err
	}
	return down, up, nil
}

// ProportionOrder moves a proportion of source's balance into target's
// instrument on source's exchange. When neither wallet holds the base
// instrument the conversion goes through base: a SELL into base with an
// attached BUY of target. The order is valid for the current and next step.
func ProportionOrder(portfolio *Portfolio, source, target *Wallet, proportion float64) (*Order, error) {
	if math.IsNaN(proportion) || proportion <= 0 || proportion > 1 {
		return nil, fmt.Errorf("%w: got %v", domain.ErrInvalidProportion, proportion)
	}
	if source.Instrument().Equal(target.Instrument()) {
		return nil, fmt.Errorf("%w: %s to itself", domain.ErrInstrumentOrPairNotFound, source.Instrument())
	}

	balance := source.Balance().Amount
	size := decimal.Min(balance.Mul(decimal.NewFromFloat(proportion)), balance).Truncate(source.Instrument().Precision)

	ex := source.Exchange()
	base := portfolio.BaseInstrument()
	step := portfolio.Clock().Step()

	var (
		pair domain.TradingPair
		side domain.Side
		next *domain.TradingPair
	)
	switch {
	case source.Instrument().Equal(base):
		pair, side = domain.MustPair(source.Instrument(), target.Instrument()), domain.Buy
	case target.Instrument().Equal(base):
		pair, side = domain.MustPair(target.Instrument(), source.Instrument()), domain.Sell
	default:
		pair, side = domain.MustPair(base, source.Instrument()), domain.Sell
		hop := domain.MustPair(base, target.Instrument())
		next = &hop
	}

	if !ex.IsPairTradable(pair) {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrInstrumentOrPairNotFound, pair, ex.Name())
	}
	if next != nil && !ex.IsPairTradable(*next) {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrInstrumentOrPairNotFound, *next, ex.Name())
	}

	ep := NewExchangePair(ex, pair)
	o, err := NewOrder(step, side, domain.Market, ep, domain.Quantity{Instrument: source.Instrument(), Amount: size},
		portfolio, ep.Price().Decimal(), WithWindow(step, step+1))
	if err != nil {
		return nil, err
	}
	if next != nil {
		end := int64(1)
		o.AddOrderSpec(OrderSpec{
			Side:         domain.Buy,
			Type:         domain.Market,
			ExchangePair: NewExchangePair(ex, *next),
			End:          &end,
		})
	}
	return o, nil
}
