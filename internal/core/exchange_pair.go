package core

import (
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

// ExchangePair binds a trading pair to the exchange quoting it. Two exchange
// pairs are equal when their keys match, whatever exchange instance backs them.
type ExchangePair struct {
	Exchange port.Exchange
	Pair     domain.TradingPair
}

func NewExchangePair(ex port.Exchange, pair domain.TradingPair) ExchangePair {
	return ExchangePair{Exchange: ex, Pair: pair}
}

// Price is the current quote, or the +Inf sentinel when the exchange cannot
// quote the pair.
func (ep ExchangePair) Price() domain.Price {
	d, err := ep.Exchange.QuotePrice(ep.Pair)
	if err != nil || !d.IsPositive() {
		return domain.InfPrice()
	}
	return domain.NewPrice(d)
}

// InversePrice is 1/Price truncated at the quote instrument's precision,
// since the inverse is denominated in the quote instrument.
func (ep ExchangePair) InversePrice() domain.Price {
	return inverse(ep.Price(), ep.Pair.Quote.Precision)
}

func inverse(p domain.Price, precision int32) domain.Price {
	if p.IsInf() {
		return domain.NewPrice(decimal.Zero)
	}
	return domain.NewPrice(decimal.NewFromInt(1).Div(p.Decimal()).Truncate(precision))
}

func (ep ExchangePair) Key() string { return ep.Exchange.Name() + ":" + ep.Pair.String() }

func (ep ExchangePair) String() string { return ep.Key() }

func (ep ExchangePair) Equal(other ExchangePair) bool { return ep.Key() == other.Key() }
