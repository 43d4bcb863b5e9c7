package domain

import (
	"fmt"
	"strings"
)

// TradingPair is a directional pair written BASE/QUOTE. Prices on a pair are
// the number of base units exchanged for one quote unit.
type TradingPair struct {
	Base  Instrument
	Quote Instrument
}

func NewPair(base, quote Instrument) (TradingPair, error) {
	if base.Equal(quote) {
		return TradingPair{}, fmt.Errorf("%w: %s/%s", ErrInvalidPair, base, quote)
	}
	return TradingPair{Base: base, Quote: quote}, nil
}

// MustPair is NewPair for package-level constants.
func MustPair(base, quote Instrument) TradingPair {
	p, err := NewPair(base, quote)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePair parses "BASE/QUOTE" using the built-in instruments.
func ParsePair(s string) (TradingPair, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	base, err := InstrumentBySymbol(parts[0])
	if err != nil {
		return TradingPair{}, err
	}
	quote, err := InstrumentBySymbol(parts[1])
	if err != nil {
		return TradingPair{}, err
	}
	return NewPair(base, quote)
}

func (p TradingPair) Inverse() TradingPair { return TradingPair{Base: p.Quote, Quote: p.Base} }

func (p TradingPair) Equal(other TradingPair) bool {
	return p.Base.Equal(other.Base) && p.Quote.Equal(other.Quote)
}

func (p TradingPair) String() string { return p.Base.Symbol + "/" + p.Quote.Symbol }
