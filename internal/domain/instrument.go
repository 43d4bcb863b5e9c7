package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable asset. Two instruments are equal when their
// symbols match.
type Instrument struct {
	Symbol    string
	Precision int32
	Name      string
}

var (
	USD  = Instrument{Symbol: "USD", Precision: 2, Name: "U.S. Dollar"}
	USDT = Instrument{Symbol: "USDT", Precision: 2, Name: "Tether"}
	EUR  = Instrument{Symbol: "EUR", Precision: 2, Name: "Euro"}
	BTC  = Instrument{Symbol: "BTC", Precision: 8, Name: "Bitcoin"}
	ETH  = Instrument{Symbol: "ETH", Precision: 8, Name: "Ethereum"}
	LTC  = Instrument{Symbol: "LTC", Precision: 8, Name: "Litecoin"}
)

var knownInstruments = map[string]Instrument{
	USD.Symbol:  USD,
	USDT.Symbol: USDT,
	EUR.Symbol:  EUR,
	BTC.Symbol:  BTC,
	ETH.Symbol:  ETH,
	LTC.Symbol:  LTC,
}

// InstrumentBySymbol looks up one of the built-in instruments.
func InstrumentBySymbol(symbol string) (Instrument, error) {
	inst, ok := knownInstruments[strings.ToUpper(symbol)]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrInstrumentOrPairNotFound, symbol)
	}
	return inst, nil
}

func (i Instrument) Equal(other Instrument) bool { return i.Symbol == other.Symbol }

func (i Instrument) String() string { return i.Symbol }

// Unit is the smallest representable amount of the instrument.
func (i Instrument) Unit() decimal.Decimal { return decimal.New(1, -i.Precision) }

// Quantity builds a quantized quantity of this instrument.
func (i Instrument) Quantity(amount decimal.Decimal) (Quantity, error) {
	return NewQuantity(i, amount)
}
