package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity is a non-negative amount of one instrument. PathID tags funds that
// belong to a chain of orders so follow-up orders can spend exactly what their
// parent acquired.
//
// Every constructor and arithmetic method returns a quantized value:
// amounts are truncated toward zero at the instrument precision.
type Quantity struct {
	Instrument Instrument
	Amount     decimal.Decimal
	PathID     string
}

func NewQuantity(inst Instrument, amount decimal.Decimal) (Quantity, error) {
	q := Quantity{Instrument: inst, Amount: amount}.Quantize()
	if q.Amount.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: %s %s", ErrNegativeQuantity, amount, inst)
	}
	return q, nil
}

// Zero returns an empty quantity of inst.
func Zero(inst Instrument) Quantity {
	return Quantity{Instrument: inst, Amount: decimal.Zero}
}

// Quantize truncates the amount to the instrument precision.
func (q Quantity) Quantize() Quantity {
	q.Amount = q.Amount.Truncate(q.Instrument.Precision)
	return q
}

func (q Quantity) WithPath(pathID string) Quantity {
	q.PathID = pathID
	return q
}

func (q Quantity) IsZero() bool { return q.Amount.IsZero() }

func (q Quantity) Add(other Quantity) (Quantity, error) {
	if err := q.compatible(other); err != nil {
		return Quantity{}, err
	}
	q.Amount = q.Amount.Add(other.Amount)
	return q.Quantize(), nil
}

func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if err := q.compatible(other); err != nil {
		return Quantity{}, err
	}
	out := q
	out.Amount = q.Amount.Sub(other.Amount)
	out = out.Quantize()
	if out.Amount.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: %s - %s", ErrNegativeQuantity, q, other)
	}
	return out, nil
}

// Mul scales the quantity by a non-negative factor.
func (q Quantity) Mul(factor decimal.Decimal) (Quantity, error) {
	if factor.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: factor %s", ErrNegativeQuantity, factor)
	}
	q.Amount = q.Amount.Mul(factor)
	return q.Quantize(), nil
}

// Convert prices the quantity into another instrument at rate units of target
// per unit of q. The result keeps q's path.
func (q Quantity) Convert(target Instrument, rate decimal.Decimal) (Quantity, error) {
	if rate.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: rate %s", ErrNegativeQuantity, rate)
	}
	return Quantity{Instrument: target, Amount: q.Amount.Mul(rate), PathID: q.PathID}.Quantize(), nil
}

// Cmp compares two quantities of the same instrument after quantization.
func (q Quantity) Cmp(other Quantity) (int, error) {
	if err := q.compatible(other); err != nil {
		return 0, err
	}
	return q.Quantize().Amount.Cmp(other.Quantize().Amount), nil
}

func (q Quantity) String() string {
	return q.Amount.StringFixed(q.Instrument.Precision) + " " + q.Instrument.Symbol
}

func (q Quantity) compatible(other Quantity) error {
	if !q.Instrument.Equal(other.Instrument) {
		return fmt.Errorf("%w: %s vs %s", ErrInstrumentMismatch, q.Instrument, other.Instrument)
	}
	return nil
}
