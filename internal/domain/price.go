package domain

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Price is a quoted price or the +Inf sentinel used when an exchange cannot
// quote a pair.
type Price struct {
	value decimal.Decimal
	inf   bool
}

func NewPrice(d decimal.Decimal) Price { return Price{value: d} }

func InfPrice() Price { return Price{inf: true} }

// PriceFromFloat maps NaN and infinities to the sentinel.
func PriceFromFloat(f float64) Price {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return InfPrice()
	}
	return NewPrice(decimal.NewFromFloat(f))
}

func (p Price) IsInf() bool { return p.inf }

// Decimal returns the finite value, or zero for the sentinel.
func (p Price) Decimal() decimal.Decimal {
	if p.inf {
		return decimal.Zero
	}
	return p.value
}

// Cmp compares p to d; the sentinel is greater than every finite value.
func (p Price) Cmp(d decimal.Decimal) int {
	if p.inf {
		return 1
	}
	return p.value.Cmp(d)
}

func (p Price) String() string {
	if p.inf {
		return "inf"
	}
	return p.value.String()
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Price) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "inf" {
		*p = InfPrice()
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*p = NewPrice(d)
	return nil
}
