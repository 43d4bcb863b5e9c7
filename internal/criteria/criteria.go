// Package criteria defines the trigger predicates that decide whether a
// pending order may execute at the current price.
//
// The variant set is closed: Always, Limit, Stop and the combinators And, Or,
// Xor and Not. Evaluate switches over it exhaustively. Every variant is an
// immutable value, so evaluation is pure.
package criteria

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
)

// Subject is the view of an order that criteria evaluate against.
type Subject struct {
	Side  domain.Side
	Pair  domain.TradingPair
	Entry decimal.Decimal
}

type Criteria interface {
	fmt.Stringer
	isCriteria()
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Always is satisfied at every price.
type Always struct{}

// Limit is satisfied once the price reaches Price in the order's favour:
// at or below it for BUY, at or above it for SELL.
type Limit struct {
	Price decimal.Decimal
}

// Stop is satisfied once the price has moved Percent away from the entry
// price in Direction.
type Stop struct {
	Direction Direction
	Percent   decimal.Decimal
}

type And struct{ Left, Right Criteria }

type Or struct{ Left, Right Criteria }

// Xor holds when exactly one side holds. Pairing a stop-loss with a
// take-profit under Xor yields a single exit that fires on whichever bound is
// breached first.
type Xor struct{ Left, Right Criteria }

type Not struct{ Inner Criteria }

func (Always) isCriteria() {}
func (Limit) isCriteria()  {}
func (Stop) isCriteria()   {}
func (And) isCriteria()    {}
func (Or) isCriteria()     {}
func (Xor) isCriteria()    {}
func (Not) isCriteria()    {}

func NewLimit(price decimal.Decimal) (Limit, error) {
	if !price.IsPositive() {
		return Limit{}, fmt.Errorf("%w: limit price %s", domain.ErrInvalidCriteria, price)
	}
	return Limit{Price: price}, nil
}

func NewStop(direction Direction, percent decimal.Decimal) (Stop, error) {
	if direction != Up && direction != Down {
		return Stop{}, fmt.Errorf("%w: direction %q", domain.ErrInvalidCriteria, direction)
	}
	if percent.IsNegative() || (direction == Down && percent.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		return Stop{}, fmt.Errorf("%w: %s percent %s", domain.ErrInvalidCriteria, direction, percent)
	}
	return Stop{Direction: direction, Percent: percent}, nil
}

// Evaluate reports whether c holds for s at price. A nil criteria holds.
func Evaluate(c Criteria, s Subject, price domain.Price) bool {
	switch c := c.(type) {
	case nil:
		return true
	case Always:
		return true
	case Limit:
		if s.Side == domain.Buy {
			return price.Cmp(c.Price) <= 0
		}
		return price.Cmp(c.Price) >= 0
	case Stop:
		one := decimal.NewFromInt(1)
		if c.Direction == Down {
			return price.Cmp(s.Entry.Mul(one.Sub(c.Percent))) <= 0
		}
		return price.Cmp(s.Entry.Mul(one.Add(c.Percent))) >= 0
	case And:
		return Evaluate(c.Left, s, price) && Evaluate(c.Right, s, price)
	case Or:
		return Evaluate(c.Left, s, price) || Evaluate(c.Right, s, price)
	case Xor:
		return Evaluate(c.Left, s, price) != Evaluate(c.Right, s, price)
	case Not:
		return !Evaluate(c.Inner, s, price)
	default:
		panic(fmt.Sprintf("criteria: unknown variant %T", c))
	}
}

func (Always) String() string  { return "<Always>" }
func (c Limit) String() string { return fmt.Sprintf("<Limit: price=%s>", c.Price) }
func (c Stop) String() string {
	return fmt.Sprintf("<Stop: direction=%s, percent=%s>", c.Direction, c.Percent)
}
func (c And) String() string { return fmt.Sprintf("(%s & %s)", c.Left, c.Right) }
func (c Or) String() string  { return fmt.Sprintf("(%s | %s)", c.Left, c.Right) }
func (c Xor) String() string { return fmt.Sprintf("(%s ^ %s)", c.Left, c.Right) }
func (c Not) String() string { return fmt.Sprintf("~%s", c.Inner) }
