package criteria

import (
	"fmt"

	"github.com/olyamironova/oms-engine/internal/domain"
)

const (
	kindAlways = "always"
	kindLimit  = "limit"
	kindStop   = "stop"
	kindAnd    = "and"
	kindOr     = "or"
	kindXor    = "xor"
	kindNot    = "not"
)

// Encode converts c into its serialized tree. A nil criteria encodes to nil.
func Encode(c Criteria) *domain.CriteriaNode {
	if c == nil {
		return nil
	}
	n := encode(c)
	return &n
}

func encode(c Criteria) domain.CriteriaNode {
	switch c := c.(type) {
	case Always:
		return domain.CriteriaNode{Kind: kindAlways}
	case Limit:
		return domain.CriteriaNode{Kind: kindLimit, Price: c.Price}
	case Stop:
		return domain.CriteriaNode{Kind: kindStop, Direction: string(c.Direction), Percent: c.Percent}
	case And:
		return domain.CriteriaNode{Kind: kindAnd, Args: []domain.CriteriaNode{encode(c.Left), encode(c.Right)}}
	case Or:
		return domain.CriteriaNode{Kind: kindOr, Args: []domain.CriteriaNode{encode(c.Left), encode(c.Right)}}
	case Xor:
		return domain.CriteriaNode{Kind: kindXor, Args: []domain.CriteriaNode{encode(c.Left), encode(c.Right)}}
	case Not:
		return domain.CriteriaNode{Kind: kindNot, Args: []domain.CriteriaNode{encode(c.Inner)}}
	case nil:
		return domain.CriteriaNode{Kind: kindAlways}
	default:
		panic(fmt.Sprintf("criteria: unknown variant %T", c))
	}
}

// Decode rebuilds a criteria tree. A nil node decodes to nil.
func Decode(n *domain.CriteriaNode) (Criteria, error) {
	if n == nil {
		return nil, nil
	}
	return decode(*n)
}

func decode(n domain.CriteriaNode) (Criteria, error) {
	switch n.Kind {
	case kindAlways:
		return Always{}, nil
	case kindLimit:
		return NewLimit(n.Price)
	case kindStop:
		return NewStop(Direction(n.Direction), n.Percent)
	case kindNot:
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("%w: %s takes 1 argument, got %d", domain.ErrInvalidCriteria, n.Kind, len(n.Args))
		}
		inner, err := decode(n.Args[0])
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	case kindAnd, kindOr, kindXor:
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %s takes 2 arguments, got %d", domain.ErrInvalidCriteria, n.Kind, len(n.Args))
		}
		left, err := decode(n.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := decode(n.Args[1])
		if err != nil {
			return nil, err
		}
		switch n.Kind {
		case kindAnd:
			return And{Left: left, Right: right}, nil
		case kindOr:
			return Or{Left: left, Right: right}, nil
		}
		return Xor{Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidCriteria, n.Kind)
}
