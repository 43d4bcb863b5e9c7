package core

import (
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
)

// OrderSpec is a template for a follow-up order, materialized when its parent
// fills. The child spends what the parent acquired and inherits its path.
// Start and End are offsets from the step the child is created.
type OrderSpec struct {
	ParentID     string
	Side         domain.Side
	Type         domain.OrderType
	ExchangePair ExchangePair
	Criteria     criteria.Criteria
	Start        *int64
	End          *int64
	// OCOGroup links specs whose children cancel each other once one fills.
	OCOGroup string
}

func (s OrderSpec) create(parent *Order, q domain.Quantity, step int64, entry decimal.Decimal) (*Order, error) {
	var opts []OrderOption
	if s.Criteria != nil {
		opts = append(opts, WithCriteria(s.Criteria))
	}
	if s.Start != nil {
		opts = append(opts, WithStart(step+*s.Start))
	}
	if s.End != nil {
		opts = append(opts, WithEnd(step+*s.End))
	}
	child, err := NewOrder(step, s.Side, s.Type, s.ExchangePair, q.WithPath(parent.PathID), parent.portfolio, entry, opts...)
	if err != nil {
		return nil, err
	}
	child.ParentID = parent.ID
	child.locked = true
	return child, nil
}

func (s OrderSpec) Record() domain.SpecRecord {
	return domain.SpecRecord{
		Exchange: s.ExchangePair.Exchange.Name(),
		Pair:     s.ExchangePair.Pair.String(),
		Side:     s.Side,
		Type:     s.Type,
		Criteria: criteria.Encode(s.Criteria),
		Start:    s.Start,
		End:      s.End,
		OCOGroup: s.OCOGroup,
	}
}
