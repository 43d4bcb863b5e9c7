package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
)

// Order moves through PENDING -> OPEN -> {FILLED, CANCELLED, EXPIRED}.
// A PENDING order may also be cancelled or expire directly. Terminal orders
// never change again.
//
// Quantity is denominated in the instrument the order spends
// (Side.Instrument). Price is the entry price Stop criteria measure from.
type Order struct {
	ID           string
	ParentID     string
	PathID       string
	Step         int64
	Side         domain.Side
	Type         domain.OrderType
	ExchangePair ExchangePair
	Quantity     domain.Quantity
	Price        decimal.Decimal
	Criteria     criteria.Criteria
	Start        *int64
	End          *int64
	Specs        []OrderSpec
	OCOGroup     string
	Status       domain.OrderStatus
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	portfolio *Portfolio
	// locked is set while Quantity is reserved under PathID in the source wallet.
	locked bool
	group  *ocoGroup
}

type OrderOption func(*Order)

func WithCriteria(c criteria.Criteria) OrderOption {
	return func(o *Order) { o.Criteria = c }
}

func WithStart(step int64) OrderOption {
	return func(o *Order) { o.Start = &step }
}

func WithEnd(step int64) OrderOption {
	return func(o *Order) { o.End = &step }
}

func WithWindow(start, end int64) OrderOption {
	return func(o *Order) {
		o.Start = &start
		o.End = &end
	}
}

// NewOrder builds a PENDING order. MARKET orders default to Always criteria,
// LIMIT orders to a Limit at price.
func NewOrder(step int64, side domain.Side, typ domain.OrderType, ep ExchangePair, q domain.Quantity,
	portfolio *Portfolio, price decimal.Decimal, opts ...OrderOption) (*Order, error) {
	if spends := side.Instrument(ep.Pair); !q.Instrument.Equal(spends) {
		return nil, fmt.Errorf("%w: %s order on %s spends %s, quantity is %s",
			domain.ErrInstrumentMismatch, side, ep.Pair, spends, q.Instrument)
	}
	q = q.Quantize()
	if !q.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, q)
	}

	now := time.Now()
	o := &Order{
		ID:           uuid.NewString(),
		PathID:       q.PathID,
		Step:         step,
		Side:         side,
		Type:         typ,
		ExchangePair: ep,
		Price:        price,
		Status:       domain.Pending,
		CreatedAt:    now,
		UpdatedAt:    now,
		portfolio:    portfolio,
	}
	if o.PathID == "" {
		o.PathID = uuid.NewString()
	}
	o.Quantity = q.WithPath(o.PathID)

	switch typ {
	case domain.Limit:
		limit, err := criteria.NewLimit(price)
		if err != nil {
			return nil, err
		}
		o.Criteria = limit
	case domain.Market:
		o.Criteria = criteria.Always{}
	default:
		return nil, fmt.Errorf("invalid order type: %q", typ)
	}

	for _, opt := range opts {
		opt(o)
	}
	if o.Start != nil && o.End != nil && *o.End < *o.Start {
		return nil, fmt.Errorf("invalid step window [%d, %d]", *o.Start, *o.End)
	}
	return o, nil
}

// AddOrderSpec attaches a follow-up order template.
func (o *Order) AddOrderSpec(spec OrderSpec) *Order {
	spec.ParentID = o.ID
	o.Specs = append(o.Specs, spec)
	return o
}

func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

func (o *Order) Portfolio() *Portfolio { return o.portfolio }

func (o *Order) Subject() criteria.Subject {
	return criteria.Subject{Side: o.Side, Pair: o.ExchangePair.Pair, Entry: o.Price}
}

// IsExecutable reports whether the order may fill at step and price.
func (o *Order) IsExecutable(step int64, price domain.Price) bool {
	if o.IsTerminal() || price.IsInf() {
		return false
	}
	if o.Start != nil && step < *o.Start {
		return false
	}
	if o.End != nil && step > *o.End {
		return false
	}
	return criteria.Evaluate(o.Criteria, o.Subject(), price)
}

// Outcome describes what one evaluation did to an order.
type Outcome struct {
	From     domain.OrderStatus
	To       domain.OrderStatus
	Fill     *domain.Fill
	Children []*Order
	// Err is the cause of a cancellation, or of a follow-up that could not be created.
	Err error
}

func (out Outcome) Changed() bool { return out.From != out.To }

// Evaluate runs one step of the state machine against a price snapshot.
// Failures never escape: they end the order and are reported in Outcome.Err.
func (o *Order) Evaluate(step int64, price domain.Price) Outcome {
	out := Outcome{From: o.Status, To: o.Status}
	if o.IsTerminal() {
		return out
	}
	if o.End != nil && step > *o.End {
		o.finish(domain.Expired, fmt.Sprintf("expired at step %d, end was %d", step, *o.End))
		out.To = o.Status
		return out
	}
	if !o.IsExecutable(step, price) {
		return out
	}

	if err := o.open(); err != nil {
		o.finish(domain.Cancelled, err.Error())
		out.To, out.Err = o.Status, err
		return out
	}
	received, fill, err := o.execute(step, price.Decimal())
	if err != nil {
		o.finish(domain.Cancelled, err.Error())
		out.To, out.Err = o.Status, err
		return out
	}
	out.Fill = fill
	out.Children, out.Err = o.materialize(step, received, price.Decimal())
	out.To = o.Status
	return out
}

// Cancel ends a live order and releases its funds.
func (o *Order) Cancel(reason string) error {
	if o.IsTerminal() {
		return fmt.Errorf("%w: cancel %s order %s", domain.ErrInvalidTransition, o.Status, o.ID)
	}
	o.finish(domain.Cancelled, reason)
	return nil
}

func (o *Order) open() error {
	w, err := o.portfolio.Wallet(o.ExchangePair.Exchange.Name(), o.Quantity.Instrument)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInsufficientFunds, err)
	}
	if !o.locked {
		if err := w.Lock(o.Quantity); err != nil {
			return err
		}
		o.locked = true
	}
	return o.setStatus(domain.Open)
}

func (o *Order) execute(step int64, price decimal.Decimal) (domain.Quantity, *domain.Fill, error) {
	acquires := o.Side.Acquires(o.ExchangePair.Pair)
	rate := price
	if o.Side == domain.Buy {
		rate = decimal.NewFromInt(1).Div(price)
	}
	received, err := o.Quantity.Convert(acquires, rate)
	if err != nil {
		return domain.Quantity{}, nil, err
	}
	if received.IsZero() {
		return domain.Quantity{}, nil, fmt.Errorf("%w: %s at %s rounds to zero %s",
			domain.ErrInvalidQuantity, o.Quantity, price, acquires)
	}

	if !o.canTransition(domain.Filled) {
		return domain.Quantity{}, nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, domain.Filled)
	}
	src, err := o.portfolio.Wallet(o.ExchangePair.Exchange.Name(), o.Quantity.Instrument)
	if err != nil {
		return domain.Quantity{}, nil, err
	}
	if err := src.DebitLocked(o.Quantity); err != nil {
		return domain.Quantity{}, nil, err
	}

	dst := o.portfolio.walletFor(o.ExchangePair.Exchange, acquires)
	if err := dst.Credit(received); err != nil {
		src.restoreLocked(o.Quantity)
		return domain.Quantity{}, nil, err
	}
	if len(o.Specs) > 0 {
		// Follow-ups spend exactly what this order acquired.
		if err := dst.Lock(received); err != nil {
			dst.revokeCredit(received)
			src.restoreLocked(o.Quantity)
			return domain.Quantity{}, nil, err
		}
	}
	o.locked = false
	_ = o.setStatus(domain.Filled)

	fill := &domain.Fill{
		ID:                 uuid.NewString(),
		OrderID:            o.ID,
		Step:               step,
		Exchange:           o.ExchangePair.Exchange.Name(),
		Pair:               o.ExchangePair.Pair.String(),
		Side:               o.Side,
		Price:              price,
		Spent:              o.Quantity.Amount,
		SpentInstrument:    o.Quantity.Instrument.Symbol,
		Received:           received.Amount,
		ReceivedInstrument: received.Instrument.Symbol,
		Timestamp:          o.UpdatedAt,
	}
	return received, fill, nil
}

// materialize turns every attached spec into a PENDING child order created at
// step. Specs that share an OCO group become siblings: the first one to fill
// cancels the rest. Each group, and each spec outside a group, spends its own
// share of received.
func (o *Order) materialize(step int64, received domain.Quantity, price decimal.Decimal) ([]*Order, error) {
	if len(o.Specs) == 0 {
		return nil, nil
	}
	keys, shares := claims(o.Specs, received)
	var (
		children []*Order
		errs     []error
		groups   = make(map[string]*ocoGroup)
		claimed  = make(map[string]bool)
	)
	for i, spec := range o.Specs {
		key := keys[i]
		child, err := spec.create(o, shares[key], step, price)
		if err != nil {
			errs = append(errs, fmt.Errorf("spec %s %s: %w", spec.Side, spec.ExchangePair, err))
			continue
		}
		claimed[key] = true
		if spec.OCOGroup != "" {
			child.OCOGroup = o.ID + "/" + spec.OCOGroup
			g, ok := groups[child.OCOGroup]
			if !ok {
				g = &ocoGroup{}
				groups[child.OCOGroup] = g
			}
			g.add(child)
		}
		children = append(children, child)
	}

	w, err := o.portfolio.Wallet(o.ExchangePair.Exchange.Name(), received.Instrument)
	if err == nil {
		for key, share := range shares {
			if !claimed[key] {
				_, _ = w.Release(share)
			}
		}
	}
	return children, errors.Join(errs...)
}

// claims returns the claim key of every spec and the quantity each claim
// spends. An OCO group is one claim; every other spec is its own. The last
// claim takes the truncation remainder so the shares sum to received.
func claims(specs []OrderSpec, received domain.Quantity) ([]string, map[string]domain.Quantity) {
	keys := make([]string, len(specs))
	var order []string
	seen := make(map[string]bool)
	for i, spec := range specs {
		key := fmt.Sprintf("spec/%d", i)
		if spec.OCOGroup != "" {
			key = "oco/" + spec.OCOGroup
		}
		keys[i] = key
		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
	}

	n := decimal.NewFromInt(int64(len(order)))
	share := received.Amount.Div(n).Truncate(received.Instrument.Precision)
	rest := received.Amount
	shares := make(map[string]domain.Quantity, len(order))
	for i, key := range order {
		amount := share
		if i == len(order)-1 {
			amount = rest
		}
		rest = rest.Sub(amount)
		shares[key] = domain.Quantity{Instrument: received.Instrument, Amount: amount, PathID: received.PathID}
	}
	return keys, shares
}

// Siblings returns the live members of the order's OCO group other than o.
func (o *Order) Siblings() []*Order {
	if o.group == nil {
		return nil
	}
	return o.group.live(o)
}

func (o *Order) finish(status domain.OrderStatus, reason string) {
	o.release()
	o.Reason = reason
	// Only PENDING and OPEN orders reach here; both may end this way.
	_ = o.setStatus(status)
}

func (o *Order) release() {
	if !o.locked {
		return
	}
	o.locked = false
	if len(o.Siblings()) > 0 {
		// Live siblings still need the funds shared under this path.
		return
	}
	w, err := o.portfolio.Wallet(o.ExchangePair.Exchange.Name(), o.Quantity.Instrument)
	if err != nil {
		return
	}
	_, _ = w.Release(o.Quantity)
}

var transitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.Pending: {domain.Open, domain.Cancelled, domain.Expired},
	domain.Open:    {domain.Filled, domain.Cancelled, domain.Expired},
}

func (o *Order) canTransition(to domain.OrderStatus) bool {
	for _, allowed := range transitions[o.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (o *Order) setStatus(to domain.OrderStatus) error {
	if !o.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("<Order id=%s status=%s side=%s type=%s pair=%s quantity=%s price=%s criteria=%s>",
		o.ID, o.Status, o.Side, o.Type, o.ExchangePair, o.Quantity, o.Price, o.Criteria)
}

// Record converts the order to its persisted form.
func (o *Order) Record() domain.OrderRecord {
	rec := domain.OrderRecord{
		ID:         o.ID,
		ParentID:   o.ParentID,
		PathID:     o.PathID,
		Step:       o.Step,
		Exchange:   o.ExchangePair.Exchange.Name(),
		Pair:       o.ExchangePair.Pair.String(),
		Side:       o.Side,
		Type:       o.Type,
		Price:      o.Price,
		Quantity:   o.Quantity.Amount,
		Instrument: o.Quantity.Instrument.Symbol,
		Criteria:   criteria.Encode(o.Criteria),
		Start:      o.Start,
		End:        o.End,
		OCOGroup:   o.OCOGroup,
		Locked:     o.locked,
		Status:     o.Status,
		Reason:     o.Reason,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	for _, s := range o.Specs {
		rec.Specs = append(rec.Specs, s.Record())
	}
	return rec
}

type ocoGroup struct {
	members []*Order
}

func (g *ocoGroup) add(o *Order) {
	g.members = append(g.members, o)
	o.group = g
}

func (g *ocoGroup) live(except *Order) []*Order {
	var out []*Order
	for _, m := range g.members {
		if m != except && !m.IsTerminal() {
			out = append(out, m)
		}
	}
	return out
}
