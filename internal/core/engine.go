package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/metrics"
	"github.com/olyamironova/oms-engine/internal/port"
)

// Engine owns every order of one portfolio and advances them step by step.
// Orders are kept in an arena keyed by id; children refer to their parent by
// ParentID only.
type Engine struct {
	portfolio *Portfolio
	repo      port.Repository
	cache     port.Cache
	cacheTTL  time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	orders map[string]*Order
	// seq holds order ids in insertion order; evaluation follows it.
	seq   []string
	fills []domain.Fill
	info  []domain.Info

	subs *fillPubSub
}

type EngineOption func(*Engine)

func WithRepository(repo port.Repository) EngineOption {
	return func(e *Engine) { e.repo = repo }
}

func WithCache(cache port.Cache, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func NewEngine(portfolio *Portfolio, opts ...EngineOption) *Engine {
	e := &Engine{
		portfolio: portfolio,
		log:       zap.NewNop(),
		orders:    make(map[string]*Order),
		subs:      newFillPubSub(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

// Submit registers a root order built against the engine's portfolio.
func (e *Engine) Submit(ctx context.Context, o *Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submit(ctx, o)
}

// Place builds an order under the engine lock, so factories read wallet
// balances that no concurrent step is changing, then submits it.
func (e *Engine) Place(ctx context.Context, build func(*Portfolio) (*Order, error)) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := build(e.portfolio)
	if err != nil {
		return nil, err
	}
	if err := e.submit(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (e *Engine) submit(ctx context.Context, o *Order) error {
	if o.portfolio != e.portfolio {
		return errors.New("order belongs to another portfolio")
	}
	if o.IsTerminal() {
		return fmt.Errorf("%w: submit %s order %s", domain.ErrInvalidTransition, o.Status, o.ID)
	}
	if _, ok := e.orders[o.ID]; ok {
		return fmt.Errorf("order %s already submitted", o.ID)
	}
	e.add(ctx, o)
	e.log.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("side", string(o.Side)),
		zap.String("type", string(o.Type)),
		zap.String("pair", o.ExchangePair.Key()),
		zap.String("quantity", o.Quantity.String()),
		zap.Stringer("criteria", o.Criteria),
	)
	return nil
}

func (e *Engine) add(ctx context.Context, o *Order) {
	e.orders[o.ID] = o
	e.seq = append(e.seq, o.ID)
	metrics.OrderSubmitted()
	e.persist(ctx, o)
}

// Cancel ends a live order and releases its funds.
func (e *Engine) Cancel(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	from := o.Status
	if err := o.Cancel(reason); err != nil {
		return err
	}
	e.transitioned(ctx, o, from, e.portfolio.Clock().Step())
	return nil
}

// Step evaluates every order that is live when the step begins, once, in
// insertion order. Children created during the step wait for the next one.
func (e *Engine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.portfolio.Clock().Step()
	prices := make(map[string]domain.Price)
	live := e.liveIDs()

	for _, id := range live {
		o := e.orders[id]
		if o.IsTerminal() {
			// Cancelled earlier in this step as an OCO sibling.
			continue
		}
		key := o.ExchangePair.Key()
		price, ok := prices[key]
		if !ok {
			price = o.ExchangePair.Price()
			prices[key] = price
		}
		e.apply(ctx, o, o.Evaluate(step, price), step)
	}

	worth := e.portfolio.NetWorth()
	e.info = append(e.info, domain.Info{Step: step, NetWorth: worth})
	metrics.StepDone(step, len(e.liveIDs()), worth)
	if e.cache != nil {
		if err := e.cache.SetPortfolio(ctx, e.portfolio.View()); err != nil {
			e.log.Warn("cache portfolio", zap.Int64("step", step), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, o *Order, out Outcome, step int64) {
	if out.Err != nil {
		e.log.Warn("order evaluation",
			zap.String("order_id", o.ID),
			zap.Int64("step", step),
			zap.Error(out.Err),
		)
	}
	if !out.Changed() {
		return
	}
	e.transitioned(ctx, o, out.From, step)
	if out.To == domain.Open {
		return
	}

	if out.Fill != nil {
		e.fills = append(e.fills, *out.Fill)
		e.subs.publish(*out.Fill)
		metrics.Fill()
		if e.repo != nil {
			if err := e.repo.SaveFill(ctx, out.Fill); err != nil {
				e.log.Warn("persist fill", zap.String("fill_id", out.Fill.ID), zap.Error(err))
			}
		}
		for _, sibling := range o.Siblings() {
			from := sibling.Status
			if err := sibling.Cancel(fmt.Sprintf("oco sibling %s filled", o.ID)); err == nil {
				e.transitioned(ctx, sibling, from, step)
			}
		}
	}
	for _, child := range out.Children {
		e.add(ctx, child)
		e.log.Info("order materialized",
			zap.String("order_id", child.ID),
			zap.String("parent_id", o.ID),
			zap.String("side", string(child.Side)),
			zap.String("pair", child.ExchangePair.Key()),
			zap.String("quantity", child.Quantity.String()),
			zap.Stringer("criteria", child.Criteria),
		)
	}
}

func (e *Engine) transitioned(ctx context.Context, o *Order, from domain.OrderStatus, step int64) {
	metrics.OrderTransition(o.Status)
	e.log.Info("order transition",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
		zap.Int64("step", step),
		zap.String("reason", o.Reason),
	)
	e.persist(ctx, o)
}

func (e *Engine) persist(ctx context.Context, o *Order) {
	if e.repo == nil {
		return
	}
	rec := o.Record()
	if err := e.repo.SaveOrder(ctx, &rec); err != nil {
		e.log.Warn("persist order", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Run steps and advances the clock until no order is live, steps have been
// taken, or ctx is done. It returns the number of steps evaluated.
func (e *Engine) Run(ctx context.Context, steps int) (int, error) {
	n := 0
	for n < steps {
		if err := e.Step(ctx); err != nil {
			return n, err
		}
		n++
		e.portfolio.Clock().Advance()
		if !e.HasLive() {
			break
		}
	}
	return n, nil
}

func (e *Engine) HasLive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.liveIDs()) > 0
}

func (e *Engine) liveIDs() []string {
	var ids []string
	for _, id := range e.seq {
		if !e.orders[id].IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) Order(id string) (domain.OrderRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return domain.OrderRecord{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o.Record(), nil
}

// Orders returns records in insertion order, optionally restricted to the
// given statuses.
func (e *Engine) Orders(statuses ...domain.OrderStatus) []domain.OrderRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.OrderRecord, 0, len(e.seq))
	for _, id := range e.seq {
		o := e.orders[id]
		if len(statuses) > 0 && !hasStatus(statuses, o.Status) {
			continue
		}
		out = append(out, o.Record())
	}
	return out
}

func hasStatus(statuses []domain.OrderStatus, s domain.OrderStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// SubscribeFills streams fills as they happen. Call cancel to stop; the
// channel is closed afterwards.
func (e *Engine) SubscribeFills(buffer int) (fills <-chan domain.Fill, cancel func()) {
	ch := e.subs.subscribe(buffer)
	return ch, func() { e.subs.unsubscribe(ch) }
}

func (e *Engine) Fills() []domain.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Fill(nil), e.fills...)
}

// Info returns the per-step net worth history.
func (e *Engine) Info() []domain.Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Info(nil), e.info...)
}

func (e *Engine) NetWorth() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolio.NetWorth()
}

func (e *Engine) View() *domain.PortfolioView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolio.View()
}

// Snapshot captures wallets and orders and stores them in the repository and
// cache.
func (e *Engine) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := &domain.Snapshot{
		ID:             uuid.NewString(),
		Step:           e.portfolio.Clock().Step(),
		BaseInstrument: e.portfolio.BaseInstrument().Symbol,
		Wallets:        e.portfolio.Records(),
		Timestamp:      time.Now(),
	}
	for _, id := range e.seq {
		snap.Orders = append(snap.Orders, e.orders[id].Record())
	}
	if err := storeSnapshot(ctx, e.repo, e.cache, e.cacheTTL, snap); err != nil {
		return nil, err
	}
	e.log.Info("snapshot stored", zap.String("snapshot_id", snap.ID), zap.Int64("step", snap.Step), zap.Int("orders", len(snap.Orders)))
	return snap, nil
}

// Restore replaces wallets, orders and the clock step with a stored
// snapshot. Fill and info history are cleared.
func (e *Engine) Restore(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, err := getOrLoadSnapshot(ctx, e.repo, e.cache, e.cacheTTL, id)
	if err != nil {
		return err
	}
	if snap.BaseInstrument != e.portfolio.BaseInstrument().Symbol {
		return fmt.Errorf("%w: snapshot base %s, portfolio base %s",
			domain.ErrInstrumentMismatch, snap.BaseInstrument, e.portfolio.BaseInstrument())
	}

	orders, err := restoreOrders(e.portfolio, snap.Orders)
	if err != nil {
		return err
	}
	if err := e.portfolio.Restore(snap.Wallets); err != nil {
		return err
	}
	e.orders = make(map[string]*Order, len(orders))
	e.seq = e.seq[:0]
	for _, o := range orders {
		e.orders[o.ID] = o
		e.seq = append(e.seq, o.ID)
	}
	e.fills, e.info = nil, nil
	e.portfolio.Clock().Seek(snap.Step)
	e.log.Info("snapshot restored", zap.String("snapshot_id", id), zap.Int64("step", snap.Step), zap.Int("orders", len(orders)))
	return nil
}
