package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/olyamironova/oms-engine/internal/adapter/in_memory"
	"github.com/olyamironova/oms-engine/internal/domain"
)

func newEngine(f *fixture, opts ...EngineOption) (*Engine, *in_memory.MemoryRepo, *in_memory.Cache) {
	repo := in_memory.NewMemoryRepo()
	cache := in_memory.NewCache()
	opts = append([]EngineOption{WithRepository(repo), WithCache(cache, time.Minute)}, opts...)
	return NewEngine(f.portfolio, opts...), repo, cache
}

func TestEngine_RiskManagedDownLeg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "97", "97"}, qty(domain.USDT, "10000"))
	e, _, _ := newEngine(f)

	o, err := RiskManagedOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))

	n, err := e.Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "stops once no order is live")

	orders := e.Orders()
	require.Len(t, orders, 2, "one exit leg only")
	assert.Equal(t, domain.Filled, orders[0].Status)
	assert.Equal(t, domain.Filled, orders[1].Status)
	assert.Equal(t, domain.Sell, orders[1].Side)
	assert.Equal(t, int64(0), orders[1].Step, "child created at the parent's fill step")

	fills := e.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, int64(1), fills[1].Step)
	requireEqualDecimal(t, "97", fills[1].Price)
	requireEqualDecimal(t, "9970", f.balance(t, domain.USDT))
	requireEqualDecimal(t, "0", f.balance(t, domain.BTC))
}

func TestEngine_RiskManagedUpLeg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "106"}, qty(domain.USDT, "10000"))
	e, _, _ := newEngine(f)

	o, err := RiskManagedOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	_, err = e.Run(ctx, 10)
	require.NoError(t, err)

	fills := e.Fills()
	require.Len(t, fills, 2)
	requireEqualDecimal(t, "106", fills[1].Price)
	requireEqualDecimal(t, "10060", f.balance(t, domain.USDT))
	assert.Len(t, e.Orders(), 2)
}

func TestEngine_BracketCancelsSibling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "99", "97", "120"}, qty(domain.USDT, "10000"))
	e, repo, _ := newEngine(f)

	o, err := BracketOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	_, err = e.Run(ctx, 10)
	require.NoError(t, err)

	orders := e.Orders()
	require.Len(t, orders, 3)
	stopLoss, takeProfit := orders[1], orders[2]
	assert.Equal(t, domain.Filled, stopLoss.Status)
	assert.Equal(t, domain.Cancelled, takeProfit.Status)
	assert.Contains(t, takeProfit.Reason, "oco sibling")
	assert.Equal(t, stopLoss.OCOGroup, takeProfit.OCOGroup)

	requireEqualDecimal(t, "9970", f.balance(t, domain.USDT))
	btc := f.wallet(t, domain.BTC)
	requireEqualDecimal(t, "0", btc.Balance().Amount)
	requireEqualDecimal(t, "0", btc.Locked().Amount)

	stored, err := repo.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, domain.Cancelled, stored[2].Status)
	fills, err := repo.LoadFills(ctx, "")
	require.NoError(t, err)
	assert.Len(t, fills, 2)
}

func TestEngine_CancelledSiblingKeepsPathLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "100"}, qty(domain.USDT, "10000"))
	e, _, _ := newEngine(f)

	o, err := BracketOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	require.NoError(t, e.Step(ctx))

	orders := e.Orders()
	require.Len(t, orders, 3)
	btc := f.wallet(t, domain.BTC)

	require.NoError(t, e.Cancel(ctx, orders[1].ID, "manual"))
	requireEqualDecimal(t, "10", btc.Locked().Amount, "the live sibling still needs the funds")
	require.NoError(t, e.Cancel(ctx, orders[2].ID, "manual"))
	requireEqualDecimal(t, "0", btc.Locked().Amount)
	requireEqualDecimal(t, "10", btc.Available().Amount)

	assert.ErrorIs(t, e.Cancel(ctx, orders[2].ID, "again"), domain.ErrInvalidTransition)
	assert.ErrorIs(t, e.Cancel(ctx, "missing", "x"), domain.ErrOrderNotFound)
}

func TestEngine_DoubleSpendFirstByInsertionWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	e, _, _ := newEngine(f)

	first, err := MarketOrder(domain.Buy, f.ep, d("100"), d("600"), f.portfolio)
	require.NoError(t, err)
	second, err := MarketOrder(domain.Buy, f.ep, d("100"), d("600"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, first))
	require.NoError(t, e.Submit(ctx, second))

	require.NoError(t, e.Step(ctx))

	got, err := e.Order(first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, got.Status)
	got, err = e.Order(second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, got.Status)
	assert.Contains(t, got.Reason, domain.ErrInsufficientFunds.Error())
	requireEqualDecimal(t, "400", f.balance(t, domain.USDT))
	requireEqualDecimal(t, "6", f.balance(t, domain.BTC))
}

func TestEngine_ExpiryUnderRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "100", "100", "100"}, qty(domain.USDT, "1000"))
	e, _, _ := newEngine(f)

	o, err := LimitOrder(domain.Buy, f.ep, d("50"), d("500"), f.portfolio, WithWindow(0, 1))
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))

	n, err := e.Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	got, err := e.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Expired, got.Status)
	assert.Empty(t, e.Fills())
}

func TestEngine_InfoAndCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "110"}, qty(domain.USDT, "1000"), qty(domain.BTC, "1"))
	e, _, cache := newEngine(f)

	require.NoError(t, e.Step(ctx))
	f.clock.Advance()
	require.NoError(t, e.Step(ctx))

	info := e.Info()
	require.Len(t, info, 2)
	requireEqualDecimal(t, "1100", info[0].NetWorth)
	requireEqualDecimal(t, "1110", info[1].NetWorth)
	assert.Equal(t, int64(1), info[1].Step)
	requireEqualDecimal(t, "1110", e.NetWorth())

	view, err := cache.GetPortfolio(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, int64(1), view.Step)
	requireEqualDecimal(t, "1110", view.NetWorth)
}

func TestEngine_SubmitRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	other := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	e, _, _ := newEngine(f)

	foreign, err := MarketOrder(domain.Buy, other.ep, d("100"), d("10"), other.portfolio)
	require.NoError(t, err)
	assert.Error(t, e.Submit(ctx, foreign))

	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("10"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	assert.Error(t, e.Submit(ctx, o), "duplicate")

	done, err := MarketOrder(domain.Buy, f.ep, d("100"), d("10"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, done.Cancel("x"))
	assert.ErrorIs(t, e.Submit(ctx, done), domain.ErrInvalidTransition)
}

func TestEngine_PlaceAndFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"), qty(domain.BTC, "1"))
	e, _, _ := newEngine(f)

	o, err := e.Place(ctx, func(p *Portfolio) (*Order, error) {
		btc, err := p.Wallet("sim", domain.BTC)
		if err != nil {
			return nil, err
		}
		usdt, err := p.Wallet("sim", domain.USDT)
		if err != nil {
			return nil, err
		}
		return ProportionOrder(p, btc, usdt, 0.5)
	})
	require.NoError(t, err)
	_, err = e.Place(ctx, func(p *Portfolio) (*Order, error) {
		return LimitOrder(domain.Buy, f.ep, d("1"), d("10"), p)
	})
	require.NoError(t, err)

	require.NoError(t, e.Step(ctx))
	filled := e.Orders(domain.Filled)
	require.Len(t, filled, 1)
	assert.Equal(t, o.ID, filled[0].ID)
	assert.Len(t, e.Orders(domain.Pending, domain.Open), 1)
	assert.Len(t, e.Orders(), 2)
}

func TestEngine_LogsTransitions(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	e, _, _ := newEngine(f, WithLogger(zap.New(core)))

	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("10"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	require.NoError(t, e.Step(ctx))

	entries := logs.FilterMessage("order transition").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, o.ID, fields["order_id"])
	assert.Equal(t, "PENDING", fields["from"])
	assert.Equal(t, "FILLED", fields["to"])
}

func TestEngine_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100", "100", "97"}, qty(domain.USDT, "10000"))
	e, repo, _ := newEngine(f)

	o, err := BracketOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	require.NoError(t, e.Step(ctx))
	f.clock.Advance()

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Step)
	require.Len(t, snap.Orders, 3)

	// Diverge: cancel both legs, then restore and let the stop loss fire.
	orders := e.Orders()
	require.NoError(t, e.Cancel(ctx, orders[1].ID, "diverge"))
	require.NoError(t, e.Cancel(ctx, orders[2].ID, "diverge"))
	f.clock.Seek(0)

	require.NoError(t, e.Restore(ctx, snap.ID))
	assert.Equal(t, int64(1), f.clock.Step())
	assert.Len(t, e.Orders(domain.Pending), 2)
	requireEqualDecimal(t, "10", f.wallet(t, domain.BTC).Locked().Amount)

	_, err = e.Run(ctx, 5)
	require.NoError(t, err)
	orders = e.Orders()
	assert.Equal(t, domain.Filled, orders[1].Status)
	assert.Equal(t, domain.Cancelled, orders[2].Status, "restored legs are still linked")
	requireEqualDecimal(t, "9970", f.balance(t, domain.USDT))

	// The repository alone can restore when the cache misses.
	e2 := NewEngine(f.portfolio, WithRepository(repo), WithCache(in_memory.NewCache(), time.Minute))
	require.NoError(t, e2.Restore(ctx, snap.ID))
	assert.Len(t, e2.Orders(), 3)

	assert.ErrorIs(t, e.Restore(ctx, "missing"), domain.ErrSnapshotNotFound)
}

func TestEngine_SubscribeFills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	e, _, _ := newEngine(f)

	fills, cancel := e.SubscribeFills(4)
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("10"), f.portfolio)
	require.NoError(t, err)
	require.NoError(t, e.Submit(ctx, o))
	require.NoError(t, e.Step(ctx))

	select {
	case got := <-fills:
		assert.Equal(t, o.ID, got.OrderID)
	case <-time.After(time.Second):
		t.Fatal("no fill published")
	}
	cancel()
	_, open := <-fills
	assert.False(t, open)
	cancel()
}
