package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
)

func TestNewOrder_Validation(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))

	_, err := NewOrder(0, domain.Buy, domain.Market, f.ep, qty(domain.BTC, "1"), f.portfolio, d("100"))
	assert.ErrorIs(t, err, domain.ErrInstrumentMismatch, "BUY on USDT/BTC spends USDT")

	_, err = NewOrder(0, domain.Buy, domain.Market, f.ep, qty(domain.USDT, "0"), f.portfolio, d("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = NewOrder(0, domain.Buy, domain.OrderType("STOP"), f.ep, qty(domain.USDT, "1"), f.portfolio, d("100"))
	assert.Error(t, err)
}

func TestOrder_MarketBuyFills(t *testing.T) {
	f := newFixture(t, []string{"40000"}, qty(domain.USDT, "1000"))
	o, err := MarketOrder(domain.Buy, f.ep, d("40000"), d("1000"), f.portfolio)
	require.NoError(t, err)

	out := o.Evaluate(0, f.ep.Price())
	require.NoError(t, out.Err)
	assert.Equal(t, domain.Pending, out.From)
	assert.Equal(t, domain.Filled, out.To)
	require.NotNil(t, out.Fill)
	assert.Equal(t, o.ID, out.Fill.OrderID)
	requireEqualDecimal(t, "1000", out.Fill.Spent)
	requireEqualDecimal(t, "0.025", out.Fill.Received)
	assert.Equal(t, "BTC", out.Fill.ReceivedInstrument)

	requireEqualDecimal(t, "0", f.balance(t, domain.USDT))
	requireEqualDecimal(t, "0.025", f.balance(t, domain.BTC))
	requireEqualDecimal(t, "0", f.wallet(t, domain.USDT).Locked().Amount)

	again := o.Evaluate(1, f.ep.Price())
	assert.False(t, again.Changed(), "terminal orders never change")
}

func TestOrder_LimitWaitsForPrice(t *testing.T) {
	f := newFixture(t, []string{"110", "105", "99"}, qty(domain.USDT, "1000"))
	o, err := LimitOrder(domain.Buy, f.ep, d("100"), d("500"), f.portfolio)
	require.NoError(t, err)

	for step := int64(0); step < 2; step++ {
		f.clock.Seek(step)
		out := o.Evaluate(step, f.ep.Price())
		assert.False(t, out.Changed(), "step %d", step)
		requireEqualDecimal(t, "0", f.wallet(t, domain.USDT).Locked().Amount, "PENDING orders hold no funds")
	}
	f.clock.Seek(2)
	out := o.Evaluate(2, f.ep.Price())
	assert.Equal(t, domain.Filled, out.To)
	requireEqualDecimal(t, "5.05050505", f.balance(t, domain.BTC))
}

func TestOrder_ExpiresOneStepAfterEnd(t *testing.T) {
	f := newFixture(t, []string{"100", "100", "100", "100"}, qty(domain.USDT, "1000"))
	o, err := LimitOrder(domain.Buy, f.ep, d("50"), d("500"), f.portfolio, WithWindow(0, 1))
	require.NoError(t, err)

	for step := int64(0); step <= 1; step++ {
		f.clock.Seek(step)
		assert.False(t, o.Evaluate(step, f.ep.Price()).Changed())
	}
	f.clock.Seek(2)
	out := o.Evaluate(2, f.ep.Price())
	assert.Equal(t, domain.Expired, out.To)
	assert.Nil(t, out.Fill)
	assert.Contains(t, o.Reason, "expired")
	requireEqualDecimal(t, "1000", f.balance(t, domain.USDT))
}

func TestOrder_NotBeforeStart(t *testing.T) {
	f := newFixture(t, []string{"100", "100"}, qty(domain.USDT, "1000"))
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("100"), f.portfolio)
	require.NoError(t, err)
	WithStart(1)(o)

	assert.False(t, o.Evaluate(0, f.ep.Price()).Changed())
	f.clock.Seek(1)
	assert.Equal(t, domain.Filled, o.Evaluate(1, f.ep.Price()).To)
}

func TestOrder_NeverFillsAtInfinitePrice(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("100"), f.portfolio)
	require.NoError(t, err)

	out := o.Evaluate(0, domain.InfPrice())
	assert.False(t, out.Changed())
	assert.Equal(t, domain.Pending, o.Status)
}

func TestOrder_InsufficientFundsCancels(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "10"))
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("50"), f.portfolio)
	require.NoError(t, err)

	out := o.Evaluate(0, f.ep.Price())
	assert.Equal(t, domain.Cancelled, out.To)
	assert.ErrorIs(t, out.Err, domain.ErrInsufficientFunds)
	assert.Contains(t, o.Reason, "insufficient funds")
	requireEqualDecimal(t, "10", f.balance(t, domain.USDT))
}

func TestOrder_CancelReleasesAndIsFinal(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("100"), f.portfolio)
	require.NoError(t, err)

	require.NoError(t, o.Cancel("user"))
	assert.Equal(t, domain.Cancelled, o.Status)
	assert.Equal(t, "user", o.Reason)
	assert.ErrorIs(t, o.Cancel("again"), domain.ErrInvalidTransition)
	assert.False(t, o.Evaluate(0, f.ep.Price()).Changed())
}

func TestOrder_SpecsMaterializeOnFill(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	o, err := RiskManagedOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)

	out := o.Evaluate(0, f.ep.Price())
	require.NoError(t, out.Err)
	require.Len(t, out.Children, 1)
	child := out.Children[0]
	assert.Equal(t, o.ID, child.ParentID)
	assert.Equal(t, o.PathID, child.PathID)
	assert.Equal(t, int64(0), child.Step)
	assert.Equal(t, domain.Sell, child.Side)
	assert.Equal(t, domain.Pending, child.Status)
	requireEqualDecimal(t, "10", child.Quantity.Amount)
	requireEqualDecimal(t, "100", child.Price, "entry price for stops")
	assert.IsType(t, criteria.Xor{}, child.Criteria)

	btc := f.wallet(t, domain.BTC)
	requireEqualDecimal(t, "10", btc.LockedFor(o.PathID).Amount)
	requireEqualDecimal(t, "0", btc.Available().Amount)

	rec := child.Record()
	assert.True(t, rec.Locked)
	assert.Equal(t, o.ID, rec.ParentID)
}

func TestOrder_FailedCreditRestoresSource(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"), qty(domain.BTC, "0"))
	btc := f.wallet(t, domain.BTC)
	btc.locked["elsewhere"] = d("100") // leaves no room to lock the acquired BTC

	o, err := RiskManagedOrder(domain.Buy, domain.Market, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio)
	require.NoError(t, err)

	out := o.Evaluate(0, f.ep.Price())
	assert.Equal(t, domain.Cancelled, out.To)
	assert.ErrorIs(t, out.Err, domain.ErrInsufficientFunds)
	assert.Nil(t, out.Fill)
	assert.Empty(t, out.Children)

	usdt := f.wallet(t, domain.USDT)
	requireEqualDecimal(t, "1000", usdt.Balance().Amount)
	requireEqualDecimal(t, "0", usdt.Locked().Amount)
	requireEqualDecimal(t, "0", btc.Balance().Amount)
	requireEqualDecimal(t, "0", btc.LockedFor(o.PathID).Amount)
}

func TestOrder_UngroupedSpecsSplitReceived(t *testing.T) {
	f := newFixture(t, []string{"100", "100"}, qty(domain.USDT, "1000"))
	o, err := MarketOrder(domain.Buy, f.ep, d("100"), d("1000"), f.portfolio)
	require.NoError(t, err)
	o.AddOrderSpec(OrderSpec{Side: domain.Sell, Type: domain.Market, ExchangePair: f.ep})
	o.AddOrderSpec(OrderSpec{Side: domain.Sell, Type: domain.Market, ExchangePair: f.ep})

	out := o.Evaluate(0, f.ep.Price())
	require.NoError(t, out.Err)
	require.Len(t, out.Children, 2)
	for _, child := range out.Children {
		requireEqualDecimal(t, "5", child.Quantity.Amount)
	}
	requireEqualDecimal(t, "10", f.wallet(t, domain.BTC).LockedFor(o.PathID).Amount)

	for _, child := range out.Children {
		res := child.Evaluate(1, f.ep.Price())
		require.NoError(t, res.Err)
		assert.Equal(t, domain.Filled, res.To)
	}
	requireEqualDecimal(t, "1000", f.balance(t, domain.USDT))
	requireEqualDecimal(t, "0", f.balance(t, domain.BTC))
	require.NoError(t, f.wallet(t, domain.BTC).Validate())
}

func TestClaims(t *testing.T) {
	received := domain.Quantity{Instrument: domain.BTC, Amount: d("10"), PathID: "p"}
	specs := []OrderSpec{
		{Side: domain.Sell},
		{Side: domain.Sell, OCOGroup: "exit"},
		{Side: domain.Sell, OCOGroup: "exit"},
		{Side: domain.Sell},
	}

	keys, shares := claims(specs, received)
	require.Len(t, shares, 3)
	assert.Equal(t, keys[1], keys[2], "one OCO group shares a claim")
	requireEqualDecimal(t, "3.33333333", shares[keys[0]].Amount)
	requireEqualDecimal(t, "3.33333333", shares[keys[1]].Amount)
	requireEqualDecimal(t, "3.33333334", shares[keys[3]].Amount)
	assert.Equal(t, "p", shares[keys[3]].PathID)
}

func TestOrder_Record(t *testing.T) {
	f := newFixture(t, []string{"100"}, qty(domain.USDT, "1000"))
	o, err := BracketOrder(domain.Buy, domain.Limit, f.ep, d("100"), d("1000"), d("0.02"), d("0.05"), f.portfolio, WithEnd(4))
	require.NoError(t, err)

	rec := o.Record()
	assert.Equal(t, "sim", rec.Exchange)
	assert.Equal(t, "USDT/BTC", rec.Pair)
	assert.Equal(t, "USDT", rec.Instrument)
	assert.Equal(t, "limit", rec.Criteria.Kind)
	require.NotNil(t, rec.End)
	assert.Equal(t, int64(4), *rec.End)
	require.Len(t, rec.Specs, 2)
	assert.Equal(t, "bracket", rec.Specs[0].OCOGroup)
	assert.Equal(t, "stop", rec.Specs[1].Criteria.Kind)
}
