package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/oms-engine/internal/adapter/sim"
	"github.com/olyamironova/oms-engine/internal/domain"
)

var usdtBTC = domain.MustPair(domain.USDT, domain.BTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func qty(inst domain.Instrument, s string) domain.Quantity {
	return domain.Quantity{Instrument: inst, Amount: d(s)}
}

type fixture struct {
	clock     *domain.Clock
	ex        *sim.Exchange
	portfolio *Portfolio
	ep        ExchangePair
}

// newFixture builds a USDT-based portfolio on one simulated exchange quoting
// USDT/BTC with the given closes from step 0.
func newFixture(t *testing.T, closes []string, balances ...domain.Quantity) *fixture {
	t.Helper()
	return setup(closes, balances...)
}

func setup(closes []string, balances ...domain.Quantity) *fixture {
	clock := domain.NewClock()
	ex := sim.New("sim", clock)
	prices := make([]decimal.Decimal, len(closes))
	for i, c := range closes {
		prices[i] = d(c)
	}
	ex.AddCloses(usdtBTC, 0, prices...)

	p := NewPortfolio(domain.USDT, clock)
	p.AddExchange(ex)
	for _, b := range balances {
		p.AddWallet(NewWallet(ex, b))
	}
	return &fixture{clock: clock, ex: ex, portfolio: p, ep: NewExchangePair(ex, usdtBTC)}
}

func (f *fixture) wallet(t *testing.T, inst domain.Instrument) *Wallet {
	t.Helper()
	w, err := f.portfolio.Wallet("sim", inst)
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, inst domain.Instrument) decimal.Decimal {
	t.Helper()
	w, err := f.portfolio.Wallet("sim", inst)
	if err != nil {
		return decimal.Zero
	}
	return w.Balance().Amount
}

func requireEqualDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
