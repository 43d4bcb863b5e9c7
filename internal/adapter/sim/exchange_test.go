package sim

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/oms-engine/internal/domain"
)

var usdtBTC = domain.MustPair(domain.USDT, domain.BTC)

func TestExchange_QuotePriceFollowsClock(t *testing.T) {
	clock := domain.NewClock()
	ex := New("sim", clock)
	ex.AddCloses(usdtBTC, 1, decimal.NewFromInt(100), decimal.NewFromInt(101), decimal.NewFromInt(102))

	_, err := ex.QuotePrice(usdtBTC)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable, "before the first bar")

	for _, want := range []int64{100, 101, 102} {
		clock.Advance()
		p, err := ex.QuotePrice(usdtBTC)
		require.NoError(t, err)
		assert.True(t, p.Equal(decimal.NewFromInt(want)), "step %d: got %s", clock.Step(), p)
	}

	clock.Advance()
	_, err = ex.QuotePrice(usdtBTC)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable, "past the series end")

	_, err = ex.QuotePrice(domain.MustPair(domain.USDT, domain.ETH))
	assert.ErrorIs(t, err, domain.ErrInstrumentOrPairNotFound)
	assert.True(t, ex.IsPairTradable(usdtBTC))
	assert.False(t, ex.IsPairTradable(usdtBTC.Inverse()))
}

func TestExchange_FetchWindow(t *testing.T) {
	clock := domain.NewClock()
	ex := New("sim", clock)
	ex.AddCloses(usdtBTC, 0,
		decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3), decimal.NewFromInt(4))
	clock.Seek(2)

	bars, err := ex.FetchWindow(context.Background(), usdtBTC, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1), bars[0].Step)
	assert.Equal(t, int64(2), bars[1].Step)

	bars, err = ex.FetchWindow(context.Background(), usdtBTC, 10)
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	for _, size := range []int{0, -5} {
		bars, err = ex.FetchWindow(context.Background(), usdtBTC, size)
		require.NoError(t, err)
		assert.Empty(t, bars)
	}
}

func TestLoadCSV(t *testing.T) {
	in := `step,open,high,low,close,volume
0, 100, 101, 99, 100.5, 12
1, 100.5, 103, 100, 102.25, 8
`
	bars, err := LoadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1), bars[1].Step)
	assert.True(t, bars[1].Close.Equal(decimal.RequireFromString("102.25")))

	_, err = LoadCSV(strings.NewReader("0,1,2,3,4,5\nx,1,2,3,4,5\n"))
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("0,1,2,3,abc,5\n"))
	assert.Error(t, err)
}
