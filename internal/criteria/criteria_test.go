package criteria

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/olyamironova/oms-engine/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func px(s string) domain.Price { return domain.NewPrice(dec(s)) }

var pair = domain.MustPair(domain.USDT, domain.BTC)

func exitBracket(t *testing.T) Criteria {
	t.Helper()
	down, err := NewStop(Down, dec("0.02"))
	require.NoError(t, err)
	up, err := NewStop(Up, dec("0.05"))
	require.NoError(t, err)
	return Xor{Left: down, Right: up}
}

func TestXorStopBracket(t *testing.T) {
	c := exitBracket(t)
	s := Subject{Side: domain.Sell, Pair: pair, Entry: dec("100")}

	tests := []struct {
		price string
		want  bool
	}{
		{"97.9", true},
		{"98", true},
		{"98.01", false},
		{"99", false},
		{"100", false},
		{"104.99", false},
		{"105", true},
		{"106", true},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(c, s, px(tt.price)))
		})
	}
}

func TestXorDoesNotDoubleFire(t *testing.T) {
	// Both legs hold at once: exactly-one semantics rejects it.
	a, _ := NewStop(Up, dec("0"))
	b, _ := NewStop(Down, dec("0"))
	c := Xor{Left: a, Right: b}
	s := Subject{Side: domain.Sell, Pair: pair, Entry: dec("100")}

	assert.False(t, Evaluate(c, s, px("100")))
	assert.True(t, Evaluate(c, s, px("101")))
	assert.True(t, Evaluate(c, s, px("99")))
}

func TestLimitFavourableDirection(t *testing.T) {
	l, err := NewLimit(dec("100"))
	require.NoError(t, err)

	buy := Subject{Side: domain.Buy, Pair: pair}
	sell := Subject{Side: domain.Sell, Pair: pair}

	assert.True(t, Evaluate(l, buy, px("99")))
	assert.True(t, Evaluate(l, buy, px("100")))
	assert.False(t, Evaluate(l, buy, px("101")))

	assert.False(t, Evaluate(l, sell, px("99")))
	assert.True(t, Evaluate(l, sell, px("100")))
	assert.True(t, Evaluate(l, sell, px("101")))
}

func TestUnavailablePrice(t *testing.T) {
	l, _ := NewLimit(dec("100"))
	down, _ := NewStop(Down, dec("0.1"))
	entry := Subject{Side: domain.Buy, Pair: pair, Entry: dec("100")}

	assert.False(t, Evaluate(l, entry, domain.InfPrice()))
	assert.False(t, Evaluate(down, entry, domain.InfPrice()))
	assert.True(t, Evaluate(Always{}, entry, domain.InfPrice()))
}

func TestCombinators(t *testing.T) {
	yes := Always{}
	no := Not{Inner: Always{}}
	s := Subject{Side: domain.Buy, Pair: pair}
	p := px("1")

	assert.True(t, Evaluate(And{Left: yes, Right: yes}, s, p))
	assert.False(t, Evaluate(And{Left: yes, Right: no}, s, p))
	assert.True(t, Evaluate(Or{Left: no, Right: yes}, s, p))
	assert.False(t, Evaluate(Or{Left: no, Right: no}, s, p))
	assert.True(t, Evaluate(Xor{Left: no, Right: yes}, s, p))
	assert.False(t, Evaluate(Xor{Left: yes, Right: yes}, s, p))
	assert.True(t, Evaluate(nil, s, p))
}

func TestEvaluateIsPure(t *testing.T) {
	c := exitBracket(t)
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(1, 1_000_000).Draw(t, "cents")
		price := domain.NewPrice(decimal.New(cents, -2))
		s := Subject{Side: domain.Sell, Pair: pair, Entry: dec("100")}

		first := Evaluate(c, s, price)
		for i := 0; i < 3; i++ {
			if Evaluate(c, s, price) != first {
				t.Fatalf("evaluation changed between calls at %s", price)
			}
		}
	})
}

func TestNewStopValidation(t *testing.T) {
	_, err := NewStop("sideways", dec("0.1"))
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
	_, err = NewStop(Down, dec("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
	_, err = NewStop(Up, dec("-0.1"))
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
	_, err = NewLimit(decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
}

func TestCodecRoundTripPreservesBehaviour(t *testing.T) {
	limit, _ := NewLimit(dec("101.5"))
	c := Or{Left: Not{Inner: limit}, Right: exitBracket(t)}

	back, err := Decode(Encode(c))
	require.NoError(t, err)
	assert.Equal(t, c.String(), back.String())

	s := Subject{Side: domain.Buy, Pair: pair, Entry: dec("100")}
	for _, p := range []string{"90", "99", "101.5", "103", "110"} {
		assert.Equal(t, Evaluate(c, s, px(p)), Evaluate(back, s, px(p)), p)
	}

	_, err = Decode(&domain.CriteriaNode{Kind: "xor"})
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)
	_, err = Decode(&domain.CriteriaNode{Kind: "maybe"})
	assert.ErrorIs(t, err, domain.ErrInvalidCriteria)

	none, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestString(t *testing.T) {
	assert.Equal(t,
		"(<Stop: direction=down, percent=0.02> ^ <Stop: direction=up, percent=0.05>)",
		exitBracket(t).String())
}
