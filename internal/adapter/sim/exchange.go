// Package sim is an exchange backed by fixed price series indexed by the
// shared clock step.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Exchange = (*Exchange)(nil)

type Exchange struct {
	name  string
	clock *domain.Clock

	mu     sync.RWMutex
	series map[string][]domain.OHLCV
}

func New(name string, clock *domain.Clock) *Exchange {
	return &Exchange{name: name, clock: clock, series: make(map[string][]domain.OHLCV)}
}

func (e *Exchange) Name() string { return e.name }

// AddSeries replaces the bars for pair. Bars are sorted by step.
func (e *Exchange) AddSeries(pair domain.TradingPair, bars []domain.OHLCV) {
	sorted := append([]domain.OHLCV(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })
	e.mu.Lock()
	defer e.mu.Unlock()
	e.series[pair.String()] = sorted
}

// AddCloses is a shorthand for a series of closes starting at step from.
func (e *Exchange) AddCloses(pair domain.TradingPair, from int64, closes ...decimal.Decimal) {
	bars := make([]domain.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = domain.OHLCV{Step: from + int64(i), Open: c, High: c, Low: c, Close: c}
	}
	e.AddSeries(pair, bars)
}

func (e *Exchange) IsPairTradable(pair domain.TradingPair) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.series[pair.String()]
	return ok
}

// QuotePrice returns the close of the latest bar at or before the current
// step. Before the first bar and after the last one no price is available.
func (e *Exchange) QuotePrice(pair domain.TradingPair) (decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bars, ok := e.series[pair.String()]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s not traded on %s", domain.ErrInstrumentOrPairNotFound, pair, e.name)
	}
	step := e.clock.Step()
	n := upTo(bars, step)
	if n == 0 || step > bars[len(bars)-1].Step {
		return decimal.Zero, fmt.Errorf("%w: %s at step %d", domain.ErrPriceUnavailable, pair, step)
	}
	return bars[n-1].Close, nil
}

func (e *Exchange) FetchWindow(ctx context.Context, pair domain.TradingPair, size int) ([]domain.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	bars, ok := e.series[pair.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s not traded on %s", domain.ErrInstrumentOrPairNotFound, pair, e.name)
	}
	if size <= 0 {
		return []domain.OHLCV{}, nil
	}
	n := upTo(bars, e.clock.Step())
	from := n - size
	if from < 0 {
		from = 0
	}
	return append([]domain.OHLCV(nil), bars[from:n]...), nil
}

// upTo returns the number of bars with Step <= step.
func upTo(bars []domain.OHLCV, step int64) int {
	return sort.Search(len(bars), func(i int) bool { return bars[i].Step > step })
}
