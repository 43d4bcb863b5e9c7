package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
)

// Exchange supplies prices for the pairs it trades. QuotePrice must not block:
// live implementations keep the latest tick in memory and fetch in the
// background.
type Exchange interface {
	Name() string
	// QuotePrice returns the number of base units paid for one quote unit.
	// Returns domain.ErrPriceUnavailable when no price is known.
	QuotePrice(pair domain.TradingPair) (decimal.Decimal, error)
	IsPairTradable(pair domain.TradingPair) bool
	// FetchWindow returns up to size bars ending at the current step, oldest first.
	// A size of zero or less yields an empty window.
	FetchWindow(ctx context.Context, pair domain.TradingPair, size int) ([]domain.OHLCV, error)
}
