package port

import (
	"context"
	"time"

	"github.com/olyamironova/oms-engine/internal/domain"
)

type Cache interface {
	SetPortfolio(ctx context.Context, view *domain.PortfolioView) error
	// GetPortfolio returns nil, nil when nothing is cached.
	GetPortfolio(ctx context.Context) (*domain.PortfolioView, error)
	SetSnapshot(ctx context.Context, id string, data []byte, ttl time.Duration) error
	// GetSnapshot returns nil, nil on a miss.
	GetSnapshot(ctx context.Context, id string) ([]byte, error)
}
