package in_memory

import (
	"context"
	"sync"
	"time"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

type Cache struct {
	mu        sync.Mutex
	portfolio *domain.PortfolioView
	snapshots map[string][]byte
}

var _ port.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{snapshots: make(map[string][]byte)}
}

func (c *Cache) SetPortfolio(ctx context.Context, view *domain.PortfolioView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copyView := *view
	copyView.Wallets = append([]domain.WalletRecord(nil), view.Wallets...)
	c.portfolio = &copyView
	return nil
}

func (c *Cache) GetPortfolio(ctx context.Context) (*domain.PortfolioView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.portfolio == nil {
		return nil, nil
	}
	copyView := *c.portfolio
	return &copyView, nil
}

// SetSnapshot ignores ttl; entries live as long as the process.
func (c *Cache) SetSnapshot(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[id] = append([]byte(nil), data...)
	return nil
}

func (c *Cache) GetSnapshot(ctx context.Context, id string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.snapshots[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}
