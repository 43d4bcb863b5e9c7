package port

import (
	"context"

	"github.com/olyamironova/oms-engine/internal/domain"
)

type Repository interface {
	// SaveOrder upserts an order record by ID.
	SaveOrder(ctx context.Context, o *domain.OrderRecord) error
	// LoadOrders returns every stored order in the order they were first saved.
	LoadOrders(ctx context.Context) ([]*domain.OrderRecord, error)
	SaveFill(ctx context.Context, f *domain.Fill) error
	LoadFills(ctx context.Context, orderID string) ([]*domain.Fill, error)
	SaveSnapshot(ctx context.Context, s *domain.Snapshot) error
	// LoadSnapshot returns domain.ErrSnapshotNotFound for unknown ids.
	LoadSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	Close(ctx context.Context)
}
