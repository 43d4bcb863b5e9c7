package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.OrderRecord
	seq       []string
	fills     []domain.Fill
	snapshots map[string]*domain.Snapshot
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:    make(map[string]domain.OrderRecord),
		snapshots: make(map[string]*domain.Snapshot),
	}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		r.seq = append(r.seq, o.ID)
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryRepo) LoadOrders(ctx context.Context) ([]*domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*domain.OrderRecord, 0, len(r.seq))
	for _, id := range r.seq {
		o := r.orders[id]
		res = append(res, &o)
	}
	return res, nil
}

func (r *MemoryRepo) SaveFill(ctx context.Context, f *domain.Fill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, *f)
	return nil
}

func (r *MemoryRepo) LoadFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Fill
	for i := range r.fills {
		if orderID == "" || r.fills[i].OrderID == orderID {
			f := r.fills[i]
			res = append(res, &f)
		}
	}
	return res, nil
}

func (r *MemoryRepo) SaveSnapshot(ctx context.Context, s *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[s.ID] = s.DeepCopy()
	return nil
}

func (r *MemoryRepo) LoadSnapshot(ctx context.Context, snapshotID string) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snapshots[snapshotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, snapshotID)
	}
	return s.DeepCopy(), nil
}

func (r *MemoryRepo) Close(ctx context.Context) {}
