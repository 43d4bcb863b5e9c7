// Package pebblestore keeps the order journal and portfolio snapshots in an
// embedded Pebble database.
package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Repository = (*Store)(nil)

type Store struct {
	db *pebble.DB

	// mu serializes sequence allocation.
	mu  sync.Mutex
	seq uint64
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", path, err)
	}
	s := &Store{db: db}
	val, closer, err := db.Get([]byte(keySeq))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		_ = db.Close()
		return nil, fmt.Errorf("pebble: read sequence: %w", err)
	default:
		s.seq = binary.BigEndian.Uint64(val)
		closer.Close()
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) { _ = s.db.Close() }

// next allocates a sequence number and records it in b.
func (s *Store) next(b *pebble.Batch) (uint64, error) {
	s.seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.seq)
	if err := b.Set([]byte(keySeq), buf[:], nil); err != nil {
		return 0, err
	}
	return s.seq, nil
}

func (s *Store) SaveOrder(ctx context.Context, o *domain.OrderRecord) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	_, closer, err := s.db.Get(orderKey(o.ID))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		seq, err := s.next(b)
		if err != nil {
			return err
		}
		if err := b.Set(orderSeqKey(seq), []byte(o.ID), nil); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to get order: %w", err)
	default:
		closer.Close()
	}
	if err := b.Set(orderKey(o.ID), data, nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *Store) LoadOrders(ctx context.Context) ([]*domain.OrderRecord, error) {
	prefix := []byte(prefixOrderSeq)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*domain.OrderRecord
	for iter.First(); iter.Valid(); iter.Next() {
		o, err := s.loadOrder(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, iter.Error()
}

func (s *Store) loadOrder(id string) (*domain.OrderRecord, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()
	var o domain.OrderRecord
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

func (s *Store) SaveFill(ctx context.Context, f *domain.Fill) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal fill: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	seq, err := s.next(b)
	if err != nil {
		return err
	}
	if err := b.Set(fillKey(seq), data, nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save fill: %w", err)
	}
	return nil
}

func (s *Store) LoadFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	prefix := []byte(prefixFill)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var fills []*domain.Fill
	for iter.First(); iter.Valid(); iter.Next() {
		var f domain.Fill
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fill: %w", err)
		}
		if orderID == "" || f.OrderID == orderID {
			fills = append(fills, &f)
		}
	}
	return fills, iter.Error()
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.db.Set(snapshotKey(snap.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	data, closer, err := s.db.Get(snapshotKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer closer.Close()
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
