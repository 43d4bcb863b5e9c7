package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

func storeSnapshot(ctx context.Context, repo port.Repository, cache port.Cache, ttl time.Duration, snap *domain.Snapshot) error {
	if repo == nil && cache == nil {
		return errors.New("no snapshot storage configured")
	}
	if repo != nil {
		if err := repo.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
		}
	}
	if cache != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if err := cache.SetSnapshot(ctx, snap.ID, data, ttl); err != nil && repo == nil {
			return err
		}
	}
	return nil
}

// getOrLoadSnapshot reads the cache first and falls back to the repository,
// refilling the cache on a repository hit.
func getOrLoadSnapshot(ctx context.Context, repo port.Repository, cache port.Cache, ttl time.Duration, id string) (*domain.Snapshot, error) {
	if cache != nil {
		if data, err := cache.GetSnapshot(ctx, id); err == nil && data != nil {
			var snap domain.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
		}
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	snap, err := repo.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if data, err := json.Marshal(snap.DeepCopy()); err == nil {
			_ = cache.SetSnapshot(ctx, id, data, ttl)
		}
	}
	return snap, nil
}

// restoreOrders rebuilds orders from records, relinking OCO groups.
func restoreOrders(p *Portfolio, records []domain.OrderRecord) ([]*Order, error) {
	orders := make([]*Order, 0, len(records))
	groups := make(map[string]*ocoGroup)
	for _, rec := range records {
		o, err := restoreOrder(p, rec)
		if err != nil {
			return nil, fmt.Errorf("restore order %s: %w", rec.ID, err)
		}
		if o.OCOGroup != "" {
			g, ok := groups[o.OCOGroup]
			if !ok {
				g = &ocoGroup{}
				groups[o.OCOGroup] = g
			}
			g.add(o)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func restoreOrder(p *Portfolio, rec domain.OrderRecord) (*Order, error) {
	ep, err := restorePair(p, rec.Exchange, rec.Pair)
	if err != nil {
		return nil, err
	}
	inst, err := domain.InstrumentBySymbol(rec.Instrument)
	if err != nil {
		return nil, err
	}
	c, err := criteria.Decode(rec.Criteria)
	if err != nil {
		return nil, err
	}
	o := &Order{
		ID:           rec.ID,
		ParentID:     rec.ParentID,
		PathID:       rec.PathID,
		Step:         rec.Step,
		Side:         rec.Side,
		Type:         rec.Type,
		ExchangePair: ep,
		Quantity:     domain.Quantity{Instrument: inst, Amount: rec.Quantity, PathID: rec.PathID},
		Price:        rec.Price,
		Criteria:     c,
		Start:        rec.Start,
		End:          rec.End,
		OCOGroup:     rec.OCOGroup,
		Status:       rec.Status,
		Reason:       rec.Reason,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		portfolio:    p,
		locked:       rec.Locked,
	}
	for _, sr := range rec.Specs {
		spec, err := restoreSpec(p, sr)
		if err != nil {
			return nil, err
		}
		spec.ParentID = o.ID
		o.Specs = append(o.Specs, spec)
	}
	return o, nil
}

func restoreSpec(p *Portfolio, rec domain.SpecRecord) (OrderSpec, error) {
	ep, err := restorePair(p, rec.Exchange, rec.Pair)
	if err != nil {
		return OrderSpec{}, err
	}
	c, err := criteria.Decode(rec.Criteria)
	if err != nil {
		return OrderSpec{}, err
	}
	return OrderSpec{
		Side:         rec.Side,
		Type:         rec.Type,
		ExchangePair: ep,
		Criteria:     c,
		Start:        rec.Start,
		End:          rec.End,
		OCOGroup:     rec.OCOGroup,
	}, nil
}

func restorePair(p *Portfolio, exchange, pair string) (ExchangePair, error) {
	ex, err := p.Exchange(exchange)
	if err != nil {
		return ExchangePair{}, err
	}
	tp, err := domain.ParsePair(pair)
	if err != nil {
		return ExchangePair{}, err
	}
	return NewExchangePair(ex, tp), nil
}
