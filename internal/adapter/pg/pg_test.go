package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/oms-engine/internal/domain"
)

// Runs against a real database when OMS_TEST_PG_DSN is set.
func newRepo(t *testing.T) *PgRepo {
	t.Helper()
	dsn := os.Getenv("OMS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("OMS_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	repo, err := NewPgRepo(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func order(status domain.OrderStatus) *domain.OrderRecord {
	id := uuid.NewString()
	return &domain.OrderRecord{
		ID: id, PathID: id, Exchange: "sim", Pair: "USDT/BTC",
		Side: domain.Buy, Type: domain.Market, Status: status,
		Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(50), Instrument: "USDT",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
}

func TestPgRepo_OrdersAndFills(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	o := order(domain.Pending)
	require.NoError(t, repo.SaveOrder(ctx, o))
	o.Status = domain.Filled
	require.NoError(t, repo.SaveOrder(ctx, o))

	orders, err := repo.LoadOrders(ctx)
	require.NoError(t, err)
	var found *domain.OrderRecord
	for _, rec := range orders {
		if rec.ID == o.ID {
			found = rec
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, domain.Filled, found.Status)

	fill := &domain.Fill{ID: uuid.NewString(), OrderID: o.ID, Step: 3, Price: decimal.NewFromInt(100), Timestamp: time.Now().UTC()}
	require.NoError(t, repo.SaveFill(ctx, fill))
	require.NoError(t, repo.SaveFill(ctx, fill), "saving a fill twice is a no-op")
	fills, err := repo.LoadFills(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(3), fills[0].Step)
}

func TestPgRepo_Snapshot(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	snap := &domain.Snapshot{
		ID: uuid.NewString(), Step: 7, BaseInstrument: "USDT",
		Wallets:   []domain.WalletRecord{{Exchange: "sim", Instrument: "USDT", Balance: decimal.NewFromInt(10)}},
		Orders:    []domain.OrderRecord{*order(domain.Pending), *order(domain.Open)},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveSnapshot(ctx, snap))

	got, err := repo.LoadSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Step)
	require.Len(t, got.Orders, 2)
	assert.Equal(t, snap.Orders[0].ID, got.Orders[0].ID)
	assert.Equal(t, snap.Orders[1].ID, got.Orders[1].ID)

	_, err = repo.LoadSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
