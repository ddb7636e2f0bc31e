package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/store/sqlite"
	"github.com/warp/vip-engine/store/storetest"
	"github.com/warp/vip-engine/vip"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return newTestStore(t)
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file database with a client holding a combo
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vip.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	_, err = store.GrantCombo(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, store.SaveConfig(ctx, vip.DefaultStoreVipConfig(generic.NewTimePoint(2024, time.January, 1))))
	require.NoError(t, store.Close())

	// WHEN: Reopening it
	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	// THEN: State and config are intact
	client, err := reopened.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, client.ComboAvailable)
	cfg, err := reopened.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", cfg.DefaultWeekStartDate)
}

func TestSQLite_OrdersKeepTheirDay(t *testing.T) {
	// An order late in the evening stays on its calendar day.
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	require.NoError(t, store.RecordOrder(ctx, vip.Order{
		ID:         "o1",
		ClientID:   "c1",
		Amount:     generic.MustParseMoney("42"),
		OccurredAt: generic.DateOf(time.Date(2024, time.January, 7, 23, 59, 0, 0, time.UTC)),
		Status:     vip.OrderProcessed,
	}))

	week, err := store.OrdersInRange(ctx, "c1", generic.NewTimePoint(2024, time.January, 1), generic.NewTimePoint(2024, time.January, 7))
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Equal(t, "2024-01-07", week[0].OccurredAt.String())
}
