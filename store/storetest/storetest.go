// Package storetest holds the behavior every vip store implementation must
// share. store/memory and store/sqlite run the same suite.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// Store is the full persistence surface used by the API.
type Store interface {
	vip.ClientRegistry
	vip.OrderLedger
	vip.ConfigStore
	vip.RefreshLog
	DeleteClient(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ClientRoundTrip", func(t *testing.T) { testClientRoundTrip(t, newStore(t)) })
	t.Run("SaveClientKeepsFlags", func(t *testing.T) { testSaveClientKeepsFlags(t, newStore(t)) })
	t.Run("ClientNotFound", func(t *testing.T) { testClientNotFound(t, newStore(t)) })
	t.Run("ComboCompareAndSet", func(t *testing.T) { testComboCompareAndSet(t, newStore(t)) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("DuplicateOrder", func(t *testing.T) { testDuplicateOrder(t, newStore(t)) })
	t.Run("OrderLocalDay", func(t *testing.T) { testOrderLocalDay(t, newStore(t)) })
	t.Run("Config", func(t *testing.T) { testConfig(t, newStore(t)) })
	t.Run("RefreshRuns", func(t *testing.T) { testRefreshRuns(t, newStore(t)) })
	t.Run("DeleteAndReset", func(t *testing.T) { testDeleteAndReset(t, newStore(t)) })
}

func day(d int) generic.TimePoint {
	return generic.NewTimePoint(2024, time.January, d)
}

func processed(id, clientID string, d int, amount string) vip.Order {
	return vip.Order{
		ID:         id,
		ClientID:   clientID,
		Amount:     decimal.RequireFromString(amount),
		OccurredAt: day(d),
		Status:     vip.OrderProcessed,
	}
}

func testClientRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	goal := decimal.RequireFromString("120.50")
	orders := 3
	in := vip.Client{
		ID:                 "c1",
		Name:               "Ana",
		Phone:              "+55 11 90000-0000",
		WeeklyValueGoal:    &goal,
		WeeklyOrderGoal:    &orders,
		WeekStartOverride:  "2024-01-03",
		MonthStartOverride: "2024-01-10",
	}
	require.NoError(t, s.SaveClient(ctx, in))
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c0", Name: "Bruno"}))

	got, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, in.Phone, got.Phone)
	require.NotNil(t, got.WeeklyValueGoal)
	assert.True(t, goal.Equal(*got.WeeklyValueGoal))
	require.NotNil(t, got.WeeklyOrderGoal)
	assert.Equal(t, 3, *got.WeeklyOrderGoal)
	assert.Equal(t, "2024-01-03", got.WeekStartOverride)
	assert.Equal(t, "2024-01-10", got.MonthStartOverride)
	assert.False(t, got.CreatedAt.IsZero())

	plain, err := s.GetClient(ctx, "c0")
	require.NoError(t, err)
	assert.Nil(t, plain.WeeklyValueGoal)
	assert.Nil(t, plain.WeeklyOrderGoal)
	assert.Empty(t, plain.WeekStartOverride)

	all, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c0", all[0].ID)
	assert.Equal(t, "c1", all[1].ID)
}

func testSaveClientKeepsFlags(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	_, err := s.GrantCombo(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, s.MarkEvaluated(ctx, "c1", true, "2024-01-01", "2024-01-01"))

	// A profile edit carrying stale flags must not clobber them.
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana Souza", IsVip: false, ComboAvailable: false}))

	got, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", got.Name)
	assert.True(t, got.IsVip)
	assert.True(t, got.ComboAvailable)
	assert.Equal(t, "2024-01-01", got.LastWeekResetDate)
	assert.Equal(t, "2024-01-01", got.LastMonthResetDate)
}

func testClientNotFound(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetClient(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrClientNotFound)

	_, err = s.ConsumeCombo(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrClientNotFound)

	_, err = s.GrantCombo(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrClientNotFound)

	err = s.MarkEvaluated(ctx, "ghost", true, "2024-01-01", "2024-01-01")
	assert.ErrorIs(t, err, generic.ErrClientNotFound)

	err = s.DeleteClient(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrClientNotFound)
}

func testComboCompareAndSet(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))

	consumed, err := s.ConsumeCombo(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, consumed, "nothing to consume yet")

	granted, err := s.GrantCombo(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = s.GrantCombo(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, granted, "one combo at a time")

	consumed, err = s.ConsumeCombo(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = s.ConsumeCombo(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func testOrders(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c2", Name: "Bruno"}))

	cancelled := processed("o3", "c1", 7, "99.99")
	cancelled.Status = vip.OrderCancelled
	for _, o := range []vip.Order{
		processed("o2", "c1", 8, "12.00"),
		processed("o1", "c1", 1, "10.50"),
		cancelled,
		processed("o4", "c2", 3, "30"),
	} {
		require.NoError(t, s.RecordOrder(ctx, o))
	}

	mine, err := s.OrdersForClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "o1", mine[0].ID, "oldest first")
	assert.Equal(t, "o2", mine[2].ID)
	assert.True(t, decimal.RequireFromString("10.50").Equal(mine[0].Amount))
	assert.Equal(t, "2024-01-01", mine[0].OccurredAt.String())
	assert.Equal(t, vip.OrderCancelled, mine[1].Status)

	week, err := s.OrdersInRange(ctx, "c1", day(1), day(7))
	require.NoError(t, err)
	require.Len(t, week, 2, "both bounds inclusive")
	assert.Equal(t, "o1", week[0].ID)
	assert.Equal(t, "o3", week[1].ID)

	all, err := s.AllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"o1", "o4", "o3", "o2"}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	none, err := s.OrdersForClient(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDuplicateOrder(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	require.NoError(t, s.RecordOrder(ctx, processed("o1", "c1", 1, "10")))

	err := s.RecordOrder(ctx, processed("o1", "c1", 2, "20"))

	assert.Error(t, err)
	orders, err := s.OrdersForClient(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func testOrderLocalDay(t *testing.T, s Store) {
	// GIVEN: A Sunday evening order recorded in a UTC-3 zone, already Monday in UTC
	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	zone := time.FixedZone("BRT", -3*60*60)
	sunday := generic.DateOf(time.Date(2024, time.January, 7, 22, 0, 0, 0, zone))
	require.NoError(t, s.RecordOrder(ctx, vip.Order{
		ID:         "o1",
		ClientID:   "c1",
		Amount:     decimal.RequireFromString("42"),
		OccurredAt: sunday,
		Status:     vip.OrderProcessed,
	}))

	// WHEN: Reading the week that ends on that Sunday
	week, err := s.OrdersInRange(ctx, "c1", day(1), day(7))
	require.NoError(t, err)
	next, err := s.OrdersInRange(ctx, "c1", day(8), day(14))
	require.NoError(t, err)

	// THEN: The order stays on its local calendar day
	require.Len(t, week, 1)
	assert.Empty(t, next)
	assert.True(t, week[0].OccurredAt.Equal(day(7)))
	assert.True(t, week[0].Amount.Equal(decimal.RequireFromString("42")))
}

func testConfig(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetConfig(ctx)
	assert.ErrorIs(t, err, generic.ErrMissingConfiguration)

	cfg := vip.DefaultStoreVipConfig(day(1))
	cfg.ComboRewardValue = decimal.RequireFromString("22.90")
	require.NoError(t, s.SaveConfig(ctx, cfg))

	cfg.DefaultWeekStartDate = "2024-01-08"
	require.NoError(t, s.SaveConfig(ctx, cfg))

	got, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", got.DefaultWeekStartDate)
	assert.Equal(t, "2024-01-01", got.DefaultMonthStartDate)
	assert.True(t, cfg.ComboRewardValue.Equal(got.ComboRewardValue))
	assert.True(t, cfg.DefaultWeeklyValueGoal.Equal(got.DefaultWeeklyValueGoal))
	assert.Equal(t, cfg.DefaultWeeklyOrderGoal, got.DefaultWeeklyOrderGoal)
	assert.True(t, cfg.ComboMinOrderValue.Equal(got.ComboMinOrderValue))
}

func testRefreshRuns(t *testing.T, s Store) {
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.SaveRefreshRun(ctx, vip.RefreshRun{
			ID:          id,
			ClientID:    "c1",
			WeekStart:   "2024-01-01",
			IsVip:       id == "r3",
			GrantResult: "not_eligible",
		}))
	}

	runs, err := s.ListRefreshRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID, "newest first")
	assert.True(t, runs[0].IsVip)
	assert.Equal(t, "r2", runs[1].ID)
	assert.False(t, runs[0].CreatedAt.IsZero())

	all, err := s.ListRefreshRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testDeleteAndReset(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveConfig(ctx, vip.DefaultStoreVipConfig(day(1))))
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c2", Name: "Bruno"}))
	require.NoError(t, s.RecordOrder(ctx, processed("o1", "c1", 1, "10")))
	require.NoError(t, s.RecordOrder(ctx, processed("o2", "c2", 1, "10")))

	require.NoError(t, s.DeleteClient(ctx, "c1"))

	orders, err := s.AllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "c2", orders[0].ClientID)

	// The id of a deleted order can be reused.
	require.NoError(t, s.SaveClient(ctx, vip.Client{ID: "c1", Name: "Ana"}))
	require.NoError(t, s.RecordOrder(ctx, processed("o1", "c1", 2, "10")))

	require.NoError(t, s.Reset(ctx))

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)
	orders, err = s.AllOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	_, err = s.GetConfig(ctx)
	assert.NoError(t, err, "config survives reset")
}
