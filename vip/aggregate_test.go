package vip_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/store/memory"
	"github.com/warp/vip-engine/vip"
)

func TestAggregate_InclusiveBounds(t *testing.T) {
	period := generic.WeekFrom(day(2024, time.January, 1))
	orders := []vip.Order{
		order("o1", "c", day(2024, time.January, 1), "10.10"),
		order("o2", "c", day(2024, time.January, 7), "20.20"),
		order("o3", "c", day(2023, time.December, 31), "99"),
		order("o4", "c", day(2024, time.January, 8), "99"),
	}

	spend := vip.Aggregate("c", period, orders)

	assert.Equal(t, "30.3", spend.ValueSpent.String())
	assert.Equal(t, 2, spend.OrderCount)
}

func TestAggregate_EmptyIsZero(t *testing.T) {
	spend := vip.Aggregate("c", generic.WeekFrom(day(2024, time.January, 1)), nil)

	assert.True(t, spend.ValueSpent.IsZero())
	assert.Zero(t, spend.OrderCount)
}

func TestAggregateFromLedger(t *testing.T) {
	// GIVEN: A ledger with orders around a week
	ctx := context.Background()
	ledger := memory.NewMemory()
	for _, o := range []vip.Order{
		order("o1", "c", day(2024, time.January, 3), "50"),
		order("o2", "c", day(2024, time.January, 9), "70"),
		order("o3", "d", day(2024, time.January, 3), "70"),
	} {
		require.NoError(t, ledger.RecordOrder(ctx, o))
	}

	// WHEN: Aggregating one client's week through the ledger
	spend, err := vip.AggregateFromLedger(ctx, ledger, "c", generic.WeekFrom(day(2024, time.January, 1)))

	// THEN: Only that client's orders in range count
	require.NoError(t, err)
	assert.Equal(t, "50", spend.ValueSpent.String())
	assert.Equal(t, 1, spend.OrderCount)
}

func TestLifetimeUntil(t *testing.T) {
	orders := []vip.Order{
		order("o1", "c", day(2024, time.January, 1), "10"),
		order("o2", "c", day(2024, time.February, 1), "20"),
	}

	all := vip.Lifetime("c", orders)
	until := vip.LifetimeUntil("c", orders, day(2024, time.January, 31))

	assert.Equal(t, 2, all.OrderCount)
	assert.Equal(t, 1, until.OrderCount)
	assert.Equal(t, "10", until.ValueSpent.String())
}

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		spent  int64
		orders int
		want   vip.Tier
	}{
		{0, 0, vip.TierNew},
		{400, 2, vip.TierNew},
		{60, 3, vip.TierRegular},
		{499, 14, vip.TierRegular},
		{500, 1, vip.TierVip},
		{100, 15, vip.TierVip},
		{1000, 1, vip.TierPremium},
		{100, 30, vip.TierPremium},
	}
	for _, tt := range tests {
		got := vip.ClassifyTier(vip.Spend{ValueSpent: decimal.NewFromInt(tt.spent), OrderCount: tt.orders})
		assert.Equal(t, tt.want, got, "spent=%d orders=%d", tt.spent, tt.orders)
	}
}

func TestOrderCounts(t *testing.T) {
	o := order("o1", "c", day(2024, time.January, 1), "10")
	assert.True(t, o.Counts())

	o.Status = vip.OrderPending
	assert.False(t, o.Counts())

	refund := order("o2", "c", day(2024, time.January, 1), "-10")
	assert.False(t, refund.Counts())

	_, err := vip.ParseOrderStatus("refunded")
	assert.Error(t, err)
}

func TestStoreVipConfigValidate(t *testing.T) {
	cfg := vip.DefaultStoreVipConfig(day(2024, time.January, 1))
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.ComboMinOrderValue = decimal.Zero
	assert.ErrorIs(t, bad.Validate(), generic.ErrMissingConfiguration)

	bad = cfg
	bad.DefaultWeeklyOrderGoal = -1
	assert.Error(t, bad.Validate())
}

func TestPresetsParse(t *testing.T) {
	for name, doc := range map[string]string{
		"neighborhood": vip.NeighborhoodProgramJSON("2024-01-01"),
		"high volume":  vip.HighVolumeProgramJSON("2024-01-01"),
		"lunch club":   vip.LunchClubProgramJSON("2024-01-01"),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, doc, `"week_start_date": "2024-01-01"`)
			assert.Contains(t, doc, `"weekly_order_goal"`)
		})
	}
}
