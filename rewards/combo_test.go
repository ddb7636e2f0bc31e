package rewards_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/rewards"
	"github.com/warp/vip-engine/store/memory"
	"github.com/warp/vip-engine/store/sqlite"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newManager(t *testing.T, registry vip.ClientRegistry) *rewards.Manager {
	t.Helper()
	return rewards.NewManager(registry, vip.DefaultStoreVipConfig(generic.NewTimePoint(2024, time.January, 1)))
}

func registries(t *testing.T) map[string]vip.ClientRegistry {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]vip.ClientRegistry{
		"memory": memory.NewMemory(),
		"sqlite": db,
	}
}

// =============================================================================
// GRANT RULE
// =============================================================================

func TestCanAwardCombo(t *testing.T) {
	tests := []struct {
		name     string
		wasVip   bool
		combo    bool
		isVipNow bool
		want     bool
	}{
		{"becomes vip", false, false, true, true},
		{"already vip this window", true, false, true, false},
		{"combo outstanding", false, true, true, false},
		{"not vip", false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &vip.Client{ID: "c", IsVip: tt.wasVip, ComboAvailable: tt.combo}
			assert.Equal(t, tt.want, rewards.CanAwardCombo(client, tt.isVipNow))
		})
	}
	assert.False(t, rewards.CanAwardCombo(nil, true))
}

func TestGrant(t *testing.T) {
	for name, registry := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, registry.SaveClient(ctx, vip.Client{ID: "c", Name: "C"}))
			m := newManager(t, registry)

			// WHEN: The client turns VIP
			client, err := registry.GetClient(ctx, "c")
			require.NoError(t, err)
			result, err := m.Grant(ctx, client, true)

			// THEN: A combo is granted once
			require.NoError(t, err)
			assert.Equal(t, rewards.GrantAwarded, result)

			// AND: A stale copy cannot grant a second one
			result, err = m.Grant(ctx, client, true)
			require.NoError(t, err)
			assert.Equal(t, rewards.GrantOutstanding, result)

			fresh, err := registry.GetClient(ctx, "c")
			require.NoError(t, err)
			assert.True(t, fresh.ComboAvailable)
		})
	}
}

func TestGrant_NotEligible(t *testing.T) {
	registry := memory.NewMemory()
	m := newManager(t, registry)

	result, err := m.Grant(context.Background(), &vip.Client{ID: "c"}, false)

	require.NoError(t, err)
	assert.Equal(t, rewards.GrantNotEligible, result)

	_, err = m.Grant(context.Background(), nil, true)
	assert.Error(t, err)
}

// =============================================================================
// CONSUMPTION
// =============================================================================

func TestConsume_TwiceYieldsOneDiscount(t *testing.T) {
	for name, registry := range registries(t) {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A client with one combo
			ctx := context.Background()
			require.NoError(t, registry.SaveClient(ctx, vip.Client{ID: "c", Name: "C"}))
			_, err := registry.GrantCombo(ctx, "c")
			require.NoError(t, err)
			m := newManager(t, registry)

			// WHEN: Consuming twice in a row
			first, err := m.Consume(ctx, "c")
			require.NoError(t, err)
			second, err := m.Consume(ctx, "c")
			require.NoError(t, err)

			// THEN: One applied, one already consumed
			assert.Equal(t, rewards.ConsumeApplied, first)
			assert.NoError(t, first.Err())
			assert.Equal(t, rewards.ConsumeAlreadyConsumed, second)
			assert.ErrorIs(t, second.Err(), generic.ErrAlreadyConsumed)
		})
	}
}

func TestConsume_Concurrent(t *testing.T) {
	for name, registry := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, registry.SaveClient(ctx, vip.Client{ID: "c", Name: "C"}))
			_, err := registry.GrantCombo(ctx, "c")
			require.NoError(t, err)
			m := newManager(t, registry)

			const workers = 16
			results := make([]rewards.ConsumeResult, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = m.Consume(ctx, "c")
				}(i)
			}
			wg.Wait()

			applied := 0
			for _, r := range results {
				if r == rewards.ConsumeApplied {
					applied++
				}
			}
			assert.Equal(t, 1, applied)
		})
	}
}

func TestConsumeForOrder_MinimumValue(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewMemory()
	require.NoError(t, registry.SaveClient(ctx, vip.Client{ID: "c", Name: "C"}))
	_, err := registry.GrantCombo(ctx, "c")
	require.NoError(t, err)
	m := newManager(t, registry)

	_, err = m.ConsumeForOrder(ctx, "c", decimal.RequireFromString("29.99"))
	assert.ErrorIs(t, err, generic.ErrBelowMinimumOrder)

	result, err := m.ConsumeForOrder(ctx, "c", decimal.RequireFromString("30"))
	require.NoError(t, err)
	assert.Equal(t, rewards.ConsumeApplied, result)
}

func TestConsume_UnknownClient(t *testing.T) {
	m := newManager(t, memory.NewMemory())

	_, err := m.Consume(context.Background(), "ghost")

	assert.ErrorIs(t, err, generic.ErrClientNotFound)
}

func TestNewManager_DefaultsMinimum(t *testing.T) {
	cfg := vip.DefaultStoreVipConfig(generic.NewTimePoint(2024, time.January, 1))
	cfg.ComboMinOrderValue = decimal.Zero
	cfg.ComboRewardValue = decimal.NewFromInt(15)

	m := rewards.NewManager(memory.NewMemory(), cfg)

	assert.True(t, m.MinOrderValue().Equal(vip.DefaultComboMinOrderValue))
	assert.Equal(t, "15.00", m.RewardValue().StringFixed(2))
}
