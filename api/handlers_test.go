/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Client CRUD and validation
- Status evaluation over the wire (money as strings)
- Combo consumption: applied, already consumed, below minimum, not found
- Ranking cache HIT/MISS and invalidation on writes
- History lookback and ordering
- Config replacement from JSON and YAML bodies
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/cache"
	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/store/memory"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// Store week: Monday 2026-03-09 .. Sunday 2026-03-15.
var (
	testAnchor = generic.NewTimePoint(2026, time.March, 9)
	testToday  = generic.NewTimePoint(2026, time.March, 11)
)

type testEnv struct {
	store   *memory.Memory
	handler *Handler
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewMemory()
	require.NoError(t, store.SaveConfig(context.Background(), vip.DefaultStoreVipConfig(testAnchor)))

	h := NewHandler(store, cache.NewLRUCache(100), time.Minute)
	h.Today = func() generic.TimePoint { return testToday }

	return &testEnv{store: store, handler: h, router: NewRouter(h, RouterOptions{})}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addClient(t *testing.T, c vip.Client) {
	t.Helper()
	require.NoError(t, e.store.SaveClient(context.Background(), c))
}

func (e *testEnv) addOrder(t *testing.T, id, clientID string, day generic.TimePoint, amount string, status vip.OrderStatus) {
	t.Helper()
	require.NoError(t, e.store.RecordOrder(context.Background(), vip.Order{
		ID:         id,
		ClientID:   clientID,
		Amount:     generic.MustParseMoney(amount),
		OccurredAt: day,
		Status:     status,
	}))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestCreateClient(t *testing.T) {
	env := newTestEnv(t)

	// WHEN: Creating a client with custom goals
	goal := "90.00"
	orders := 3
	rec := env.do(t, http.MethodPost, "/api/clients", SaveClientRequest{
		ID:              "cli-1",
		Name:            "Ana",
		WeeklyValueGoal: &goal,
		WeeklyOrderGoal: &orders,
	})

	// THEN: It is stored with its goals and no VIP flags
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decode[ClientDTO](t, rec)
	assert.Equal(t, "cli-1", dto.ID)
	require.NotNil(t, dto.WeeklyValueGoal)
	assert.Equal(t, "90.00", *dto.WeeklyValueGoal)
	assert.False(t, dto.IsVip)
	assert.False(t, dto.ComboAvailable)

	// AND: Creating it again conflicts
	rec = env.do(t, http.MethodPost, "/api/clients", SaveClientRequest{ID: "cli-1", Name: "Ana"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateClient_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  SaveClientRequest
	}{
		{"missing name", SaveClientRequest{ID: "x"}},
		{"bad goal", SaveClientRequest{ID: "x", Name: "X", WeeklyValueGoal: strPtr("abc")}},
		{"negative goal", SaveClientRequest{ID: "x", Name: "X", WeeklyValueGoal: strPtr("-1")}},
		{"bad override", SaveClientRequest{ID: "x", Name: "X", WeekStartOverride: "next monday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/clients", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateClient_KeepsFlags(t *testing.T) {
	// GIVEN: A VIP client holding a combo
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	env.addOrder(t, "o1", "cli-1", testAnchor, "200.00", vip.OrderProcessed)
	rec := env.do(t, http.MethodPost, "/api/clients/cli-1/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Updating the profile
	rec = env.do(t, http.MethodPut, "/api/clients/cli-1", SaveClientRequest{Name: "Ana Souza", Phone: "555"})

	// THEN: Profile changes, flags stay
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[ClientDTO](t, rec)
	assert.Equal(t, "Ana Souza", dto.Name)
	assert.True(t, dto.IsVip)
	assert.True(t, dto.ComboAvailable)
}

func TestDeleteClient(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})

	rec := env.do(t, http.MethodDelete, "/api/clients/cli-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/clients/cli-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// STATUS
// =============================================================================

func TestGetStatus(t *testing.T) {
	// GIVEN: Two processed orders in the week and one cancelled order
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	env.addOrder(t, "o1", "cli-1", testAnchor, "100.00", vip.OrderProcessed)
	env.addOrder(t, "o2", "cli-1", testAnchor.AddDays(1), "60.00", vip.OrderProcessed)
	env.addOrder(t, "o3", "cli-1", testAnchor.AddDays(2), "500.00", vip.OrderCancelled)
	// Last week does not count
	env.addOrder(t, "o4", "cli-1", testAnchor.AddDays(-1), "70.00", vip.OrderProcessed)

	// WHEN: Asking for the weekly status
	rec := env.do(t, http.MethodGet, "/api/clients/cli-1/status", nil)

	// THEN: Spend is R$160 over 2 orders and the value goal is met
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, "week", status.Window)
	assert.Equal(t, "2026-03-09", status.WindowStart)
	assert.Equal(t, "2026-03-15", status.WindowEnd)
	assert.Equal(t, "160.00", status.ValueSpent)
	assert.Equal(t, 2, status.OrderCount)
	assert.Equal(t, "100.00", status.ValueProgressPct)
	assert.Equal(t, "50.00", status.OrderProgressPct)
	assert.True(t, status.IsVip)
	assert.Equal(t, "regular", status.Tier)
}

func TestGetStatus_Month(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	env.addOrder(t, "o1", "cli-1", testAnchor.AddDays(20), "40.00", vip.OrderProcessed)

	rec := env.do(t, http.MethodGet, "/api/clients/cli-1/status?window=month", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, "2026-04-08", status.WindowEnd)
	assert.Equal(t, "40.00", status.ValueSpent)
}

func TestGetStatus_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})

	t.Run("unknown client", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/clients/nobody/status", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown window", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/clients/cli-1/status?window=year", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unusable store dates", func(t *testing.T) {
		cfg := vip.DefaultStoreVipConfig(testAnchor)
		cfg.DefaultWeekStartDate = "not-a-date"
		require.NoError(t, env.store.SaveConfig(context.Background(), cfg))

		rec := env.do(t, http.MethodGet, "/api/clients/cli-1/status", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

// =============================================================================
// ORDERS AND COMBO
// =============================================================================

func TestRecordOrder(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})

	// WHEN: Recording an order without a date
	rec := env.do(t, http.MethodPost, "/api/clients/cli-1/orders", RecordOrderRequest{ID: "o1", Amount: "42.5"})

	// THEN: It defaults to today, processed
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[OrderDTO](t, rec)
	assert.Equal(t, "42.50", order.Amount)
	assert.Equal(t, testToday.String(), order.OccurredAt)
	assert.Equal(t, "processed", order.Status)

	// AND: The same id is rejected
	rec = env.do(t, http.MethodPost, "/api/clients/cli-1/orders", RecordOrderRequest{ID: "o1", Amount: "10"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: Bad status is rejected
	rec = env.do(t, http.MethodPost, "/api/clients/cli-1/orders", RecordOrderRequest{Amount: "10", Status: "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/clients/cli-1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]OrderDTO](t, rec), 1)
}

func TestConsumeCombo(t *testing.T) {
	// GIVEN: A client that just became VIP and got a combo
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	env.addOrder(t, "o1", "cli-1", testAnchor, "150.00", vip.OrderProcessed)
	rec := env.do(t, http.MethodPost, "/api/clients/cli-1/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "awarded", decode[RefreshDTO](t, rec).Grant)

	// WHEN: The order is below the combo minimum (R$30)
	rec = env.do(t, http.MethodPost, "/api/clients/cli-1/combo/consume", ConsumeComboRequest{OrderAmount: "29.99"})

	// THEN: Rejected, combo untouched
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	client, err := env.store.GetClient(context.Background(), "cli-1")
	require.NoError(t, err)
	assert.True(t, client.ComboAvailable)

	// WHEN: The order meets the minimum
	rec = env.do(t, http.MethodPost, "/api/clients/cli-1/combo/consume", ConsumeComboRequest{OrderAmount: "30.00"})

	// THEN: The discount is applied once
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ConsumeComboResponse](t, rec)
	assert.Equal(t, "applied", resp.Result)
	assert.Equal(t, "20.00", resp.Discount)

	// AND: A second attempt reports already consumed
	rec = env.do(t, http.MethodPost, "/api/clients/cli-1/combo/consume", ConsumeComboRequest{OrderAmount: "45.00"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConsumeCombo_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/clients/nobody/combo/consume", ConsumeComboRequest{OrderAmount: "50.00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/clients/nobody/combo/consume", ConsumeComboRequest{OrderAmount: "fifty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsumeCombo_Concurrent(t *testing.T) {
	// GIVEN: A client with one combo
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	_, err := env.store.GrantCombo(context.Background(), "cli-1")
	require.NoError(t, err)

	// WHEN: Twenty tills try to apply it at once
	const attempts = 20
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.do(t, http.MethodPost, "/api/clients/cli-1/combo/consume", ConsumeComboRequest{OrderAmount: "60.00"}).Code
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one succeeds
	applied, conflicts := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			applied++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, attempts-1, conflicts)
}

// =============================================================================
// RANKING
// =============================================================================

func TestGetRanking_CachesUntilWrite(t *testing.T) {
	// GIVEN: Three clients with different spend
	env := newTestEnv(t)
	for _, c := range []struct{ id, amount string }{{"cli-a", "50"}, {"cli-b", "120"}, {"cli-c", "80"}} {
		env.addClient(t, vip.Client{ID: c.id, Name: strings.ToUpper(c.id)})
		env.addOrder(t, c.id+"-o1", c.id, testAnchor, c.amount, vip.OrderProcessed)
	}

	// WHEN: Asking twice for the same leaderboard
	first := env.do(t, http.MethodGet, "/api/ranking?top=2", nil)
	second := env.do(t, http.MethodGet, "/api/ranking?top=2", nil)

	// THEN: The second answer comes from cache
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	ranking := decode[RankingResponse](t, first)
	require.Len(t, ranking.Entries, 2)
	assert.Equal(t, "cli-b", ranking.Entries[0].ClientID)
	assert.Equal(t, 1, ranking.Entries[0].Rank)
	assert.Equal(t, "cli-c", ranking.Entries[1].ClientID)
	assert.Equal(t, "2026-03-09", ranking.PeriodStart)

	// WHEN: A new order moves cli-a to the top
	rec := env.do(t, http.MethodPost, "/api/clients/cli-a/orders", RecordOrderRequest{Amount: "200", OccurredAt: "2026-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The cached board is not served again
	third := env.do(t, http.MethodGet, "/api/ranking?top=2", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, "cli-a", decode[RankingResponse](t, third).Entries[0].ClientID)

	// AND: The previous generation's board is evicted
	stale, err := env.handler.Cache.Get(context.Background(), "ranking:week:2026-03-09:2:g0")
	require.NoError(t, err)
	assert.Nil(t, stale)
	current, err := env.handler.Cache.Get(context.Background(), "ranking:week:2026-03-09:2:g1")
	require.NoError(t, err)
	assert.JSONEq(t, third.Body.String(), string(current))
}

func TestGetRanking_ExplicitStart(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-a", Name: "A"})
	env.addOrder(t, "o1", "cli-a", testAnchor.AddDays(-7), "75", vip.OrderProcessed)

	rec := env.do(t, http.MethodGet, "/api/ranking?start=2026-03-02", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ranking := decode[RankingResponse](t, rec)
	assert.Equal(t, "2026-03-08", ranking.PeriodEnd)
	require.Len(t, ranking.Entries, 1)
	assert.Equal(t, "75.00", ranking.Entries[0].ValueSpent)
}

func TestGetRanking_NoCache(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Cache = nil

	rec := env.do(t, http.MethodGet, "/api/ranking", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Empty(t, decode[RankingResponse](t, rec).Entries)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestGetHistory(t *testing.T) {
	// GIVEN: VIP by count last week, nothing two weeks ago
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})
	for i := 0; i < 4; i++ {
		env.addOrder(t, "o"+string(rune('a'+i)), "cli-1", testAnchor.AddDays(-7+i), "10.00", vip.OrderProcessed)
	}

	// WHEN: Asking for two weeks, newest first
	rec := env.do(t, http.MethodGet, "/api/clients/cli-1/history?lookback=2&order=newest", nil)

	// THEN: Last week comes first and was VIP
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[HistoryResponse](t, rec)
	assert.Equal(t, "newest", history.Order)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "2026-03-02", history.Entries[0].WindowStart)
	assert.True(t, history.Entries[0].WasVip)
	assert.Equal(t, "40.00", history.Entries[0].ValueSpent)
	assert.Equal(t, "2026-02-23", history.Entries[1].WindowStart)
	assert.False(t, history.Entries[1].WasVip)

	// AND: Default order is oldest first
	rec = env.do(t, http.MethodGet, "/api/clients/cli-1/history?lookback=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-02-23", decode[HistoryResponse](t, rec).Entries[0].WindowStart)
}

func TestGetHistory_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.addClient(t, vip.Client{ID: "cli-1", Name: "Ana"})

	for _, q := range []string{"lookback=-1", "lookback=two", "order=random"} {
		t.Run(q, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/clients/cli-1/history?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/clients/cli-1/history?lookback=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[HistoryResponse](t, rec).Entries)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestPutConfig_YAML(t *testing.T) {
	env := newTestEnv(t)

	body := `
weekly_value_goal: "200.00"
weekly_order_goal: 6
combo_reward_value: "25.00"
week_start_date: "2026-03-10"
`
	rec := env.do(t, http.MethodPut, "/api/config", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg, err := env.store.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "200", cfg.DefaultWeeklyValueGoal.String())
	assert.Equal(t, 6, cfg.DefaultWeeklyOrderGoal)
	assert.Equal(t, "2026-03-10", cfg.DefaultMonthStartDate)
	assert.True(t, cfg.ComboMinOrderValue.Equal(vip.DefaultComboMinOrderValue))

	rec = env.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"weekly_value_goal":"200.00"`)
}

func TestPutConfig_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"weekly_value_goal": `, http.StatusBadRequest},
		{"missing goal", `{"weekly_order_goal": 4, "week_start_date": "2026-03-09"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"weekly_value_goal": "100", "weekly_order_goal": 4, "week_start_date": "09/03/2026"}`, http.StatusUnprocessableEntity},
		{"empty", ``, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/config", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	// The stored config is untouched
	cfg, err := env.store.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAnchor.String(), cfg.DefaultWeekStartDate)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "cache": "ok"}, decode[map[string]string](t, rec))
}
