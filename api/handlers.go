/*
handlers.go - HTTP API handlers for the VIP engine

PURPOSE:
  Exposes the VIP eligibility and rewards engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the vip and
  rewards packages.

ENDPOINTS:
  Clients:
    GET    /api/clients                     List clients
    POST   /api/clients                     Create client
    GET    /api/clients/{id}                Get client
    PUT    /api/clients/{id}                Update profile, goals, overrides
    DELETE /api/clients/{id}                Delete client and orders
    GET    /api/clients/{id}/status         Eligibility (?window=week|month)
    GET    /api/clients/{id}/history        Past weeks (?lookback=4&order=oldest|newest)
    GET    /api/clients/{id}/orders         Ledger rows for the client
    POST   /api/clients/{id}/orders         Append an order
    POST   /api/clients/{id}/combo/consume  Apply the combo to an order
    POST   /api/clients/{id}/refresh        Re-evaluate and persist

  Ranking:
    GET    /api/ranking                     Leaderboard (?window=week|month&top=10&start=YYYY-MM-DD)

  Config:
    GET    /api/config                      Store VIP configuration
    PUT    /api/config                      Replace it (JSON or YAML body)

  Admin:
    POST   /api/admin/refresh               Roll windows (optional) + refresh all
    GET    /api/admin/refresh/runs          Refresh audit log

ARCHITECTURE:
  Handler holds the store, the config factory and the leaderboard cache.
  The store VIP config is loaded per request and passed explicitly into
  the engine; nothing is read from package state.

LEADERBOARD CACHE:
  Key = window, period start, top N and the write generation. Every write
  that can change a leaderboard bumps the generation, so cached entries
  for older generations are never served again.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Client not found
  - 409: Combo already consumed
  - 422: Invalid date config, missing config, order below minimum
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - refresh.go: Refresh orchestration
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/vip-engine/cache"
	"github.com/warp/vip-engine/factory"
	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/rewards"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from persistence. Both store/sqlite and
// store/memory satisfy it.
type Store interface {
	vip.ClientRegistry
	vip.OrderLedger
	vip.ConfigStore
	vip.RefreshLog
	DeleteClient(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

const generationKey = "leaderboard:generation"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Store
	ConfigFactory *factory.ConfigFactory
	Refresher     *Refresher
	Cache         cache.Cache
	CacheTTL      time.Duration

	// Today is the clock used for defaults (order dates, scenario anchors).
	// The engine itself never reads it.
	Today func() generic.TimePoint

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. c may be nil to disable the leaderboard cache.
func NewHandler(store Store, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		Store:         store,
		ConfigFactory: factory.NewConfigFactory(),
		Refresher:     NewRefresher(store),
		Cache:         c,
		CacheTTL:      cacheTTL,
		Today:         generic.Today,
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns one client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.Store.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// CreateClient registers a client. The id is generated when omitted.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req SaveClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := r.Context()
	if _, err := h.Store.GetClient(ctx, req.ID); err == nil {
		writeError(w, http.StatusConflict, "Client already exists", nil)
		return
	}

	client, err := clientFromRequest(req.ID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client", err)
		return
	}
	if err := h.Store.SaveClient(ctx, client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save client", err)
		return
	}
	h.bumpGeneration(ctx)

	saved, err := h.Store.GetClient(ctx, client.ID)
	if err != nil {
		writeDomainError(w, "Failed to reload client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(*saved))
}

// UpdateClient replaces the profile, goals and overrides of a client. The
// VIP and combo flags are not writable here.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SaveClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.GetClient(ctx, id); err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	client, err := clientFromRequest(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client", err)
		return
	}
	if err := h.Store.SaveClient(ctx, client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save client", err)
		return
	}
	h.bumpGeneration(ctx)

	saved, err := h.Store.GetClient(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to reload client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*saved))
}

// DeleteClient removes a client.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete client", err)
		return
	}
	h.bumpGeneration(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func clientFromRequest(id string, req SaveClientRequest) (vip.Client, error) {
	if strings.TrimSpace(req.Name) == "" {
		return vip.Client{}, errors.New("name is required")
	}
	client := vip.Client{
		ID:                 id,
		Name:               req.Name,
		Phone:              req.Phone,
		WeeklyOrderGoal:    req.WeeklyOrderGoal,
		WeekStartOverride:  req.WeekStartOverride,
		MonthStartOverride: req.MonthStartOverride,
	}
	if req.WeeklyValueGoal != nil {
		goal, err := generic.ParseMoney(*req.WeeklyValueGoal)
		if err != nil {
			return vip.Client{}, fmt.Errorf("weekly_value_goal: %w", err)
		}
		if goal.IsNegative() {
			return vip.Client{}, errors.New("weekly_value_goal must not be negative")
		}
		client.WeeklyValueGoal = &goal
	}
	if req.WeeklyOrderGoal != nil && *req.WeeklyOrderGoal < 0 {
		return vip.Client{}, errors.New("weekly_order_goal must not be negative")
	}
	// A malformed override would make every evaluation of this client fail
	// with an invalid date config, so reject it on the way in.
	for field, v := range map[string]string{
		"week_start_override":  req.WeekStartOverride,
		"month_start_override": req.MonthStartOverride,
	} {
		if v == "" {
			continue
		}
		if _, err := generic.ParseDate(v); err != nil {
			return vip.Client{}, fmt.Errorf("%s: %w", field, err)
		}
	}
	return client, nil
}

// =============================================================================
// STATUS, HISTORY, REFRESH
// =============================================================================

// GetStatus evaluates a client for the current week or month.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	kind, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	cfg, client, orders, err := h.loadClient(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to load client", err)
		return
	}

	status, err := vip.EvaluateClient(kind, client, cfg, orders)
	if err != nil {
		writeDomainError(w, "Failed to evaluate client", err)
		return
	}
	if kind == generic.WindowWeek {
		status = vip.ApplyHysteresis(client, status.Window, status)
	}
	writeJSON(w, http.StatusOK, toStatusDTO(id, kind, status))
}

// GetHistory reconstructs past weekly windows.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	lookback := 4
	if v := r.URL.Query().Get("lookback"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid lookback", err)
			return
		}
		lookback = n
	}

	order := vip.OldestFirst
	orderName := "oldest"
	switch v := r.URL.Query().Get("order"); v {
	case "", "oldest":
	case "newest":
		order, orderName = vip.NewestFirst, "newest"
	default:
		writeError(w, http.StatusBadRequest, "Invalid order", fmt.Errorf("order must be oldest or newest, got %q", v))
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	ctx, span := tracer().Start(ctx, "vip.History", trace.WithAttributes(
		attribute.String("client.id", id),
		attribute.Int("history.lookback", lookback),
	))
	defer span.End()

	cfg, client, orders, err := h.loadClient(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to load client", err)
		return
	}

	entries, err := vip.History(client, cfg, orders, lookback, order)
	if err != nil {
		writeDomainError(w, "Failed to reconstruct history", err)
		return
	}

	resp := HistoryResponse{ClientID: id, Order: orderName, Entries: make([]HistoryEntryDTO, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = HistoryEntryDTO{
			WindowStart: e.WindowStart.String(),
			WindowEnd:   e.WindowEnd.String(),
			WasVip:      e.WasVip,
			ValueSpent:  e.ValueSpent.StringFixed(2),
			OrderCount:  e.OrderCount,
			TierAtTime:  string(e.TierAtTime),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshClient re-evaluates one client and persists the flag and grant.
func (h *Handler) RefreshClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := h.Refresher.RefreshClient(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to refresh client", err)
		return
	}
	h.bumpGeneration(r.Context())

	writeJSON(w, http.StatusOK, RefreshDTO{
		Status:     toStatusDTO(id, generic.WindowWeek, outcome.Status),
		IsVip:      outcome.IsVip,
		RolledOver: outcome.RolledOver,
		Grant:      string(outcome.Grant),
	})
}

// RefreshAll optionally rolls windows forward, then refreshes every client.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	ctx := r.Context()
	var resp RefreshSummaryDTO
	if req.Roll {
		today := h.Today()
		if req.Today != "" {
			t, err := generic.ParseDate(req.Today)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid today", err)
				return
			}
			today = t
		}
		rolled, err := h.Refresher.RollWindows(ctx, today)
		if err != nil {
			writeDomainError(w, "Failed to roll windows", err)
			return
		}
		resp.Rolled = rolled
	}

	summary, err := h.Refresher.RefreshAll(ctx)
	if err != nil {
		writeDomainError(w, "Failed to refresh clients", err)
		return
	}
	h.bumpGeneration(ctx)

	resp.Refreshed = summary.Refreshed
	resp.Granted = summary.Granted
	resp.Failed = toClientErrorDTOs(summary.Failed)
	writeJSON(w, http.StatusOK, resp)
}

// ListRefreshRuns returns the refresh audit log, newest first.
func (h *Handler) ListRefreshRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Store.ListRefreshRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list refresh runs", err)
		return
	}

	dtos := make([]RefreshRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = RefreshRunDTO{
			ID:          run.ID,
			ClientID:    run.ClientID,
			WeekStart:   run.WeekStart,
			IsVip:       run.IsVip,
			RolledOver:  run.RolledOver,
			GrantResult: run.GrantResult,
			Error:       run.Error,
			CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ORDERS AND COMBO
// =============================================================================

// ListOrders returns a client's orders, oldest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetClient(ctx, id); err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}
	orders, err := h.Store.OrdersForClient(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordOrder appends an order to the ledger.
func (h *Handler) RecordOrder(w http.ResponseWriter, r *http.Request) {
	var req RecordOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetClient(ctx, id); err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	order, err := h.orderFromRequest(id, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order", err)
		return
	}
	if err := h.Store.RecordOrder(ctx, order); err != nil {
		writeError(w, http.StatusConflict, "Failed to record order", err)
		return
	}
	h.bumpGeneration(ctx)

	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *Handler) orderFromRequest(clientID string, req RecordOrderRequest) (vip.Order, error) {
	amount, err := generic.ParseMoney(req.Amount)
	if err != nil {
		return vip.Order{}, fmt.Errorf("amount: %w", err)
	}

	occurredAt := h.Today()
	if req.OccurredAt != "" {
		if occurredAt, err = generic.ParseDate(req.OccurredAt); err != nil {
			return vip.Order{}, fmt.Errorf("occurred_at: %w", err)
		}
	}

	status := vip.OrderProcessed
	if req.Status != "" {
		if status, err = vip.ParseOrderStatus(req.Status); err != nil {
			return vip.Order{}, err
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return vip.Order{
		ID:         id,
		ClientID:   clientID,
		Amount:     amount,
		OccurredAt: occurredAt,
		Status:     status,
	}, nil
}

// ConsumeCombo applies the client's combo to an order. The minimum order
// value is checked first; the registry's conditional update decides races.
func (h *Handler) ConsumeCombo(w http.ResponseWriter, r *http.Request) {
	var req ConsumeComboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := generic.ParseMoney(req.OrderAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order_amount", err)
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil {
		writeDomainError(w, "Failed to load store config", err)
		return
	}

	manager := rewards.NewManager(h.Store, *cfg)
	result, err := manager.ConsumeForOrder(ctx, id, amount)
	if err == nil {
		err = result.Err()
	}
	if err != nil {
		writeDomainError(w, "Combo not applied", err)
		return
	}

	writeJSON(w, http.StatusOK, ConsumeComboResponse{
		ClientID: id,
		Result:   string(result),
		Discount: manager.RewardValue().StringFixed(2),
	})
}

// =============================================================================
// RANKING
// =============================================================================

// GetRanking returns the leaderboard for one shared period.
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	kind, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	topN := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if topN, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid top", err)
			return
		}
	}

	ctx := r.Context()
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil {
		writeDomainError(w, "Failed to load store config", err)
		return
	}

	var period generic.Period
	if v := r.URL.Query().Get("start"); v != "" {
		start, err := generic.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start", err)
			return
		}
		period = generic.WindowFrom(kind, start)
	} else if period, err = vip.Resolve(kind, nil, cfg); err != nil {
		writeDomainError(w, "Failed to resolve period", err)
		return
	}

	key, stale := h.rankingKeys(ctx, kind, period, topN)
	if cached := h.cacheGet(ctx, key); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	resp, err := h.computeRanking(ctx, cfg, kind, period, topN)
	if err != nil {
		writeDomainError(w, "Failed to compute ranking", err)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode ranking", err)
		return
	}
	h.cacheSet(ctx, key, body)
	h.cacheDelete(ctx, stale)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) computeRanking(ctx context.Context, cfg *vip.StoreVipConfig, kind generic.WindowKind, period generic.Period, topN int) (RankingResponse, error) {
	ctx, span := tracer().Start(ctx, "vip.Rank", trace.WithAttributes(
		attribute.String("ranking.window", string(kind)),
		attribute.String("ranking.start", period.Start.String()),
		attribute.Int("ranking.top", topN),
	))
	defer span.End()

	clients, err := h.Store.ListClients(ctx)
	if err != nil {
		return RankingResponse{}, fmt.Errorf("list clients: %w", err)
	}
	orders, err := h.Store.AllOrders(ctx)
	if err != nil {
		return RankingResponse{}, fmt.Errorf("load orders: %w", err)
	}

	result, err := vip.Rank(clients, orders, cfg, period, topN)
	if err != nil {
		return RankingResponse{}, err
	}
	span.SetAttributes(attribute.Int("ranking.skipped", len(result.Skipped)))
	return toRankingResponse(kind, topN, result), nil
}

// rankingKeys returns the cache key for the current write generation and
// the key the same board had one generation earlier.
func (h *Handler) rankingKeys(ctx context.Context, kind generic.WindowKind, period generic.Period, topN int) (string, string) {
	var gen int64
	if h.Cache != nil {
		var err error
		if gen, err = h.Cache.Counter(ctx, generationKey); err != nil {
			slog.Warn("cache generation unavailable", "error", err)
		}
	}
	key := func(g int64) string {
		return fmt.Sprintf("ranking:%s:%s:%d:g%d", kind, period.Start.String(), topN, g)
	}
	if gen == 0 {
		return key(0), ""
	}
	return key(gen), key(gen - 1)
}

// =============================================================================
// CONFIG
// =============================================================================

// GetConfig returns the store VIP configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.GetConfig(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load store config", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.ToDocument(*cfg))
}

// PutConfig replaces the store VIP configuration from a JSON or YAML body.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	cfg, err := h.ConfigFactory.Parse(body)
	if err != nil {
		if generic.IsConfigError(err) {
			writeError(w, http.StatusUnprocessableEntity, "Invalid store config", err)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid store config", err)
		}
		return
	}

	ctx := r.Context()
	if err := h.Store.SaveConfig(ctx, *cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save store config", err)
		return
	}
	h.bumpGeneration(ctx)
	writeJSON(w, http.StatusOK, h.ConfigFactory.ToDocument(*cfg))
}

// Health pings the cache.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "cache": "disabled"}
	if h.Cache != nil {
		status["cache"] = "ok"
		if err := h.Cache.Ping(r.Context()); err != nil {
			status["status"], status["cache"] = "degraded", err.Error()
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// ResetDatabase clears clients, orders and refresh runs.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.bumpGeneration(r.Context())

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadClient(ctx context.Context, id string) (*vip.StoreVipConfig, *vip.Client, []vip.Order, error) {
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := h.Store.GetClient(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	orders, err := h.Store.OrdersForClient(ctx, id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load orders for %s: %w", id, err)
	}
	return cfg, client, orders, nil
}

func windowParam(r *http.Request) (generic.WindowKind, error) {
	v := r.URL.Query().Get("window")
	if v == "" {
		return generic.WindowWeek, nil
	}
	return generic.ParseWindowKind(v)
}

func (h *Handler) bumpGeneration(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if _, err := h.Cache.Incr(ctx, generationKey); err != nil {
		slog.Warn("failed to bump leaderboard generation", "error", err)
	}
}

func (h *Handler) cacheGet(ctx context.Context, key string) []byte {
	if h.Cache == nil {
		return nil
	}
	val, err := h.Cache.Get(ctx, key)
	if err != nil {
		slog.Warn("leaderboard cache read failed", "key", key, "error", err)
		return nil
	}
	return val
}

func (h *Handler) cacheSet(ctx context.Context, key string, value []byte) {
	if h.Cache == nil || h.CacheTTL <= 0 {
		return
	}
	if err := h.Cache.Set(ctx, key, value, h.CacheTTL); err != nil {
		slog.Warn("leaderboard cache write failed", "key", key, "error", err)
	}
}

func (h *Handler) cacheDelete(ctx context.Context, key string) {
	if h.Cache == nil || key == "" {
		return
	}
	if err := h.Cache.Delete(ctx, key); err != nil {
		slog.Warn("leaderboard cache evict failed", "key", key, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrAlreadyConsumed):
		return http.StatusConflict
	case generic.IsConfigError(err), errors.Is(err, generic.ErrBelowMinimumOrder):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func strPtr(s string) *string {
	return &s
}
