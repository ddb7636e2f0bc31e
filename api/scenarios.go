/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	restaurant data: a VIP program, clients and their order history.
	Every scenario is anchored on "today" so the current window always
	contains fresh orders.

AVAILABLE SCENARIOS:

	weekly-regulars:  value-path VIP, count-path VIP, near miss, custom goals
	window-overrides: clients whose week starts on a different day
	combo-lifecycle:  a VIP with a granted combo, one already spent
	leaderboard:      a dozen clients with a tie for the ranking screen

HOW SCENARIOS WORK:
 1. Reset store (clients, orders, refresh runs)
 2. Save the store VIP config from a preset document (factory)
 3. Create clients
 4. Record orders in the current and past windows
 5. Refresh every client so flags and combos are persisted

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "weekly-regulars"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - vip/presets.go: program documents
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-regulars",
		Name:        "Weekly Regulars",
		Description: "VIP by value, VIP by order count, a near miss and a client with custom goals",
	},
	{
		ID:          "window-overrides",
		Name:        "Window Overrides",
		Description: "Clients whose VIP week starts on their own day instead of the store default",
	},
	{
		ID:          "combo-lifecycle",
		Name:        "Combo Lifecycle",
		Description: "Combo granted on becoming VIP, one client has already used it this week",
	},
	{
		ID:          "leaderboard",
		Name:        "Leaderboard",
		Description: "Twelve clients with spread-out spend and a tie for the top-N ranking",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context, generic.TimePoint) error
	switch req.ScenarioID {
	case "weekly-regulars":
		loader = h.loadWeeklyRegularsScenario
	case "window-overrides":
		loader = h.loadWindowOverridesScenario
	case "combo-lifecycle":
		loader = h.loadComboLifecycleScenario
	case "leaderboard":
		loader = h.loadLeaderboardScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := loader(ctx, h.Today()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	if _, err := h.Refresher.RefreshAll(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh scenario clients", err)
		return
	}
	h.bumpGeneration(ctx)

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// Store windows start two days before today, so today is day 3 of the week.
func scenarioAnchor(today generic.TimePoint) generic.TimePoint {
	return today.AddDays(-2)
}

func (h *Handler) loadWeeklyRegularsScenario(ctx context.Context, today generic.TimePoint) error {
	anchor := scenarioAnchor(today)
	if err := h.saveProgram(ctx, vip.NeighborhoodProgramJSON(anchor.String())); err != nil {
		return err
	}

	// Goals: R$150 or 4 orders.
	clients := []vip.Client{
		{ID: "cli-ana", Name: "Ana Souza", Phone: "+55 11 91234-0001"},
		{ID: "cli-bruno", Name: "Bruno Lima", Phone: "+55 11 91234-0002"},
		{ID: "cli-carla", Name: "Carla Mendes", Phone: "+55 11 91234-0003"},
		{ID: "cli-diego", Name: "Diego Rocha", WeeklyValueGoal: moneyPtr("100"), WeeklyOrderGoal: intPtr(2)},
		{ID: "cli-elena", Name: "Elena Castro"},
	}
	if err := h.saveClients(ctx, clients); err != nil {
		return err
	}

	return h.recordOrders(ctx, []scenarioOrder{
		// Ana: four small lunches, VIP by count.
		processed("cli-ana", anchor, "22.50"),
		processed("cli-ana", anchor, "18.00"),
		processed("cli-ana", anchor.AddDays(1), "25.00"),
		processed("cli-ana", anchor.AddDays(2), "21.90"),
		// Bruno: two big dinners, VIP by value.
		processed("cli-bruno", anchor, "95.00"),
		processed("cli-bruno", anchor.AddDays(1), "88.40"),
		// Carla: three orders, R$80 total. Not VIP yet.
		processed("cli-carla", anchor, "30.00"),
		processed("cli-carla", anchor.AddDays(1), "25.00"),
		processed("cli-carla", anchor.AddDays(2), "25.00"),
		// Carla's cancelled order does not count.
		cancelled("cli-carla", anchor.AddDays(2), "60.00"),
		// Diego: custom goals R$100 or 2 orders.
		processed("cli-diego", anchor.AddDays(1), "120.00"),
		// Last weeks, for history and tiers.
		processed("cli-ana", anchor.AddDays(-7), "30.00"),
		processed("cli-ana", anchor.AddDays(-6), "30.00"),
		processed("cli-ana", anchor.AddDays(-5), "30.00"),
		processed("cli-ana", anchor.AddDays(-4), "30.00"),
		processed("cli-bruno", anchor.AddDays(-14), "210.00"),
		processed("cli-bruno", anchor.AddDays(-10), "240.00"),
		processed("cli-elena", anchor.AddDays(-21), "45.00"),
	})
}

func (h *Handler) loadWindowOverridesScenario(ctx context.Context, today generic.TimePoint) error {
	anchor := scenarioAnchor(today)
	if err := h.saveProgram(ctx, vip.LunchClubProgramJSON(anchor.String())); err != nil {
		return err
	}

	// Goals: R$120 or 5 orders.
	clients := []vip.Client{
		{ID: "cli-fabio", Name: "Fábio Nunes"},
		{ID: "cli-gabi", Name: "Gabriela Reis", WeekStartOverride: today.String(), MonthStartOverride: today.String()},
		{ID: "cli-hugo", Name: "Hugo Pires", WeekStartOverride: anchor.AddDays(-5).String()},
	}
	if err := h.saveClients(ctx, clients); err != nil {
		return err
	}

	// The same three orders land in different windows per client.
	orders := make([]scenarioOrder, 0, 9)
	for _, id := range []string{"cli-fabio", "cli-gabi", "cli-hugo"} {
		orders = append(orders,
			processed(id, anchor.AddDays(-1), "50.00"),
			processed(id, anchor, "40.00"),
			processed(id, today, "45.00"),
		)
	}
	return h.recordOrders(ctx, orders)
}

func (h *Handler) loadComboLifecycleScenario(ctx context.Context, today generic.TimePoint) error {
	anchor := scenarioAnchor(today)
	if err := h.saveProgram(ctx, vip.NeighborhoodProgramJSON(anchor.String())); err != nil {
		return err
	}

	clients := []vip.Client{
		{ID: "cli-iris", Name: "Íris Prado"},
		{ID: "cli-joao", Name: "João Teixeira"},
		{ID: "cli-karen", Name: "Karen Alves"},
	}
	if err := h.saveClients(ctx, clients); err != nil {
		return err
	}

	if err := h.recordOrders(ctx, []scenarioOrder{
		processed("cli-iris", anchor, "160.00"),
		processed("cli-joao", anchor, "80.00"),
		processed("cli-joao", anchor.AddDays(1), "90.00"),
		processed("cli-karen", anchor, "40.00"),
	}); err != nil {
		return err
	}

	// João becomes VIP and spends the combo right away.
	if _, err := h.Refresher.RefreshClient(ctx, "cli-joao"); err != nil {
		return err
	}
	_, err := h.Store.ConsumeCombo(ctx, "cli-joao")
	return err
}

func (h *Handler) loadLeaderboardScenario(ctx context.Context, today generic.TimePoint) error {
	anchor := scenarioAnchor(today)
	if err := h.saveProgram(ctx, vip.HighVolumeProgramJSON(anchor.String())); err != nil {
		return err
	}

	names := []string{
		"Lara Gomes", "Marcos Dias", "Nina Farias", "Otávio Melo",
		"Paula Brito", "Rafael Cunha", "Sara Lopes", "Tiago Moraes",
		"Úrsula Vieira", "Vitor Santos", "Wagner Ramos", "Yasmin Costa",
	}
	clients := make([]vip.Client, len(names))
	var orders []scenarioOrder
	for i, name := range names {
		id := fmt.Sprintf("cli-%02d", i+1)
		clients[i] = vip.Client{ID: id, Name: name}
		// Spend falls with i; clients 4 and 5 tie.
		spend := 40 * (len(names) - i)
		if i == 4 {
			spend = 40 * (len(names) - 3)
		}
		orders = append(orders,
			processed(id, anchor, fmt.Sprintf("%d.00", spend/2)),
			processed(id, anchor.AddDays(1), fmt.Sprintf("%d.00", spend-spend/2)),
		)
	}
	if err := h.saveClients(ctx, clients); err != nil {
		return err
	}
	return h.recordOrders(ctx, orders)
}

// =============================================================================
// HELPERS
// =============================================================================

type scenarioOrder struct {
	clientID string
	day      generic.TimePoint
	amount   string
	status   vip.OrderStatus
}

func processed(clientID string, day generic.TimePoint, amount string) scenarioOrder {
	return scenarioOrder{clientID: clientID, day: day, amount: amount, status: vip.OrderProcessed}
}

func cancelled(clientID string, day generic.TimePoint, amount string) scenarioOrder {
	return scenarioOrder{clientID: clientID, day: day, amount: amount, status: vip.OrderCancelled}
}

func (h *Handler) saveProgram(ctx context.Context, doc string) error {
	cfg, err := h.ConfigFactory.Parse([]byte(doc))
	if err != nil {
		return err
	}
	return h.Store.SaveConfig(ctx, *cfg)
}

func (h *Handler) saveClients(ctx context.Context, clients []vip.Client) error {
	for _, c := range clients {
		if err := h.Store.SaveClient(ctx, c); err != nil {
			return fmt.Errorf("save client %s: %w", c.ID, err)
		}
	}
	return nil
}

func (h *Handler) recordOrders(ctx context.Context, orders []scenarioOrder) error {
	seq := make(map[string]int)
	for _, o := range orders {
		seq[o.clientID]++
		amount, err := generic.ParseMoney(o.amount)
		if err != nil {
			return err
		}
		order := vip.Order{
			ID:         fmt.Sprintf("%s-o%02d", o.clientID, seq[o.clientID]),
			ClientID:   o.clientID,
			Amount:     amount,
			OccurredAt: o.day,
			Status:     o.status,
		}
		if err := h.Store.RecordOrder(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

func moneyPtr(s string) *generic.Money {
	m := generic.MustParseMoney(s)
	return &m
}

func intPtr(n int) *int {
	return &n
}
