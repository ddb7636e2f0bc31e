/*
refresh.go - Client refresh orchestration

PURPOSE:
  Persists what the engine computes. The core packages (vip, rewards) never
  decide when to run; this file is the caller that does, either from an
  HTTP request or from the RefreshScheduler.

ONE CLIENT REFRESH:
  1. Resolve the client's current week (and month) via vip.Resolve*
  2. Window rollover check:
       resolved week start != client.LastWeekResetDate  -> rolled over,
       the stored VIP flag belongs to an old window and is dropped
  3. Evaluate the window spend
  4. Hysteresis: within the same window a stored IsVip=true is kept even if
     the evaluation now says false (e.g. an order got cancelled). Status
     never flickers off mid-window.
  5. Combo grant through rewards.Manager (transition into VIP only)
  6. MarkEvaluated(isVip, weekStart, monthStart)
  7. Audit record in the RefreshLog

WINDOW ROLLING:
  The resolver only ever reads the stored start dates. RollWindows moves
  them forward: every start whose window ended before "today" is replaced
  by the start of the window that contains today, on the same grid.

SEE ALSO:
  - scheduler.go: periodic RefreshAll
  - rewards/combo.go: CanAwardCombo
*/
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/rewards"
	"github.com/warp/vip-engine/vip"
)

// RefreshOutcome is the result of refreshing one client.
type RefreshOutcome struct {
	ClientID   string
	Status     vip.EligibilityStatus
	IsVip      bool // persisted flag, after hysteresis
	RolledOver bool
	Grant      rewards.GrantResult
}

// RefreshSummary aggregates a RefreshAll run.
type RefreshSummary struct {
	Refreshed int
	Granted   int
	Failed    []*generic.ClientError
}

// Refresher runs refreshes against a Store.
type Refresher struct {
	Store Store
}

// NewRefresher creates a refresher.
func NewRefresher(store Store) *Refresher {
	return &Refresher{Store: store}
}

// RefreshClient re-evaluates one client and persists the outcome.
func (rf *Refresher) RefreshClient(ctx context.Context, clientID string) (RefreshOutcome, error) {
	ctx, span := tracer().Start(ctx, "vip.RefreshClient", trace.WithAttributes(attribute.String("client.id", clientID)))
	defer span.End()

	cfg, err := rf.Store.GetConfig(ctx)
	if err != nil {
		return RefreshOutcome{}, err
	}
	client, err := rf.Store.GetClient(ctx, clientID)
	if err != nil {
		return RefreshOutcome{}, err
	}
	orders, err := rf.Store.OrdersForClient(ctx, clientID)
	if err != nil {
		return RefreshOutcome{}, fmt.Errorf("load orders for %s: %w", clientID, err)
	}

	outcome, err := rf.refresh(ctx, client, cfg, orders)
	rf.record(ctx, clientID, outcome, err)
	return outcome, err
}

func (rf *Refresher) refresh(ctx context.Context, client *vip.Client, cfg *vip.StoreVipConfig, orders []vip.Order) (RefreshOutcome, error) {
	week, err := vip.ResolveWeek(client, cfg)
	if err != nil {
		return RefreshOutcome{ClientID: client.ID}, err
	}
	monthStart := client.LastMonthResetDate
	if month, err := vip.ResolveMonth(client, cfg); err == nil {
		monthStart = month.Start.String()
	} else {
		slog.Warn("month window unresolved, keeping last month start", "client_id", client.ID, "error", err)
	}

	status, err := vip.Evaluate(client, cfg, vip.Aggregate(client.ID, week, orders), vip.Lifetime(client.ID, orders))
	if err != nil {
		return RefreshOutcome{ClientID: client.ID}, err
	}
	status.Window = week

	held := vip.ApplyHysteresis(client, week, status)
	outcome := RefreshOutcome{
		ClientID:   client.ID,
		Status:     held,
		IsVip:      held.IsVip,
		RolledOver: vip.RolledOver(client, week),
	}

	// The grant rule compares against the flag as it stands for THIS window.
	before := *client
	before.IsVip = vip.StoredVip(client, week)
	manager := rewards.NewManager(rf.Store, *cfg)
	if outcome.Grant, err = manager.Grant(ctx, &before, status.IsVip); err != nil {
		return outcome, err
	}
	if outcome.Grant == rewards.GrantAwarded {
		outcome.Status.ComboAvailable = true
	}

	if err := rf.Store.MarkEvaluated(ctx, client.ID, outcome.IsVip, week.Start.String(), monthStart); err != nil {
		return outcome, fmt.Errorf("mark %s evaluated: %w", client.ID, err)
	}
	return outcome, nil
}

func (rf *Refresher) record(ctx context.Context, clientID string, outcome RefreshOutcome, refreshErr error) {
	run := vip.RefreshRun{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		IsVip:       outcome.IsVip,
		RolledOver:  outcome.RolledOver,
		GrantResult: string(outcome.Grant),
	}
	if !outcome.Status.Window.Start.IsZero() {
		run.WeekStart = outcome.Status.Window.Start.String()
	}
	if refreshErr != nil {
		run.Error = refreshErr.Error()
	}
	if err := rf.Store.SaveRefreshRun(ctx, run); err != nil {
		slog.Warn("failed to record refresh run", "client_id", clientID, "error", err)
	}
}

// RefreshAll refreshes every client. A failing client is reported in the
// summary and does not stop the others. Only a missing store config or a
// registry failure aborts the run.
func (rf *Refresher) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	ctx, span := tracer().Start(ctx, "vip.RefreshAll")
	defer span.End()

	var summary RefreshSummary

	cfg, err := rf.Store.GetConfig(ctx)
	if err != nil {
		return summary, err
	}
	clients, err := rf.Store.ListClients(ctx)
	if err != nil {
		return summary, fmt.Errorf("list clients: %w", err)
	}
	allOrders, err := rf.Store.AllOrders(ctx)
	if err != nil {
		return summary, fmt.Errorf("load orders: %w", err)
	}
	byClient := vip.GroupByClient(allOrders)

	for i := range clients {
		client := &clients[i]
		outcome, err := rf.refresh(ctx, client, cfg, byClient[client.ID])
		rf.record(ctx, client.ID, outcome, err)
		if err != nil {
			slog.Warn("client refresh failed", "client_id", client.ID, "error", err)
			summary.Failed = append(summary.Failed, &generic.ClientError{ClientID: client.ID, Err: err})
			continue
		}
		summary.Refreshed++
		if outcome.Grant == rewards.GrantAwarded {
			summary.Granted++
		}
	}

	span.SetAttributes(
		attribute.Int("refresh.refreshed", summary.Refreshed),
		attribute.Int("refresh.granted", summary.Granted),
		attribute.Int("refresh.failed", len(summary.Failed)),
	)
	return summary, nil
}

// RollWindows advances every stored window start whose window ended before
// today. Returns how many start dates moved. Malformed overrides are left
// untouched for an administrator to fix.
func (rf *Refresher) RollWindows(ctx context.Context, today generic.TimePoint) (int, error) {
	cfg, err := rf.Store.GetConfig(ctx)
	if err != nil {
		return 0, err
	}

	moved := 0
	newCfg := *cfg
	if next, ok := rollStart(generic.WindowWeek, cfg.DefaultWeekStartDate, today); ok {
		newCfg.DefaultWeekStartDate = next
		moved++
	}
	if next, ok := rollStart(generic.WindowMonth, cfg.DefaultMonthStartDate, today); ok {
		newCfg.DefaultMonthStartDate = next
		moved++
	}
	if newCfg != *cfg {
		if err := rf.Store.SaveConfig(ctx, newCfg); err != nil {
			return moved, fmt.Errorf("save rolled config: %w", err)
		}
	}

	clients, err := rf.Store.ListClients(ctx)
	if err != nil {
		return moved, fmt.Errorf("list clients: %w", err)
	}
	for _, c := range clients {
		changed := false
		if next, ok := rollStart(generic.WindowWeek, c.WeekStartOverride, today); ok {
			c.WeekStartOverride = next
			changed = true
			moved++
		}
		if next, ok := rollStart(generic.WindowMonth, c.MonthStartOverride, today); ok {
			c.MonthStartOverride = next
			changed = true
			moved++
		}
		if changed {
			if err := rf.Store.SaveClient(ctx, c); err != nil {
				return moved, fmt.Errorf("save rolled client %s: %w", c.ID, err)
			}
		}
	}

	if moved > 0 {
		slog.Info("windows rolled forward", "today", today.String(), "moved", moved)
	}
	return moved, nil
}

// rollStart returns the start of the window containing today when the
// window starting at current has already ended.
func rollStart(kind generic.WindowKind, current string, today generic.TimePoint) (string, bool) {
	if current == "" {
		return "", false
	}
	start, err := generic.ParseDate(current)
	if err != nil {
		return "", false
	}
	if !generic.WindowFrom(kind, start).End.Before(today) {
		return "", false
	}
	return generic.WindowContaining(kind, start, today).Start.String(), true
}
