package vip

import (
	"fmt"
	"log/slog"

	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// ELIGIBILITY CALCULATOR
// =============================================================================

// Goals are the thresholds a client is measured against this window.
type Goals struct {
	Value generic.Money
	Order int
}

// EffectiveGoals applies client ?? store default to both thresholds.
func EffectiveGoals(client *Client, cfg *StoreVipConfig) (Goals, error) {
	if client == nil || cfg == nil {
		return Goals{}, generic.ErrMissingConfiguration
	}
	goals := Goals{Value: cfg.DefaultWeeklyValueGoal, Order: cfg.DefaultWeeklyOrderGoal}
	if client.WeeklyValueGoal != nil {
		goals.Value = *client.WeeklyValueGoal
	}
	if client.WeeklyOrderGoal != nil {
		goals.Order = *client.WeeklyOrderGoal
	}
	if goals.Value.IsNegative() || goals.Order < 0 {
		return Goals{}, fmt.Errorf("%w: negative goal for client %s", generic.ErrInvalidClient, client.ID)
	}
	return goals, nil
}

// Meets is the VIP predicate: value goal OR order goal, boundary inclusive.
func (g Goals) Meets(s Spend) bool {
	return s.ValueSpent.GreaterThanOrEqual(g.Value) || s.OrderCount >= g.Order
}

// Evaluate combines the window spend with the effective goals, and the
// lifetime spend with the tier thresholds. A missing client or config is an
// error; substituting zero goals would make everyone VIP.
func Evaluate(client *Client, cfg *StoreVipConfig, window, lifetime Spend) (EligibilityStatus, error) {
	goals, err := EffectiveGoals(client, cfg)
	if err != nil {
		return EligibilityStatus{}, err
	}

	status := EligibilityStatus{
		ValueSpent:       window.ValueSpent,
		OrderCount:       window.OrderCount,
		ValueProgressPct: generic.ProgressPct(window.ValueSpent, goals.Value),
		OrderProgressPct: generic.CountProgressPct(window.OrderCount, goals.Order),
		IsVip:            goals.Meets(window),
		ComboAvailable:   client.ComboAvailable,
		Tier:             ClassifyTier(lifetime),
		ValueGoal:        goals.Value,
		OrderGoal:        goals.Order,
	}

	slog.Debug("vip status evaluated",
		"client_id", client.ID,
		"value_spent", status.ValueSpent.String(),
		"order_count", status.OrderCount,
		"is_vip", status.IsVip,
		"tier", status.Tier,
	)
	return status, nil
}

// EvaluateClient runs the full pipeline for the client's current window of
// the given kind: resolve, aggregate, evaluate. orders may hold other
// clients' orders; they are filtered out.
func EvaluateClient(kind generic.WindowKind, client *Client, cfg *StoreVipConfig, orders []Order) (EligibilityStatus, error) {
	if client == nil || cfg == nil {
		return EligibilityStatus{}, generic.ErrMissingConfiguration
	}
	window, err := Resolve(kind, client, cfg)
	if err != nil {
		return EligibilityStatus{}, err
	}
	status, err := Evaluate(client, cfg, Aggregate(client.ID, window, orders), Lifetime(client.ID, orders))
	if err != nil {
		return EligibilityStatus{}, err
	}
	status.Window = window
	return status, nil
}
