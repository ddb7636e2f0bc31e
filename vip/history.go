package vip

import (
	"fmt"

	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// HISTORY RECONSTRUCTOR
// =============================================================================
//
// Walks back from the client's current week one full week at a time and
// re-runs the eligibility calculator on each past window.
//
// Past windows are judged with the CURRENT goals and overrides. Goal
// changes made by an administrator therefore rewrite history. Historical
// configuration is not tracked.

// HistoryOrder fixes the order of the returned entries.
type HistoryOrder int

const (
	// OldestFirst returns the furthest window first, ending with the week
	// right before the current one.
	OldestFirst HistoryOrder = iota
	// NewestFirst starts with the week right before the current one.
	NewestFirst
)

// History returns one entry per past weekly window, lookback windows deep.
// The current window is not included. TierAtTime uses lifetime totals up
// to the end of that window.
func History(client *Client, cfg *StoreVipConfig, orders []Order, lookback int, order HistoryOrder) ([]HistoryEntry, error) {
	if client == nil || cfg == nil {
		return nil, generic.ErrMissingConfiguration
	}
	if lookback < 0 {
		return nil, fmt.Errorf("%w: got %d", generic.ErrInvalidLookback, lookback)
	}

	current, err := ResolveWeek(client, cfg)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, lookback)
	window := current
	for i := 0; i < lookback; i++ {
		window = window.PreviousWeek()

		spend := Aggregate(client.ID, window, orders)
		status, err := Evaluate(client, cfg, spend, LifetimeUntil(client.ID, orders, window.End))
		if err != nil {
			return nil, err
		}

		// i walks newest -> oldest.
		idx := i
		if order == OldestFirst {
			idx = lookback - 1 - i
		}
		entries[idx] = HistoryEntry{
			WindowStart: window.Start,
			WindowEnd:   window.End,
			WasVip:      status.IsVip,
			ValueSpent:  status.ValueSpent,
			OrderCount:  status.OrderCount,
			TierAtTime:  status.Tier,
		}
	}
	return entries, nil
}
