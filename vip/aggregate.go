package vip

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// SPEND AGGREGATOR
// =============================================================================

// Aggregate sums a client's counted orders with OccurredAt in [period.Start,
// period.End], both ends inclusive. Pending, cancelled and non-positive
// orders are skipped. An empty slice yields zero spend.
func Aggregate(clientID string, period generic.Period, orders []Order) Spend {
	spend := Spend{ValueSpent: decimal.Zero}
	for _, o := range orders {
		if o.ClientID != clientID || !o.Counts() {
			continue
		}
		if !period.Contains(o.OccurredAt) {
			continue
		}
		spend.ValueSpent = spend.ValueSpent.Add(o.Amount)
		spend.OrderCount++
	}
	return spend
}

// Lifetime sums every counted order of the client.
func Lifetime(clientID string, orders []Order) Spend {
	return LifetimeUntil(clientID, orders, generic.TimePoint{})
}

// LifetimeUntil sums counted orders up to and including until. A zero
// until means no bound.
func LifetimeUntil(clientID string, orders []Order, until generic.TimePoint) Spend {
	spend := Spend{ValueSpent: decimal.Zero}
	for _, o := range orders {
		if o.ClientID != clientID || !o.Counts() {
			continue
		}
		if !until.IsZero() && o.OccurredAt.After(until) {
			continue
		}
		spend.ValueSpent = spend.ValueSpent.Add(o.Amount)
		spend.OrderCount++
	}
	return spend
}

// AggregateFromLedger fetches the client's orders for the period and
// aggregates them.
func AggregateFromLedger(ctx context.Context, ledger OrderLedger, clientID string, period generic.Period) (Spend, error) {
	orders, err := ledger.OrdersInRange(ctx, clientID, period.Start, period.End)
	if err != nil {
		return Spend{}, fmt.Errorf("load orders for %s: %w", clientID, err)
	}
	return Aggregate(clientID, period, orders), nil
}

// GroupByClient indexes orders by client id, preserving order.
func GroupByClient(orders []Order) map[string][]Order {
	grouped := make(map[string][]Order)
	for _, o := range orders {
		grouped[o.ClientID] = append(grouped[o.ClientID], o)
	}
	return grouped
}
