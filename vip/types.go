/*
Package vip implements VIP eligibility for restaurant clients.

PURPOSE:
  Decides, for every client, whether they are VIP in the current rolling
  window, how far they are from the weekly goals, which lifetime tier they
  belong to, where they rank against other clients, and what their past
  windows looked like.

PIPELINE:
  client + StoreVipConfig
    -> Period Resolver   (resolver.go)  effective start -> window
    -> Spend Aggregator  (aggregate.go) processed orders in window
    -> Eligibility       (eligibility.go, tier.go)
    -> Ranking / History (ranking.go, history.go) run the same steps
       across many clients or many windows

TWO INDEPENDENT AXES:
  - IsVip: current window only, value goal OR order goal
  - Tier:  lifetime totals only (new, regular, vip, premium)
  A client can be a "premium" tier regular who is not VIP this week.

CONFIGURATION:
  StoreVipConfig is always passed in explicitly. There is no package-level
  configuration, so an evaluation is reproducible from its arguments.

SEE ALSO:
  - rewards/: combo grant and consumption
  - store/: registry and ledger implementations
*/
package vip

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is a registry record. Goals and window overrides are optional; an
// unset field falls back to the store-wide configuration.
type Client struct {
	ID    string
	Name  string
	Phone string

	WeeklyValueGoal *generic.Money // nil = store default
	WeeklyOrderGoal *int           // nil = store default

	WeekStartOverride  string // ISO date, "" = store default
	MonthStartOverride string // ISO date, "" = store default

	IsVip          bool
	ComboAvailable bool

	LastWeekResetDate  string // last week start the client was evaluated against
	LastMonthResetDate string // last month start the client was evaluated against

	CreatedAt time.Time
}

// =============================================================================
// STORE CONFIGURATION
// =============================================================================

// StoreVipConfig holds the store-wide defaults. It is owned by the
// administrators; the engine only reads it.
type StoreVipConfig struct {
	DefaultWeeklyValueGoal generic.Money
	DefaultWeeklyOrderGoal int
	ComboRewardValue       generic.Money
	ComboMinOrderValue     generic.Money
	DefaultWeekStartDate   string // ISO date
	DefaultMonthStartDate  string // ISO date
}

// DefaultComboMinOrderValue is used when a config leaves the minimum unset.
var DefaultComboMinOrderValue = decimal.NewFromInt(30)

// DefaultStoreVipConfig returns the configuration a fresh store starts with.
// Windows are anchored on the given date.
func DefaultStoreVipConfig(anchor generic.TimePoint) StoreVipConfig {
	return StoreVipConfig{
		DefaultWeeklyValueGoal: decimal.NewFromInt(150),
		DefaultWeeklyOrderGoal: 4,
		ComboRewardValue:       decimal.NewFromInt(20),
		ComboMinOrderValue:     DefaultComboMinOrderValue,
		DefaultWeekStartDate:   anchor.String(),
		DefaultMonthStartDate:  anchor.String(),
	}
}

// Validate checks the numeric fields. Dates are checked when a window is
// resolved, so that the error names the window that failed.
func (c StoreVipConfig) Validate() error {
	if c.DefaultWeeklyValueGoal.IsNegative() {
		return fmt.Errorf("%w: default weekly value goal is negative", generic.ErrMissingConfiguration)
	}
	if c.DefaultWeeklyOrderGoal < 0 {
		return fmt.Errorf("%w: default weekly order goal is negative", generic.ErrMissingConfiguration)
	}
	if c.ComboRewardValue.IsNegative() {
		return fmt.Errorf("%w: combo reward value is negative", generic.ErrMissingConfiguration)
	}
	if !c.ComboMinOrderValue.IsPositive() {
		return fmt.Errorf("%w: combo minimum order value must be positive", generic.ErrMissingConfiguration)
	}
	return nil
}

// =============================================================================
// ORDER
// =============================================================================

type OrderStatus string

const (
	OrderProcessed OrderStatus = "processed"
	OrderPending   OrderStatus = "pending"
	OrderCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus accepts the three ledger statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderProcessed, OrderPending, OrderCancelled:
		return OrderStatus(s), nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Order is a read-only ledger row.
type Order struct {
	ID         string
	ClientID   string
	Amount     generic.Money
	OccurredAt generic.TimePoint
	Status     OrderStatus
}

// Counts reports whether the order contributes to spend and order totals.
func (o Order) Counts() bool {
	return o.Status == OrderProcessed && o.Amount.IsPositive()
}

// =============================================================================
// DERIVED RESULTS
// =============================================================================

// Spend is the aggregate of a client's counted orders over some range.
type Spend struct {
	ValueSpent generic.Money
	OrderCount int
}

// Tier is the lifetime classification, independent of the VIP flag.
type Tier string

const (
	TierNew     Tier = "new"
	TierRegular Tier = "regular"
	TierVip     Tier = "vip"
	TierPremium Tier = "premium"
)

// EligibilityStatus is the single status shape shared by the status view,
// ranking and history. It is computed per call and never cached.
type EligibilityStatus struct {
	ValueSpent       generic.Money
	OrderCount       int
	ValueProgressPct decimal.Decimal
	OrderProgressPct decimal.Decimal
	IsVip            bool
	Retained         bool // IsVip kept from an earlier evaluation this window
	ComboAvailable   bool
	Tier             Tier

	ValueGoal generic.Money
	OrderGoal int
	Window    generic.Period
}

// RankingEntry is one row of a leaderboard.
type RankingEntry struct {
	ClientID   string
	ClientName string
	Rank       int
	ValueSpent generic.Money
	OrderCount int
	Tier       Tier
	IsVip      bool
}

// HistoryEntry is the outcome of one past weekly window.
type HistoryEntry struct {
	WindowStart generic.TimePoint
	WindowEnd   generic.TimePoint
	WasVip      bool
	ValueSpent  generic.Money
	OrderCount  int
	TierAtTime  Tier
}
