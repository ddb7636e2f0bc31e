/*
store.go - Interfaces to the collaborators the engine reads from

PURPOSE:
  The engine does not own orders, clients or the store configuration. These
  interfaces describe what it needs from whoever does.

KEY INTERFACES:
  OrderLedger:    read access to orders (plus RecordOrder for admin seeding)
  ClientRegistry: client records and the two conditional combo updates
  ConfigStore:    the StoreVipConfig record
  RefreshLog:     audit of refresh runs (outside the core)

COMBO WRITES:
  ConsumeCombo and GrantCombo are compare-and-set operations. They return
  true only when this call flipped the flag:

    ConsumeCombo: combo_available true  -> false
    GrantCombo:   combo_available false -> true

  An unconditional write would let two concurrent orders both spend the
  same combo. Implementations must make the check and the write atomic.

IMPLEMENTATIONS:
  - store/memory: in-memory, mutex protected
  - store/sqlite: UPDATE ... WHERE combo_available = ? + RowsAffected

SEE ALSO:
  - rewards/combo.go: the only caller of the combo writes
*/
package vip

import (
	"context"
	"time"

	"github.com/warp/vip-engine/generic"
)

// OrderLedger is the order source of truth. Read-only from the engine.
type OrderLedger interface {
	// OrdersForClient returns every order of a client, oldest first.
	OrdersForClient(ctx context.Context, clientID string) ([]Order, error)

	// OrdersInRange returns a client's orders with OccurredAt in [from, to].
	OrdersInRange(ctx context.Context, clientID string, from, to generic.TimePoint) ([]Order, error)

	// AllOrders returns every order in the ledger, oldest first.
	AllOrders(ctx context.Context) ([]Order, error)

	// RecordOrder appends an order. Used by the admin API and scenarios.
	RecordOrder(ctx context.Context, order Order) error
}

// ClientRegistry owns client records.
type ClientRegistry interface {
	// GetClient returns generic.ErrClientNotFound for unknown ids.
	GetClient(ctx context.Context, id string) (*Client, error)

	ListClients(ctx context.Context) ([]Client, error)

	// SaveClient inserts a client record. For an existing client only the
	// profile (name, phone, goals, overrides) is updated; IsVip,
	// ComboAvailable and the reset dates are written by MarkEvaluated and
	// the combo updates alone.
	SaveClient(ctx context.Context, client Client) error

	// ConsumeCombo flips combo_available from true to false.
	// Returns false when the flag was already false.
	ConsumeCombo(ctx context.Context, id string) (bool, error)

	// GrantCombo flips combo_available from false to true.
	// Returns false when a combo was already available.
	GrantCombo(ctx context.Context, id string) (bool, error)

	// MarkEvaluated records the VIP flag and the window starts the client
	// was last evaluated against.
	MarkEvaluated(ctx context.Context, id string, isVip bool, weekStart, monthStart string) error
}

// ConfigStore persists the store-wide VIP configuration.
type ConfigStore interface {
	// GetConfig returns generic.ErrMissingConfiguration if none was saved.
	GetConfig(ctx context.Context) (*StoreVipConfig, error)
	SaveConfig(ctx context.Context, cfg StoreVipConfig) error
}

// RefreshRun is the audit record of one client refresh: the status that
// was persisted and whether a combo was granted.
type RefreshRun struct {
	ID          string
	ClientID    string
	WeekStart   string
	IsVip       bool
	RolledOver  bool
	GrantResult string
	Error       string
	CreatedAt   time.Time
}

// RefreshLog keeps refresh runs for display.
type RefreshLog interface {
	SaveRefreshRun(ctx context.Context, run RefreshRun) error
	// ListRefreshRuns returns the newest runs first. limit <= 0 means 100.
	ListRefreshRuns(ctx context.Context, limit int) ([]RefreshRun, error)
}
