/*
Package sqlite provides a SQLite-backed implementation of the vip store
interfaces.

PURPOSE:
  Implements vip.ClientRegistry, vip.OrderLedger and vip.ConfigStore in one
  database. In production the same SQL runs on PostgreSQL with minor
  dialect changes.

KEY TABLES:
  clients:       registry records, goals, overrides, combo flag
  orders:        order ledger (amount as decimal text, UTC timestamps)
  store_config:  single-row StoreVipConfig
  refresh_runs:  audit of scheduled/manual client refreshes

COMBO COMPARE-AND-SET:
  The combo flag is only ever written with a guarded UPDATE:

    UPDATE clients SET combo_available = 0
    WHERE id = ? AND combo_available = 1

  RowsAffected == 1 means this call consumed it. Two concurrent consumers
  cannot both see 1 row affected.

INDEXES:
  - idx_orders_client_date: window aggregation (hot path)
  - idx_orders_date: leaderboards across all clients

WAL MODE:
  File databases are opened with WAL so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/vip.db")
  if err != nil {
      return err
  }
  defer store.Close()

SEE ALSO:
  - vip/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ vip.ClientRegistry = (*Store)(nil)
	_ vip.OrderLedger    = (*Store)(nil)
	_ vip.ConfigStore    = (*Store)(nil)
	_ vip.RefreshLog     = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		weekly_value_goal TEXT,
		weekly_order_goal INTEGER,
		week_start_override TEXT,
		month_start_override TEXT,
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		combo_available BOOLEAN NOT NULL DEFAULT FALSE,
		last_week_reset_date TEXT,
		last_month_reset_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Order ledger. The engine only reads it.
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_client_date
		ON orders(client_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_orders_date
		ON orders(occurred_at);

	-- Single-row store configuration
	CREATE TABLE IF NOT EXISTS store_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		default_weekly_value_goal TEXT NOT NULL,
		default_weekly_order_goal INTEGER NOT NULL,
		combo_reward_value TEXT NOT NULL,
		combo_min_order_value TEXT NOT NULL,
		default_week_start_date TEXT NOT NULL,
		default_month_start_date TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refresh_runs (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		week_start TEXT,
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		rolled_over BOOLEAN NOT NULL DEFAULT FALSE,
		grant_result TEXT,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_runs_client
		ON refresh_runs(client_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLIENT REGISTRY (vip.ClientRegistry interface)
// =============================================================================

const clientColumns = `id, name, phone, weekly_value_goal, weekly_order_goal,
	week_start_override, month_start_override, is_vip, combo_available,
	last_week_reset_date, last_month_reset_date, created_at`

// SaveClient inserts a client, or updates the profile columns of an
// existing one. is_vip, combo_available and the reset dates are left alone
// on update: they only change through MarkEvaluated and the combo CAS.
func (s *Store) SaveClient(ctx context.Context, c vip.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var valueGoal sql.NullString
	if c.WeeklyValueGoal != nil {
		valueGoal = sql.NullString{String: c.WeeklyValueGoal.String(), Valid: true}
	}
	var orderGoal sql.NullInt64
	if c.WeeklyOrderGoal != nil {
		orderGoal = sql.NullInt64{Int64: int64(*c.WeeklyOrderGoal), Valid: true}
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			weekly_value_goal = excluded.weekly_value_goal,
			weekly_order_goal = excluded.weekly_order_goal,
			week_start_override = excluded.week_start_override,
			month_start_override = excluded.month_start_override
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, nullString(c.Phone), valueGoal, orderGoal,
		nullString(c.WeekStartOverride), nullString(c.MonthStartOverride),
		c.IsVip, c.ComboAvailable,
		nullString(c.LastWeekResetDate), nullString(c.LastMonthResetDate),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, id string) (*vip.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns all clients ordered by id.
func (s *Store) ListClients(ctx context.Context) ([]vip.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []vip.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes a client and its orders.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE client_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrClientNotFound
	}
	return tx.Commit()
}

// ConsumeCombo flips combo_available 1 -> 0. Returns false if it was 0.
func (s *Store) ConsumeCombo(ctx context.Context, id string) (bool, error) {
	return s.swapCombo(ctx, id, true, false)
}

// GrantCombo flips combo_available 0 -> 1. Returns false if it was 1.
func (s *Store) GrantCombo(ctx context.Context, id string) (bool, error) {
	return s.swapCombo(ctx, id, false, true)
}

func (s *Store) swapCombo(ctx context.Context, id string, from, to bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET combo_available = ? WHERE id = ? AND combo_available = ?",
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update combo flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients WHERE id = ?", id).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, generic.ErrClientNotFound
	}
	return false, nil
}

// MarkEvaluated records the VIP flag and window starts.
func (s *Store) MarkEvaluated(ctx context.Context, id string, isVip bool, weekStart, monthStart string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET is_vip = ?, last_week_reset_date = ?, last_month_reset_date = ?
		WHERE id = ?`,
		isVip, nullString(weekStart), nullString(monthStart), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark client evaluated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrClientNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (vip.Client, error) {
	var (
		c                                 vip.Client
		phone, valueGoal, weekOv, monthOv sql.NullString
		lastWeek, lastMonth               sql.NullString
		orderGoal                         sql.NullInt64
		createdAt                         string
	)
	err := row.Scan(&c.ID, &c.Name, &phone, &valueGoal, &orderGoal,
		&weekOv, &monthOv, &c.IsVip, &c.ComboAvailable,
		&lastWeek, &lastMonth, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan client: %w", err)
	}

	c.Phone = phone.String
	c.WeekStartOverride = weekOv.String
	c.MonthStartOverride = monthOv.String
	c.LastWeekResetDate = lastWeek.String
	c.LastMonthResetDate = lastMonth.String
	if valueGoal.Valid {
		d, err := decimal.NewFromString(valueGoal.String)
		if err != nil {
			return c, fmt.Errorf("client %s: bad weekly_value_goal %q: %w", c.ID, valueGoal.String, err)
		}
		c.WeeklyValueGoal = &d
	}
	if orderGoal.Valid {
		n := int(orderGoal.Int64)
		c.WeeklyOrderGoal = &n
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// =============================================================================
// ORDER LEDGER (vip.OrderLedger interface)
// =============================================================================

const orderColumns = `id, client_id, amount, occurred_at, status`

// RecordOrder appends an order.
func (s *Store) RecordOrder(ctx context.Context, o vip.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, amount, occurred_at, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.ClientID, o.Amount.String(),
		o.OccurredAt.Date().Time.Format(time.RFC3339),
		string(o.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("order %s already recorded", o.ID)
		}
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// OrdersForClient returns all orders for a client, oldest first.
func (s *Store) OrdersForClient(ctx context.Context, clientID string) ([]vip.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = ?
		ORDER BY occurred_at ASC, id ASC`, clientID)
}

// OrdersInRange compares on the date part, so both bounds are inclusive days.
func (s *Store) OrdersInRange(ctx context.Context, clientID string, from, to generic.TimePoint) ([]vip.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = ?
		  AND substr(occurred_at, 1, 10) >= ? AND substr(occurred_at, 1, 10) <= ?
		ORDER BY occurred_at ASC, id ASC`,
		clientID, from.String(), to.String())
}

// AllOrders returns the whole ledger, oldest first.
func (s *Store) AllOrders(ctx context.Context) ([]vip.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY occurred_at ASC, id ASC`)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]vip.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []vip.Order
	for rows.Next() {
		var (
			o                  vip.Order
			amount, occurredAt string
			status             string
		)
		if err := rows.Scan(&o.ID, &o.ClientID, &amount, &occurredAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var err error
		if o.Amount, err = generic.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("order %s: bad amount %q: %w", o.ID, amount, err)
		}
		if o.OccurredAt, err = generic.ParseDate(occurredAt); err != nil {
			return nil, fmt.Errorf("order %s: bad occurred_at %q: %w", o.ID, occurredAt, err)
		}
		o.Status = vip.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// CONFIG STORE (vip.ConfigStore interface)
// =============================================================================

// GetConfig returns the store configuration or ErrMissingConfiguration.
func (s *Store) GetConfig(ctx context.Context) (*vip.StoreVipConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		cfg                         vip.StoreVipConfig
		valueGoal, reward, minOrder string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT default_weekly_value_goal, default_weekly_order_goal, combo_reward_value,
		       combo_min_order_value, default_week_start_date, default_month_start_date
		FROM store_config WHERE id = 1`,
	).Scan(&valueGoal, &cfg.DefaultWeeklyOrderGoal, &reward, &minOrder,
		&cfg.DefaultWeekStartDate, &cfg.DefaultMonthStartDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrMissingConfiguration
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load store config: %w", err)
	}

	if cfg.DefaultWeeklyValueGoal, err = decimal.NewFromString(valueGoal); err != nil {
		return nil, fmt.Errorf("%w: default weekly value goal %q", generic.ErrMissingConfiguration, valueGoal)
	}
	if cfg.ComboRewardValue, err = decimal.NewFromString(reward); err != nil {
		return nil, fmt.Errorf("%w: combo reward value %q", generic.ErrMissingConfiguration, reward)
	}
	if cfg.ComboMinOrderValue, err = decimal.NewFromString(minOrder); err != nil {
		return nil, fmt.Errorf("%w: combo minimum order value %q", generic.ErrMissingConfiguration, minOrder)
	}
	return &cfg, nil
}

// SaveConfig replaces the store configuration.
func (s *Store) SaveConfig(ctx context.Context, cfg vip.StoreVipConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_config (id, default_weekly_value_goal, default_weekly_order_goal,
			combo_reward_value, combo_min_order_value, default_week_start_date,
			default_month_start_date, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			default_weekly_value_goal = excluded.default_weekly_value_goal,
			default_weekly_order_goal = excluded.default_weekly_order_goal,
			combo_reward_value = excluded.combo_reward_value,
			combo_min_order_value = excluded.combo_min_order_value,
			default_week_start_date = excluded.default_week_start_date,
			default_month_start_date = excluded.default_month_start_date,
			updated_at = excluded.updated_at`,
		cfg.DefaultWeeklyValueGoal.String(), cfg.DefaultWeeklyOrderGoal,
		cfg.ComboRewardValue.String(), cfg.ComboMinOrderValue.String(),
		cfg.DefaultWeekStartDate, cfg.DefaultMonthStartDate,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save store config: %w", err)
	}
	return nil
}

// =============================================================================
// REFRESH RUNS
// =============================================================================

// SaveRefreshRun appends a refresh run.
func (s *Store) SaveRefreshRun(ctx context.Context, r vip.RefreshRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (id, client_id, week_start, is_vip, rolled_over, grant_result, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ClientID, nullString(r.WeekStart), r.IsVip, r.RolledOver,
		nullString(r.GrantResult), nullString(r.Error), createdAt.Format(time.RFC3339),
	)
	return err
}

// ListRefreshRuns returns the most recent runs first.
func (s *Store) ListRefreshRuns(ctx context.Context, limit int) ([]vip.RefreshRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, week_start, is_vip, rolled_over, grant_result, error, created_at
		FROM refresh_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	var runs []vip.RefreshRun
	for rows.Next() {
		var (
			r                         vip.RefreshRun
			weekStart, grant, errText sql.NullString
			createdAt                 string
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &weekStart, &r.IsVip, &r.RolledOver, &grant, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		r.WeekStart = weekStart.String
		r.GrantResult = grant.String
		r.Error = errText.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). The store config is kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"orders", "refresh_runs", "clients"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
