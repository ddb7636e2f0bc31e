// Package memory provides in-memory implementations of the vip store
// interfaces, for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// MEMORY STORE - registry, ledger and config in one struct
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	clients map[string]vip.Client
	orders  map[string][]vip.Order // by client, sorted by OccurredAt
	seen    map[string]struct{}    // order ids
	config  *vip.StoreVipConfig
	runs    []vip.RefreshRun
}

var (
	_ vip.ClientRegistry = (*Memory)(nil)
	_ vip.OrderLedger    = (*Memory)(nil)
	_ vip.ConfigStore    = (*Memory)(nil)
	_ vip.RefreshLog     = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		clients: make(map[string]vip.Client),
		orders:  make(map[string][]vip.Order),
		seen:    make(map[string]struct{}),
	}
}

// =============================================================================
// CLIENT REGISTRY
// =============================================================================

func (m *Memory) GetClient(_ context.Context, id string) (*vip.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, generic.ErrClientNotFound
	}
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]vip.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]vip.Client, 0, len(m.clients))
	for _, c := range m.clients {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveClient keeps the flags and reset dates of an existing client.
func (m *Memory) SaveClient(_ context.Context, client vip.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.clients[client.ID]; ok {
		client.IsVip = existing.IsVip
		client.ComboAvailable = existing.ComboAvailable
		client.LastWeekResetDate = existing.LastWeekResetDate
		client.LastMonthResetDate = existing.LastMonthResetDate
		client.CreatedAt = existing.CreatedAt
	} else if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	m.clients[client.ID] = client
	return nil
}

// DeleteClient removes a client and its orders.
func (m *Memory) DeleteClient(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return generic.ErrClientNotFound
	}
	for _, o := range m.orders[id] {
		delete(m.seen, o.ID)
	}
	delete(m.clients, id)
	delete(m.orders, id)
	return nil
}

// ConsumeCombo flips the flag true -> false under the write lock.
func (m *Memory) ConsumeCombo(_ context.Context, id string) (bool, error) {
	return m.swapCombo(id, true, false)
}

// GrantCombo flips the flag false -> true under the write lock.
func (m *Memory) GrantCombo(_ context.Context, id string) (bool, error) {
	return m.swapCombo(id, false, true)
}

func (m *Memory) swapCombo(id string, from, to bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return false, generic.ErrClientNotFound
	}
	if c.ComboAvailable != from {
		return false, nil
	}
	c.ComboAvailable = to
	m.clients[id] = c
	return true, nil
}

func (m *Memory) MarkEvaluated(_ context.Context, id string, isVip bool, weekStart, monthStart string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return generic.ErrClientNotFound
	}
	c.IsVip = isVip
	c.LastWeekResetDate = weekStart
	c.LastMonthResetDate = monthStart
	m.clients[id] = c
	return nil
}

// =============================================================================
// ORDER LEDGER
// =============================================================================

// RecordOrder inserts in OccurredAt order.
func (m *Memory) RecordOrder(_ context.Context, order vip.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[order.ID]; dup {
		return fmt.Errorf("order %s already recorded", order.ID)
	}
	m.seen[order.ID] = struct{}{}

	orders := m.orders[order.ClientID]
	i := sort.Search(len(orders), func(i int) bool {
		return orders[i].OccurredAt.After(order.OccurredAt)
	})
	orders = append(orders, vip.Order{})
	copy(orders[i+1:], orders[i:])
	orders[i] = order
	m.orders[order.ClientID] = orders
	return nil
}

func (m *Memory) OrdersForClient(_ context.Context, clientID string) ([]vip.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]vip.Order, len(m.orders[clientID]))
	copy(result, m.orders[clientID])
	return result, nil
}

func (m *Memory) OrdersInRange(_ context.Context, clientID string, from, to generic.TimePoint) ([]vip.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []vip.Order
	for _, o := range m.orders[clientID] {
		if from.BeforeOrEqual(o.OccurredAt) && o.OccurredAt.BeforeOrEqual(to) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *Memory) AllOrders(_ context.Context) ([]vip.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []vip.Order
	for _, orders := range m.orders {
		result = append(result, orders...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (m *Memory) GetConfig(_ context.Context) (*vip.StoreVipConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return nil, generic.ErrMissingConfiguration
	}
	cfg := *m.config
	return &cfg, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg vip.StoreVipConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return nil
}

// =============================================================================
// REFRESH LOG
// =============================================================================

func (m *Memory) SaveRefreshRun(_ context.Context, run vip.RefreshRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRefreshRuns(_ context.Context, limit int) ([]vip.RefreshRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	result := make([]vip.RefreshRun, 0, min(limit, len(m.runs)))
	for i := len(m.runs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.runs[i])
	}
	return result, nil
}

// Reset clears clients, orders and runs. The store config is kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = make(map[string]vip.Client)
	m.orders = make(map[string][]vip.Order)
	m.seen = make(map[string]struct{})
	m.runs = nil
	return nil
}
