package rewards

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// GRANT RULE
// =============================================================================

// CanAwardCombo reports whether a combo should be granted: the client is VIP
// this window, was not VIP when last recorded, and holds no combo already.
// Re-evaluating a client who stays VIP never re-grants.
func CanAwardCombo(client *vip.Client, isVipThisWindow bool) bool {
	if client == nil {
		return false
	}
	return isVipThisWindow && !client.IsVip && !client.ComboAvailable
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager performs combo writes through the client registry.
type Manager struct {
	Registry      vip.ClientRegistry
	minOrderValue generic.Money
	rewardValue   generic.Money
}

// NewManager binds the registry and the thresholds from cfg. A zero or
// negative minimum falls back to vip.DefaultComboMinOrderValue.
func NewManager(registry vip.ClientRegistry, cfg vip.StoreVipConfig) *Manager {
	minValue := cfg.ComboMinOrderValue
	if !minValue.IsPositive() {
		minValue = vip.DefaultComboMinOrderValue
	}
	return &Manager{
		Registry:      registry,
		minOrderValue: minValue,
		rewardValue:   cfg.ComboRewardValue,
	}
}

// MinOrderValue is the order value a combo requires.
func (m *Manager) MinOrderValue() generic.Money { return m.minOrderValue }

// RewardValue is the discount a combo is worth.
func (m *Manager) RewardValue() generic.Money { return m.rewardValue }

// CheckOrder returns ErrBelowMinimumOrder when amount is under the minimum.
func (m *Manager) CheckOrder(amount generic.Money) error {
	if amount.LessThan(m.minOrderValue) {
		return fmt.Errorf("%w: %s < %s", generic.ErrBelowMinimumOrder, amount.StringFixed(2), m.minOrderValue.StringFixed(2))
	}
	return nil
}

// Consume spends the client's combo. A store error means the combo was NOT
// consumed; the caller must not discount and must not grant a new one.
func (m *Manager) Consume(ctx context.Context, clientID string) (ConsumeResult, error) {
	flipped, err := m.Registry.ConsumeCombo(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("consume combo for %s: %w", clientID, err)
	}
	if !flipped {
		slog.Info("combo already consumed", "client_id", clientID)
		return ConsumeAlreadyConsumed, nil
	}
	slog.Info("combo consumed", "client_id", clientID)
	return ConsumeApplied, nil
}

// ConsumeForOrder checks the minimum order value, then consumes.
func (m *Manager) ConsumeForOrder(ctx context.Context, clientID string, orderAmount generic.Money) (ConsumeResult, error) {
	if err := m.CheckOrder(orderAmount); err != nil {
		return "", err
	}
	return m.Consume(ctx, clientID)
}

// Grant awards a combo when CanAwardCombo holds. The registry's conditional
// update decides races: losing one reports GrantOutstanding.
func (m *Manager) Grant(ctx context.Context, client *vip.Client, isVipThisWindow bool) (GrantResult, error) {
	if client == nil {
		return "", generic.ErrMissingConfiguration
	}
	if client.ComboAvailable {
		return GrantOutstanding, nil
	}
	if !CanAwardCombo(client, isVipThisWindow) {
		return GrantNotEligible, nil
	}
	flipped, err := m.Registry.GrantCombo(ctx, client.ID)
	if err != nil {
		return "", fmt.Errorf("grant combo for %s: %w", client.ID, err)
	}
	if !flipped {
		return GrantOutstanding, nil
	}
	slog.Info("combo granted", "client_id", client.ID)
	return GrantAwarded, nil
}
