package vip

import (
	"github.com/shopspring/decimal"
)

// Tier thresholds on lifetime totals. Either dimension is enough.
var (
	premiumSpend = decimal.NewFromInt(1000)
	vipSpend     = decimal.NewFromInt(500)
)

const (
	premiumOrders = 30
	vipOrders     = 15
	regularOrders = 3
)

// ClassifyTier maps lifetime totals to a tier. It must only ever be fed
// lifetime spend; the current window drives IsVip, not the tier.
func ClassifyTier(lifetime Spend) Tier {
	switch {
	case lifetime.ValueSpent.GreaterThanOrEqual(premiumSpend) || lifetime.OrderCount >= premiumOrders:
		return TierPremium
	case lifetime.ValueSpent.GreaterThanOrEqual(vipSpend) || lifetime.OrderCount >= vipOrders:
		return TierVip
	case lifetime.OrderCount >= regularOrders:
		return TierRegular
	default:
		return TierNew
	}
}
