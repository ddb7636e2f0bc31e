package vip

import (
	"fmt"

	"github.com/warp/vip-engine/generic"
)

// =============================================================================
// PERIOD RESOLVER - The only place an effective start date is decided
// =============================================================================
//
// Precedence is override ?? store default:
//   - override set and parseable  -> override
//   - override empty              -> default
//   - override malformed          -> InvalidDateConfigError
//   - default malformed           -> InvalidDateConfigError
//
// Never falls back to another date: a substituted window would grant or
// revoke VIP status without anyone noticing the bad config.

func effectiveStart(field, override, def string) (generic.TimePoint, error) {
	if override != "" {
		tp, err := generic.ParseDate(override)
		if err != nil {
			return generic.TimePoint{}, &generic.InvalidDateConfigError{Field: field, Override: override, Default: def}
		}
		return tp, nil
	}
	tp, err := generic.ParseDate(def)
	if err != nil {
		return generic.TimePoint{}, &generic.InvalidDateConfigError{Field: field, Override: override, Default: def}
	}
	return tp, nil
}

// EffectiveWeekStart returns the date the client's week is anchored on.
// A nil client resolves to the store default.
func EffectiveWeekStart(client *Client, cfg *StoreVipConfig) (generic.TimePoint, error) {
	if cfg == nil {
		return generic.TimePoint{}, generic.ErrMissingConfiguration
	}
	var override string
	if client != nil {
		override = client.WeekStartOverride
	}
	return effectiveStart(string(generic.WindowWeek), override, cfg.DefaultWeekStartDate)
}

// EffectiveMonthStart returns the date the client's month is anchored on.
func EffectiveMonthStart(client *Client, cfg *StoreVipConfig) (generic.TimePoint, error) {
	if cfg == nil {
		return generic.TimePoint{}, generic.ErrMissingConfiguration
	}
	var override string
	if client != nil {
		override = client.MonthStartOverride
	}
	return effectiveStart(string(generic.WindowMonth), override, cfg.DefaultMonthStartDate)
}

// ResolveWeek returns the client's current week window.
func ResolveWeek(client *Client, cfg *StoreVipConfig) (generic.Period, error) {
	start, err := EffectiveWeekStart(client, cfg)
	if err != nil {
		return generic.Period{}, err
	}
	return checked(generic.WeekFrom(start))
}

// ResolveMonth returns the client's current rolling month window.
func ResolveMonth(client *Client, cfg *StoreVipConfig) (generic.Period, error) {
	start, err := EffectiveMonthStart(client, cfg)
	if err != nil {
		return generic.Period{}, err
	}
	return checked(generic.MonthFrom(start))
}

// Resolve dispatches on the window kind.
func Resolve(kind generic.WindowKind, client *Client, cfg *StoreVipConfig) (generic.Period, error) {
	if kind == generic.WindowMonth {
		return ResolveMonth(client, cfg)
	}
	return ResolveWeek(client, cfg)
}

// ResolveStoreWeek is the store-default week, shared by leaderboards.
func ResolveStoreWeek(cfg *StoreVipConfig) (generic.Period, error) {
	return ResolveWeek(nil, cfg)
}

// ResolveStoreMonth is the store-default month, shared by leaderboards.
func ResolveStoreMonth(cfg *StoreVipConfig) (generic.Period, error) {
	return ResolveMonth(nil, cfg)
}

// ResolveContaining projects the client's window grid onto an arbitrary
// date, for looking up which window a historical order fell into.
func ResolveContaining(kind generic.WindowKind, client *Client, cfg *StoreVipConfig, at generic.TimePoint) (generic.Period, error) {
	var (
		anchor generic.TimePoint
		err    error
	)
	if kind == generic.WindowMonth {
		anchor, err = EffectiveMonthStart(client, cfg)
	} else {
		anchor, err = EffectiveWeekStart(client, cfg)
	}
	if err != nil {
		return generic.Period{}, err
	}
	return checked(generic.WindowContaining(kind, anchor, at))
}

func checked(p generic.Period) (generic.Period, error) {
	if err := p.Validate(); err != nil {
		return generic.Period{}, fmt.Errorf("%w: %v", generic.ErrInvalidDateConfig, err)
	}
	return p, nil
}
