package vip

import "github.com/warp/vip-engine/generic"

// =============================================================================
// HYSTERESIS - VIP status never flickers off mid-window
// =============================================================================
//
// The registry keeps the last persisted IsVip together with the week it was
// evaluated against (LastWeekResetDate). Inside that same week a persisted
// VIP flag stands even when a fresh evaluation falls short, for example after
// a cancelled order or a raised goal. Once the week rolls over the flag is
// dropped and the client starts from the evaluation alone.
//
// Every caller that reports a weekly status goes through ApplyHysteresis so
// the status view and the refresh path give the same answer.

// RolledOver reports whether week is a different window from the one the
// client was last evaluated against.
func RolledOver(client *Client, week generic.Period) bool {
	return client == nil || client.LastWeekResetDate != week.Start.String()
}

// StoredVip reports whether the client's persisted VIP flag still applies
// to week.
func StoredVip(client *Client, week generic.Period) bool {
	return client != nil && client.IsVip && !RolledOver(client, week)
}

// ApplyHysteresis folds the persisted flag into a weekly status computed for
// week. A status raised only by the persisted flag is marked Retained.
func ApplyHysteresis(client *Client, week generic.Period, status EligibilityStatus) EligibilityStatus {
	if !status.IsVip && StoredVip(client, week) {
		status.IsVip = true
		status.Retained = true
	}
	return status
}
