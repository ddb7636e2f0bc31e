package vip_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

func TestApplyHysteresis(t *testing.T) {
	week := generic.WeekFrom(day(2024, time.January, 1))
	tests := []struct {
		name         string
		storedVip    bool
		lastWeek     string
		goalMet      bool
		wantVip      bool
		wantRetained bool
	}{
		{"goal met", false, "2024-01-01", true, true, false},
		{"kept within the week", true, "2024-01-01", false, true, true},
		{"dropped after rollover", true, "2023-12-25", false, false, false},
		{"never evaluated", false, "", false, false, false},
		{"met and stored", true, "2024-01-01", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &vip.Client{ID: "c", IsVip: tt.storedVip, LastWeekResetDate: tt.lastWeek}

			got := vip.ApplyHysteresis(client, week, vip.EligibilityStatus{IsVip: tt.goalMet, Window: week})

			assert.Equal(t, tt.wantVip, got.IsVip)
			assert.Equal(t, tt.wantRetained, got.Retained)
		})
	}
}

func TestRolledOver(t *testing.T) {
	week := generic.WeekFrom(day(2024, time.January, 8))

	assert.True(t, vip.RolledOver(&vip.Client{ID: "c", LastWeekResetDate: "2024-01-01"}, week))
	assert.False(t, vip.RolledOver(&vip.Client{ID: "c", LastWeekResetDate: "2024-01-08"}, week))
	assert.True(t, vip.RolledOver(nil, week))
	assert.False(t, vip.StoredVip(nil, week))
}
