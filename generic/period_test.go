/*
period_test.go - Window arithmetic tests

PURPOSE:
  Windows are the unit every other package builds on. These tests pin
  down the boundaries: inclusive ends, month lengths, and how a window
  is found on a grid anchored before or after the date in question.

READING THESE TESTS:
  Each test has GIVEN/WHEN/THEN comments. Dates are ISO strings so the
  expected boundary is readable without computing it.
*/
package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vip-engine/generic"
)

func date(t *testing.T, s string) generic.TimePoint {
	t.Helper()
	tp, err := generic.ParseDate(s)
	require.NoError(t, err)
	return tp
}

func TestWeekFrom_SevenInclusiveDays(t *testing.T) {
	// GIVEN: A week anchored on a Wednesday
	w := generic.WeekFrom(generic.NewTimePoint(2026, time.March, 4))

	// THEN: It ends the following Tuesday, both ends inclusive
	assert.Equal(t, "2026-03-04", w.Start.String())
	assert.Equal(t, "2026-03-10", w.End.String())
	assert.Equal(t, 7, w.Days())
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.End.AddDays(1)))
	assert.False(t, w.Contains(w.Start.AddDays(-1)))
}

func TestWeekFrom_IgnoresTimeOfDay(t *testing.T) {
	late := generic.DateOf(time.Date(2026, time.March, 4, 23, 59, 0, 0, time.UTC))

	w := generic.WeekFrom(late)

	assert.Equal(t, "2026-03-04", w.Start.String())
	assert.True(t, w.Contains(generic.DateOf(time.Date(2026, time.March, 10, 23, 59, 59, 0, time.UTC))))
}

func TestMonthFrom(t *testing.T) {
	tests := []struct {
		start string
		end   string
	}{
		{"2026-03-09", "2026-04-08"},
		{"2026-02-01", "2026-02-28"},
		{"2028-02-01", "2028-02-29"},
		{"2026-12-15", "2027-01-14"},
		// Overflowing days normalize forward: Jan 31 + 1 month is Mar 3.
		{"2026-01-31", "2026-03-02"},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			m := generic.MonthFrom(date(t, tt.start))
			assert.Equal(t, tt.start, m.Start.String())
			assert.Equal(t, tt.end, m.End.String())
		})
	}
}

func TestPreviousAndNextWeek(t *testing.T) {
	w := generic.WeekFrom(generic.NewTimePoint(2026, time.March, 9))

	prev := w.PreviousWeek()
	next := w.NextWeek()

	assert.Equal(t, "2026-03-02", prev.Start.String())
	assert.Equal(t, "2026-03-08", prev.End.String())
	assert.Equal(t, "2026-03-16", next.Start.String())
	assert.Equal(t, w.Start, prev.End.AddDays(1), "weeks tile without gaps")
}

func TestWindowContaining_Week(t *testing.T) {
	anchor := generic.NewTimePoint(2026, time.March, 9)

	tests := []struct {
		name  string
		at    string
		start string
	}{
		{"anchor day", "2026-03-09", "2026-03-09"},
		{"last day", "2026-03-15", "2026-03-09"},
		{"next week", "2026-03-16", "2026-03-16"},
		{"weeks later", "2026-04-10", "2026-04-06"},
		{"day before anchor", "2026-03-08", "2026-03-02"},
		{"exact week before", "2026-03-02", "2026-03-02"},
		{"far before", "2026-02-20", "2026-02-16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := generic.WindowContaining(generic.WindowWeek, anchor, date(t, tt.at))
			assert.Equal(t, tt.start, w.Start.String())
			assert.True(t, w.Contains(date(t, tt.at)))
		})
	}
}

func TestWindowContaining_Month(t *testing.T) {
	anchor := generic.NewTimePoint(2026, time.March, 9)

	tests := []struct {
		at    string
		start string
		end   string
	}{
		{"2026-03-09", "2026-03-09", "2026-04-08"},
		{"2026-04-08", "2026-03-09", "2026-04-08"},
		{"2026-04-09", "2026-04-09", "2026-05-08"},
		{"2026-03-01", "2026-02-09", "2026-03-08"},
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			w := generic.WindowContaining(generic.WindowMonth, anchor, date(t, tt.at))
			assert.Equal(t, tt.start, w.Start.String())
			assert.Equal(t, tt.end, w.End.String())
		})
	}
}

func TestPeriodValidate(t *testing.T) {
	ok := generic.Period{Start: generic.NewTimePoint(2026, 3, 9), End: generic.NewTimePoint(2026, 3, 9)}
	bad := generic.Period{Start: generic.NewTimePoint(2026, 3, 9), End: generic.NewTimePoint(2026, 3, 8)}

	assert.NoError(t, ok.Validate())
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
	assert.True(t, generic.IsConfigError(bad.Validate()))
}

func TestParseWindowKind(t *testing.T) {
	kind, err := generic.ParseWindowKind("month")
	require.NoError(t, err)
	assert.Equal(t, generic.WindowMonth, kind)

	_, err = generic.ParseWindowKind("fortnight")
	assert.Error(t, err)
}
