package generic

import "fmt"

// =============================================================================
// PERIOD - The window every VIP measurement is taken over
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// Examples:
//   - Week from 2024-01-01: [2024-01-01, 2024-01-07]
//   - Month from 2024-01-15: [2024-01-15, 2024-02-14]
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the date is within the period [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Validate rejects periods whose end is before their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Days returns the number of days covered, both ends included.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// WindowKind selects between the rolling week and the rolling month.
type WindowKind string

const (
	WindowWeek  WindowKind = "week"  // 7 days from the anchor
	WindowMonth WindowKind = "month" // anchor to the day before the same date next month
)

// ParseWindowKind accepts "week" or "month".
func ParseWindowKind(s string) (WindowKind, error) {
	switch WindowKind(s) {
	case WindowWeek, WindowMonth:
		return WindowKind(s), nil
	default:
		return "", fmt.Errorf("unknown window %q (use week or month)", s)
	}
}

// =============================================================================
// WINDOW CALCULATOR
// =============================================================================

// WeekFrom returns the 7-day window starting at start.
func WeekFrom(start TimePoint) Period {
	s := start.Date()
	return Period{Start: s, End: s.AddDays(6)}
}

// MonthFrom returns the rolling month starting at start. Day overflow follows
// time.AddDate, so a window from Jan 31 ends on Mar 1 (leap year) or Mar 2.
func MonthFrom(start TimePoint) Period {
	s := start.Date()
	return Period{Start: s, End: s.AddMonths(1).AddDays(-1)}
}

// WindowFrom dispatches on kind.
func WindowFrom(kind WindowKind, start TimePoint) Period {
	if kind == WindowMonth {
		return MonthFrom(start)
	}
	return WeekFrom(start)
}

// PreviousWeek returns the 7-day window ending the day before p starts.
func (p Period) PreviousWeek() Period {
	return WeekFrom(p.Start.AddDays(-7))
}

// NextWeek returns the 7-day window starting the day after p ends.
func (p Period) NextWeek() Period {
	return WeekFrom(p.End.AddDays(1))
}

// WindowContaining projects the anchor's window grid onto an arbitrary date
// and returns the window that contains it. Dates before the anchor map to
// earlier windows.
//
// Month windows are always computed from the anchor (anchor + n months),
// never by chaining, so a Jan 31 anchor does not drift to the 28th.
func WindowContaining(kind WindowKind, anchor, at TimePoint) Period {
	anchor = anchor.Date()
	at = at.Date()

	if kind == WindowWeek {
		days := DaysBetween(anchor, at)
		offset := days / 7
		if days < 0 && days%7 != 0 {
			offset--
		}
		return WeekFrom(anchor.AddDays(offset * 7))
	}

	n := MonthsBetween(anchor, at)
	for anchor.AddMonths(n).After(at) {
		n--
	}
	for anchor.AddMonths(n + 1).AddDays(-1).Before(at) {
		n++
	}
	return Period{Start: anchor.AddMonths(n), End: anchor.AddMonths(n + 1).AddDays(-1)}
}
