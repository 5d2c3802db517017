package treasury

import (
	"fmt"
	"time"
)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Slot evaluates the schedule at now (UTC). It returns the key of the period
// containing now and whether that period's trigger time has been reached.
// Interval N selects every N-th period counted from the Unix epoch; periods in
// between are never due.
func (c *PeriodicConfig) Slot(now time.Time) (string, bool) {
	now = now.UTC()
	interval := c.Interval
	if interval <= 0 {
		interval = 1
	}

	var (
		index   int64
		trigger time.Time
	)
	hour, minute := deref(c.Hour, 0), deref(c.Minute, 0)

	switch c.IntervalUnit {
	case UnitDay:
		index = int64(now.Sub(epoch).Hours() / 24)
		trigger = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	case UnitWeek:
		dayIndex := int64(now.Sub(epoch).Hours() / 24)
		// Unix epoch is a Thursday; shift so weeks start on Sunday.
		index = (dayIndex + 4) / 7
		weekStart := time.Date(now.Year(), now.Month(), now.Day()-int(now.Weekday()), 0, 0, 0, 0, time.UTC)
		trigger = weekStart.AddDate(0, 0, clamp(deref(c.DayOfWeek, 0), 0, 6)).
			Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	case UnitYear:
		index = int64(now.Year() - 1970)
		trigger = dayInMonth(now.Year(), time.January, deref(c.DayOfMonth, 1), hour, minute)
	default: // month
		index = int64(now.Year()-1970)*12 + int64(now.Month()-1)
		trigger = dayInMonth(now.Year(), now.Month(), deref(c.DayOfMonth, 1), hour, minute)
	}

	key := fmt.Sprintf("%s:%d", c.unit(), index)
	if index%int64(interval) != 0 {
		return key, false
	}
	return key, !now.Before(trigger)
}

func (c *PeriodicConfig) unit() IntervalUnit {
	if c.IntervalUnit == "" {
		return UnitMonth
	}
	return c.IntervalUnit
}

// dayInMonth clamps day to the month's length, so day 31 fires on the last day
// of shorter months.
func dayInMonth(year int, month time.Month, day, hour, minute int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return time.Date(year, month, clamp(day, 1, last), hour, minute, 0, 0, time.UTC)
}

func deref(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
