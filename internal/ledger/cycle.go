package ledger

import "time"

// MonthsElapsed is the calendar-month distance between anchor and now, in UTC.
// Day of month is ignored: Jan 31 -> Feb 1 counts as one month.
func MonthsElapsed(anchor, now time.Time) int {
	a := anchor.UTC()
	n := now.UTC()
	return (n.Year()*12 + int(n.Month())) - (a.Year()*12 + int(a.Month()))
}

// NeedsReset reports whether the cycle anchored at anchor has ended by now.
func NeedsReset(anchor, now time.Time) bool {
	return MonthsElapsed(anchor, now) >= 1
}

// NextBillingCycle returns the same day of month one calendar month after now,
// clamped to the last day of the target month. Time of day is kept.
func NextBillingCycle(now time.Time) time.Time {
	y, m, d := now.Date()
	first := time.Date(y, m+1, 1, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
	if last := daysIn(first.Year(), first.Month(), now.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// MonthStart is midnight UTC on the first day of now's month. Anchors strictly
// before it belong to an ended cycle.
func MonthStart(now time.Time) time.Time {
	n := now.UTC()
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
