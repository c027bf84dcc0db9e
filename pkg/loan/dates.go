package loan

import "time"

// CompareDates compares two timestamps by calendar date only, ignoring the
// time-of-day component. Returns -1, 0 or 1.
func CompareDates(t1, t2 time.Time) int {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()

	switch {
	case y1 < y2 || (y1 == y2 && m1 < m2) || (y1 == y2 && m1 == m2 && d1 < d2):
		return -1
	case y1 == y2 && m1 == m2 && d1 == d2:
		return 0
	default:
		return 1
	}
}

// DateIsBefore reports whether t1 falls on an earlier calendar date than t2.
func DateIsBefore(t1, t2 time.Time) bool { return CompareDates(t1, t2) < 0 }

// DateIsAfter reports whether t1 falls on a later calendar date than t2.
func DateIsAfter(t1, t2 time.Time) bool { return CompareDates(t1, t2) > 0 }

// SameDate reports whether both timestamps fall on the same calendar date.
func SameDate(t1, t2 time.Time) bool { return CompareDates(t1, t2) == 0 }
