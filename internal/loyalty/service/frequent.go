package service

import (
	"time"
)

// priorMonth returns [first day of the month before now, first day of now's month).
func priorMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -1, 0), end
}

// coversEveryWeek reports whether each ISO week (Monday to Sunday) touching
// [from, to) holds at least one purchase inside [from, to).
func coversEveryWeek(from, to time.Time, purchases []time.Time) bool {
	offset := (int(from.Weekday()) + 6) % 7
	for week := from.AddDate(0, 0, -offset); week.Before(to); week = week.AddDate(0, 0, 7) {
		lo, hi := week, week.AddDate(0, 0, 7)
		if lo.Before(from) {
			lo = from
		}
		if hi.After(to) {
			hi = to
		}
		if !anyWithin(purchases, lo, hi) {
			return false
		}
	}
	return true
}

func anyWithin(times []time.Time, lo, hi time.Time) bool {
	for _, t := range times {
		if !t.Before(lo) && t.Before(hi) {
			return true
		}
	}
	return false
}
