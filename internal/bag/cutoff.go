package bag

import "time"

// WeekStart returns the Monday 00:00 of the week containing t, in t's
// location. Weekly bags are keyed on this instant.
func WeekStart(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextCutoff returns the edit cutoff for the week containing now: the first
// occurrence of the configured weekday/hour at or after the week start.
// If that instant has already passed this week, it still belongs to this
// week's bag; the bag simply starts out locked.
func NextCutoff(now time.Time, weekday time.Weekday, hour int) time.Time {
	start := WeekStart(now)
	daysFromMonday := (int(weekday) + 6) % 7
	cutoff := start.AddDate(0, 0, daysFromMonday)
	return time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), hour, 0, 0, 0, now.Location())
}
