// Package recurrence decides on which calendar days a stored event occurs and
// whether two events collide.
package recurrence

import (
	"time"

	"github.com/starford/kalendar/internal/models"
)

// Matches reports whether an event anchored at anchor with the given rule
// occurs on day. Only calendar days matter: both values are reduced to their
// date in the anchor's location. No rule matches before the anchor day.
func Matches(anchor time.Time, rule models.Recurrence, day time.Time) bool {
	a := dateOf(anchor, anchor.Location())
	d := dateOf(day, anchor.Location())
	if d.Before(a) {
		return false
	}
	if rule == nil {
		rule = models.None{}
	}

	switch r := rule.(type) {
	case models.Daily:
		return true
	case models.Weekly:
		if len(r.Days) == 0 {
			return d.Weekday() == a.Weekday()
		}
		for _, wd := range r.Days {
			if d.Weekday() == wd {
				return true
			}
		}
		return false
	case models.Monthly:
		return d.Day() == a.Day()
	case models.Custom:
		weeks := daysBetween(a, d) / 7
		return weeks%r.EffectiveInterval() == 0
	default:
		return d.Equal(a)
	}
}

// MatchesEvent parses the event's anchor in loc and applies Matches.
// An unparseable anchor never matches.
func MatchesEvent(ev models.Event, day time.Time, loc *time.Location) bool {
	anchor, err := ev.Anchor(loc)
	if err != nil {
		return false
	}
	return Matches(anchor, ev.Rule(), day)
}

// Occurrences returns every matching day in the inclusive range [from, to],
// as midnights in the anchor's location.
func Occurrences(anchor time.Time, rule models.Recurrence, from, to time.Time) []time.Time {
	loc := anchor.Location()
	start := dateOf(from, loc)
	end := dateOf(to, loc)
	if a := dateOf(anchor, loc); start.Before(a) {
		start = a
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if Matches(anchor, rule, d) {
			out = append(out, d)
		}
	}
	return out
}

// dateOf returns local midnight of t's calendar day in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b, immune to DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
