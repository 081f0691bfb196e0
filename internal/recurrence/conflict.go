package recurrence

import "github.com/starford/kalendar/internal/models"

// Conflicts reports whether two distinct events share the exact same stored
// date string. Occurrences are not considered.
func Conflicts(a, b models.Event) bool {
	return a.ID != b.ID && a.Date == b.Date
}

// FindConflict returns the first event in events that conflicts with candidate.
func FindConflict(events []models.Event, candidate models.Event) (models.Event, bool) {
	for _, ev := range events {
		if Conflicts(ev, candidate) {
			return ev, true
		}
	}
	return models.Event{}, false
}
