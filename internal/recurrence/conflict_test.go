package recurrence

import (
	"testing"

	"github.com/starford/kalendar/internal/models"
)

func TestConflicts(t *testing.T) {
	a := models.Event{ID: "1", Date: "2026-10-14T09:30"}
	b := models.Event{ID: "2", Date: "2026-10-14T09:30"}
	c := models.Event{ID: "3", Date: "2026-10-14T09:31"}

	if !Conflicts(a, b) {
		t.Error("same date, different id should conflict")
	}
	if Conflicts(a, a) {
		t.Error("an event never conflicts with itself")
	}
	if Conflicts(a, c) {
		t.Error("different dates should not conflict")
	}
}

func TestConflicts_NotOccurrenceAware(t *testing.T) {
	daily := models.Event{ID: "1", Date: "2026-10-14T09:30", Recurrence: models.Daily{}}
	later := models.Event{ID: "2", Date: "2026-10-15T09:30"}
	if Conflicts(daily, later) {
		t.Error("conflict check compares stored dates only")
	}
}

func TestFindConflict(t *testing.T) {
	events := []models.Event{
		{ID: "1", Date: "2026-10-14T09:30"},
		{ID: "2", Date: "2026-10-15T09:30"},
	}
	got, ok := FindConflict(events, models.Event{ID: "new", Date: "2026-10-15T09:30"})
	if !ok || got.ID != "2" {
		t.Errorf("FindConflict = %v, %v", got, ok)
	}
	if _, ok := FindConflict(events, models.Event{ID: "2", Date: "2026-10-15T09:30"}); ok {
		t.Error("updating an event in place should not conflict with itself")
	}
}
