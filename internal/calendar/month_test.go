package calendar

import (
	"testing"
	"time"

	"github.com/starford/kalendar/internal/models"
)

func TestMonthNavigation(t *testing.T) {
	m := Month{Year: 2026, Month: time.December}
	if n := m.Next(); n.Year != 2027 || n.Month != time.January {
		t.Errorf("Next = %v", n)
	}
	m = Month{Year: 2026, Month: time.January}
	if p := m.Prev(); p.Year != 2025 || p.Month != time.December {
		t.Errorf("Prev = %v", p)
	}
}

func TestNewMonth_Invalid(t *testing.T) {
	if _, err := NewMonth(2026, 13); err == nil {
		t.Error("month 13 should fail")
	}
	if _, err := NewMonth(0, 1); err == nil {
		t.Error("year 0 should fail")
	}
}

func TestBuild_SundayStart(t *testing.T) {
	// October 2026 starts on Thursday and ends on Saturday.
	g := Build(Month{Year: 2026, Month: time.October}, nil, Options{Location: time.UTC})
	if len(g.Weeks) != 5 {
		t.Fatalf("weeks = %d, want 5", len(g.Weeks))
	}
	if g.Weeks[0][0].Date != "2026-09-27" {
		t.Errorf("first cell = %s, want 2026-09-27", g.Weeks[0][0].Date)
	}
	if g.Weeks[0][0].InMonth {
		t.Error("September cell should not be in month")
	}
	if last := g.Weeks[4][6]; last.Date != "2026-10-31" || !last.InMonth {
		t.Errorf("last cell = %+v", last)
	}
	if g.Title != "October 2026" {
		t.Errorf("title = %q", g.Title)
	}
}

func TestBuild_MondayStart(t *testing.T) {
	g := Build(Month{Year: 2026, Month: time.October}, nil, Options{Location: time.UTC, WeekStart: time.Monday})
	if g.Weeks[0][0].Date != "2026-09-28" {
		t.Errorf("first cell = %s, want 2026-09-28", g.Weeks[0][0].Date)
	}
	if last := g.Weeks[len(g.Weeks)-1][6]; last.Date != "2026-11-01" {
		t.Errorf("last cell = %s, want 2026-11-01", last.Date)
	}
}

func TestBuild_PlacesRecurringEvents(t *testing.T) {
	events := []models.Event{
		{ID: "w", Title: "Standup", Date: "2026-10-14T09:30", Recurrence: models.Weekly{Days: []time.Weekday{time.Monday, time.Wednesday}}},
		{ID: "o", Title: "Dentist", Date: "2026-10-20T15:00", Recurrence: models.None{}},
	}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	g := Build(Month{Year: 2026, Month: time.October}, events, Options{Location: time.UTC, Now: now})

	counts := map[string]int{}
	for _, w := range g.Weeks {
		for _, d := range w {
			for _, ev := range d.Events {
				counts[ev.ID]++
			}
			if d.Today && d.Date != "2026-10-17" {
				t.Errorf("today flagged on %s", d.Date)
			}
		}
	}
	// Oct 14, 19, 21, 26, 28.
	if counts["w"] != 5 {
		t.Errorf("weekly occurrences = %d, want 5", counts["w"])
	}
	if counts["o"] != 1 {
		t.Errorf("single occurrences = %d, want 1", counts["o"])
	}
}

func TestBuild_QueryFilters(t *testing.T) {
	events := []models.Event{
		{ID: "1", Title: "Yoga", Date: "2026-10-01T07:00", Recurrence: models.Daily{}},
		{ID: "2", Title: "Run", Description: "Park LOOP", Date: "2026-10-01T08:00", Recurrence: models.Daily{}},
	}
	g := Build(Month{Year: 2026, Month: time.October}, events, Options{Location: time.UTC, Query: "loop"})
	for _, w := range g.Weeks {
		for _, d := range w {
			for _, ev := range d.Events {
				if ev.ID != "2" {
					t.Fatalf("unexpected event %s on %s", ev.ID, d.Date)
				}
			}
		}
	}
}

func TestMatchesQuery(t *testing.T) {
	ev := models.Event{Title: "Team Sync", Description: "Weekly ÜBERBLICK"}
	cases := map[string]bool{
		"":          true,
		"sync":      true,
		"TEAM":      true,
		"überblick": true,
		"retro":     false,
	}
	for q, want := range cases {
		if got := MatchesQuery(ev, q); got != want {
			t.Errorf("MatchesQuery(%q) = %v, want %v", q, got, want)
		}
	}
}
