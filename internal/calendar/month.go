// Package calendar projects stored events onto the day cells of a month view.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/kalendar/internal/models"
	"github.com/starford/kalendar/internal/recurrence"
)

// DateLayout is the layout of Day.Date.
const DateLayout = "2006-01-02"

// Month identifies a displayed month.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// NewMonth validates year and month.
func NewMonth(year, month int) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("calendar: month %d out of range", month)
	}
	if year < 1 || year > 9999 {
		return Month{}, fmt.Errorf("calendar: year %d out of range", year)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// Next returns the following month.
func (m Month) Next() Month {
	return MonthOf(m.first(time.UTC).AddDate(0, 1, 0))
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return MonthOf(m.first(time.UTC).AddDate(0, -1, 0))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) first(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Day is one cell of the grid.
type Day struct {
	Date    string         `json:"date"`
	InMonth bool           `json:"in_month"`
	Today   bool           `json:"today"`
	Events  []models.Event `json:"events"`
}

// Grid is a month view: whole weeks covering the month.
type Grid struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Title string  `json:"title"`
	Prev  Month   `json:"prev"`
	Next  Month   `json:"next"`
	Weeks [][]Day `json:"weeks"`
}

// Options control grid construction.
type Options struct {
	WeekStart time.Weekday
	Location  *time.Location
	Now       time.Time
	Query     string
}

// Build lays out m in weeks starting on opts.WeekStart and places each event
// on every day it occurs, filtered by opts.Query. Events keep collection order
// within a cell.
func Build(m Month, events []models.Event, opts Options) Grid {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	first := m.first(loc)
	last := first.AddDate(0, 1, -1)
	start := startOfWeek(first, opts.WeekStart)
	end := startOfWeek(last, opts.WeekStart).AddDate(0, 0, 6)

	today := ""
	if !opts.Now.IsZero() {
		today = opts.Now.In(loc).Format(DateLayout)
	}

	type anchored struct {
		ev     models.Event
		anchor time.Time
	}
	visible := make([]anchored, 0, len(events))
	for _, ev := range events {
		if !MatchesQuery(ev, opts.Query) {
			continue
		}
		a, err := ev.Anchor(loc)
		if err != nil {
			continue
		}
		visible = append(visible, anchored{ev: ev, anchor: a})
	}

	g := Grid{
		Year:  m.Year,
		Month: int(m.Month),
		Title: first.Format("January 2006"),
		Prev:  m.Prev(),
		Next:  m.Next(),
	}
	var week []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cell := Day{
			Date:    d.Format(DateLayout),
			InMonth: d.Month() == m.Month,
			Events:  []models.Event{},
		}
		cell.Today = cell.Date == today
		for _, v := range visible {
			if recurrence.Matches(v.anchor, v.ev.Rule(), d) {
				cell.Events = append(cell.Events, v.ev)
			}
		}
		week = append(week, cell)
		if len(week) == 7 {
			g.Weeks = append(g.Weeks, week)
			week = nil
		}
	}
	return g
}

func startOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	diff := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return t.AddDate(0, 0, -diff)
}

// MatchesQuery reports whether q occurs in the event's title or description,
// ignoring case. An empty query matches every event.
func MatchesQuery(ev models.Event, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(ev.Title), q) ||
		strings.Contains(strings.ToLower(ev.Description), q)
}

// Filter returns the events matching q, preserving order.
func Filter(events []models.Event, q string) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if MatchesQuery(ev, q) {
			out = append(out, ev)
		}
	}
	return out
}
