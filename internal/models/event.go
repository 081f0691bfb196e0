// Package models defines the domain types for Kalendar.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Recurrence kinds as they appear on the wire.
const (
	KindNone    = "none"
	KindDaily   = "daily"
	KindWeekly  = "weekly"
	KindMonthly = "monthly"
	KindCustom  = "custom"
)

// HexColor matches the #rgb and #rrggbb color forms events carry.
var HexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// DefaultCustomInterval is used when a custom rule carries no interval.
const DefaultCustomInterval = 2

// Recurrence is a closed set of rules; the only implementations are the
// variant types in this file.
type Recurrence interface {
	Kind() string
	isRecurrence()
}

// None matches only the anchor date.
type None struct{}

// Daily matches the anchor date and every date after it.
type Daily struct{}

// Weekly matches dates on or after the anchor whose weekday is in Days.
// An empty Days falls back to the anchor's weekday.
type Weekly struct {
	Days []time.Weekday
}

// Monthly matches dates on or after the anchor sharing its day-of-month.
type Monthly struct{}

// Custom matches every day of each Interval-th week counted from the anchor.
// A zero Interval means DefaultCustomInterval.
type Custom struct {
	Interval int
}

func (None) Kind() string    { return KindNone }
func (Daily) Kind() string   { return KindDaily }
func (Weekly) Kind() string  { return KindWeekly }
func (Monthly) Kind() string { return KindMonthly }
func (Custom) Kind() string  { return KindCustom }

func (None) isRecurrence()    {}
func (Daily) isRecurrence()   {}
func (Weekly) isRecurrence()  {}
func (Monthly) isRecurrence() {}
func (Custom) isRecurrence()  {}

// EffectiveInterval returns the interval used for matching.
func (c Custom) EffectiveInterval() int {
	if c.Interval < 1 {
		return DefaultCustomInterval
	}
	return c.Interval
}

// Event is a stored calendar entry. Date is the anchor date-time exactly as
// it was submitted; conflict detection compares it verbatim.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Color       string     `json:"color"`
	Recurrence  Recurrence `json:"recurrence"`
}

// Rule returns the event's recurrence, treating nil as None.
func (e Event) Rule() Recurrence {
	if e.Recurrence == nil {
		return None{}
	}
	return e.Recurrence
}

// Anchor parses the stored date in loc.
func (e Event) Anchor(loc *time.Location) (time.Time, error) {
	return ParseAnchor(e.Date, loc)
}

// AnchorLayout is the layout written by move operations and imports.
const AnchorLayout = "2006-01-02T15:04"

var localLayouts = []string{
	AnchorLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseAnchor parses a stored anchor date-time. Zoned RFC 3339 values are
// converted into loc; zoneless values are interpreted in loc.
func ParseAnchor(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("models: unrecognised date %q", s)
}

type recurrenceJSON struct {
	Type       string `json:"type"`
	DaysOfWeek []int  `json:"daysOfWeek,omitempty"`
	Interval   *int   `json:"interval,omitempty"`
}

type eventJSON struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Color       string          `json:"color"`
	Recurrence  *recurrenceJSON `json:"recurrence"`
}

// MarshalJSON writes the recurrence as a tagged object.
func (e Event) MarshalJSON() ([]byte, error) {
	id, err := json.Marshal(e.ID)
	if err != nil {
		return nil, err
	}
	rj := encodeRecurrence(e.Rule())
	return json.Marshal(eventJSON{
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Color:       e.Color,
		Recurrence:  &rj,
	})
}

// UnmarshalJSON accepts string or numeric ids and a tagged recurrence object.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	rec, err := decodeRecurrence(raw.Recurrence)
	if err != nil {
		return err
	}
	*e = Event{
		ID:          id,
		Title:       raw.Title,
		Description: raw.Description,
		Date:        raw.Date,
		Color:       raw.Color,
		Recurrence:  rec,
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("models: id must be a string or number: %w", err)
	}
	return n.String(), nil
}

func encodeRecurrence(r Recurrence) recurrenceJSON {
	switch v := r.(type) {
	case Weekly:
		days := make([]int, len(v.Days))
		for i, d := range v.Days {
			days[i] = int(d)
		}
		return recurrenceJSON{Type: KindWeekly, DaysOfWeek: days}
	case Custom:
		n := v.Interval
		return recurrenceJSON{Type: KindCustom, Interval: &n}
	default:
		return recurrenceJSON{Type: r.Kind()}
	}
}

func decodeRecurrence(rj *recurrenceJSON) (Recurrence, error) {
	if rj == nil {
		return None{}, nil
	}
	switch rj.Type {
	case "", KindNone:
		return None{}, nil
	case KindDaily:
		return Daily{}, nil
	case KindMonthly:
		return Monthly{}, nil
	case KindWeekly:
		days := make([]time.Weekday, 0, len(rj.DaysOfWeek))
		for _, d := range rj.DaysOfWeek {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("models: weekday %d out of range", d)
			}
			days = append(days, time.Weekday(d))
		}
		return Weekly{Days: days}, nil
	case KindCustom:
		if rj.Interval == nil {
			return Custom{Interval: DefaultCustomInterval}, nil
		}
		return Custom{Interval: *rj.Interval}, nil
	default:
		return nil, fmt.Errorf("models: unknown recurrence type %q", rj.Type)
	}
}

// EncodeCollection serialises events as a JSON array, preserving order.
func EncodeCollection(events []Event) ([]byte, error) {
	if events == nil {
		events = []Event{}
	}
	return json.Marshal(events)
}

// DecodeCollection parses a snapshot written by EncodeCollection. Empty
// input decodes to an empty collection.
func DecodeCollection(data []byte) ([]Event, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Event{}, nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("models: decode collection: %w", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}
