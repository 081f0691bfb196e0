package sse

import (
	"time"

	"github.com/starford/kalendar/internal/models"
)

// MonthKey is the layout of the month keys in a Span.
const MonthKey = "2006-01"

// Span is the range of month grids a change can affect, as MonthKey
// strings. An empty To means every month from From onward. The zero Span
// covers every month.
type Span struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// All reports whether s covers every month.
func (s Span) All() bool {
	return s.From == ""
}

// Covers reports whether the grid for month key m may have changed.
func (s Span) Covers(m string) bool {
	if s.All() {
		return true
	}
	return m >= s.From && (s.To == "" || m <= s.To)
}

// Union returns the smallest span covering s and o.
func (s Span) Union(o Span) Span {
	if s.All() || o.All() {
		return Span{}
	}
	u := Span{From: min(s.From, o.From)}
	if s.To != "" && o.To != "" {
		u.To = max(s.To, o.To)
	}
	return u
}

// SpanOf returns the months whose grids can show any of evs in loc. A
// recurring event reaches every month from its anchor onward. No events, or
// an event whose date does not parse, yields the span of every month.
func SpanOf(loc *time.Location, evs ...models.Event) Span {
	if len(evs) == 0 {
		return Span{}
	}
	var acc Span
	for i, ev := range evs {
		anchor, err := ev.Anchor(loc)
		if err != nil {
			return Span{}
		}
		m := anchor.Format(MonthKey)
		s := Span{From: m, To: m}
		if _, once := ev.Rule().(models.None); !once {
			s.To = ""
		}
		if i == 0 {
			acc = s
		} else {
			acc = acc.Union(s)
		}
	}
	return acc
}
