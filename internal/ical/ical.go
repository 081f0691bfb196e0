// Package ical converts the event collection to and from iCalendar.
package ical

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/starford/kalendar/internal/models"
)

const localStamp = "20060102T150405"

// ExportOptions control the generated VCALENDAR.
type ExportOptions struct {
	Name     string
	Location *time.Location
	Now      time.Time
}

// Export renders events as a VCALENDAR. Events whose anchor cannot be parsed
// are left out.
func Export(events []models.Event, opts ExportOptions) (string, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//kalendar//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		anchor, err := ev.Anchor(opts.Location)
		if err != nil {
			continue
		}
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(opts.Now)
		setStart(ve, anchor)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Color != "" {
			ve.SetColor(ev.Color)
		}
		if rule, ok := RRule(anchor, ev.Rule()); ok {
			ve.AddRrule(rule)
		}
	}
	return cal.Serialize(), nil
}

// RRule returns the RFC 5545 rule equivalent to rule for an event anchored
// at anchor. It reports false for non-recurring events.
func RRule(anchor time.Time, rule models.Recurrence) (string, bool) {
	opt, ok := ROption(anchor, rule)
	if !ok {
		return "", false
	}
	return opt.RRuleString(), true
}

// ROption builds the rrule options for rule, with Dtstart set to anchor.
// A custom interval counts whole weeks from the anchor's weekday, so every
// day of each n-th week matches.
func ROption(anchor time.Time, rule models.Recurrence) (rrule.ROption, bool) {
	opt := rrule.ROption{Dtstart: anchor}
	switch r := rule.(type) {
	case models.Daily:
		opt.Freq = rrule.DAILY
	case models.Weekly:
		opt.Freq = rrule.WEEKLY
		days := r.Days
		if len(days) == 0 {
			days = []time.Weekday{anchor.Weekday()}
		}
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, toRRule(d))
		}
	case models.Monthly:
		opt.Freq = rrule.MONTHLY
	case models.Custom:
		opt.Freq = rrule.WEEKLY
		opt.Interval = r.EffectiveInterval()
		opt.Wkst = toRRule(anchor.Weekday())
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}
	default:
		return rrule.ROption{}, false
	}
	return opt, true
}

// Import reads VEVENTs from r. Start times are converted to loc. VEVENTs
// without DTSTART are skipped and rules that have no equivalent import as
// non-recurring; both produce a warning.
func Import(r io.Reader, loc *time.Location) ([]models.Event, []string, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, nil, fmt.Errorf("ical: parse: %w", err)
	}

	events := []models.Event{}
	var warnings []string
	for _, ve := range cal.Events() {
		ev, warn, err := fromVEvent(ve, loc)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", ve.Id(), err))
			continue
		}
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", ev.ID, warn))
		}
		events = append(events, ev)
	}
	return events, warnings, nil
}

func fromVEvent(ve *ics.VEvent, loc *time.Location) (models.Event, string, error) {
	prop := ve.GetProperty(ics.ComponentPropertyDtStart)
	if prop == nil {
		return models.Event{}, "", errors.New("missing DTSTART")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return models.Event{}, "", fmt.Errorf("DTSTART: %w", err)
	}

	ev := models.Event{
		ID:          ve.Id(),
		Title:       value(ve, ics.ComponentPropertySummary),
		Description: value(ve, ics.ComponentPropertyDescription),
		Recurrence:  models.None{},
	}
	if c := value(ve, ics.ComponentPropertyColor); models.HexColor.MatchString(c) {
		ev.Color = c
	}

	var anchor time.Time
	switch {
	case floating(prop):
		// Floating times are wall-clock times in the calendar's own zone.
		anchor, err = time.ParseInLocation(localStamp, prop.Value, loc)
		if err != nil {
			return models.Event{}, "", fmt.Errorf("DTSTART: %w", err)
		}
		ev.Date = anchor.Format(models.AnchorLayout)
	case strings.Contains(prop.Value, "T"):
		anchor = start.In(loc)
		ev.Date = anchor.Format(models.AnchorLayout)
	default:
		anchor = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		ev.Date = anchor.Format(time.DateOnly)
	}

	raw := value(ve, ics.ComponentPropertyRrule)
	if raw == "" {
		return ev, "", nil
	}
	rule, warn := fromRRule(raw, anchor)
	ev.Recurrence = rule
	return ev, warn, nil
}

// fromRRule reverses ROption. COUNT and UNTIL bounds are dropped with a
// warning; anything else without an equivalent becomes None.
func fromRRule(raw string, anchor time.Time) (models.Recurrence, string) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return models.None{}, fmt.Sprintf("unreadable RRULE %q imported as a single event", raw)
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byyearday)+
		len(opt.Byweekno)+len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return models.None{}, fmt.Sprintf("unsupported RRULE %q imported as a single event", raw)
	}
	warn := ""
	if opt.Count != 0 || !opt.Until.IsZero() {
		warn = fmt.Sprintf("RRULE %q bound dropped, event repeats indefinitely", raw)
	}
	interval := max(opt.Interval, 1)

	switch opt.Freq {
	case rrule.DAILY:
		if interval == 1 && len(opt.Byweekday) == 0 {
			return models.Daily{}, warn
		}
	case rrule.MONTHLY:
		if interval == 1 && len(opt.Byweekday) == 0 {
			return models.Monthly{}, warn
		}
	case rrule.WEEKLY:
		days, ok := fromRRuleDays(opt.Byweekday)
		if !ok {
			break
		}
		if len(days) == 7 {
			want := toRRule(anchor.Weekday())
			if opt.Wkst.Day() != want.Day() && interval > 1 {
				warn = strings.TrimSpace(warn + fmt.Sprintf(" week start %v differs from anchor weekday", opt.Wkst))
			}
			return models.Custom{Interval: interval}, warn
		}
		if interval == 1 {
			return models.Weekly{Days: days}, warn
		}
	}
	return models.None{}, fmt.Sprintf("unsupported RRULE %q imported as a single event", raw)
}

func fromRRuleDays(wds []rrule.Weekday) ([]time.Weekday, bool) {
	var out []time.Weekday
	for _, wd := range wds {
		if wd.N() != 0 {
			return nil, false
		}
		d := fromRRuleDay(wd)
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out, true
}

// setStart writes DTSTART as UTC, as a TZID-qualified local time when the
// zone name is one importers can load, and as floating time otherwise.
func setStart(ve *ics.VEvent, t time.Time) {
	name := t.Location().String()
	switch {
	case name == "UTC":
		ve.SetStartAt(t)
	case name != "" && name != "Local" && loadable(name):
		ve.SetProperty(ics.ComponentPropertyDtStart, t.Format(localStamp), ics.WithTZID(name))
	default:
		ve.SetProperty(ics.ComponentPropertyDtStart, t.Format(localStamp))
	}
}

func loadable(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
}

// floating reports a date-time with neither a UTC marker nor a TZID.
func floating(prop *ics.IANAProperty) bool {
	return strings.Contains(prop.Value, "T") &&
		!strings.HasSuffix(prop.Value, "Z") &&
		len(prop.ICalParameters[string(ics.ParameterTzid)]) == 0
}

func value(ve *ics.VEvent, p ics.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

var rruleDays = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// rrule numbers weekdays from Monday.
func toRRule(d time.Weekday) rrule.Weekday {
	return rruleDays[(int(d)+6)%7]
}

func fromRRuleDay(wd rrule.Weekday) time.Weekday {
	return time.Weekday((wd.Day() + 1) % 7)
}
