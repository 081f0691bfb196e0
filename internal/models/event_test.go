package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestCollectionRoundTrip(t *testing.T) {
	events := []Event{
		{ID: "b", Title: "Standup", Date: "2026-10-14T09:30", Color: "#007bff", Recurrence: Weekly{Days: []time.Weekday{time.Monday, time.Wednesday}}},
		{ID: "a", Title: "Rent", Description: "transfer", Date: "2026-10-01T08:00", Color: "#ff0000", Recurrence: Monthly{}},
		{ID: "c", Title: "Sprint", Date: "2026-10-05", Color: "#00ff00", Recurrence: Custom{Interval: 3}},
		{ID: "d", Title: "Pills", Date: "2026-10-05T07:00", Color: "#000", Recurrence: Daily{}},
		{ID: "e", Title: "Dentist", Date: "2026-11-02T15:00", Color: "#111", Recurrence: None{}},
	}
	data, err := EncodeCollection(events)
	if err != nil {
		t.Fatalf("EncodeCollection: %v", err)
	}
	got, err := DecodeCollection(data)
	if err != nil {
		t.Fatalf("DecodeCollection: %v", err)
	}
	if !reflect.DeepEqual(got, events) {
		t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, events)
	}
}

func TestDecodeCollection_Empty(t *testing.T) {
	got, err := DecodeCollection(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestEncodeCollection_NilIsArray(t *testing.T) {
	data, err := EncodeCollection(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("data = %s, want []", data)
	}
}

func TestUnmarshal_NumericID(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"id":1718000000000,"title":"x","date":"2026-10-14T09:30"}`), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.ID != "1718000000000" {
		t.Errorf("id = %q", ev.ID)
	}
	if _, ok := ev.Recurrence.(None); !ok {
		t.Errorf("missing recurrence should decode as None, got %#v", ev.Recurrence)
	}
}

func TestUnmarshal_CustomDefaultInterval(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"id":"1","recurrence":{"type":"custom"}}`), &ev); err != nil {
		t.Fatal(err)
	}
	c, ok := ev.Recurrence.(Custom)
	if !ok || c.Interval != DefaultCustomInterval {
		t.Errorf("recurrence = %#v, want Custom{2}", ev.Recurrence)
	}
}

func TestUnmarshal_UnknownType(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"id":"1","recurrence":{"type":"yearly"}}`), &ev)
	if err == nil || !strings.Contains(err.Error(), "unknown recurrence type") {
		t.Errorf("err = %v, want unknown recurrence type", err)
	}
}

func TestUnmarshal_WeekdayOutOfRange(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"id":"1","recurrence":{"type":"weekly","daysOfWeek":[7]}}`), &ev); err == nil {
		t.Error("expected error for weekday 7")
	}
}

func TestMarshal_WireShape(t *testing.T) {
	ev := Event{ID: "1", Title: "t", Date: "2026-10-14T09:30", Recurrence: Weekly{Days: []time.Weekday{1, 3}}}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"recurrence":{"type":"weekly","daysOfWeek":[1,3]}`) {
		t.Errorf("unexpected wire form: %s", data)
	}
}

func TestParseAnchor(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)
	cases := map[string]time.Time{
		"2026-10-14T09:30":     time.Date(2026, 10, 14, 9, 30, 0, 0, loc),
		"2026-10-14T09:30:15":  time.Date(2026, 10, 14, 9, 30, 15, 0, loc),
		"2026-10-14":           time.Date(2026, 10, 14, 0, 0, 0, 0, loc),
		"2026-10-13T23:00:00Z": time.Date(2026, 10, 14, 1, 0, 0, 0, loc),
	}
	for in, want := range cases {
		got, err := ParseAnchor(in, loc)
		if err != nil {
			t.Errorf("ParseAnchor(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) || got.Day() != want.Day() {
			t.Errorf("ParseAnchor(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseAnchor("next tuesday", loc); err == nil {
		t.Error("expected error for free text")
	}
}

func TestHexColor(t *testing.T) {
	for _, c := range []string{"#abc", "#007bff", "#ABCDEF"} {
		if !HexColor.MatchString(c) {
			t.Errorf("%q rejected", c)
		}
	}
	for _, c := range []string{"", "abc", "#abcd", "#gggggg", "blue", "#007bff00"} {
		if HexColor.MatchString(c) {
			t.Errorf("%q accepted", c)
		}
	}
}
