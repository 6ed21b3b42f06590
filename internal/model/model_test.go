package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateAddDays(t *testing.T) {
	cases := []struct {
		in   Date
		n    int
		want string
	}{
		{Date{2025, time.June, 10}, 1, "2025-06-11"},
		{Date{2025, time.June, 30}, 1, "2025-07-01"},
		{Date{2025, time.December, 31}, 1, "2026-01-01"},
		{Date{2026, time.January, 1}, -1, "2025-12-31"},
		{Date{2024, time.February, 28}, 1, "2024-02-29"},
		{Date{2025, time.February, 28}, 1, "2025-03-01"},
		{Date{2025, time.June, 10}, 0, "2025-06-10"},
	}
	for _, c := range cases {
		if got := c.in.AddDays(c.n).String(); got != c.want {
			t.Fatalf("AddDays(%v, %d) = %s, want %s", c.in, c.n, got, c.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d != (Date{2025, time.June, 10}) {
		t.Fatalf("ParseDate = %v", d)
	}
	if _, err := ParseDate("10/06/2025"); err == nil {
		t.Fatalf("ParseDate accepted a non-ISO date")
	}
}

func TestDateOrdering(t *testing.T) {
	a := Date{2025, time.December, 31}
	b := Date{2026, time.January, 1}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("year-boundary ordering broken: %v vs %v", a, b)
	}
	if !b.After(a) {
		t.Fatalf("After inconsistent with Before")
	}
	if !a.Equal(a) {
		t.Fatalf("Equal(self) false")
	}
}

func TestBoundaryMarshalShapes(t *testing.T) {
	allDay, err := json.Marshal(AllDay(Date{2025, time.June, 10}))
	if err != nil {
		t.Fatalf("marshal all-day: %v", err)
	}
	if string(allDay) != `"2025-06-10"` {
		t.Fatalf("all-day boundary = %s, want bare date string", allDay)
	}

	timed, err := json.Marshal(Timed(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("marshal timed: %v", err)
	}
	if string(timed) != `{"dateTime":"2025-06-10T09:00:00Z"}` {
		t.Fatalf("timed boundary = %s", timed)
	}
}

func TestBoundaryUnmarshalShapes(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		allDay bool
	}{
		{"bare date", `"2025-06-10"`, true},
		{"bare instant", `"2025-06-10T09:00:00Z"`, false},
		{"date object", `{"date":"2025-06-10"}`, true},
		{"dateTime object", `{"dateTime":"2025-06-10T09:00:00Z"}`, false},
	}
	for _, c := range cases {
		var b Boundary
		if err := json.Unmarshal([]byte(c.in), &b); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if b.AllDay != c.allDay {
			t.Fatalf("%s: AllDay = %v, want %v", c.name, b.AllDay, c.allDay)
		}
		if c.allDay && b.Date != (Date{2025, time.June, 10}) {
			t.Fatalf("%s: date = %v", c.name, b.Date)
		}
		if !c.allDay && !b.DateTime.Equal(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("%s: instant = %v", c.name, b.DateTime)
		}
	}

	var b Boundary
	if err := json.Unmarshal([]byte(`{}`), &b); err == nil {
		t.Fatalf("empty boundary object should not unmarshal")
	}
}

func TestBoundaryInstantAllDaySortsFirst(t *testing.T) {
	loc := time.UTC
	allDay := AllDay(Date{2025, time.June, 10})
	timed := Timed(time.Date(2025, 6, 10, 0, 0, 1, 0, time.UTC))
	if !allDay.Instant(loc).Before(timed.Instant(loc)) {
		t.Fatalf("all-day boundary should sort before any timed entry of the day")
	}
}

func TestNormalizeMissingEnd(t *testing.T) {
	ev := CalendarEvent{
		Summary: "Tandläkare",
		Start:   Timed(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)),
	}
	ev.Normalize(time.UTC)
	if !ev.End.DateTime.Equal(ev.Start.DateTime) {
		t.Fatalf("missing end not defaulted to start: %v", ev.End)
	}
}

func TestNormalizeEndBeforeStart(t *testing.T) {
	ev := CalendarEvent{
		Summary: "trasig",
		Start:   Timed(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)),
		End:     Timed(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)),
	}
	ev.Normalize(time.UTC)
	if !ev.End.DateTime.Equal(ev.Start.DateTime) {
		t.Fatalf("end before start not corrected: %v", ev.End)
	}
}

func TestInstanceID(t *testing.T) {
	inst := DayInstance{
		CalendarEvent: CalendarEvent{Summary: "Simskola", UID: "abc"},
		InstanceDate:  Date{2025, time.June, 10},
	}
	if got := inst.InstanceID(); got != "abc|2025-06-10" {
		t.Fatalf("InstanceID = %q", got)
	}
	inst.UID = ""
	if got := inst.InstanceID(); got != "Simskola|2025-06-10" {
		t.Fatalf("InstanceID without uid = %q", got)
	}
}

func TestWindowDaysAndContains(t *testing.T) {
	w := Window{Start: Date{2025, time.December, 29}, End: Date{2026, time.January, 18}}
	if got := w.Days(); got != 21 {
		t.Fatalf("Days = %d, want 21", got)
	}
	if !w.Contains(Date{2026, time.January, 1}) {
		t.Fatalf("window should contain new year's day")
	}
	if w.Contains(Date{2025, time.December, 28}) || w.Contains(Date{2026, time.January, 19}) {
		t.Fatalf("window bounds are inclusive, neighbors must be outside")
	}
}

func TestWindowBoundsHalfOpen(t *testing.T) {
	w := Window{Start: Date{2025, time.June, 9}, End: Date{2025, time.June, 15}}
	start, end := w.Bounds(time.UTC)
	if !start.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start bound = %v", start)
	}
	if !end.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end bound = %v, want midnight after last day", end)
	}
}
