package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date is a civil calendar date without time-of-day or timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a bare ISO date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in the given location.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n calendar days. time.Date normalizes
// overflow, so month/year boundaries come out right.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) Equal(o Date) bool {
	return d == o
}

func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Boundary is one end of an event: either an all-day marker carrying only a
// civil date, or a timed instant.
//
// Wire shapes (both directions):
//
//	"2025-06-10"                          all-day
//	{"dateTime": "2025-06-10T09:00:00Z"}  timed
//
// Inbound we additionally accept {"date": "..."} (Home Assistant / Google
// style) and a bare RFC3339 string, since the upstream sources are not
// consistent about it.
type Boundary struct {
	DateTime time.Time // timed boundaries only
	Date     Date      // all-day boundaries only
	AllDay   bool
}

// Timed builds a timed boundary.
func Timed(t time.Time) Boundary {
	return Boundary{DateTime: t}
}

// AllDay builds an all-day boundary.
func AllDay(d Date) Boundary {
	return Boundary{Date: d, AllDay: true}
}

func (b Boundary) IsZero() bool {
	if b.AllDay {
		return b.Date.IsZero()
	}
	return b.DateTime.IsZero()
}

// DateIn returns the civil day of the boundary. Timed boundaries are
// converted to loc first; all-day boundaries are zone-free by definition.
func (b Boundary) DateIn(loc *time.Location) Date {
	if b.AllDay {
		return b.Date
	}
	return DateOf(b.DateTime.In(loc))
}

// Instant returns the effective instant of the boundary for ordering.
// All-day boundaries sort as start-of-day in loc, so they float to the top
// of a day's list relative to timed entries.
func (b Boundary) Instant(loc *time.Location) time.Time {
	if b.AllDay {
		return b.Date.Time(loc)
	}
	return b.DateTime.In(loc)
}

func (b Boundary) MarshalJSON() ([]byte, error) {
	if b.AllDay {
		return json.Marshal(b.Date.String())
	}
	return json.Marshal(struct {
		DateTime string `json:"dateTime"`
	}{DateTime: b.DateTime.Format(time.RFC3339)})
}

func (b *Boundary) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*b = Boundary{}
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return b.setFromString(s)
	}

	var obj struct {
		Date     string `json:"date"`
		DateTime string `json:"dateTime"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.DateTime != "":
		return b.setFromString(obj.DateTime)
	case obj.Date != "":
		return b.setFromString(obj.Date)
	}
	return errors.New("boundary: neither date nor dateTime present")
}

func (b *Boundary) setFromString(s string) error {
	if len(s) == len("2006-01-02") {
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		*b = AllDay(d)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("boundary: bad instant %q: %w", s, err)
	}
	*b = Timed(t)
	return nil
}

// CalendarEvent is the normalized, source-agnostic event shape every adapter
// produces. A leading 🎂 in Summary marks synthetic birthday entries; the UI
// uses it for icon suppression and confetti.
type CalendarEvent struct {
	Summary     string   `json:"summary"`
	Start       Boundary `json:"start"`
	End         Boundary `json:"end"`
	Location    string   `json:"location"`
	Source      string   `json:"source"`
	Calendar    string   `json:"calendar"`
	UID         string   `json:"uid,omitempty"`
	Description string   `json:"description,omitempty"`
}

// IsAllDay reports whether the event carries no time-of-day at all.
func (e CalendarEvent) IsAllDay() bool {
	return e.Start.AllDay && (e.End.AllDay || e.End.IsZero())
}

// Normalize enforces the model invariant End >= Start: a missing end becomes
// the start, and an end that precedes the start is corrected to the start.
func (e *CalendarEvent) Normalize(loc *time.Location) {
	if e.End.IsZero() {
		e.End = e.Start
		return
	}
	if e.End.AllDay != e.Start.AllDay {
		// Mixed boundaries come from sloppy feeds; compare as instants.
		if e.End.Instant(loc).Before(e.Start.Instant(loc)) {
			e.End = e.Start
		}
		return
	}
	if e.Start.AllDay {
		if e.End.Date.Before(e.Start.Date) {
			e.End = e.Start
		}
		return
	}
	if e.End.DateTime.Before(e.Start.DateTime) {
		e.End = e.Start
	}
}

// DayInstance is the projection of a CalendarEvent onto one covered calendar
// day. Never persisted; recomputed per aggregation call.
type DayInstance struct {
	CalendarEvent
	InstanceDate Date `json:"instanceDate"`
}

// InstanceID is the UI identity of an instance: (uid or summary, day).
func (i DayInstance) InstanceID() string {
	key := i.UID
	if key == "" {
		key = i.Summary
	}
	return key + "|" + i.InstanceDate.String()
}

// Window is the inclusive civil date range an aggregation call covers.
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days the window covers.
func (w Window) Days() int {
	n := 0
	for d := w.Start; !d.After(w.End); d = d.AddDays(1) {
		n++
	}
	return n
}

// Bounds returns the window as half-open instants [start, end) in loc,
// for upstream APIs that want timestamps rather than civil dates.
func (w Window) Bounds(loc *time.Location) (time.Time, time.Time) {
	return w.Start.Time(loc), w.End.AddDays(1).Time(loc)
}
