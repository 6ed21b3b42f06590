package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

// BirthdayGlyph prefixes every synthetic birthday summary. Downstream the
// glyph suppresses the keyword icon and triggers birthday detection.
const BirthdayGlyph = "🎂"

// BirthdayEntry is one configured birthday, date in "D/M" form ("3/1").
type BirthdayEntry struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// Birthdays synthesizes one all-day event per configured entry per year
// overlapping the requested window. Entries come from a JSON file kept out
// of the repo (it holds names).
type Birthdays struct {
	path string
}

func NewBirthdays(path string) *Birthdays {
	return &Birthdays{path: path}
}

func (b *Birthdays) Label() string {
	return "birthday"
}

// LoadEntries reads and sanitizes the configured birthday list. A missing
// file is an empty list, not an error.
func (b *Birthdays) LoadEntries() ([]BirthdayEntry, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []BirthdayEntry{}, nil
		}
		return nil, err
	}
	var raw []BirthdayEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("birthdays: %w", err)
	}
	out := make([]BirthdayEntry, 0, len(raw))
	for _, e := range raw {
		date := strings.TrimSpace(e.Date)
		name := strings.TrimSpace(e.Name)
		if date == "" || name == "" {
			continue
		}
		out = append(out, BirthdayEntry{Date: date, Name: name})
	}
	return out, nil
}

func (b *Birthdays) Fetch(_ context.Context, w model.Window) ([]model.CalendarEvent, error) {
	entries, err := b.LoadEntries()
	if err != nil {
		return nil, err
	}

	// The window may span a year boundary; materialize candidates for each
	// year value present in its start/end years.
	years := []int{w.Start.Year}
	if w.End.Year != w.Start.Year {
		years = append(years, w.End.Year)
	}

	events := make([]model.CalendarEvent, 0)
	for _, year := range years {
		for _, e := range entries {
			day, month, ok := parseDayMonth(e.Date)
			if !ok {
				continue
			}
			// time.Date normalizes Feb 29 to Mar 1 in non-leap years;
			// detect and skip so the birthday only exists when the day does.
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if t.Day() != day || t.Month() != time.Month(month) {
				continue
			}
			d := model.DateOf(t)
			if !w.Contains(d) {
				continue
			}
			events = append(events, model.CalendarEvent{
				Summary:  BirthdayGlyph + e.Name,
				Start:    model.AllDay(d),
				End:      model.AllDay(d),
				Source:   "birthday",
				Calendar: "Födelsedagar",
			})
		}
	}
	return events, nil
}

// parseDayMonth splits "D/M" ("3/1", "29/2").
func parseDayMonth(s string) (day, month int, ok bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return day, month, true
}
