package agg

import (
	"sort"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

// Aggregate turns the concatenated adapter output (order irrelevant) into a
// flat, day-ordered list of DayInstance covering exactly the requested
// window. It is pure: no I/O, no clock, identical inputs give identical
// output.
//
// Expansion rules per event:
//
//   - All-day events use the exclusive-end convention upstream, so the end
//     day is pulled back by one to get the last covered day.
//   - Timed events ending exactly at midnight (and not zero-length) would
//     otherwise leak a trailing empty day; the end day is pulled back by one.
//   - After adjustment end is clamped to start, never a negative expansion.
//
// No cross-source dedup is performed: the same appointment present in two
// feeds shows up twice. Rare in practice and cheaper to surface than to
// guess identity across sources.
func Aggregate(events []model.CalendarEvent, w model.Window, loc *time.Location) []model.DayInstance {
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.DayInstance, 0, len(events))

	for _, ev := range events {
		if ev.Start.IsZero() {
			// Malformed record; dropped during normalization, not an error.
			continue
		}
		ev.Normalize(loc)

		first, last := effectiveDays(ev, loc)
		for d := first; !d.After(last); d = d.AddDays(1) {
			if !w.Contains(d) {
				continue
			}
			out = append(out, model.DayInstance{
				CalendarEvent: ev,
				InstanceDate:  d,
			})
		}
	}

	// Day ascending, then effective start instant ascending. All-day
	// boundaries sort as start-of-day (model.Boundary.Instant), so they
	// float above timed entries. Stable keeps equal entries in input order.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].InstanceDate.Equal(out[j].InstanceDate) {
			return out[i].InstanceDate.Before(out[j].InstanceDate)
		}
		return out[i].Start.Instant(loc).Before(out[j].Start.Instant(loc))
	})

	return out
}

// effectiveDays computes the inclusive civil-day span an event covers.
func effectiveDays(ev model.CalendarEvent, loc *time.Location) (first, last model.Date) {
	first = ev.Start.DateIn(loc)
	last = ev.End.DateIn(loc)

	if ev.IsAllDay() {
		// Upstream all-day ends are exclusive (the day after the last
		// covered day).
		last = last.AddDays(-1)
	} else if !ev.End.AllDay {
		end := ev.End.DateTime.In(loc)
		if isMidnight(end) && !ev.End.DateTime.Equal(ev.Start.DateTime) {
			last = last.AddDays(-1)
		}
	}

	if last.Before(first) {
		last = first
	}
	return first, last
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
