package window

import (
	"fmt"
	"time"

	"github.com/olofsundelin/familywall/internal/model"
)

// ForWeeks computes the rolling display window: start is the most recent
// Monday at or before now (civil, in loc), end is start + weeks*7 - 1 days.
//
// weeks comes straight from the UI (3 for the normal view, 6 for the
// expanded one); any positive value is accepted, anything else is an
// invalid-input error that is fatal to the aggregation call.
func ForWeeks(now time.Time, weeks int, loc *time.Location) (model.Window, error) {
	if weeks <= 0 {
		return model.Window{}, fmt.Errorf("window: weeks must be positive, got %d", weeks)
	}
	if loc == nil {
		loc = time.Local
	}

	start := mondayOf(model.DateOf(now.In(loc)))
	return model.Window{
		Start: start,
		End:   start.AddDays(weeks*7 - 1),
	}, nil
}

// mondayOf returns the most recent Monday at or before d.
func mondayOf(d model.Date) model.Date {
	// Go counts Sunday as 0; shift so Monday is 0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// ISOWeek returns the ISO-8601 week-year and week number of now in loc.
// The meal plan and school-lunch cache are keyed by this.
func ISOWeek(now time.Time, loc *time.Location) (year, week int) {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).ISOWeek()
}
