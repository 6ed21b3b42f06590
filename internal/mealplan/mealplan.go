package mealplan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olofsundelin/familywall/internal/cache"
	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/lunch"
	"github.com/olofsundelin/familywall/internal/window"
)

// The family keeps a fixed weekly meal template on disk (week number →
// days → lunch/dinner slots). The wall reads it per ISO week and overlays
// weekday lunches with the school menu; a nightly job writes the overlay
// back so the template survives feed outages.

// Day is one template day. Lunch is nullable: weekdays get it from the
// school feed, weekends stay whatever the template says.
type Day struct {
	Day    string  `json:"day"`
	Lunch  *string `json:"lunch"`
	Dinner string  `json:"dinner,omitempty"`
}

// Week is one template week.
type Week struct {
	Week int   `json:"week"`
	Days []Day `json:"days"`
}

// Template is the whole meal plan document.
type Template struct {
	Weeks []Week `json:"weeks"`
}

// weekKey builds the cache key for one ISO week, matching the lunch
// client's keying so a Monday rollover misses into a fresh load.
func weekKey(year, week int) string {
	return fmt.Sprintf("%d-%d", year, week)
}

// Planner serves the current week's plan and runs the nightly persist.
type Planner struct {
	path    string
	loc     *time.Location
	clock   cache.Clock
	lunches *lunch.Client
	week    *cache.Cache[Week]
}

func New(path string, lunches *lunch.Client, loc *time.Location, clock cache.Clock) *Planner {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = time.Now
	}
	return &Planner{
		path:    path,
		loc:     loc,
		clock:   clock,
		lunches: lunches,
		week:    cache.New[Week](24*time.Hour, clock),
	}
}

// CurrentWeek returns this ISO week's plan with school lunches overlaid on
// the weekday lunch slots. Cached for a day.
func (p *Planner) CurrentWeek(ctx context.Context) (Week, error) {
	year, weekNo := window.ISOWeek(p.clock(), p.loc)
	key := weekKey(year, weekNo)

	if w, ok := p.week.Get(key); ok {
		return w, nil
	}

	tpl, err := p.load()
	if err != nil {
		return Week{}, err
	}

	this, ok := findWeek(tpl, weekNo)
	if !ok {
		return Week{}, fmt.Errorf("mealplan: week %d missing from template", weekNo)
	}

	p.overlayLunches(ctx, &this)

	p.week.Put(key, this)
	return this, nil
}

// overlayLunches replaces weekday lunch slots with the school menu. A feed
// failure leaves the template values alone.
func (p *Planner) overlayLunches(ctx context.Context, w *Week) {
	if p.lunches == nil {
		return
	}
	menu, err := p.lunches.CurrentWeek(ctx)
	if err != nil {
		appLog.Warn("mealplan: school lunch unavailable; keeping template lunches", "reason", err)
		return
	}
	for i := range w.Days {
		if !isWeekday(w.Days[i].Day) {
			continue
		}
		if desc, ok := menu.Days[w.Days[i].Day]; ok && desc != "" {
			d := desc
			w.Days[i].Lunch = &d
		} else {
			w.Days[i].Lunch = nil
		}
	}
}

// PersistLunches is the nightly job: it writes the current week's school
// lunches into the template file so the plan keeps them after the feed
// rotates to next week.
func (p *Planner) PersistLunches(ctx context.Context) error {
	menu, err := p.lunches.CurrentWeek(ctx)
	if err != nil {
		return fmt.Errorf("mealplan: persist: %w", err)
	}

	tpl, err := p.load()
	if err != nil {
		return err
	}

	year, weekNo := window.ISOWeek(p.clock(), p.loc)
	updated := false
	for wi := range tpl.Weeks {
		if tpl.Weeks[wi].Week != weekNo {
			continue
		}
		for di := range tpl.Weeks[wi].Days {
			day := tpl.Weeks[wi].Days[di].Day
			if !isWeekday(day) {
				continue
			}
			if desc, ok := menu.Days[day]; ok && desc != "" {
				d := desc
				tpl.Weeks[wi].Days[di].Lunch = &d
				updated = true
			}
		}
	}
	if !updated {
		appLog.Info("mealplan: nightly persist found nothing to write", "week", weekNo)
		return nil
	}

	if err := p.save(tpl); err != nil {
		return err
	}
	p.week.Invalidate(weekKey(year, weekNo))
	appLog.Info("mealplan: nightly persist wrote school lunches", "week", weekNo)
	return nil
}

func (p *Planner) load() (Template, error) {
	var tpl Template
	data, err := os.ReadFile(p.path)
	if err != nil {
		return tpl, fmt.Errorf("mealplan: read template: %w", err)
	}
	if err := json.Unmarshal(data, &tpl); err != nil {
		return tpl, fmt.Errorf("mealplan: parse template: %w", err)
	}
	return tpl, nil
}

// save writes the template atomically (temp file + rename, same discipline
// as the config store).
func (p *Planner) save(tpl Template) error {
	data, err := json.MarshalIndent(&tpl, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".matsedel-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, p.path)
}

func findWeek(tpl Template, weekNo int) (Week, bool) {
	for _, w := range tpl.Weeks {
		if w.Week == weekNo {
			return w, true
		}
	}
	return Week{}, false
}

func isWeekday(day string) bool {
	for _, d := range lunch.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
