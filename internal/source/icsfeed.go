package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/model"
)

// Feed fetches a generic ICS feed (a Skola24 schedule export in practice)
// and converts its entries to normalized events. Unlike the Home Assistant
// adapter the upstream feed is not pre-filtered, so the adapter itself
// restricts entries to the requested window, expanding recurrence rules
// along the way.
//
// Two independent Feed instances run for two different URLs/labels (one per
// child) and share nothing.
type Feed struct {
	client   *http.Client
	url      string
	label    string
	cacheDir string
	loc      *time.Location
}

const maxOccurrencesPerEvent = 1000

func NewFeed(url, label, cacheDir string, loc *time.Location) *Feed {
	if loc == nil {
		loc = time.Local
	}
	return &Feed{
		client:   &http.Client{Timeout: 15 * time.Second},
		url:      url,
		label:    label,
		cacheDir: cacheDir,
		loc:      loc,
	}
}

func (f *Feed) Label() string {
	return f.label
}

func (f *Feed) Fetch(ctx context.Context, w model.Window) ([]model.CalendarEvent, error) {
	if f.url == "" {
		return nil, errors.New("ics feed URL is empty")
	}

	body, err := f.fetchCached(ctx)
	if err != nil {
		return nil, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	winStart, winEnd := w.Bounds(f.loc)

	events := make([]model.CalendarEvent, 0)
	for _, ve := range cal.Events() {
		parsed, err := f.parseVEvent(ve)
		if err != nil {
			// Skip the broken entry, keep the rest of the feed.
			appLog.Warn("ics vevent skipped", "source", f.label, "reason", err)
			continue
		}
		events = append(events, f.expand(parsed, winStart, winEnd)...)
	}

	return events, nil
}

// parsedEntry is the raw VEVENT shape before window filtering and
// recurrence expansion.
type parsedEntry struct {
	uid         string
	summary     string
	description string
	location    string
	start, end  time.Time
	allDay      bool
	rawRRule    string
	exDates     []time.Time
}

func (f *Feed) parseVEvent(ve *ical.VEvent) (parsedEntry, error) {
	var out parsedEntry

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("missing DTSTART: %w", err)
	}
	out.start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.end = end
	}

	// All-day when DTSTART is VALUE=DATE or carries no time component.
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.allDay = true
			}
		}
		if !strings.Contains(p.Value, "T") {
			out.allDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rawRRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			// Floating values are interpreted in the start's zone so
			// they line up with the generated occurrences.
			if t, err := parseICSTime(part, out.start.Location()); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}

	return out, nil
}

// expand turns one parsed VEVENT into zero or more normalized events inside
// [winStart, winEnd).
func (f *Feed) expand(pe parsedEntry, winStart, winEnd time.Time) []model.CalendarEvent {
	if pe.rawRRule == "" {
		end := pe.end
		if end.IsZero() {
			end = pe.start
		}
		if !overlaps(pe.start, end, winStart, winEnd) {
			return nil
		}
		return []model.CalendarEvent{f.toEvent(pe, pe.start, end)}
	}

	r, err := rrule.StrToRRule(pe.rawRRule)
	if err != nil {
		appLog.Warn("ics rrule unparseable; entry dropped",
			"source", f.label, "rrule", pe.rawRRule, "reason", err)
		return nil
	}
	r.DTStart(pe.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range pe.exDates {
		set.ExDate(ex.In(pe.start.Location()))
	}

	occStarts := set.Between(winStart.In(pe.start.Location()), winEnd.In(pe.start.Location()), true)
	if len(occStarts) > maxOccurrencesPerEvent {
		appLog.Warn("ics recurrence truncated", "source", f.label, "uid", pe.uid, "cap", maxOccurrencesPerEvent)
		occStarts = occStarts[:maxOccurrencesPerEvent]
	}

	dur := pe.end.Sub(pe.start)
	out := make([]model.CalendarEvent, 0, len(occStarts))
	for _, occStart := range occStarts {
		var occEnd time.Time
		if pe.allDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = day
			occEnd = day.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(dur)
		}
		out = append(out, f.toEvent(pe, occStart, occEnd))
	}
	return out
}

func (f *Feed) toEvent(pe parsedEntry, start, end time.Time) model.CalendarEvent {
	var ev model.CalendarEvent
	ev.Summary = pe.summary
	ev.Description = pe.description
	ev.Location = pe.location
	ev.UID = pe.uid
	ev.Source = f.label
	ev.Calendar = f.label

	if pe.allDay {
		ev.Start = model.AllDay(model.DateOf(start))
		// ICS all-day ends are already exclusive; keep the convention, the
		// merge engine subtracts the day.
		ev.End = model.AllDay(model.DateOf(end))
	} else {
		ev.Start = model.Timed(start.In(f.loc))
		ev.End = model.Timed(end.In(f.loc))
	}
	ev.Normalize(f.loc)
	return ev
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// parseICSTime parses the basic ICS date / date-time forms used by EXDATE.
// Floating (non-Z) values are parsed in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if loc == nil {
		loc = time.Local
	}
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// --- HTTP fetch with conditional-request disk cache ---

// feedCacheMeta holds the HTTP validators for one feed URL.
type feedCacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// fetchCached performs a conditional GET honoring ETag/Last-Modified and
// falls back to the cached body on 304, network errors and non-OK statuses.
func (f *Feed) fetchCached(ctx context.Context) ([]byte, error) {
	dir := f.cachePath()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	meta, _ := f.loadMeta(dir)
	cachedBody, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Warn("ics fetch failed; using cached body", "source", f.label, "reason", err)
			return cachedBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		f.saveCache(dir, feedCacheMeta{
			URL:          f.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body)
		return body, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, errors.New("304 Not Modified but no cached body")
		}
		return cachedBody, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Warn("ics fetch non-OK; using cached body",
				"source", f.label, "status", resp.StatusCode)
			return cachedBody, nil
		}
		return nil, errors.New(resp.Status)
	}
}

func (f *Feed) cachePath() string {
	base := f.cacheDir
	if base == "" {
		base = "./var/ics-cache"
	}
	sum := sha256.Sum256([]byte(f.url))
	return filepath.Join(base, hex.EncodeToString(sum[:8]))
}

func (f *Feed) loadMeta(dir string) (feedCacheMeta, error) {
	var meta feedCacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return feedCacheMeta{}, err
	}
	return meta, nil
}

func (f *Feed) saveCache(dir string, meta feedCacheMeta, body []byte) {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		appLog.Warn("ics cache body write failed", "source", f.label, "reason", err)
		return
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600); err != nil {
		appLog.Warn("ics cache meta write failed", "source", f.label, "reason", err)
	}
}
