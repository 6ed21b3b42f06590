package lunch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/olofsundelin/familywall/internal/cache"
	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/window"
)

// The school publishes the week's lunch menu as an RSS feed (skolmaten.se),
// one item per weekday. Item titles vary ("Måndag - Vecka 33", "Måndag
// 11/8") so the weekday is matched anywhere in the title.

// Weekdays are the Monday..Friday keys of a week menu, in display form.
var Weekdays = []string{"Måndag", "Tisdag", "Onsdag", "Torsdag", "Fredag"}

var dayRe = regexp.MustCompile(`(?i)(måndag|tisdag|onsdag|torsdag|fredag)`)

var (
	brRe        = regexp.MustCompile(`(?i)<br\s*/?>`)
	commaRunsRe = regexp.MustCompile(`\s*,\s*`)
	spaceRunsRe = regexp.MustCompile(`\s+`)
)

// WeekMenu maps weekday name to the day's menu text.
type WeekMenu map[string]string

// Menu is one ISO week's school lunch, as returned to the API.
type Menu struct {
	Week     int      `json:"vecka"`
	WeekYear int      `json:"år"`
	Days     WeekMenu `json:"-"`
}

// Client fetches and caches the weekly menu. Cache key is year-isoweek so a
// Monday rollover naturally misses into a fresh fetch.
type Client struct {
	httpClient *http.Client
	feedURL    string
	loc        *time.Location
	clock      cache.Clock
	weeks      *cache.Cache[WeekMenu]
}

func New(feedURL string, loc *time.Location, clock cache.Clock) *Client {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		feedURL:    feedURL,
		loc:        loc,
		clock:      clock,
		weeks:      cache.New[WeekMenu](24*time.Hour, clock),
	}
}

// CurrentWeek returns the menu for the current ISO week, cached for a day.
// On a failed refresh a stale entry for the same week is served; with no
// cache at all the error propagates and the caller falls back to an empty
// menu (the agent keeps working without lunch data).
func (c *Client) CurrentWeek(ctx context.Context) (Menu, error) {
	now := c.clock()
	year, week := window.ISOWeek(now, c.loc)
	key := fmt.Sprintf("%d-%d", year, week)

	menu := Menu{Week: week, WeekYear: year}

	if v, ok := c.weeks.Get(key); ok {
		menu.Days = v
		return menu, nil
	}

	days, err := c.fetch(ctx)
	if err != nil {
		if stale, ok := c.weeks.Stale(key); ok {
			appLog.Warn("school lunch refresh failed; serving stale menu", "reason", err)
			menu.Days = stale
			return menu, nil
		}
		return menu, err
	}

	c.weeks.Put(key, days)
	menu.Days = days
	return menu, nil
}

// rssDoc is the fixed RSS 2.0 shape of the feed.
type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
}

func (c *Client) fetch(ctx context.Context) (WeekMenu, error) {
	if c.feedURL == "" {
		return nil, fmt.Errorf("school lunch feed URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("school lunch: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return ParseFeed(body)
}

// ParseFeed extracts the weekday → menu mapping from an RSS payload.
func ParseFeed(body []byte) (WeekMenu, error) {
	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("school lunch: rss parse: %w", err)
	}

	menu := make(WeekMenu)
	for _, item := range doc.Channel.Items {
		m := dayRe.FindString(strings.TrimSpace(item.Title))
		if m == "" {
			continue
		}
		day := normalizeDay(m)
		menu[day] = cleanDescription(item.Description)
	}

	if len(menu) == 0 {
		appLog.Warn("school lunch feed had no matching weekday items")
	}
	return menu, nil
}

func normalizeDay(s string) string {
	s = strings.ToLower(s)
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// cleanDescription turns the feed's HTML-ish description into a single
// comma-separated line.
func cleanDescription(raw string) string {
	s := brRe.ReplaceAllString(strings.TrimSpace(raw), ", ")
	s = commaRunsRe.ReplaceAllString(s, ", ")
	s = spaceRunsRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
