package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/olofsundelin/familywall/internal/cache"
	appLog "github.com/olofsundelin/familywall/internal/log"
)

// The wall annotates each calendar day with an SMHI Wsymb2 symbol code, and
// the header with the current symbol + temperature. Forecast data changes
// slowly, so the daily map is cached for a day and served stale on upstream
// failure.

const defaultBaseURL = "https://opendata-download-metfcst.smhi.se"

const dailyCacheKey = "daily"

// Client fetches point forecasts for one configured coordinate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lat, lon   float64
	loc        *time.Location
	daily      *cache.Cache[map[string]int]
}

// Current is the "right now" annotation for the header badge.
type Current struct {
	Code int `json:"code"`
	Temp int `json:"temp"`
}

func New(lat, lon float64, loc *time.Location, clock cache.Clock) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		lat:        lat,
		lon:        lon,
		loc:        loc,
		daily:      cache.New[map[string]int](24*time.Hour, clock),
	}
}

// forecastResponse is the subset of the SMHI point-forecast payload we read.
type forecastResponse struct {
	TimeSeries []forecastEntry `json:"timeSeries"`
}

type forecastEntry struct {
	ValidTime  time.Time `json:"validTime"`
	Parameters []struct {
		Name   string    `json:"name"`
		Values []float64 `json:"values"`
	} `json:"parameters"`
}

func (e forecastEntry) parameter(name string) (float64, bool) {
	for _, p := range e.Parameters {
		if p.Name == name && len(p.Values) > 0 {
			return p.Values[0], true
		}
	}
	return 0, false
}

// Daily returns date ("2006-01-02", display zone) to symbol code, taking the
// first forecast entry of each day. Cached for 24h; a failed refresh falls
// back to the last good value if one exists.
func (c *Client) Daily(ctx context.Context) (map[string]int, error) {
	if v, ok := c.daily.Get(dailyCacheKey); ok {
		return v, nil
	}

	forecast, err := c.fetch(ctx)
	if err != nil {
		if stale, ok := c.daily.Stale(dailyCacheKey); ok {
			appLog.Warn("weather refresh failed; serving stale forecast", "reason", err)
			return stale, nil
		}
		return nil, err
	}

	result := make(map[string]int)
	for _, entry := range forecast.TimeSeries {
		date := entry.ValidTime.In(c.loc).Format("2006-01-02")
		if _, seen := result[date]; seen {
			continue
		}
		if code, ok := entry.parameter("Wsymb2"); ok {
			result[date] = int(code)
		}
	}

	c.daily.Put(dailyCacheKey, result)
	return result, nil
}

// Now returns the symbol + rounded temperature for the first forecast entry
// at or after the current time. Not cached: the temperature moves and the
// endpoint is only polled by the header badge.
func (c *Client) Now(ctx context.Context, now time.Time) (Current, error) {
	forecast, err := c.fetch(ctx)
	if err != nil {
		return Current{}, err
	}
	if len(forecast.TimeSeries) == 0 {
		return Current{}, errors.New("weather: empty forecast")
	}

	entry := forecast.TimeSeries[0]
	for _, e := range forecast.TimeSeries {
		if !e.ValidTime.Before(now) {
			entry = e
			break
		}
	}

	code, _ := entry.parameter("Wsymb2")
	temp, _ := entry.parameter("t")
	return Current{Code: int(code), Temp: int(math.Round(temp))}, nil
}

func (c *Client) fetch(ctx context.Context) (*forecastResponse, error) {
	url := fmt.Sprintf("%s/api/category/pmp3g/version/2/geotype/point/lon/%v/lat/%v/data.json",
		c.baseURL, c.lon, c.lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: %s", resp.Status)
	}

	var forecast forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	return &forecast, nil
}
