package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// HomeAssistantConfig points at the household Home Assistant calendar.
// Token and URL arrive via config (or a mounted secret file); the adapter
// treats them as opaque.
type HomeAssistantConfig struct {
	URL      string `yaml:"url" json:"url"`
	Token    string `yaml:"token" json:"-"`
	EntityID string `yaml:"entity_id" json:"entity_id"`
	Label    string `yaml:"label" json:"label"`
	Calendar string `yaml:"calendar" json:"calendar"`
}

// ScheduleFeedConfig is one ICS schedule subscription (one per child).
type ScheduleFeedConfig struct {
	URL   string `yaml:"url" json:"url"`
	Label string `yaml:"label" json:"label"`
}

// WeatherConfig is the forecast coordinate.
type WeatherConfig struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// SupabaseConfig configures the wall-state collaborator.
type SupabaseConfig struct {
	URL        string `yaml:"url" json:"url"`
	ServiceKey string `yaml:"service_key" json:"-"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// SnapshotConfig controls the optional headless preview capture.
type SnapshotConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	URL          string `yaml:"url" json:"url"`
	OutputPath   string `yaml:"output_path" json:"output_path"`
	WaitSelector string `yaml:"wait_selector" json:"wait_selector"`
	Cron         string `yaml:"cron" json:"cron"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the single fixed IANA display zone; all timed events are
	// converted into it before civil-day extraction.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeeksNormal / WeeksExpanded are the window sizes for the two UI modes.
	WeeksNormal   int `yaml:"weeks_normal" json:"weeks_normal"`
	WeeksExpanded int `yaml:"weeks_expanded" json:"weeks_expanded"`

	// FetchTimeoutSeconds bounds each source fetch in the fan-out.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// RefreshCron drives the periodic wall refresh (cache warm + wall-state
	// bump). NightlyLunchCron runs the school-lunch persist job.
	RefreshCron      string `yaml:"refresh" json:"refresh"`
	NightlyLunchCron string `yaml:"nightly_lunch_cron" json:"nightly_lunch_cron"`

	HomeAssistant HomeAssistantConfig  `yaml:"home_assistant" json:"home_assistant"`
	ScheduleFeeds []ScheduleFeedConfig `yaml:"schedule_feeds" json:"schedule_feeds"`

	// BirthdaysPath is a JSON file [{date:"3/1", name:"Mormor"}, ...] kept
	// outside the repo (it holds names).
	BirthdaysPath string `yaml:"birthdays_path" json:"birthdays_path"`

	// MealplanPath is the weekly meal template (matsedel.json).
	MealplanPath string `yaml:"mealplan_path" json:"mealplan_path"`

	// LunchFeedURL is the school's weekly RSS menu.
	LunchFeedURL string `yaml:"lunch_feed_url" json:"lunch_feed_url"`

	Weather WeatherConfig `yaml:"weather" json:"weather"`

	// PicturesDir is scanned recursively for slideshow images.
	PicturesDir string `yaml:"pictures_dir" json:"pictures_dir"`

	// CacheDir backs the ICS feed HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Supabase SupabaseConfig `yaml:"supabase" json:"supabase"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:3000",
		Timezone:            "Europe/Stockholm",
		WeeksNormal:         3,
		WeeksExpanded:       6,
		FetchTimeoutSeconds: 15,
		RefreshCron:         "*/5 * * * *",
		NightlyLunchCron:    "0 3 * * *",
		HomeAssistant: HomeAssistantConfig{
			EntityID: "calendar.familjekalender",
			Label:    "Google via HA",
			Calendar: "Familjekalendern",
		},
		ScheduleFeeds: []ScheduleFeedConfig{},
		BirthdaysPath: ".secrets/birthdays.json",
		MealplanPath:  "data/matsedel.json",
		LunchFeedURL:  "https://skolmaten.se/api/4/rss/week/savar-skola?locale=sv",
		Weather:       WeatherConfig{Lat: 63.908577, Lon: 20.56416},
		PicturesDir:   "pictures",
		CacheDir:      "./var/cache",
		Snapshot: SnapshotConfig{
			OutputPath:   "./var/preview.png",
			WaitSelector: `[data-ready="true"]`,
			Cron:         "*/30 * * * *",
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.WeeksNormal <= 0 {
		c.WeeksNormal = def.WeeksNormal
	}
	if c.WeeksExpanded <= 0 {
		c.WeeksExpanded = def.WeeksExpanded
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = def.FetchTimeoutSeconds
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.NightlyLunchCron == "" {
		c.NightlyLunchCron = def.NightlyLunchCron
	}
	if c.HomeAssistant.Label == "" {
		c.HomeAssistant.Label = def.HomeAssistant.Label
	}
	if c.HomeAssistant.Calendar == "" {
		c.HomeAssistant.Calendar = def.HomeAssistant.Calendar
	}
	if c.HomeAssistant.EntityID == "" {
		c.HomeAssistant.EntityID = def.HomeAssistant.EntityID
	}
	if c.ScheduleFeeds == nil {
		c.ScheduleFeeds = []ScheduleFeedConfig{}
	}
	if c.BirthdaysPath == "" {
		c.BirthdaysPath = def.BirthdaysPath
	}
	if c.MealplanPath == "" {
		c.MealplanPath = def.MealplanPath
	}
	if c.LunchFeedURL == "" {
		c.LunchFeedURL = def.LunchFeedURL
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.PicturesDir == "" {
		c.PicturesDir = def.PicturesDir
	}
	if c.Snapshot.OutputPath == "" {
		c.Snapshot.OutputPath = def.Snapshot.OutputPath
	}
	if c.Snapshot.WaitSelector == "" {
		c.Snapshot.WaitSelector = def.Snapshot.WaitSelector
	}
	if c.Snapshot.Cron == "" {
		c.Snapshot.Cron = def.Snapshot.Cron
	}
}

// Load loads configuration from the given YAML path.
//
//   - Missing file: write a default config (0600) and return it.
//   - Existing file: unmarshal and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions; the file carries the HA token and Supabase key.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".familywall-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
