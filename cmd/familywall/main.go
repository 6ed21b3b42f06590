package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olofsundelin/familywall/internal/agg"
	"github.com/olofsundelin/familywall/internal/capture"
	"github.com/olofsundelin/familywall/internal/config"
	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/lunch"
	"github.com/olofsundelin/familywall/internal/mealplan"
	"github.com/olofsundelin/familywall/internal/slideshow"
	"github.com/olofsundelin/familywall/internal/source"
	"github.com/olofsundelin/familywall/internal/store"
	"github.com/olofsundelin/familywall/internal/weather"
	"github.com/olofsundelin/familywall/internal/web"
	"github.com/olofsundelin/familywall/internal/window"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("familywall starting", "version", "1.0.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("bad timezone; falling back to local", err, "timezone", conf.Timezone)
		loc = time.Local
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"weeks_normal", conf.WeeksNormal,
		"weeks_expanded", conf.WeeksExpanded,
		"schedule_feeds", len(conf.ScheduleFeeds),
		"snapshot_enabled", conf.Snapshot.Enabled,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Calendar sources: the HA family calendar, one ICS feed per child,
	// and the synthetic birthday generator.
	sources := []agg.Source{
		source.NewHomeAssistant(
			conf.HomeAssistant.URL,
			conf.HomeAssistant.Token,
			conf.HomeAssistant.EntityID,
			conf.HomeAssistant.Label,
			conf.HomeAssistant.Calendar,
			loc,
		),
	}
	for _, feed := range conf.ScheduleFeeds {
		sources = append(sources, source.NewFeed(feed.URL, feed.Label, conf.CacheDir, loc))
	}
	birthdays := source.NewBirthdays(conf.BirthdaysPath)
	sources = append(sources, birthdays)

	weatherClient := weather.New(conf.Weather.Lat, conf.Weather.Lon, loc, time.Now)
	lunchClient := lunch.New(conf.LunchFeedURL, loc, time.Now)
	planner := mealplan.New(conf.MealplanPath, lunchClient, loc, time.Now)
	library := slideshow.NewLibrary(conf.PicturesDir)
	wallStore := store.New(conf.Supabase.URL, conf.Supabase.ServiceKey)

	if err := library.Watch(ctx); err != nil {
		appLog.Warn("picture watcher unavailable; relying on restart for new photos", "reason", err)
	}

	if flags.once {
		runOnce(ctx, conf, sources, loc)
		return
	}

	startScheduler(ctx, conf, sources, planner, wallStore, loc)

	if err := web.StartServer(ctx, conf, loc, web.Options{
		Sources:   sources,
		Birthdays: birthdays,
		Weather:   weatherClient,
		Lunches:   lunchClient,
		Planner:   planner,
		Library:   library,
		WallStore: wallStore,
	}); err != nil {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("familywall exiting")
}

// runOnce performs a single aggregation and dumps it to stdout; handy for
// checking source wiring without a browser.
func runOnce(ctx context.Context, conf *config.Config, sources []agg.Source, loc *time.Location) {
	win, err := window.ForWeeks(time.Now(), conf.WeeksNormal, loc)
	if err != nil {
		appLog.Error("window computation failed", err)
		os.Exit(1)
	}

	timeout := time.Duration(conf.FetchTimeoutSeconds) * time.Second
	merged := agg.FetchAll(ctx, sources, win, timeout)
	instances := agg.Aggregate(merged, win, loc)

	appLog.Info("aggregation complete",
		"window_start", win.Start, "window_end", win.End, "instances", len(instances))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(instances)
}

// startScheduler wires the cron jobs: periodic refresh (cache warm +
// wall-state bump), the nightly school-lunch persist, and the optional
// preview snapshot.
func startScheduler(ctx context.Context, conf *config.Config, sources []agg.Source, planner *mealplan.Planner, wallStore *store.Client, loc *time.Location) {
	c := cron.New(cron.WithLocation(loc))

	mustAdd := func(spec, name string, job func()) {
		if _, err := c.AddFunc(spec, job); err != nil {
			appLog.Error("bad cron spec; job disabled", err, "job", name, "spec", spec)
		}
	}

	mustAdd(conf.RefreshCron, "refresh", func() {
		win, err := window.ForWeeks(time.Now(), conf.WeeksNormal, loc)
		if err != nil {
			appLog.Error("refresh: window computation failed", err)
			return
		}
		timeout := time.Duration(conf.FetchTimeoutSeconds) * time.Second
		merged := agg.FetchAll(ctx, sources, win, timeout)
		appLog.Info("refresh cycle complete", "events", len(merged))

		if wallStore.Enabled() {
			if err := wallStore.BumpWallState(ctx, "refresh"); err != nil {
				appLog.Warn("wall state bump failed", "reason", err)
			}
		}
	})

	mustAdd(conf.NightlyLunchCron, "nightly-lunch", func() {
		if err := planner.PersistLunches(ctx); err != nil {
			appLog.Error("nightly lunch persist failed", err)
			return
		}
		if wallStore.Enabled() {
			if err := wallStore.BumpWallState(ctx, "mealplan"); err != nil {
				appLog.Warn("wall state bump failed", "reason", err)
			}
		}
	})

	if conf.Snapshot.Enabled {
		snapURL := conf.Snapshot.URL
		if snapURL == "" {
			snapURL = "http://" + conf.Listen + "/"
		}
		mustAdd(conf.Snapshot.Cron, "snapshot", func() {
			err := capture.SnapshotPNG(ctx, capture.Options{
				URL:          snapURL,
				OutputPath:   conf.Snapshot.OutputPath,
				WaitSelector: conf.Snapshot.WaitSelector,
			})
			if err != nil {
				appLog.Error("preview snapshot failed", err)
			}
		})
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/familywall/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one aggregation cycle, print it and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}
