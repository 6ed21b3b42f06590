package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olofsundelin/familywall/internal/agg"
	"github.com/olofsundelin/familywall/internal/cache"
	"github.com/olofsundelin/familywall/internal/cluster"
	"github.com/olofsundelin/familywall/internal/config"
	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/lunch"
	"github.com/olofsundelin/familywall/internal/mealplan"
	"github.com/olofsundelin/familywall/internal/model"
	"github.com/olofsundelin/familywall/internal/slideshow"
	"github.com/olofsundelin/familywall/internal/source"
	"github.com/olofsundelin/familywall/internal/store"
	"github.com/olofsundelin/familywall/internal/weather"
	"github.com/olofsundelin/familywall/internal/window"
)

// Server is the wall's HTTP surface: the aggregated calendar, the
// enrichment endpoints (weather, meal plan, school lunch, birthdays), the
// slideshow picture proxy and the wall-state passthrough.
type Server struct {
	cfg *config.Config
	loc *time.Location
	mux *http.ServeMux

	sources   []agg.Source
	birthdays *source.Birthdays
	weather   *weather.Client
	lunches   *lunch.Client
	planner   *mealplan.Planner
	library   *slideshow.Library
	wallStore *store.Client

	// Short-lived response cache for /api/events, keyed by window size, so
	// a kiosk refresh storm does not re-fetch every upstream source.
	events *cache.Cache[[]model.DayInstance]
}

// Options carries the collaborators main wires up.
type Options struct {
	Sources   []agg.Source
	Birthdays *source.Birthdays
	Weather   *weather.Client
	Lunches   *lunch.Client
	Planner   *mealplan.Planner
	Library   *slideshow.Library
	WallStore *store.Client
	Clock     cache.Clock
}

// embeddedStatic contains the kiosk UI entry point. The real React build is
// deployed alongside; this keeps / serving something useful in dev.
//
//go:embed all:static
var embeddedStatic embed.FS

const eventsCacheTTL = 30 * time.Second

func NewServer(cfg *config.Config, loc *time.Location, opts Options) *Server {
	s := &Server{
		cfg:       cfg,
		loc:       loc,
		mux:       http.NewServeMux(),
		sources:   opts.Sources,
		birthdays: opts.Birthdays,
		weather:   opts.Weather,
		lunches:   opts.Lunches,
		planner:   opts.Planner,
		library:   opts.Library,
		wallStore: opts.WallStore,
		events:    cache.New[[]model.DayInstance](eventsCacheTTL, opts.Clock),
	}
	s.registerRoutes()
	return s
}

// Handler returns the middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestIDMiddleware(h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/events/grouped", s.handleEventsGrouped)
	s.mux.HandleFunc("/api/weather", s.handleWeather)
	s.mux.HandleFunc("/api/weather/now", s.handleWeatherNow)
	s.mux.HandleFunc("/api/mealplan", s.handleMealplan)
	s.mux.HandleFunc("/api/mealplan/school-lunch", s.handleSchoolLunch)
	s.mux.HandleFunc("/api/birthdays", s.handleBirthdays)
	s.mux.HandleFunc("/api/pictures", s.handlePictures)
	s.mux.HandleFunc("/api/pictures-meta", s.handlePicturesMeta)
	s.mux.HandleFunc("/api/picture", s.handlePicture)
	s.mux.HandleFunc("/api/wall-state", s.handleWallState)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.Handle("/", s.staticFileServer())
}

// --- middleware ---

// requestIDMiddleware tags every request with an X-Request-Id for log
// correlation across the kiosks.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		appLog.Debug("http request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="FamilyWall", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// --- basic handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// --- calendar ---

// aggregateWindow runs the full fetch + merge pipeline for a window size.
func (s *Server) aggregateWindow(ctx context.Context, weeks int) ([]model.DayInstance, model.Window, error) {
	win, err := window.ForWeeks(time.Now(), weeks, s.loc)
	if err != nil {
		return nil, model.Window{}, err
	}

	cacheKey := "weeks=" + strconv.Itoa(weeks)
	if cached, ok := s.events.Get(cacheKey); ok {
		return cached, win, nil
	}

	timeout := time.Duration(s.cfg.FetchTimeoutSeconds) * time.Second
	merged := agg.FetchAll(ctx, s.sources, win, timeout)
	instances := agg.Aggregate(merged, win, s.loc)

	s.events.Put(cacheKey, instances)
	return instances, win, nil
}

// handleEvents returns the merged, day-ordered event list for the rolling
// window.
//
// GET /api/events?weeks=3
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), s.cfg.WeeksNormal)

	instances, _, err := s.aggregateWindow(r.Context(), weeks)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if instances == nil {
		instances = []model.DayInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// dayGroupDTO is one day's clustered view.
type dayGroupDTO struct {
	Date       model.Date          `json:"date"`
	Groups     []lessonGroupDTO    `json:"groups"`
	Standalone []model.DayInstance `json:"standalone"`
}

type lessonGroupDTO struct {
	Key     string              `json:"key"`
	Count   int                 `json:"count"`
	Sports  bool                `json:"sports"`
	Lessons []model.DayInstance `json:"lessons"`
}

// handleEventsGrouped returns the same window split per day into lesson
// clusters and standalone events, ready for compact rendering.
func (s *Server) handleEventsGrouped(w http.ResponseWriter, r *http.Request) {
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), s.cfg.WeeksNormal)

	instances, win, err := s.aggregateWindow(r.Context(), weeks)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	byDay := make(map[model.Date][]model.DayInstance)
	for _, inst := range instances {
		byDay[inst.InstanceDate] = append(byDay[inst.InstanceDate], inst)
	}

	days := make([]dayGroupDTO, 0)
	for d := win.Start; !d.After(win.End); d = d.AddDays(1) {
		insts, ok := byDay[d]
		if !ok {
			continue
		}
		buckets := cluster.GroupDay(insts, s.loc)
		dto := dayGroupDTO{
			Date:       d,
			Groups:     make([]lessonGroupDTO, 0, len(buckets.Groups)),
			Standalone: buckets.Standalone,
		}
		if dto.Standalone == nil {
			dto.Standalone = []model.DayInstance{}
		}
		for _, g := range buckets.Groups {
			dto.Groups = append(dto.Groups, lessonGroupDTO{
				Key:     g.Key,
				Count:   len(g.Lessons),
				Sports:  g.Sports,
				Lessons: g.Lessons,
			})
		}
		days = append(days, dto)
	}

	writeJSON(w, http.StatusOK, days)
}

// --- enrichment ---

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	daily, err := s.weather.Daily(r.Context())
	if err != nil {
		appLog.Error("weather fetch failed", err)
		writeError(w, http.StatusBadGateway, "could not fetch weather")
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (s *Server) handleWeatherNow(w http.ResponseWriter, r *http.Request) {
	current, err := s.weather.Now(r.Context(), time.Now())
	if err != nil {
		appLog.Error("weather now failed", err)
		writeError(w, http.StatusBadGateway, "could not fetch current weather")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleMealplan(w http.ResponseWriter, r *http.Request) {
	week, err := s.planner.CurrentWeek(r.Context())
	if err != nil {
		appLog.Error("mealplan lookup failed", err)
		if strings.Contains(err.Error(), "missing from template") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load meal plan")
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// schoolLunchResponse mirrors what the planning agent consumes: always a
// full Monday–Friday structure, empty strings where no data exists.
type schoolLunchResponse struct {
	Week  int           `json:"vecka"`
	Year  int           `json:"år"`
	Days  []lunchDayDTO `json:"dagar"`
	Error string        `json:"error,omitempty"`
}

type lunchDayDTO struct {
	Day  string `json:"dag"`
	Desc string `json:"beskrivning"`
}

func (s *Server) handleSchoolLunch(w http.ResponseWriter, r *http.Request) {
	menu, err := s.lunches.CurrentWeek(r.Context())

	resp := schoolLunchResponse{Week: menu.Week, Year: menu.WeekYear}
	for _, day := range lunch.Weekdays {
		resp.Days = append(resp.Days, lunchDayDTO{Day: day, Desc: menu.Days[day]})
	}
	if err != nil {
		// Still a 200: the agent keeps planning with empty lunches.
		appLog.Warn("school lunch unavailable; returning empty structure", "reason", err)
		resp.Error = "could not fetch school lunch"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBirthdays(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.birthdays.LoadEntries()
	if err != nil {
		appLog.Error("birthdays read failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"birthdays": entries})
}

// --- slideshow ---

func (s *Server) handlePictures(w http.ResponseWriter, _ *http.Request) {
	items, err := s.library.List()
	if err != nil {
		appLog.Error("picture list failed", err)
		writeError(w, http.StatusInternalServerError, "could not list pictures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

func (s *Server) handlePicturesMeta(w http.ResponseWriter, _ *http.Request) {
	items, err := s.library.Metadata()
	if err != nil {
		appLog.Error("picture metadata failed", err)
		writeError(w, http.StatusInternalServerError, "could not build metadata")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

// handlePicture resizes one picture to the kiosk viewport.
//
// GET /api/picture?file=rel/path.jpg&w=1080&h=1920&q=82
func (s *Server) handlePicture(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}

	pic, found, err := s.library.Lookup(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read pictures")
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	width := parseIntDefault(q.Get("w"), slideshow.DefaultWidth)
	height := parseIntDefault(q.Get("h"), slideshow.DefaultHeight)
	quality := parseIntDefault(q.Get("q"), slideshow.DefaultQuality)

	data, err := slideshow.ResizeCover(pic.Abs, width, height, quality)
	if err != nil {
		appLog.Error("picture resize failed", err, "file", file)
		writeError(w, http.StatusInternalServerError, "image processing error")
		return
	}

	// Resized variants never change for a given query, let the kiosk keep
	// them forever.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- wall state ---

func (s *Server) handleWallState(w http.ResponseWriter, r *http.Request) {
	if !s.wallStore.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "wall state store not configured")
		return
	}
	state, err := s.wallStore.GetWallState(r.Context())
	if err != nil {
		appLog.Error("wall state read failed", err)
		writeError(w, http.StatusBadGateway, "could not read wall state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handlePreview serves the last headless snapshot from disk; 404 until the
// first capture has run.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Snapshot.OutputPath)
}

// staticFileServer serves the embedded kiosk entry page for everything that
// is not an API route.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("embedded static filesystem unavailable", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// --- helpers ---

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// StartServer runs the HTTP server until ctx is canceled, then drains
// in-flight requests.
func StartServer(ctx context.Context, cfg *config.Config, loc *time.Location, opts Options) error {
	s := NewServer(cfg, loc, opts)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
