package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"daycal/internal/config"
	"daycal/internal/days"
	"daycal/internal/generate"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/names"
)

const calendarCacheTTL = 30 * time.Second

// Server exposes the commemorative day calendar over HTTP for display
// collaborators: month views, rule listings, descriptions and the .ics file.
type Server struct {
	cfg    *config.Config
	rules  []model.Rule
	lookup ics.Lookup
	router chi.Router

	// Rules are compiled once against cfg.Locale; compileErr is set when the
	// locale itself is unusable.
	compiled   []days.Compiled
	failures   []days.RuleFailure
	compileErr error

	// In-memory cache for /calendar.ics to avoid re-encoding (and
	// re-fetching descriptions) on every request.
	calMu    sync.RWMutex
	calCache *calendarCache
}

type calendarCache struct {
	doc       string
	updatedAt time.Time
}

// NewServer constructs a new Server. The rule list is read-only and shared
// by all requests.
func NewServer(cfg *config.Config, rules []model.Rule, lookup ics.Lookup) *Server {
	if lookup == nil {
		lookup = ics.Fallback{}
	}
	s := &Server{
		cfg:    cfg,
		rules:  rules,
		lookup: lookup,
		router: chi.NewRouter(),
	}
	if resolver, err := names.For(cfg.Locale); err != nil {
		appLog.Error("locale unavailable", err, "locale", cfg.Locale)
		s.compileErr = err
	} else {
		s.compiled, s.failures = days.Compile(rules, resolver)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer serves the API on cfg.Listen until ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, rules []model.Rule, lookup ics.Lookup) error {
	s := NewServer(cfg, rules, lookup)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/calendar.ics", s.handleCalendar)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/days", s.handleDays)
		r.Get("/rules", s.handleRules)
		r.Get("/description", s.handleDescription)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials count as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="DayCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// daysResponse is the JSON response shape for /api/days.
type daysResponse struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Locale string          `json:"locale"`
	Days   []model.DayMark `json:"days"`
}

// handleDays lists the commemorative days of one month.
//
// GET /api/days?year=2024&month=4
//   - year:  defaults to the current year
//   - month: 0-based month index (0 = January), defaults to the current month
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	q := r.URL.Query()

	year, err := parseIntDefault(q.Get("year"), now.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	month, err := parseIntDefault(q.Get("month"), int(now.Month())-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be an integer")
		return
	}

	if s.compileErr != nil {
		writeError(w, http.StatusInternalServerError, "locale unavailable")
		return
	}
	marks := days.FilterMonth(days.ExpandCompiled(s.compiled, year, year), year, month)

	writeJSON(w, http.StatusOK, daysResponse{
		Year:   year,
		Month:  month,
		Locale: s.cfg.Locale,
		Days:   marks,
	})
}

// ruleDTO is a JSON-friendly view of a rule and how it resolved.
type ruleDTO struct {
	Name           string `json:"name"`
	MonthName      string `json:"month_name"`
	DayName        string `json:"day_name"`
	Occurrence     string `json:"occurrence"`
	DescriptionURL string `json:"description_url,omitempty"`
	Month          *int   `json:"month,omitempty"`
	Weekday        *int   `json:"weekday,omitempty"`
	RRule          string `json:"rrule,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleRules lists every rule with its resolved month/weekday and RRULE,
// or the reason it was skipped.
func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	if s.compileErr != nil {
		writeError(w, http.StatusInternalServerError, "locale unavailable")
		return
	}

	out := make([]ruleDTO, len(s.rules))
	for i, rule := range s.rules {
		out[i] = ruleDTO{
			Name:           rule.Name,
			MonthName:      rule.MonthName,
			DayName:        rule.DayName,
			Occurrence:     rule.OccurrenceToken(),
			DescriptionURL: rule.DescriptionURL,
		}
	}
	for _, c := range s.compiled {
		month, weekday := c.Month, int(c.Weekday)
		out[c.Index].Month = &month
		out[c.Index].Weekday = &weekday
		out[c.Index].Occurrence = c.Occurrence.String()
		out[c.Index].RRule = c.RRule()
	}
	for _, f := range s.failures {
		out[f.Index].Error = f.Err.Error()
	}

	writeJSON(w, http.StatusOK, out)
}

// descriptionResponse is the JSON response shape for /api/description.
type descriptionResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleDescription returns the description text for a rule by name,
// degrading to a placeholder when it cannot be fetched.
//
// GET /api/description?name=International+Binturong+Day
func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	for _, rule := range s.rules {
		if rule.Name != name {
			continue
		}
		fallback := rule.Name + "\n\n(No description available)"
		writeJSON(w, http.StatusOK, descriptionResponse{
			Name:        rule.Name,
			Description: s.lookup.Describe(r.Context(), rule.DescriptionURL, fallback),
		})
		return
	}
	writeError(w, http.StatusNotFound, "no such commemorative day")
}

// handleCalendar serves the generated iCalendar document.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	s.calMu.RLock()
	cc := s.calCache
	s.calMu.RUnlock()

	if cc == nil || time.Since(cc.updatedAt) >= calendarCacheTTL {
		if s.compileErr != nil {
			writeError(w, http.StatusInternalServerError, "locale unavailable")
			return
		}
		exp := days.Expansion{
			Events:   days.ExpandCompiled(s.compiled, s.cfg.StartYear, s.cfg.EndYear),
			Failures: s.failures,
		}
		// A disconnecting client must not leave a degraded document cached.
		res := generate.Encode(context.WithoutCancel(r.Context()), s.cfg, exp, s.lookup)
		cc = &calendarCache{doc: res.Document, updatedAt: time.Now()}

		s.calMu.Lock()
		s.calCache = cc
		s.calMu.Unlock()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="days.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cc.doc))
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
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
