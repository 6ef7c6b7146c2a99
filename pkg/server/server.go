// Package server exposes recommendations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/history"
	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/metrics"
	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/ratelimit"
	"github.com/marquee-ai/marquee/pkg/recommend"
)

const rateLimitedDetail = "Too many requests. Please try again in a minute."

// Recommender answers a search.
type Recommender interface {
	Recommend(ctx context.Context, query string, f models.Filter) (models.Result, recommend.Outcome)
}

// Admitter decides whether a client identity may make another request.
type Admitter interface {
	Admit(identity string) error
}

// Server is the Marquee HTTP API.
type Server struct {
	cfg     *config.Config
	rec     Recommender
	limiter Admitter
	history history.Recorder
	router  chi.Router
	log     zerolog.Logger
}

// New creates a Server. limiter and hist may be nil.
func New(cfg *config.Config, rec Recommender, limiter Admitter, hist history.Recorder) *Server {
	s := &Server{
		cfg:     cfg,
		rec:     rec,
		limiter: limiter,
		history: hist,
		log:     logging.WithComponent("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Marquee-Cache", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Listen).Msg("marquee listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	identity, err := httprate.KeyByRealIP(r)
	if err != nil {
		identity = r.RemoteAddr
	}
	if s.limiter != nil {
		if err := s.limiter.Admit(identity); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				writeDetail(w, http.StatusTooManyRequests, rateLimitedDetail)
				return
			}
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		if st, ok := s.limiter.(interface{ Status(string) ratelimit.Status }); ok {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(st.Status(identity).Remaining))
		}
	}

	query := r.URL.Query().Get("query")
	filter, err := parseFilter(r)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, out := s.rec.Recommend(r.Context(), query, filter)

	cacheHeader := "miss"
	if out.Source == recommend.SourceCache {
		cacheHeader = "hit"
	}
	w.Header().Set("X-Marquee-Cache", cacheHeader)

	logging.Ctx(r.Context()).Info().
		Str("source", string(out.Source)).
		Int("movies", len(result.Movies)).
		Dur("took", out.Duration).
		Msg("search served")

	if s.history != nil {
		rec := models.SearchRecord{
			Query:      query,
			CacheKey:   out.Key,
			Source:     string(out.Source),
			MovieCount: len(result.Movies),
			LatencyMs:  out.Duration.Milliseconds(),
			Client:     identity,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.history.Record(context.WithoutCancel(r.Context()), rec); err != nil {
			s.log.Warn().Err(err).Msg("history record failed")
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// parseFilter reads year_start, year_end, genres, sort_by and limit.
func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var f models.Filter

	var err error
	if f.YearStart, err = optionalInt(q.Get("year_start"), "year_start"); err != nil {
		return f, err
	}
	if f.YearEnd, err = optionalInt(q.Get("year_end"), "year_end"); err != nil {
		return f, err
	}
	if limit, err := optionalInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	} else if limit != nil {
		f.Limit = *limit
	}

	if raw := q.Get("genres"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				f.Genres = append(f.Genres, g)
			}
		}
	}
	f.SortBy = models.ParseSortMode(q.Get("sort_by"))
	return f, nil
}

func optionalInt(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: must be an integer", name, raw)
	}
	return &v, nil
}

// requestLogger attaches the chi request ID to the logging context and
// records status and duration for every request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = logging.NewRequestID()
		}
		ctx := logging.ContextWithRequestID(r.Context(), id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		took := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(took.Seconds())
		logging.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("took", took).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// recoverer turns a panic into a 500 with the panic message as detail.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Ctx(r.Context()).Error().Str("panic", fmt.Sprint(rec)).Msg("handler panicked")
				writeDetail(w, http.StatusInternalServerError, fmt.Sprint(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l := logging.Logger()
		l.Warn().Err(err).Msg("write response failed")
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
