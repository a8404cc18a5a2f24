package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"brewbook/internal/config"
	"brewbook/internal/llm"
	"brewbook/internal/rag"
	"brewbook/internal/scraper"
	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

const (
	maxBodyBytes     = 1 << 20
	errInternalReply = "internal server error"
)

var (
	errBadRequest   = errors.New("bad request")
	errForbidden    = errors.New("forbidden")
	errUnavailable  = errors.New("feature not configured")
	errUnauthorized = errors.New("unauthorized")
	errRateLimited  = errors.New("rate limit exceeded")
)

// Dependencies are the services behind the routes. A nil service makes its
// routes answer 503.
type Dependencies struct {
	Scraper    Scraper
	Importer   Importer
	Generator  Generator
	Images     ImageGenerator
	Searcher   Searcher
	Remixer    Remixer
	DrinkOfDay DrinkOfDay
	Recipes    RecipeStore
	Saved      SavedStore
	// Metrics serves /metrics when set.
	Metrics  http.Handler
	Observer HTTPObserver
}

// Options configures request handling.
type Options struct {
	Auth          config.AuthConfig
	RateLimit     config.RateLimitConfig
	MaxScrapeURLs int
	Logger        *slog.Logger
}

// Server exposes the BrewBook HTTP API.
type Server struct {
	deps    Dependencies
	router  chi.Router
	auth    *authenticator
	limiter *clientLimiter
	maxURLs int
	logger  *slog.Logger
}

// NewServer wires handlers onto a chi router.
func NewServer(deps Dependencies, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxURLs := opts.MaxScrapeURLs
	if maxURLs <= 0 {
		maxURLs = 20
	}
	s := &Server{
		deps:    deps,
		router:  chi.NewRouter(),
		auth:    newAuthenticator(opts.Auth),
		limiter: newClientLimiter(opts.RateLimit),
		maxURLs: maxURLs,
		logger:  logger,
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	r.Get("/openapi.yaml", s.handleOpenAPI)
	r.Get("/docs", s.handleDocs)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/drink-of-day", s.handleDrinkOfDay)
		r.Get("/sources", s.handleListSources)
		r.Get("/recipes", s.handleListRecipes)
		r.Get("/recipes/{id}", s.handleGetRecipe)
		r.Get("/recipes/{id}/generations", s.handleRecipeGenerations)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Post("/recipes", s.handleCreateRecipe)
			r.Patch("/recipes/{id}", s.handleUpdateRecipe)
			r.Delete("/recipes/{id}", s.handleDeleteRecipe)
			r.Get("/recipes/{id}/save", s.handleSavedStatus)
			r.Post("/recipes/{id}/save", s.handleSaveRecipe)
			r.Delete("/recipes/{id}/save", s.handleUnsaveRecipe)
			r.Get("/saved", s.handleListSaved)

			r.Group(func(r chi.Router) {
				r.Use(s.limiter.middleware)
				r.Post("/scrape", s.handleScrape)
				r.Post("/generate", s.handleGenerate)
				r.Post("/generate-image", s.handleGenerateImage)
				r.Post("/recipes/{id}/remix", s.handleRemix)
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// logRequests logs one line per request and feeds the latency histogram.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)
		if s.deps.Observer != nil {
			s.deps.Observer.ObserveHTTP(r.Method, route, status, elapsed)
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"latency_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// decodeJSON reads a bounded JSON body. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: invalid json payload: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err onto a status code. Server-side failures are logged
// and their detail withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = errInternalReply
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrGenerationParse):
		return http.StatusBadGateway
	case errors.Is(err, errBadRequest),
		errors.Is(err, rag.ErrInvalidRequest),
		errors.Is(err, types.ErrInvalidRecipe),
		errors.Is(err, scraper.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized), errors.Is(err, storage.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden), errors.Is(err, scraper.ErrPolicyDenied):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errUnavailable), errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
