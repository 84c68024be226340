// Package httpapi exposes the rank tracker over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/analytics"
	"github.com/sells-group/localrank/internal/auth"
	"github.com/sells-group/localrank/internal/config"
	"github.com/sells-group/localrank/internal/credits"
	"github.com/sells-group/localrank/internal/quota"
	"github.com/sells-group/localrank/internal/rank"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/googleauth"
)

// Server wires the store, rank provider, and domain services behind the
// HTTP routes.
type Server struct {
	store    store.Store
	provider rank.Provider
	scanner  *rank.Scanner
	meter    *credits.Meter
	guard    *quota.Guard
	analyzer *analytics.Analyzer
	tokens   *auth.Service
	google   googleauth.Verifier
	cfg      config.ServerConfig
	logger   *zap.Logger
}

func NewServer(
	st store.Store,
	provider rank.Provider,
	scanner *rank.Scanner,
	tokens *auth.Service,
	google googleauth.Verifier,
	cfg config.ServerConfig,
) *Server {
	return &Server{
		store:    st,
		provider: provider,
		scanner:  scanner,
		meter:    credits.NewMeter(st),
		guard:    quota.NewGuard(st),
		analyzer: analytics.NewAnalyzer(st),
		tokens:   tokens,
		google:   google,
		cfg:      cfg,
		logger:   zap.L().With(zap.String("component", "httpapi")),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/auth/google", s.handleGoogleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens))

		r.Get("/api/auth/me", s.handleMe)

		r.Route("/api/listings", func(r chi.Router) {
			r.Get("/", s.handleListListings)
			r.Post("/", s.handleCreateListing)
			r.Get("/search", s.handleSearchListings)
			r.Get("/locations", s.handleSearchLocations)
			r.Post("/locations/sync", s.handleSyncLocations)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetListing)
				r.Delete("/", s.handleDeleteListing)
				r.Get("/keywords", s.handleListKeywords)
				r.Post("/keywords", s.handleCreateKeyword)
				r.Post("/geogrid", s.handleGeoGridScan)
				r.Get("/geogrid-scans", s.handleListGeoGridScans)
				r.Get("/competitors", s.handleCompetitors)
				r.Get("/reviews", s.handleReviews)
			})
		})

		r.Route("/api/keywords/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteKeyword)
			r.Post("/check-rank", s.handleCheckRank)
			r.Get("/history", s.handleRankHistory)
		})

		r.Get("/api/geogrid-scans/{scanId}", s.handleGetGeoGridScan)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
