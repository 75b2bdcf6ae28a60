// Package handler provides the HTTP API of pantry.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/pantry/internal/auth"
	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/repository"
	"github.com/prn-tf/pantry/internal/service"
	"github.com/prn-tf/pantry/internal/storage"
)

// multipartOverhead is allowed on top of the upload limit for multipart
// boundaries and part headers.
const multipartOverhead = 64 << 10

// Router wires the handlers, middleware and routes of the API.
type Router struct {
	users       *UserHandler
	tags        *AttributeHandler
	ingredients *AttributeHandler
	recipes     *RecipeHandler
	media       *MediaHandler
	mediaPath   string
	resolver    auth.TokenResolver
	database    repository.DatabaseHealth
	metrics     *metrics.Metrics
	cors        config.CORSConfig
	bodyLimit   int64
	uploadLimit int64
	logger      zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserService       *service.UserService
	TagService        *service.AttributeService
	IngredientService *service.AttributeService
	RecipeService     *service.RecipeService

	// Database is pinged by /health. Optional.
	Database repository.DatabaseHealth

	// Media is served under MediaPath when set. Only backends without a
	// public endpoint of their own need this.
	Media     storage.Backend
	MediaPath string

	// Metrics instruments every request when set.
	Metrics *metrics.Metrics

	CORS          config.CORSConfig
	MaxBodySize   int64
	MaxUploadSize int64
	Logger        zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	rt := &Router{
		users:       NewUserHandler(cfg.UserService),
		tags:        NewAttributeHandler(cfg.TagService),
		ingredients: NewAttributeHandler(cfg.IngredientService),
		recipes:     NewRecipeHandler(cfg.RecipeService, cfg.Metrics),
		resolver:    cfg.UserService,
		database:    cfg.Database,
		metrics:     cfg.Metrics,
		cors:        cfg.CORS,
		bodyLimit:   cfg.MaxBodySize,
		logger:      cfg.Logger.With().Str("component", "router").Logger(),
	}
	if cfg.MaxUploadSize > 0 {
		rt.uploadLimit = cfg.MaxUploadSize + multipartOverhead
	}
	if cfg.Media != nil {
		rt.media = NewMediaHandler(cfg.Media)
		rt.mediaPath = mediaPattern(cfg.MediaPath)
	}
	return rt
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(rt.logger)...)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(instrument(rt.metrics))
	}
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cors.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         rt.cors.MaxAge,
	}))
	r.Use(limitBody(rt.bodyLimit, rt.uploadLimit))

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	if rt.media != nil {
		r.Get(rt.mediaPath, rt.media.ServeHTTP)
		r.Head(rt.mediaPath, rt.media.ServeHTTP)
	}

	authenticate := auth.Middleware(rt.resolver, rt.logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			rt.users.RegisterRoutes(r, authenticate)
		})

		// Plural aliases: POST /api/users registers.
		r.Route("/users", func(r chi.Router) {
			r.Post("/", rt.users.handleCreate)
			rt.users.RegisterRoutes(r, authenticate)
		})

		r.Route("/recipe", func(r chi.Router) {
			r.Use(authenticate)
			r.Route("/tags", rt.tags.RegisterRoutes)
			r.Route("/ingredients", rt.ingredients.RegisterRoutes)
			r.Route("/recipes", rt.recipes.RegisterRoutes)
		})
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.database != nil {
		if err := rt.database.Health(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// mediaPattern turns a media URL path such as "/media/" into a chi
// wildcard pattern.
func mediaPattern(path string) string {
	path = "/" + strings.Trim(path, "/")
	if path == "/" {
		return "/*"
	}
	return path + "/*"
}
