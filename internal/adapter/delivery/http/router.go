// Package http exposes the URL shortener over a JSON API and serves the
// short-link redirects themselves.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
)

const defaultMaxBatchSize = 5

type routerOptions struct {
	maxBatchSize   int
	allowedOrigins []string
	docsPath       string
}

// RouterOption configures NewRouter.
type RouterOption func(*routerOptions)

// WithMaxBatchSize limits how many URLs a single shorten-bulk request may carry.
func WithMaxBatchSize(n int) RouterOption {
	return func(o *routerOptions) {
		if n > 0 {
			o.maxBatchSize = n
		}
	}
}

// WithAllowedOrigins sets the origins allowed by CORS.
func WithAllowedOrigins(origins ...string) RouterOption {
	return func(o *routerOptions) {
		if len(origins) > 0 {
			o.allowedOrigins = origins
		}
	}
}

// WithDocsPath sets the location of the OpenAPI document served at /docs/swagger.yml.
func WithDocsPath(path string) RouterOption {
	return func(o *routerOptions) {
		if path != "" {
			o.docsPath = path
		}
	}
}

// NewRouter initializes the chi router with middleware and every API route.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts ...RouterOption) *chi.Mux {
	o := routerOptions{
		maxBatchSize:   defaultMaxBatchSize,
		allowedOrigins: []string{"https://*", "http://*"},
		docsPath:       "./docs/swagger.yml",
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.allowedOrigins,
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, o.docsPath)
	})

	h := newURLHandler(urlUseCase, validator.New(), o.maxBatchSize)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)
		r.Post("/shorten-bulk", h.shortenBulk)
		r.Get("/urls", h.listURLs)
		r.Get("/stats", h.getSummary)

		r.Route("/url", func(r chi.Router) {
			r.Get("/{shortCode}", h.resolveShortCode)
			r.Get("/{shortCode}/stats", h.getURLStats)
			r.Delete("/{id}", h.deactivateURL)
		})
	})

	r.Get("/{shortCode}", h.redirect)

	return r
}
