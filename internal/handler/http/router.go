package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/health"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/middleware"
)

// AccessTokenVerifier verifies access tokens.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string, validateExpiry bool) (*auth.Claims, error)
}

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	ServiceName  string
	Auth         *AuthHandler
	User         *UserHandler
	External     *ExternalLoginHandler // nil disables the Google routes
	AccessTokens AccessTokenVerifier
	Health       *health.Handler
	HTTPMetrics  *middleware.HTTPMetrics
	Gatherer     prometheus.Gatherer
	CORS         middleware.CORSConfig
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all identity routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(cfg.HTTPMetrics.Handler)
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	// Token endpoint
	r.With(middleware.NoStore, RequireContentType(mediaTypeForm)).Post("/oauth/token", cfg.Auth.Token)

	// Bridges access token verification to the auth middleware. Expiry is
	// always enforced here.
	tokenValidator := func(_ context.Context, token string) (*middleware.Claims, error) {
		claims, err := cfg.AccessTokens.VerifyAccessToken(token, true)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{Subject: claims.Subject, Email: claims.Email}, nil
	}

	r.Route("/api/v1/user", func(r chi.Router) {
		r.With(RequireContentType(mediaTypeJSON)).Post("/register", cfg.Auth.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(RequireContentType(mediaTypeJSON))

			r.Get("/profile", cfg.User.GetProfile)
			r.Put("/profile", cfg.User.UpdateProfile)
			r.Get("/sessions", cfg.User.ListSessions)
			r.Delete("/sessions", cfg.User.RevokeSessions)
		})
	})

	if cfg.External != nil {
		r.Route("/api/v1/oauth/google", func(r chi.Router) {
			r.With(RequireContentType(mediaTypeJSON)).Post("/register", cfg.External.Register)
			r.With(middleware.NoStore).Post("/login", cfg.External.Login)
		})
	}

	return r
}
