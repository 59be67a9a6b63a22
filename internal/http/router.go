// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/config"
	"github.com/tbourn/go-chirper-backend/internal/domain"
	"github.com/tbourn/go-chirper-backend/internal/http/handlers"
	"github.com/tbourn/go-chirper-backend/internal/http/middleware"
	"github.com/tbourn/go-chirper-backend/internal/repo"
	"github.com/tbourn/go-chirper-backend/internal/services"
)

// chirpRepoShim adapts the repository free functions to the services.ChirpRepo
// interface expected by the ChirpService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type chirpRepoShim struct{}

// CreateChirp proxies repo.CreateChirp.
func (chirpRepoShim) CreateChirp(ctx context.Context, db *gorm.DB, userID, message string) (*domain.Chirp, error) {
	return repo.CreateChirp(ctx, db, userID, message)
}

// GetChirp proxies repo.GetChirp.
func (chirpRepoShim) GetChirp(ctx context.Context, db *gorm.DB, id string) (*domain.Chirp, error) {
	return repo.GetChirp(ctx, db, id)
}

// ListChirps proxies repo.ListChirps.
func (chirpRepoShim) ListChirps(ctx context.Context, db *gorm.DB) ([]domain.Chirp, error) {
	return repo.ListChirps(ctx, db)
}

// CountChirpsSince proxies repo.CountChirpsSince (windowed feed support).
func (chirpRepoShim) CountChirpsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return repo.CountChirpsSince(ctx, db, cutoff)
}

// ListChirpsSincePage proxies repo.ListChirpsSincePage (windowed feed support).
func (chirpRepoShim) ListChirpsSincePage(ctx context.Context, db *gorm.DB, cutoff time.Time, offset, limit int) ([]domain.Chirp, error) {
	return repo.ListChirpsSincePage(ctx, db, cutoff, offset, limit)
}

// CountChirpsByUser proxies repo.CountChirpsByUser (quota support).
func (chirpRepoShim) CountChirpsByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChirpsByUser(ctx, db, userID)
}

// UpdateChirpMessage proxies repo.UpdateChirpMessage.
func (chirpRepoShim) UpdateChirpMessage(ctx context.Context, db *gorm.DB, id, userID, message string) error {
	return repo.UpdateChirpMessage(ctx, db, id, userID, message)
}

// DeleteChirp proxies repo.DeleteChirp.
func (chirpRepoShim) DeleteChirp(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteChirp(ctx, db, id, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression for feed payloads
//  7. Metrics
//  8. Bearer auth (resolve userID before idempotency and rate keying)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderIdempotencyKey,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; chirps are tiny)
	r.Use(limitBody(64 << 10))

	// 6) Compress feed responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Resolve the acting user from a bearer token (non-fatal)
	r.Use(middleware.BearerAuth([]byte(cfg.Auth.JWTSecret)))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	chirpSvc := services.NewChirpService(db, chirpRepoShim{})
	chirpSvc.MaxMessageRunes = cfg.ChirpMaxRunes
	chirpSvc.Quota = cfg.ChirpQuota
	chirpSvc.FeedWindow = time.Duration(cfg.FeedWindowDays) * 24 * time.Hour

	likeSvc := &services.LikeService{DB: db}
	authSvc := &services.AuthService{
		DB:        db,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
	}
	h := handlers.New(chirpSvc, likeSvc, authSvc, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // "/" by default so paths match the reference surface
	api := groupWithPrefix(r, apiBase)
	{
		// Feeds
		api.GET("/", h.HomeFeed)
		api.GET("/chirps", h.ListRecent)

		// Chirps
		api.POST("/chirps", h.CreateChirp)
		api.PUT("/chirps/:id", h.UpdateChirp)
		api.DELETE("/chirps/:id", h.DeleteChirp)

		// Likes
		api.POST("/chirps/:id/like", h.LikeChirp)

		// Accounts
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
