// Command server is the HTTP entrypoint for the chirper backend. It loads
// configuration from the environment (optionally via .env), opens the SQLite
// database, runs migrations, configures observability, and serves the API
// with graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/config"
	httpapi "github.com/tbourn/go-chirper-backend/internal/http"
	"github.com/tbourn/go-chirper-backend/internal/observability"
	"github.com/tbourn/go-chirper-backend/internal/repo"
	"github.com/tbourn/go-chirper-backend/internal/services"
	"github.com/tbourn/go-chirper-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	seed := flag.Bool("seed", false, "seed a demo account with a handful of chirps and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	if *seed {
		if err := seedDemoData(db, cfg); err != nil {
			log.Fatal().Err(err).Msg("seed demo data")
		}
		log.Info().Msg("demo data seeded")
		return
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("bye")
}

// seedDemoData creates one demo account and a few chirps so a fresh install
// has something to show on the feeds. Safe to run once against an empty DB.
func seedDemoData(db *gorm.DB, cfg config.Config) error {
	ctx := context.Background()

	authSvc := &services.AuthService{
		DB:        db,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
	}
	u, err := authSvc.Register(ctx, "demo", "demo@example.com", "demo-password")
	if err != nil {
		return err
	}

	messages := []string{
		"Hello world, first chirp!",
		"Short posts only around here.",
		"Trying out the edit button next.",
		"Likes are forever, choose wisely.",
		"That's five, saving the rest of my quota.",
	}
	for _, m := range messages {
		if _, err := repo.CreateChirp(ctx, db, u.ID, m); err != nil {
			return err
		}
	}
	return nil
}
