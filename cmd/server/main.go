package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/blob"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/database"
	"github.com/jmcgarr/nimbus/internal/handlers"
	"github.com/jmcgarr/nimbus/internal/logger"
	internalMiddleware "github.com/jmcgarr/nimbus/internal/middleware"
	"github.com/jmcgarr/nimbus/internal/routes"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Env)

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"blob_backend", cfg.BlobBackend,
		"max_upload_mb", float64(cfg.MaxUploadSize)/(1024*1024),
	)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	blobs, err := blob.NewStoreFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	if s3, ok := blobs.(*blob.S3Store); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s3.ValidateAccess(ctx); err != nil {
			log.Fatalf("Failed to validate bucket access: %v", err)
		}
		cancel()
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime)
	oauthHandler, err := handlers.NewOAuthHandler(context.Background(), db, cfg, tokens)
	if err != nil {
		log.Fatalf("Failed to initialize OAuth: %v", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(internalMiddleware.LoggingMiddleware)
	r.Use(internalMiddleware.RecoverMiddleware)
	r.Use(internalMiddleware.SecurityHeaders)

	versionInfo := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	routes.Setup(r, db, cfg, blobs, tokens, oauthHandler, versionInfo)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.Info("starting nimbus server",
		"address", addr,
		"environment", cfg.Env,
		"version", versionInfo,
	)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
