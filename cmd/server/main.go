package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/config"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/api"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/session"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront client")

	tp, err := util.InitTracer("storefront-client", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	storage, cleanup, err := sessionStorageFactory(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session storage: %v", err)
	}
	defer cleanup()
	log.Printf("Session storage backend: %s", cfg.Session.Backend)

	registry := api.NewRegistry(
		cfg.API.BaseURL,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second,
		storage,
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(registry)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// sessionStorageFactory picks the token persistence backend from
// config: in-memory for throwaway sessions, a JSON file per session, or
// Redis for multi-replica deployments.
func sessionStorageFactory(cfg *config.Config) (api.StorageFactory, func(), error) {
	switch cfg.Session.Backend {
	case "file":
		dir := cfg.Session.Dir
		return func(id string) session.Storage {
			return session.NewFileStorage(filepath.Join(dir, id+".json"))
		}, func() {}, nil

	case "redis":
		rdb, err := session.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return func(id string) session.Storage {
				return session.NewRedisStorage(rdb, id)
			}, func() {
				_ = rdb.Close()
			}, nil

	case "memory":
		return func(string) session.Storage {
			return session.NewMemoryStorage()
		}, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
