package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/partscout/backend/config"
	httpDelivery "github.com/partscout/backend/internal/delivery/http"
	"github.com/partscout/backend/internal/domain"
	"github.com/partscout/backend/internal/infrastructure/cache"
	"github.com/partscout/backend/internal/infrastructure/compuzone"
	"github.com/partscout/backend/internal/infrastructure/fetch"
	"github.com/partscout/backend/internal/infrastructure/guidecom"
	"github.com/partscout/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting PartScout Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Session Store: %s (ttl %s)", cfg.Session.Store, cfg.Session.TTL)

	// Initialize source connectors
	connectors, err := buildConnectors(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize sources: %v", err)
	}

	// Initialize session store
	repo, closer, err := buildSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}

	// Initialize usecase layer
	engine := usecase.NewAggregationService(connectors, usecase.AggregationConfig{
		UnitTimeout:    cfg.Engine.UnitTimeout,
		PerSourceLimit: cfg.Engine.PerSourceLimit,
	})
	log.Printf("Engine: %d sources, unit timeout %s, per-source limit %d",
		len(connectors), cfg.Engine.UnitTimeout, cfg.Engine.PerSourceLimit)

	sessions := usecase.NewSessionService(engine)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(sessions, repo)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight searches may run up to one unit timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.UnitTimeout+5*time.Second)
	defer cancel()

	log.Printf("Shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
		srv.Close()
	}
	if err := closer.Close(); err != nil {
		log.Printf("Session store close error: %v", err)
	}
	log.Printf("Shutdown complete")
}

func buildConnectors(cfg *config.Config) ([]domain.SourceConnector, error) {
	var connectors []domain.SourceConnector

	if src := cfg.Sources.Compuzone; src.Enabled {
		c, err := compuzone.NewConnector(newFetcher("Compuzone", src), src.BaseURL, src.PageSize)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
		log.Printf("Compuzone configured: %s (timeout %s, retries %d)", src.BaseURL, src.Timeout, src.Retries)
	}

	if src := cfg.Sources.Guidecom; src.Enabled {
		c, err := guidecom.NewConnector(newFetcher("Guidecom", src), src.BaseURL, src.PageSize)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
		log.Printf("Guidecom configured: %s (timeout %s, retries %d)", src.BaseURL, src.Timeout, src.Retries)
	}

	return connectors, nil
}

func newFetcher(name string, src config.SourceConfig) *fetch.Fetcher {
	return fetch.New(fetch.Options{
		Name:          name,
		Timeout:       src.Timeout,
		Retries:       src.Retries,
		Backoff:       src.Backoff,
		RatePerSecond: src.RatePerSecond,
		Burst:         src.Burst,
		UserAgent:     src.UserAgent,
	})
}

func buildSessionStore(cfg *config.Config) (domain.SessionRepository, io.Closer, error) {
	if cfg.Session.Store == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := cache.NewRedisSessionStoreFromURL(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	store := cache.NewMemorySessionStore(cfg.Session.TTL)
	return store, store, nil
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
