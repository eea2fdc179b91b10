package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/logging"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/repository/mongo"
	"github.com/Rrens/support-chat/internal/repository/redis"
	"github.com/Rrens/support-chat/internal/repository/sqlite"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logCloser, err := logging.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting support chat server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	agents, sessions, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	// Initialize Redis
	var redisClient *redis.Client
	var publisher realtime.Publisher
	var relay *redis.Relay
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		relay = redis.NewRelay(redisClient, cfg.Chat.RelayChannel)
		publisher = relay
	} else {
		log.Warn().Msg("Redis disabled: no rate limiting, no start lock, single-process broadcast")
	}

	hub := realtime.NewHub(publisher)
	if relay != nil {
		go runRelay(ctx, relay, hub)
	}

	// Initialize router
	router := api.NewRouter(cfg, api.Dependencies{
		Agents:   agents,
		Sessions: sessions,
		Hub:      hub,
		Redis:    redisClient,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openStore connects the configured backend and returns its repositories
func openStore(ctx context.Context, cfg *config.Config) (domain.AgentRepository, domain.SessionRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.NewDB(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}
		return sqlite.NewAgentRepository(db), sqlite.NewSessionRepository(db), closeFn, nil

	default:
		if cfg.Mongo.AutoMigrate {
			if err := mongo.RunMigrations(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.MigrationsPath); err != nil {
				return nil, nil, nil, err
			}
		}

		db, err := mongo.NewDB(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := db.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}
		return mongo.NewAgentRepository(db), mongo.NewSessionRepository(db), closeFn, nil
	}
}

const relayRetryDelay = 2 * time.Second

// runRelay keeps the relay subscribed until ctx ends. While it is down the hub delivers locally.
func runRelay(ctx context.Context, relay *redis.Relay, hub *realtime.Hub) {
	for {
		err := relay.Run(ctx, func(e domain.Event) { hub.Deliver(e) })
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Dur("retry_in", relayRetryDelay).Msg("Relay stopped, broadcasting locally")

		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}
