package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/crewdeck/internal/auth"
	"github.com/gosuda/crewdeck/internal/config"
	"github.com/gosuda/crewdeck/internal/crew"
	"github.com/gosuda/crewdeck/internal/feed"
	crewdeckslack "github.com/gosuda/crewdeck/internal/messenger/slack"
	"github.com/gosuda/crewdeck/internal/notify"
	"github.com/gosuda/crewdeck/internal/server"
	"github.com/gosuda/crewdeck/internal/store/postgres"
	redisstore "github.com/gosuda/crewdeck/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("CREWDECK_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("CREWDECK_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Load operator provisioned crew API keys.
	keyring := auth.NewKeyring()
	for sender, rawKey := range cfg.Crew.APIKeys {
		if addErr := keyring.Add(sender, rawKey); addErr != nil {
			return fmt.Errorf("crew api key for %q: %w", sender, addErr)
		}
	}

	// Create the sandbox runtime when an image is configured.
	var sandbox *crew.SandboxRuntime
	if cfg.Sandbox.ImageDefault != "" {
		sandbox, err = crew.NewSandboxRuntime(
			cfg.Sandbox.Host,
			cfg.Sandbox.ImageDefault,
			cfg.Sandbox.CPULimit,
			cfg.Sandbox.MemLimit,
		)
		if err != nil {
			return fmt.Errorf("sandbox runtime: %w", err)
		}
		defer sandbox.Close()
	}

	// Optional Slack notifier for run outcomes.
	var notifier *notify.Notifier
	if cfg.Slack.BotToken != "" && cfg.Slack.ChannelID != "" {
		messengers := notify.NewRegistry()
		messengers.Register("slack", crewdeckslack.NewSlackMessenger(slacklib.New(cfg.Slack.BotToken)))
		notifier = notify.New(messengers, "slack", cfg.Slack.ChannelID)
		log.Info().Str("channel", cfg.Slack.ChannelID).Msg("Slack notifications enabled")
	}

	// Every workspace's feed fans out to the websocket channels and the
	// replay store, plus Slack when configured.
	sinkFor := func(workspaceID uuid.UUID, boundProject func() string) feed.Sink {
		sinks := feed.FanoutSink{
			redisstore.NewFeedSink(pubsub, workspaceID),
			feed.NewRecorder(store.Feed(), workspaceID, boundProject),
		}
		if notifier != nil {
			sinks = append(sinks, notifier)
		}
		return sinks
	}

	registry := crew.NewRegistry(crew.NewSandboxFactory(sandbox))

	crewSvc := crew.NewService(registry, store.Workspaces(), sinkFor, crew.InstanceConfig{
		Model:      cfg.Crew.Model,
		SandboxImg: cfg.Sandbox.ImageDefault,
	})

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, crewSvc, pubsub, keyring)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	crewSvc.Shutdown(shutdownCtx)

	log.Info().Msg("stopped")
	return nil
}
