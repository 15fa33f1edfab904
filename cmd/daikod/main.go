package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aoba-lab/daiko/internal/api"
	"github.com/aoba-lab/daiko/internal/bus"
	"github.com/aoba-lab/daiko/internal/config"
	"github.com/aoba-lab/daiko/internal/engine"
	"github.com/aoba-lab/daiko/internal/lexicon"
	"github.com/aoba-lab/daiko/internal/slack"
	"github.com/aoba-lab/daiko/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("daiko starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "tz", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Slack poster
	if cfg.SlackBotToken == "" || cfg.NoticeChannel == "" {
		slog.Error("SLACK_BOT_TOKEN and NOTICE_CHANNEL are required")
		os.Exit(1)
	}
	poster := slack.NewPoster(cfg.SlackBotToken, cfg.NoticeChannel, slog.Default())
	slog.Info("slack poster ready", "channel", cfg.NoticeChannel)

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Engine
	eng := engine.New(lexicon.New(), db, db, db, poster, db, slog.Default()).
		WithEvents(busClient).
		WithClock(func() time.Time { return time.Now().In(loc) })

	// Gateway-forwarded messages
	if err := busClient.Subscribe(bus.SubjectSlackMessage, func(subject string, data []byte) {
		var evt bus.MessageEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			slog.Warn("failed to parse message event", "error", err)
			return
		}
		outcome := eng.ResolveTurn(context.Background(), evt.UserID, evt.Text)
		slog.Info("turn resolved",
			"user", evt.UserID,
			"kind", outcome.Kind.String(),
			"reason", string(outcome.Reason),
		)
	}); err != nil {
		slog.Error("failed to subscribe to message events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, eng, db, cfg.APIToken, loc, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := busClient.Publish(bus.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("daiko ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("daiko stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
