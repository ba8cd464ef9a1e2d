// ABOUTME: Entry point for the greentic-gateway messaging server
// ABOUTME: Serves the Direct-Line style Activity API over HTTP

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/greentic/messaging-gateway/internal/auth"
	"github.com/greentic/messaging-gateway/internal/config"
	"github.com/greentic/messaging-gateway/internal/envelope"
	"github.com/greentic/messaging-gateway/internal/events"
	"github.com/greentic/messaging-gateway/internal/gateway"
	"github.com/greentic/messaging-gateway/internal/ratelimit"
	"github.com/greentic/messaging-gateway/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
                          _   _
  __ _ _ __ ___  ___ _ __ | |_(_) ___
 / _' | '__/ _ \/ _ \ '_ \| __| |/ __|
| (_| | | |  __/  __/ | | | |_| | (__
 \__, |_|  \___|\___|_| |_|\__|_|\___|
 |___/        messaging gateway
`

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to gateway config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// defaultConfigPath resolves the config file location.
// Priority: GATEWAY_CONFIG env var > ./gateway.yaml
func defaultConfigPath() string {
	if envPath := os.Getenv("GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}
	return "gateway.yaml"
}

func run(ctx context.Context, configPath string) error {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	if cfg.Database.Path == "" {
		green.Print("    ▶ ")
		fmt.Println("Store:  in-memory (no database.path configured)")
	} else {
		green.Print("    ▶ ")
		fmt.Printf("Store:  %s\n", cfg.Database.Path)
	}
	fmt.Println()

	st, err := initStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	limiter, err := initLimiter(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing rate limiter: %w", err)
	}
	if limiter != nil {
		defer limiter.Close()
	}

	publisher, err := initPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing event publisher: %w", err)
	}
	defer publisher.Close()

	tokens := auth.NewService(
		[]byte(cfg.Auth.DefaultKey),
		cfg.TenantKeyBytes(),
		cfg.Auth.TokenTTL,
	)

	logger.Info("starting greentic-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw := gateway.New(st, tokens, limiter, publisher, logger)
	return gw.Serve(ctx, cfg.Server.HTTPAddr)
}

func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	limits := envelope.NewLimits(cfg.Attachments.MaxBytes, cfg.Attachments.AllowedMime)
	if cfg.Database.Path == "" {
		logger.Info("using in-memory store")
		return store.NewMemoryStore(limits), nil
	}
	return store.NewSQLiteStore(cfg.Database.Path, limits)
}

func initLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.RateLimit.PerScope == 0 {
		logger.Warn("token issuance rate limiting disabled (ratelimit.per_scope is 0)")
		return nil, nil
	}
	if cfg.RateLimit.RedisURL != "" {
		return ratelimit.NewRedisLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.PerScope, cfg.RateLimit.Window)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.PerScope, cfg.RateLimit.Window), nil
}

func initPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.Events.AMQPURL == "" {
		logger.Info("event publishing disabled (events.amqp_url not set)")
		return events.NopPublisher{}, nil
	}
	return events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
