package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/config"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/media"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/metrics"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/server"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/session"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "api-whatsapp-multi-instance"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env if present so PORT and AUTH_TOKEN can come from the
	// environment, then the configuration file
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("address", cfg.Server.Address),
		slog.Int("bots", len(cfg.Bots)),
		slog.String("bridge_endpoint", cfg.Transport.BridgeEndpoint),
		slog.String("upload_dir", cfg.Media.UploadDir),
		slog.String("output_format", cfg.Media.OutputFormat),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Provider factory: one bridge client per bot, honoring per-bot overrides
	factory := func(name string) (transport.Provider, error) {
		bot := botConfig(cfg, name)
		return transport.NewClient(transport.Config{
			Name:          name,
			Endpoint:      cfg.BridgeEndpoint(bot),
			APIKey:        cfg.Transport.APIKey,
			DataDir:       cfg.DataDir(bot),
			Timeout:       cfg.Transport.GetTimeoutDuration(),
			MaxRetries:    cfg.Transport.MaxRetries,
			MaxConcurrent: cfg.Transport.MaxConcurrent,
		})
	}

	// Initialize session registry and bootstrap every configured bot.
	// A bot that fails to bootstrap is logged and skipped; the process and
	// the remaining bots keep going.
	registry := session.NewRegistry(logger, factory)
	for _, bot := range cfg.Bots {
		if _, err := registry.EnsureSession(ctx, bot.Name); err != nil {
			logger.Error("Failed to bootstrap bot session",
				slog.String("bot", bot.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		appMetrics.RecordSessionCreated()
	}
	appMetrics.SetActiveSessions(registry.Len())
	logger.Info("Bot sessions initialized",
		slog.Int("requested", len(cfg.Bots)),
		slog.Int("active", registry.Len()),
	)

	// Initialize media pipeline
	transcoder := media.NewTranscoder(cfg.Media.FFmpegPath)
	pipeline := media.NewPipeline(
		cfg.Media.UploadDir,
		media.Format(cfg.Media.OutputFormat),
		cfg.Media.GetConversionTimeoutDuration(),
		transcoder,
		logger,
	)

	// Initialize and start HTTP server
	httpServer := server.NewHTTPServer(cfg, logger, registry, pipeline, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	registry.Close()

	logger.Info("Service stopped",
		slog.Int("sessions", registry.Len()),
	)
}

// botConfig finds the descriptor for a bot name; Validate guarantees it exists
func botConfig(cfg *config.Config, name string) config.BotConfig {
	for _, bot := range cfg.Bots {
		if bot.Name == name {
			return bot
		}
	}
	return config.BotConfig{Name: name}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
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

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
