// Command vaxmesh serves the vaccination booking assistant over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"

	"github.com/hupe1980/vaxmesh"
	"github.com/hupe1980/vaxmesh/booking"
	"github.com/hupe1980/vaxmesh/bus"
	"github.com/hupe1980/vaxmesh/flow"
	"github.com/hupe1980/vaxmesh/internal/config"
	"github.com/hupe1980/vaxmesh/internal/telemetry"
	"github.com/hupe1980/vaxmesh/logging"
	"github.com/hupe1980/vaxmesh/model"
	"github.com/hupe1980/vaxmesh/model/anthropic"
	"github.com/hupe1980/vaxmesh/model/openai"
	"github.com/hupe1980/vaxmesh/server"
	"github.com/hupe1980/vaxmesh/session"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	configPath := flag.String("config", os.Getenv("VAXMESH_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}

	logger := logging.New(logging.Config{Level: level, Format: cfg.LogFormat, Output: os.Stdout})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vaxmesh.fatal", "error", err.Error())
		return 1
	}

	return 0
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	logger.Info("vaxmesh.starting", "version", version, "addr", cfg.HTTPAddr, "provider", cfg.ModelProvider, "model", cfg.ModelName)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	client, err := booking.NewClient(booking.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logging.With(logger, "component", "booking"),
	})
	if err != nil {
		return err
	}

	var store session.Store = session.NewInMemoryStore()
	if cfg.SnapshotDB != "" {
		if store, err = session.NewSQLiteStore(cfg.SnapshotDB, logger); err != nil {
			return err
		}
	}

	mesh, err := vaxmesh.New(client, newModel(cfg), func(o *vaxmesh.Options) {
		o.FlowConfig = flow.Config{
			MaxTurns:    cfg.MaxTurns,
			ToolTimeout: cfg.ToolTimeout,
			Stream:      true,
			MaxParallel: flow.DefaultConfig.MaxParallel,
		}
		o.BusConfig = bus.Config{MailboxSize: cfg.MailboxSize, EventBufferSize: bus.DefaultConfig.EventBufferSize}
		o.Store = store
		o.SessionDate = cfg.SessionDate
		o.TurnTimeout = cfg.TurnTimeout
		o.Logger = logger
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() { _ = mesh.Close() }()

	var verifier server.TokenVerifier
	if cfg.JWTSecret != "" {
		v, err := server.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTAlgorithm)
		if err != nil {
			return err
		}

		verifier = v
	} else {
		logger.Warn("vaxmesh.auth.disabled", "reason", "JWT_SECRET not set; bearer tokens are forwarded unchecked")
	}

	srv := server.New(mesh.Runner(), server.Config{
		Addr:            cfg.HTTPAddr,
		Verifier:        verifier,
		Logger:          logging.With(logger, "component", "http"),
		MaxRequestBytes: cfg.MaxRequestBodyBytes,
		Version:         version,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("vaxmesh.stopped")

	return nil
}

func newModel(cfg config.Config) model.Model {
	if cfg.ModelProvider == config.ProviderAnthropic {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			o.Temperature = cfg.Temperature

			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
		})
	}

	return openai.NewModel(func(o *openai.Options) {
		o.APIKey = cfg.OpenAIAPIKey
		o.BaseURL = cfg.OpenAIBaseURL
		o.Temperature = cfg.Temperature

		if cfg.ModelName != "" {
			o.Model = cfg.ModelName
		}
	})
}
