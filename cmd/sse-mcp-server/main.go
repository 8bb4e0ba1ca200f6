// Command sse-mcp-server runs the MCP server over an SSE transport: clients
// open a stream on GET /sse and post protocol messages to the endpoint the
// stream announces.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/M1T8E6/sse-mcp-server/pkg/config"
	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
	"github.com/M1T8E6/sse-mcp-server/pkg/observability"
	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/server"
	"github.com/M1T8E6/sse-mcp-server/pkg/session"
	"github.com/M1T8E6/sse-mcp-server/pkg/sse"
	"github.com/M1T8E6/sse-mcp-server/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sse-mcp-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := buildLogger(cfg)
	logger.Info("starting server",
		logging.String("app", cfg.AppName),
		logging.String("version", cfg.Version),
		logging.String("environment", string(cfg.Environment)),
		logging.String("addr", cfg.Addr()),
	)

	tracing, err := buildTracing(cfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	metrics := observability.NewMetrics(observability.MetricsConfig{
		ServiceName:    cfg.AppName,
		ServiceVersion: cfg.Version,
		Environment:    string(cfg.Environment),
	})

	registry := session.NewRegistry(session.RegistryConfig{
		ChannelCapacity: cfg.ChannelCapacity,
		IdleLimit:       cfg.SessionIdleLimit,
		SweepInterval:   cfg.SweepInterval,
		OnEvict: func(_ string, reason string) {
			switch reason {
			case session.EvictReasonIdle:
				metrics.SessionClosed(observability.RemoveReasonIdle)
			case session.EvictReasonShutdown:
				metrics.SessionClosed(observability.RemoveReasonShutdown)
			}
		},
	}, logger)
	registry.Start()

	toolRegistry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(toolRegistry, cfg.AppName, cfg.Version); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	adapter := server.New(server.Options{
		Name:      cfg.AppName,
		Version:   cfg.Version,
		Tools:     server.NewRegistryToolsProvider(toolRegistry),
		Resources: buildResources(cfg),
		Prompts:   buildPrompts(),
		Metrics:   metrics,
	}, registry, logger)

	handler := sse.NewHandler(sse.Config{
		MessagesPath:      "/messages",
		KeepAliveInterval: cfg.KeepAliveInterval,
		AllowedOrigins:    cfg.AllowedOrigins,
		Version:           cfg.Version,
		Environment:       string(cfg.Environment),
	}, registry, adapter, logger, metrics)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stopping the registry closes every outbound queue, which unblocks
		// the stream pumps and lets open SSE connections end cleanly.
		registry.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", logging.ErrorField(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func buildLogger(cfg *config.Config) logging.Logger {
	var formatter logging.Formatter
	if cfg.LogFormat == "json" {
		formatter = logging.NewJSONFormatter()
	} else {
		formatter = logging.NewTextFormatter()
	}

	logger := logging.New(os.Stdout, formatter)
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return logger
}

func buildTracing(cfg *config.Config) (*observability.TracingProvider, error) {
	tc := observability.TracingConfig{
		ServiceName:    cfg.AppName,
		ServiceVersion: cfg.Version,
		Environment:    string(cfg.Environment),
		ExporterType:   observability.ExporterTypeNoop,
	}
	if cfg.TracingEndpoint != "" {
		tc.ExporterType = observability.ExporterTypeOTLPHTTP
		tc.Endpoint = cfg.TracingEndpoint
		tc.Insecure = !cfg.IsProduction()
	}
	return observability.NewTracingProvider(tc)
}

func buildResources(cfg *config.Config) server.ResourcesProvider {
	resources := server.NewBaseResourcesProvider()
	resources.Register(protocol.Resource{
		URI:         "config://app",
		Name:        "Application Configuration",
		Description: "Current server configuration",
		MimeType:    "text/plain",
	}, func(context.Context) (string, error) {
		return fmt.Sprintf(
			"app_name=%s\nversion=%s\nenvironment=%s\nchannel_capacity=%d\nsession_idle_timeout=%s\nkeepalive_interval=%s\n",
			cfg.AppName,
			cfg.Version,
			cfg.Environment,
			cfg.ChannelCapacity,
			cfg.SessionIdleLimit,
			cfg.KeepAliveInterval,
		), nil
	})
	return resources
}

func buildPrompts() server.PromptsProvider {
	prompts := server.NewBasePromptsProvider()
	server.RegisterGreetingPrompt(prompts)
	return prompts
}
