// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package studio provides the HTTP service for AppForgeLocal.
//
// The studio service owns all workspace state: project file stores, the
// version ledger, the generation orchestrator, preview serving, and the
// reload channel. It wires those core packages to the outside world via
// a Gin router with OTel tracing and Prometheus metrics.
//
// # Enterprise Integration
//
// The service supports dependency injection via extensions.ServiceOptions,
// enabling enterprise builds to supply custom implementations of:
//   - AuthProvider: real authentication (JWT, API keys)
//   - AuditLogger: compliance audit logging
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := studio.Config{Port: 12300}
//	svc, err := studio.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package studio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AppForgeLocal/pkg/extensions"
	"github.com/AleutianAI/AppForgeLocal/pkg/logging"
	"github.com/AleutianAI/AppForgeLocal/services/studio/deploy"
	"github.com/AleutianAI/AppForgeLocal/services/studio/observability"
	"github.com/AleutianAI/AppForgeLocal/services/studio/routes"
	"github.com/AleutianAI/AppForgeLocal/services/workspace"
	"github.com/AleutianAI/AppForgeLocal/services/workspace/generation"
	storebadger "github.com/AleutianAI/AppForgeLocal/services/workspace/storage/badger"
)

// Service defines the studio service lifecycle.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// Config holds studio configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12300.
	Port int `yaml:"port"`

	// DataDir is the BadgerDB directory for workspace state.
	// Default: ~/.appforge/data. Ignored when InMemory is true.
	DataDir string `yaml:"data_dir"`

	// InMemory keeps all state in memory (no persistence). Used by
	// tests and throwaway sandboxes.
	InMemory bool `yaml:"in_memory"`

	// LogDir is where the service writes its log files.
	// Default: ~/.appforge/logs.
	LogDir string `yaml:"log_dir"`

	// GinMode sets the Gin framework mode: "debug", "release", "test".
	GinMode string `yaml:"gin_mode"`

	// OTelEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables tracing.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// EnableMetrics enables the Prometheus /metrics endpoint and metric
	// recording. Default: true.
	EnableMetrics *bool `yaml:"enable_metrics"`

	// Generation tunes the task orchestrator.
	Generation GenerationConfig `yaml:"generation"`
}

// GenerationConfig is the generation section of the service config.
type GenerationConfig struct {
	// Backend selects the producer: "openai" for any OpenAI-compatible
	// endpoint, "demo" for the offline scripted producer. Default:
	// "demo" when no model is configured, else "openai".
	Backend string `yaml:"backend"`

	// OpenAI points at the completion endpoint (used when Backend is
	// "openai").
	OpenAI generation.OpenAIConfig `yaml:"openai"`

	// MaxConcurrentPerProject bounds running tasks per project.
	// Default: 1.
	MaxConcurrentPerProject int `yaml:"max_concurrent_per_project"`

	// ProducerTimeoutSeconds bounds producer inactivity. Default: 120.
	ProducerTimeoutSeconds int `yaml:"producer_timeout_seconds"`

	// StartRatePerSecond rate-limits task starts across projects.
	// Zero disables limiting.
	StartRatePerSecond float64 `yaml:"start_rate_per_second"`
	StartBurst         int     `yaml:"start_burst"`
}

// service implements Service.
type service struct {
	config        Config
	opts          extensions.ServiceOptions
	logger        *logging.Logger
	router        *gin.Engine
	manager       *workspace.Manager
	orchestrator  *generation.Orchestrator
	deploys       *deploy.Service
	db            *storebadger.DB
	tracerCleanup func(context.Context)
}

// New builds a ready-to-run studio service. If opts is nil,
// DefaultOptions() supplies no-op auth and audit.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	s.logger = logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  s.config.LogDir,
		Service: "studio",
		JSON:    true,
	})
	s.logger.SetAsDefault()

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	metricsOn := s.config.EnableMetrics == nil || *s.config.EnableMetrics
	if metricsOn {
		observability.InitMetrics()
		slog.Info("initialized Prometheus metrics")
	}

	if err := s.initState(); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := s.initOrchestrator(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.deploys = deploy.NewService(s.logger, observability.RecordDeploy)
	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops. Cleanup is
// automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting studio server", "port", s.config.Port, "data_dir", s.config.DataDir)
	return s.router.Run(addr)
}

// Router returns the configured Gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12300
	}
	if cfg.DataDir == "" {
		cfg.DataDir = expandHome("~/.appforge/data")
	} else {
		cfg.DataDir = expandHome(cfg.DataDir)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = expandHome("~/.appforge/logs")
	} else {
		cfg.LogDir = expandHome(cfg.LogDir)
	}
	if cfg.Generation.Backend == "" {
		if cfg.Generation.OpenAI.Model != "" {
			cfg.Generation.Backend = "openai"
		} else {
			cfg.Generation.Backend = "demo"
		}
	}
	if cfg.Generation.MaxConcurrentPerProject == 0 {
		cfg.Generation.MaxConcurrentPerProject = 1
	}
	if cfg.Generation.ProducerTimeoutSeconds == 0 {
		cfg.Generation.ProducerTimeoutSeconds = 120
	}
	return cfg
}

// initState opens the archive and rehydrates workspaces from it.
func (s *service) initState() error {
	var archive workspace.Archive
	if !s.config.InMemory {
		db, err := storebadger.Open(storebadger.Config{
			Path:           s.config.DataDir,
			SyncWrites:     true,
			Logger:         s.logger.Slog(),
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		})
		if err != nil {
			return fmt.Errorf("failed to open workspace archive: %w", err)
		}
		s.db = db
		archive = storebadger.NewArchive(db)
	}

	manager, err := workspace.NewManager(archive)
	if err != nil {
		return fmt.Errorf("failed to load workspaces: %w", err)
	}
	s.manager = manager
	return nil
}

func (s *service) initOrchestrator() error {
	var factory generation.ProducerFactory
	switch s.config.Generation.Backend {
	case "openai":
		factory = generation.NewOpenAIFactory(s.config.Generation.OpenAI, s.manager)
		slog.Info("generation backend: openai-compatible",
			"base_url", s.config.Generation.OpenAI.BaseURL,
			"model", s.config.Generation.OpenAI.Model)
	case "demo":
		factory = demoProducerFactory()
		slog.Info("generation backend: offline demo")
	default:
		return fmt.Errorf("unknown generation backend %q", s.config.Generation.Backend)
	}

	orch, err := generation.NewOrchestrator(generation.Config{
		MaxConcurrentPerProject: s.config.Generation.MaxConcurrentPerProject,
		ProducerTimeout:         time.Duration(s.config.Generation.ProducerTimeoutSeconds) * time.Second,
		StartRate:               rate.Limit(s.config.Generation.StartRatePerSecond),
		StartBurst:              s.config.Generation.StartBurst,
		NewProducer:             factory,
		OnTerminal: func(info generation.Info) {
			duration := time.Since(info.CreatedAt).Seconds()
			observability.RecordTaskTerminal(string(info.Status), duration)
		},
		OnEdit: observability.RecordEditApplied,
	}, s.manager, s.logger, s.opts.AuditLogger)
	if err != nil {
		return err
	}
	s.orchestrator = orch
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("studio-service"))
	routes.SetupRoutes(router, s.manager, s.orchestrator, s.deploys, s.opts)
	s.router = router
}

// initTracer sets up the OTLP trace exporter. Uses an insecure gRPC
// connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("studio-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("failed to close workspace archive", "error", err)
		}
	}
	if s.logger != nil {
		if err := s.logger.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", err)
		}
	}
}

// demoProducerFactory serves installs with no model configured: every
// prompt produces a small static page that echoes the request. Useful
// for trying the full pipeline (tasks, streams, preview, versions)
// offline.
func demoProducerFactory() generation.ProducerFactory {
	return func(ctx context.Context, req generation.Request) (generation.Producer, error) {
		page := fmt.Sprintf(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>AppForge Demo</title><link rel="stylesheet" href="style.css"></head>
<body>
<h1>AppForge demo build</h1>
<p>Prompt: %s</p>
</body>
</html>
`, htmlEscape(req.Prompt))
		css := "body { font-family: sans-serif; margin: 2rem; }\n"
		return generation.NewScriptedProducer(
			generation.ScriptStep{Edit: &generation.Edit{Path: "index.html", Content: []byte(page)}, Delay: 100 * time.Millisecond},
			generation.ScriptStep{Edit: &generation.Edit{Path: "style.css", Content: []byte(css)}, Delay: 100 * time.Millisecond},
		), nil
	}
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
