package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/multicreator/mintpipe/internal/config"
	"github.com/multicreator/mintpipe/internal/infrastructure/providers"
	"github.com/multicreator/mintpipe/internal/infrastructure/repository"
	"github.com/multicreator/mintpipe/internal/present/rest"
	"github.com/multicreator/mintpipe/internal/service"
	"github.com/multicreator/mintpipe/internal/usecase"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("MINTD_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := providers.NewRedisClient(conf.Server)
	mc := providers.NewMemcache(conf.Server)

	registry := providers.NewDedupRegistry(conf, rdb)
	if err := repository.RestoreReservations(ctx, db, registry); err != nil {
		slog.Error("failed to restore reservations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	primary := providers.NewPrimaryStorage(conf.Storage, mc)
	backup, err := providers.NewBackupStorage(conf.Storage)
	if err != nil {
		slog.Error("failed to set up backup storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scorer := providers.NewScorer(conf.Scorer)
	chain, err := providers.NewChainClient(conf.Chain)
	if err != nil {
		slog.Error("failed to set up chain client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	events := service.NewEventService(rdb)
	minted := repository.NewMintedTokenRepository(db)

	gate := usecase.NewOriginalityGate(
		scorer,
		conf.Pipeline.SimilarityThreshold,
		conf.Pipeline.ScoreAttempts,
		conf.Pipeline.AttemptTimeout,
		conf.Pipeline.RetryInterval,
	)
	uploader := usecase.NewDualStorageUploader(
		primary,
		backup,
		conf.Pipeline.StorageAttempts,
		conf.Pipeline.AttemptTimeout,
		conf.Pipeline.RetryInterval,
	)
	coordinator := usecase.NewCoordinator(
		registry,
		gate,
		uploader,
		chain,
		events,
		minted,
		conf.Pipeline.ConfirmTimeout,
		conf.Pipeline.ConfirmPollInterval,
	)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("mintd"))
	}

	handler := rest.NewHandler(coordinator, minted, primary, events)
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("mintd"),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
