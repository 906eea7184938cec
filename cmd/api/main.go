package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/bootstrap"
	"github.com/noah-isme/gema-ews-api/internal/config"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/middleware"
	"github.com/noah-isme/gema-ews-api/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	container, err := bootstrap.Build(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise services: %v", err)
	}
	defer container.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Alerts.Start(ctx)

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: "GEMA-EWS",
		BodyLimit:    (cfg.IngestMaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	probes := []handler.HealthProbe{{Name: "database", Check: container.Ping}}
	if container.Redis != nil {
		probes = append(probes, handler.HealthProbe{Name: "redis", Check: func(ctx context.Context) error {
			return container.Redis.Ping(ctx).Err()
		}})
	}

	router.Register(app, cfg, router.Dependencies{
		DashboardHandler:  handler.NewDashboardHandler(container.Cohort, logger),
		StudentHandler:    handler.NewStudentHandler(container.Students, logger),
		BriefHandler:      handler.NewBriefHandler(container.Brief, logger),
		ThresholdHandler:  handler.NewThresholdHandler(container.Threshold, validate, logger),
		IngestHandler:     handler.NewIngestHandler(container.Ingest, logger),
		PredictionHandler: handler.NewPredictionHandler(container.Prediction, logger),
		AlertHandler:      handler.NewAlertHandler(container.Alerts, logger),
		HealthProbes:      probes,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
