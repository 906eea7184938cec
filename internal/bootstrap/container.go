package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/config"
	"github.com/noah-isme/gema-ews-api/internal/database"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/internal/risk"
	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/pkg/ai"
	cloud "github.com/noah-isme/gema-ews-api/pkg/cloudinary"
	"github.com/noah-isme/gema-ews-api/pkg/prediction"
)

// Container holds the connections and services shared by the API server and the CLI.
type Container struct {
	DB    *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn

	Thresholds *service.ThresholdStore
	Cohort     service.CohortService
	Alerts     service.AlertService
	Students   service.StudentService
	Threshold  service.ThresholdService
	Ingest     service.IngestService
	Prediction service.PredictionService
	Brief      service.BriefService

	logger zerolog.Logger
}

// Build connects to the configured backends and wires every service. Redis, NATS,
// Cloudinary, the prediction service and the brief advisor (OpenAI, then Anthropic)
// are optional; missing settings disable them.
func Build(cfg config.Config, logger zerolog.Logger) (*Container, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Student{}, &models.StudentRecord{}, &models.RiskAlert{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{DB: db, logger: logger}

	if cfg.RedisURL != "" {
		if c.Redis, err = database.ConnectRedis(cfg.RedisURL); err != nil {
			c.Close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("redis disabled; dashboard cache and cross-node alerts are off")
	}

	if cfg.NATSURL != "" {
		if c.NATS, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName); err != nil {
			c.Close()
			return nil, err
		}
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		storage = uploader
	}

	var predictor service.Predictor
	client, err := prediction.New(cfg.PredictionURL, cfg.PredictionTimeout, logger)
	switch {
	case err == nil:
		predictor = client
	case errors.Is(err, prediction.ErrNotConfigured):
		logger.Info().Msg("prediction service not configured")
	default:
		c.Close()
		return nil, err
	}

	var advisor ai.Advisor
	openAI, err := ai.NewOpenAIAdvisor(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Logger:  logger,
	})
	if err == nil {
		advisor = openAI
	} else if claude, err := ai.NewAnthropicAdvisor(ai.AnthropicConfig{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		Logger: logger,
	}); err == nil {
		advisor = claude
	} else {
		logger.Info().Msg("intervention briefs disabled; no advisor api key")
	}

	studentRepo := repository.NewStudentRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	c.Thresholds = service.NewThresholdStore(risk.DefaultThresholds())
	c.Cohort = service.NewCohortService(studentRepo, c.Thresholds, c.Redis, service.CohortOptions{
		WorkingDays: cfg.WorkingDays,
		Mode:        cfg.ClassificationMode,
		TopN:        cfg.TopAtRiskLimit,
		CacheTTL:    cfg.DashboardCacheTTL,
	}, logger)
	c.Alerts = service.NewAlertService(alertRepo, c.Redis, cfg.RealtimeChannel, c.NATS, logger)
	c.Students = service.NewStudentService(studentRepo, c.Thresholds, c.Cohort, c.Alerts, logger)
	c.Threshold = service.NewThresholdService(c.Thresholds, studentRepo, c.Cohort, c.Students, logger)
	c.Ingest = service.NewIngestService(studentRepo, c.Students, storage, service.IngestOptions{
		Workers:   cfg.IngestWorkers,
		MaxSizeMB: cfg.IngestMaxUploadMB,
	}, logger)
	c.Prediction = service.NewPredictionService(predictor, studentRepo, logger)
	c.Brief = service.NewBriefService(c.Students, advisor, logger)

	return c, nil
}

// Ping checks the database connection.
func (c *Container) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases every open connection.
func (c *Container) Close() {
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
