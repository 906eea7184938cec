package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/observability"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/pkg/prediction"
)

// LevelNoRisk is the extra tier the external model may emit.
const LevelNoRisk = "No Risk"

// ErrPredictionUnavailable indicates no prediction service is configured.
var ErrPredictionUnavailable = errors.New("prediction service unavailable")

// Predictor scores the whole cohort with the external model.
type Predictor interface {
	PredictAll(ctx context.Context) ([]prediction.Result, error)
}

// PredictionService runs the external model and stores its output next to the computed tiers.
type PredictionService interface {
	RunAll(ctx context.Context) (dto.PredictionRunResponse, error)
}

type predictionService struct {
	predictor Predictor
	repo      repository.StudentRepository
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPredictionService constructs the prediction service. predictor may be nil.
func NewPredictionService(predictor Predictor, repo repository.StudentRepository, logger zerolog.Logger) PredictionService {
	return &predictionService{
		predictor: predictor,
		repo:      repo,
		logger:    logger.With().Str("component", "prediction_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/prediction"),
		now:       time.Now,
	}
}

func (s *predictionService) RunAll(ctx context.Context) (dto.PredictionRunResponse, error) {
	if s.predictor == nil {
		return dto.PredictionRunResponse{}, ErrPredictionUnavailable
	}

	ctx, span := s.tracer.Start(ctx, "predictions.run_all")
	defer span.End()

	start := time.Now()
	results, err := s.predictor.PredictAll(ctx)
	if err != nil {
		observability.PredictionRuns().WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "predict_all_failed")
		return dto.PredictionRunResponse{}, err
	}
	observability.PredictionRuns().WithLabelValues("ok").Observe(time.Since(start).Seconds())

	distribution := map[string]int{
		"Low Risk":    0,
		"Medium Risk": 0,
		"High Risk":   0,
		LevelNoRisk:   0,
	}
	reasonCounts := make(map[string]int)
	updates := make([]repository.PredictionUpdate, 0, len(results))

	for _, result := range results {
		level := strings.TrimSpace(result.Level)
		distribution[level]++

		reasons := make([]string, 0, len(result.Reasons))
		for _, reason := range result.Reasons {
			reason = strings.TrimSpace(reason)
			if reason == "" || strings.EqualFold(reason, "None") {
				continue
			}
			reasons = append(reasons, reason)
			reasonCounts[reason]++
		}

		updates = append(updates, repository.PredictionUpdate{
			StudentID: strings.TrimSpace(result.ID),
			Level:     level,
			Reasons:   reasons,
		})
	}

	stored, err := s.repo.SavePredictions(ctx, updates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save_predictions_failed")
		return dto.PredictionRunResponse{}, err
	}

	span.SetAttributes(
		attribute.Int("predictions.results", len(results)),
		attribute.Int64("predictions.stored", stored),
	)
	if unmatched := int64(len(results)) - stored; unmatched > 0 {
		s.logger.Warn().Int64("unmatched", unmatched).Msg("predictions returned for unknown students")
	}

	return dto.PredictionRunResponse{
		Processed:    len(results),
		Stored:       stored,
		Distribution: distribution,
		ReasonCounts: reasonCounts,
		FinishedAt:   s.now().UTC(),
	}, nil
}
