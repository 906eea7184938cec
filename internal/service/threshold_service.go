package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// ErrInvalidThresholds indicates a threshold update failed validation.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// ThresholdService manages the session's threshold configuration and what-if projections.
type ThresholdService interface {
	Current() dto.ThresholdResponse
	Simulate(ctx context.Context, patch risk.ThresholdPatch) (risk.Simulation, error)
	Apply(ctx context.Context, patch risk.ThresholdPatch) (dto.ThresholdApplyResponse, error)
	Reset(ctx context.Context) (dto.ThresholdApplyResponse, error)
}

type thresholdService struct {
	mu           sync.Mutex
	store        *ThresholdStore
	repo         repository.StudentRepository
	cohort       CohortService
	reclassifier Reclassifier
	simulator    risk.Simulator
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewThresholdService constructs the threshold service.
func NewThresholdService(store *ThresholdStore, repo repository.StudentRepository, cohort CohortService, reclassifier Reclassifier, logger zerolog.Logger) ThresholdService {
	return &thresholdService{
		store:        store,
		repo:         repo,
		cohort:       cohort,
		reclassifier: reclassifier,
		simulator:    risk.NewSimulator(cohort.Normalizer(), cohort.Mode()),
		logger:       logger.With().Str("component", "threshold_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/threshold"),
	}
}

func (s *thresholdService) Current() dto.ThresholdResponse {
	current := s.store.Current()
	defaults := risk.DefaultThresholds()
	return dto.ThresholdResponse{
		Thresholds: current,
		Defaults:   defaults,
		IsDefault:  current == defaults,
		Mode:       string(s.cohort.Mode()),
	}
}

func (s *thresholdService) Simulate(ctx context.Context, patch risk.ThresholdPatch) (risk.Simulation, error) {
	ctx, span := s.tracer.Start(ctx, "thresholds.simulate")
	defer span.End()

	current := s.store.Current()
	proposed, err := s.proposed(current, patch)
	if err != nil {
		return risk.Simulation{}, err
	}

	students, err := s.repo.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return risk.Simulation{}, err
	}

	simulation := s.simulator.Simulate(studentInputs(students), current, proposed)
	span.SetAttributes(
		attribute.Int("simulation.students", len(students)),
		attribute.Int("simulation.delta_red", simulation.Delta.Red),
	)
	return simulation, nil
}

func (s *thresholdService) Apply(ctx context.Context, patch risk.ThresholdPatch) (dto.ThresholdApplyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proposed, err := s.proposed(s.store.Current(), patch)
	if err != nil {
		return dto.ThresholdApplyResponse{}, err
	}
	return s.commit(ctx, proposed, "thresholds.apply")
}

func (s *thresholdService) Reset(ctx context.Context) (dto.ThresholdApplyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, risk.DefaultThresholds(), "thresholds.reset")
}

func (s *thresholdService) proposed(current risk.ThresholdConfig, patch risk.ThresholdPatch) (risk.ThresholdConfig, error) {
	proposed := current.Merge(patch)
	if err := proposed.Validate(); err != nil {
		return risk.ThresholdConfig{}, fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	return proposed, nil
}

// commit swaps the active config and reclassifies the cohort, restoring the previous
// config if reclassification fails.
func (s *thresholdService) commit(ctx context.Context, cfg risk.ThresholdConfig, spanName string) (dto.ThresholdApplyResponse, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	previous := s.store.Current()
	s.store.Set(cfg)

	result, err := s.reclassifier.Reclassify(ctx)
	if err != nil {
		s.store.Set(previous)
		span.RecordError(err)
		return dto.ThresholdApplyResponse{}, err
	}

	s.logger.Info().
		Float64("attendance_minimum", cfg.AttendanceMinimum).
		Float64("marks_drop_tolerance", cfg.MarksDropTolerance).
		Int("fee_delay_days", cfg.FeeDelayDays).
		Int("changed", result.Changed).
		Msg("thresholds committed")

	return dto.ThresholdApplyResponse{Thresholds: cfg, Reclassified: result}, nil
}
