package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/observability"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

const dashboardCacheKey = "cohort:dashboard"

// CohortOptions tunes how the cohort is classified and summarised.
type CohortOptions struct {
	WorkingDays int
	Mode        risk.ClassificationMode
	TopN        int
	CacheTTL    time.Duration
}

// CohortService builds the cohort dashboard and shares the assessment pipeline.
type CohortService interface {
	Dashboard(ctx context.Context) (dto.DashboardResponse, error)
	Invalidate(ctx context.Context)
	Assess(students []models.Student, cfg risk.ThresholdConfig) []risk.Assessment
	Mode() risk.ClassificationMode
	Normalizer() risk.Normalizer
}

type cohortService struct {
	repo       repository.StudentRepository
	thresholds *ThresholdStore
	cache      *redis.Client
	options    CohortOptions
	normalizer risk.Normalizer
	group      singleflight.Group
	generation atomic.Uint64
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewCohortService constructs the cohort service.
func NewCohortService(repo repository.StudentRepository, thresholds *ThresholdStore, cache *redis.Client, options CohortOptions, logger zerolog.Logger) CohortService {
	if options.TopN <= 0 {
		options.TopN = risk.DefaultTopN
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = 5 * time.Minute
	}
	if options.Mode == "" {
		options.Mode = risk.ModeExternal
	}

	return &cohortService{
		repo:       repo,
		thresholds: thresholds,
		cache:      cache,
		options:    options,
		normalizer: risk.NewNormalizer(options.WorkingDays),
		logger:     logger.With().Str("component", "cohort_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/cohort"),
		now:        time.Now,
	}
}

func (s *cohortService) Mode() risk.ClassificationMode {
	return s.options.Mode
}

func (s *cohortService) Normalizer() risk.Normalizer {
	return s.normalizer
}

func (s *cohortService) Assess(students []models.Student, cfg risk.ThresholdConfig) []risk.Assessment {
	engine := risk.NewEngine(s.normalizer, &cfg, s.options.Mode)
	assessments := make([]risk.Assessment, 0, len(students))
	for _, student := range students {
		assessment := engine.Assess(studentInput(student))
		assessment.Name = student.FullName()
		assessments = append(assessments, assessment)
	}
	return assessments
}

func (s *cohortService) Dashboard(ctx context.Context) (dto.DashboardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "cohort.aggregate")
	span.SetAttributes(attribute.String("cohort.cache_key", dashboardCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, dashboardCacheKey).Result()
		if err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("cohort.cache_hit", true))
				observability.DashboardCache().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
			span.RecordError(err)
		}
	}
	observability.DashboardCache().WithLabelValues("miss").Inc()

	// Concurrent callers share one load; a caller that gives up does not cancel it.
	loadCtx := context.WithoutCancel(ctx)
	result := s.group.DoChan(dashboardCacheKey, func() (interface{}, error) {
		return s.build(loadCtx)
	})

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return dto.DashboardResponse{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "dashboard_build_failed")
			return dto.DashboardResponse{}, res.Err
		}
		response := res.Val.(dto.DashboardResponse)
		span.SetAttributes(
			attribute.Int("cohort.total", response.Stats.Total),
			attribute.Int("cohort.red", response.Stats.RedCount),
			attribute.Bool("cohort.shared", res.Shared),
		)
		return response, nil
	}
}

func (s *cohortService) build(ctx context.Context) (dto.DashboardResponse, error) {
	generation := s.generation.Load()
	students, err := s.repo.ListAll(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	cfg := s.thresholds.Current()
	assessments := s.Assess(students, cfg)
	top := risk.TopAtRisk(assessments, s.options.TopN)

	response := dto.DashboardResponse{
		Stats:        risk.Aggregate(assessments),
		TopAtRisk:    top,
		ReasonCounts: risk.ReasonCounts(assessments),
		Thresholds:   cfg,
		Mode:         string(s.options.Mode),
		GeneratedAt:  s.now().UTC(),
	}

	if s.cache != nil && s.generation.Load() == generation {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, payload, s.options.CacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached dashboard and detaches any in-flight load so the next
// request observes the latest data.
func (s *cohortService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	s.group.Forget(dashboardCacheKey)
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}
