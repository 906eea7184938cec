package service

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/pkg/ai"
)

// ErrAdvisorUnavailable indicates no language model is configured.
var ErrAdvisorUnavailable = errors.New("intervention advisor unavailable")

// BriefService drafts mentor briefs from a student's live assessment.
type BriefService interface {
	Brief(ctx context.Context, studentID string) (dto.StudentBriefResponse, error)
}

type briefService struct {
	students  StudentService
	advisor   ai.Advisor
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewBriefService constructs the brief service. advisor may be nil.
func NewBriefService(students StudentService, advisor ai.Advisor, logger zerolog.Logger) BriefService {
	return &briefService{
		students:  students,
		advisor:   advisor,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "brief_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/brief"),
		now:       time.Now,
	}
}

func (s *briefService) Brief(ctx context.Context, studentID string) (dto.StudentBriefResponse, error) {
	if s.advisor == nil {
		return dto.StudentBriefResponse{}, ErrAdvisorUnavailable
	}

	ctx, span := s.tracer.Start(ctx, "brief.draft", trace.WithAttributes(attribute.String("student_id", studentID)))
	defer span.End()

	profile, err := s.students.Get(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.StudentBriefResponse{}, err
	}

	brief, err := s.advisor.Brief(ctx, ai.BriefInput{
		StudentID:         profile.ID,
		Tier:              string(profile.Tier),
		CompositeScore:    profile.CompositeScore,
		Reasons:           profile.Reasons,
		AttendancePercent: profile.Signals.AttendancePercent,
		AverageScore:      profile.Signals.AverageScore,
		ScoreDropPercent:  profile.Signals.ScoreDropPercent,
		FeePending:        profile.Signals.FeePending,
		DaysOverdue:       profile.Signals.DaysOverdue,
		Attempts:          profile.Signals.Attempts,
		PredictedLevel:    profile.PredictedLevel,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn().Err(err).Str("student_id", studentID).Msg("advisor failed")
		return dto.StudentBriefResponse{}, err
	}

	actions := make([]string, 0, len(brief.Actions))
	for _, action := range brief.Actions {
		if cleaned := s.sanitizer.Sanitize(action); cleaned != "" {
			actions = append(actions, cleaned)
		}
	}

	return dto.StudentBriefResponse{
		StudentID:      profile.ID,
		Tier:           profile.Tier,
		CompositeScore: profile.CompositeScore,
		Summary:        s.sanitizer.Sanitize(brief.Summary),
		Actions:        actions,
		Urgency:        brief.Urgency,
		Model:          brief.Model,
		GeneratedAt:    s.now().UTC(),
	}, nil
}
