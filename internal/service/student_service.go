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
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/observability"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

var (
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidRiskLevel indicates an unknown tier filter.
	ErrInvalidRiskLevel = errors.New("invalid risk level")
)

// Reclassifier recomputes and persists derived risk fields for the whole cohort.
type Reclassifier interface {
	Reclassify(ctx context.Context) (dto.ReclassifyResult, error)
}

// StudentService exposes student listings, risk profiles and cohort reclassification.
type StudentService interface {
	Reclassifier
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, id string) (dto.StudentProfileResponse, error)
}

type studentService struct {
	repo       repository.StudentRepository
	thresholds *ThresholdStore
	cohort     CohortService
	alerts     AlertService
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewStudentService constructs the student service. alerts may be nil.
func NewStudentService(repo repository.StudentRepository, thresholds *ThresholdStore, cohort CohortService, alerts AlertService, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:       repo,
		thresholds: thresholds,
		cohort:     cohort,
		alerts:     alerts,
		logger:     logger.With().Str("component", "student_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/student"),
		now:        time.Now,
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	filter := repository.StudentFilter{
		Search:   strings.TrimSpace(req.Search),
		Sort:     strings.TrimSpace(req.Sort),
		Page:     page,
		PageSize: pageSize,
	}
	if level := strings.TrimSpace(req.RiskLevel); level != "" {
		tier, ok := risk.ParseTier(level)
		if !ok {
			return dto.StudentListResponse{}, ErrInvalidRiskLevel
		}
		filter.RiskLevel = string(tier)
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	return dto.StudentListResponse{
		Items:      dto.NewStudentSummaryResponseSlice(students),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *studentService) Get(ctx context.Context, id string) (dto.StudentProfileResponse, error) {
	id = strings.TrimSpace(id)
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentProfileResponse{}, ErrStudentNotFound
		}
		return dto.StudentProfileResponse{}, err
	}

	records, err := s.repo.ListRecords(ctx, id)
	if err != nil {
		return dto.StudentProfileResponse{}, err
	}

	assessment := s.cohort.Assess([]models.Student{student}, s.thresholds.Current())[0]

	recordResponses := make([]dto.StudentRecordResponse, 0, len(records))
	for _, record := range records {
		recordResponses = append(recordResponses, dto.NewStudentRecordResponse(record))
	}

	attributes := map[string]interface{}(student.Attributes)
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	predicted := []string(student.PredictedReasons)
	if predicted == nil {
		predicted = []string{}
	}

	return dto.StudentProfileResponse{
		ID:               student.ID,
		Name:             student.FullName(),
		Email:            models.Deref(student.Email),
		Gender:           models.Deref(student.Gender),
		Fields:           rawFields(student),
		Attributes:       attributes,
		Tier:             assessment.Tier,
		CompositeScore:   assessment.CompositeScore,
		ProxyScore:       risk.ProxyScore(assessment.Signals.AverageScore),
		Reasons:          assessment.Reasons,
		Signals:          assessment.Signals,
		PredictedLevel:   student.PredictedLevel,
		PredictedReasons: predicted,
		Records:          recordResponses,
		RiskUpdatedAt:    student.RiskUpdatedAt,
	}, nil
}

func (s *studentService) Reclassify(ctx context.Context) (dto.ReclassifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "students.reclassify")
	defer span.End()

	students, err := s.repo.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_students_failed")
		return dto.ReclassifyResult{}, err
	}

	assessments := s.cohort.Assess(students, s.thresholds.Current())
	mode := string(s.cohort.Mode())

	updates := make([]repository.RiskUpdate, 0, len(assessments))
	changes := make([]TierChange, 0)
	for i, assessment := range assessments {
		student := students[i]
		updates = append(updates, repository.RiskUpdate{
			StudentID: assessment.StudentID,
			Level:     string(assessment.Tier),
			Score:     assessment.CompositeScore,
			Reasons:   assessment.Reasons,
		})
		observability.Classifications().WithLabelValues(string(assessment.Tier), mode).Inc()

		if student.RiskLevel != string(assessment.Tier) {
			changes = append(changes, TierChange{
				StudentID: student.ID,
				Name:      assessment.Name,
				From:      risk.Tier(student.RiskLevel),
				To:        assessment.Tier,
				Score:     assessment.CompositeScore,
			})
		}
	}

	if err := s.repo.SaveRisk(ctx, updates); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save_risk_failed")
		return dto.ReclassifyResult{}, err
	}

	escalated := 0
	if s.alerts != nil && len(changes) > 0 {
		raised, err := s.alerts.RaiseEscalations(ctx, changes)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to raise escalation alerts")
		}
		escalated = len(raised)
	}

	s.cohort.Invalidate(ctx)

	span.SetAttributes(
		attribute.Int("students.total", len(students)),
		attribute.Int("students.changed", len(changes)),
		attribute.Int("students.escalated", escalated),
	)
	s.logger.Info().
		Int("total", len(students)).
		Int("changed", len(changes)).
		Int("escalated", escalated).
		Str("mode", mode).
		Msg("cohort reclassified")

	return dto.ReclassifyResult{
		Total:      len(students),
		Changed:    len(changes),
		Escalated:  escalated,
		Stats:      risk.Aggregate(assessments),
		Mode:       mode,
		FinishedAt: s.now().UTC(),
	}, nil
}

func rawFields(student models.Student) map[string]*string {
	return map[string]*string{
		"first_name":      student.FirstName,
		"last_name":       student.LastName,
		"email":           student.Email,
		"gender":          student.Gender,
		"math_score":      student.MathScore,
		"physics_score":   student.PhysicsScore,
		"chemistry_score": student.ChemistryScore,
		"absence_days":    student.AbsenceDays,
		"fee_paid":        student.FeePaid,
		"fee_pending":     student.FeePending,
		"fee_due_date":    student.FeeDueDate,
		"debar_risk":      student.DebarRisk,
	}
}
