package dto

import (
	"time"

	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives page counts from the total.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// StudentListRequest defines filters for listing students.
type StudentListRequest struct {
	Page      int
	PageSize  int
	Search    string
	RiskLevel string
	Sort      string
}

// StudentSummaryResponse is a row in the student list.
type StudentSummaryResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	RiskLevel      string     `json:"risk_level"`
	RiskScore      int        `json:"risk_score"`
	RiskReasons    []string   `json:"risk_reasons"`
	PredictedLevel string     `json:"predicted_level,omitempty"`
	RiskUpdatedAt  *time.Time `json:"risk_updated_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StudentListResponse wraps a paginated student response.
type StudentListResponse struct {
	Items      []StudentSummaryResponse `json:"items"`
	Pagination PaginationMeta           `json:"pagination"`
}

// StudentRecordResponse is one merged sub-record document.
type StudentRecordResponse struct {
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// StudentProfileResponse is the full risk profile of one student.
type StudentProfileResponse struct {
	ID               string                  `json:"id"`
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Gender           string                  `json:"gender"`
	Fields           map[string]*string      `json:"fields"`
	Attributes       map[string]interface{}  `json:"attributes"`
	Tier             risk.Tier               `json:"tier"`
	CompositeScore   int                     `json:"composite_score"`
	ProxyScore       int                     `json:"proxy_score"`
	Reasons          []string                `json:"reasons"`
	Signals          risk.Signals            `json:"signals"`
	PredictedLevel   string                  `json:"predicted_level,omitempty"`
	PredictedReasons []string                `json:"predicted_reasons"`
	Records          []StudentRecordResponse `json:"records"`
	RiskUpdatedAt    *time.Time              `json:"risk_updated_at"`
}

// ReclassifyResult reports a full-cohort reclassification.
type ReclassifyResult struct {
	Total      int              `json:"total"`
	Changed    int              `json:"changed"`
	Escalated  int              `json:"escalated"`
	Stats      risk.CohortStats `json:"stats"`
	Mode       string           `json:"mode"`
	FinishedAt time.Time        `json:"finished_at"`
}

// NewStudentSummaryResponse converts a student model into its list representation.
func NewStudentSummaryResponse(student models.Student) StudentSummaryResponse {
	reasons := []string(student.RiskReasons)
	if reasons == nil {
		reasons = []string{}
	}
	return StudentSummaryResponse{
		ID:             student.ID,
		Name:           student.FullName(),
		Email:          models.Deref(student.Email),
		RiskLevel:      student.RiskLevel,
		RiskScore:      student.RiskScore,
		RiskReasons:    reasons,
		PredictedLevel: student.PredictedLevel,
		RiskUpdatedAt:  student.RiskUpdatedAt,
		UpdatedAt:      student.UpdatedAt,
	}
}

// NewStudentSummaryResponseSlice converts a slice of students.
func NewStudentSummaryResponseSlice(students []models.Student) []StudentSummaryResponse {
	out := make([]StudentSummaryResponse, 0, len(students))
	for _, student := range students {
		out = append(out, NewStudentSummaryResponse(student))
	}
	return out
}

// NewStudentRecordResponse converts a sub-record.
func NewStudentRecordResponse(record models.StudentRecord) StudentRecordResponse {
	payload := map[string]interface{}(record.Payload)
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return StudentRecordResponse{
		Kind:      record.Kind,
		Payload:   payload,
		UpdatedAt: record.UpdatedAt,
	}
}
