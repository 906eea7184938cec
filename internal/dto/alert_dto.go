package dto

import (
	"time"

	"github.com/noah-isme/gema-ews-api/internal/models"
)

// AlertListRequest filters the alert inbox.
type AlertListRequest struct {
	StudentID  string
	UnreadOnly bool
	Page       int
	PageSize   int
}

// AlertResponse represents a risk alert returned to clients.
type AlertResponse struct {
	ID        uint      `json:"id"`
	StudentID string    `json:"student_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	FromLevel string    `json:"from_level"`
	ToLevel   string    `json:"to_level"`
	RiskScore int       `json:"risk_score"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertListResponse wraps a page of alerts.
type AlertListResponse struct {
	Items      []AlertResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewAlertResponse converts an alert model to DTO.
func NewAlertResponse(model models.RiskAlert) AlertResponse {
	return AlertResponse{
		ID:        model.ID,
		StudentID: model.StudentID,
		Type:      model.Type,
		Message:   model.Message,
		FromLevel: model.FromLevel,
		ToLevel:   model.ToLevel,
		RiskScore: model.RiskScore,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewAlertResponseSlice converts a slice to DTOs.
func NewAlertResponseSlice(items []models.RiskAlert) []AlertResponse {
	out := make([]AlertResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewAlertResponse(item))
	}
	return out
}
