package dto

import (
	"time"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// StudentBriefResponse is an AI-drafted intervention note for one student.
type StudentBriefResponse struct {
	StudentID      string    `json:"student_id"`
	Tier           risk.Tier `json:"tier"`
	CompositeScore int       `json:"composite_score"`
	Summary        string    `json:"summary"`
	Actions        []string  `json:"actions"`
	Urgency        string    `json:"urgency"`
	Model          string    `json:"model"`
	GeneratedAt    time.Time `json:"generated_at"`
}
