package models

import "time"

// Risk alert types.
const (
	AlertTypeEscalation = "risk.escalated"
)

// RiskAlert is raised when a student moves into the High risk tier.
type RiskAlert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID string    `gorm:"size:64;index;not null" json:"student_id"`
	Type      string    `gorm:"size:64;not null" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	FromLevel string    `gorm:"size:32" json:"from_level"`
	ToLevel   string    `gorm:"size:32" json:"to_level"`
	RiskScore int       `json:"risk_score"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
