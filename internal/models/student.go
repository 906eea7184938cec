package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// Student is one enrolled learner tracked by the early-warning dashboard.
// Raw signal columns keep the loosely typed strings the source sheets carry.
type Student struct {
	ID               string                      `gorm:"primaryKey;size:64" json:"id"`
	FirstName        *string                     `gorm:"size:255" json:"first_name"`
	LastName         *string                     `gorm:"size:255" json:"last_name"`
	Email            *string                     `gorm:"size:255;index" json:"email"`
	Gender           *string                     `gorm:"size:32" json:"gender"`
	MathScore        *string                     `gorm:"size:32" json:"math_score"`
	PhysicsScore     *string                     `gorm:"size:32" json:"physics_score"`
	ChemistryScore   *string                     `gorm:"size:32" json:"chemistry_score"`
	AbsenceDays      *string                     `gorm:"size:32" json:"absence_days"`
	FeePaid          *string                     `gorm:"size:32" json:"fee_paid"`
	FeePending       *string                     `gorm:"size:32" json:"fee_pending"`
	FeeDueDate       *string                     `gorm:"size:64" json:"fee_due_date"`
	DebarRisk        *string                     `gorm:"size:255" json:"debar_risk"`
	Attributes       datatypes.JSONMap           `gorm:"type:json" json:"attributes"`
	PreviousAvgScore *float64                    `json:"previous_avg_score"`
	RiskLevel        string                      `gorm:"size:32;index" json:"risk_level"`
	RiskScore        int                         `gorm:"not null;default:0" json:"risk_score"`
	RiskReasons      datatypes.JSONSlice[string] `json:"risk_reasons"`
	RiskUpdatedAt    *time.Time                  `json:"risk_updated_at"`
	PredictedLevel   string                      `gorm:"size:32" json:"predicted_level"`
	PredictedReasons datatypes.JSONSlice[string] `json:"predicted_reasons"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// StudentColumns lists the normalized sheet headers stored as first-class columns.
// Headers outside this set are merged into Attributes.
var StudentColumns = map[string]struct{}{
	"first_name":      {},
	"last_name":       {},
	"email":           {},
	"gender":          {},
	"math_score":      {},
	"physics_score":   {},
	"chemistry_score": {},
	"absence_days":    {},
	"fee_paid":        {},
	"fee_pending":     {},
	"fee_due_date":    {},
	"debar_risk":      {},
}

// ScoreColumns are the subject score columns averaged into the assessment signal.
var ScoreColumns = []string{"math_score", "physics_score", "chemistry_score"}

// FullName joins first and last names, falling back to "Unknown".
func (s Student) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(deref(s.FirstName)) + " " + strings.TrimSpace(deref(s.LastName)))
	if name == "" {
		return "Unknown"
	}
	return name
}

// Attribute returns a string attribute value, or "" when absent.
func (s Student) Attribute(key string) string {
	if s.Attributes == nil {
		return ""
	}
	value, ok := s.Attributes[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return ""
}

// Deref returns the pointed-to string or "".
func Deref(value *string) string {
	return deref(value)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Student record kinds, one merged document per student and kind.
const (
	RecordKindAttendance = "attendance"
	RecordKindMarks      = "marks"
	RecordKindFees       = "fees"
	RecordKindUploads    = "uploads"
)

// StudentRecord is the per-kind sub-document merged on every sub-record upload.
type StudentRecord struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	StudentID string            `gorm:"size:64;not null;uniqueIndex:idx_student_record_kind" json:"student_id"`
	Kind      string            `gorm:"size:32;not null;uniqueIndex:idx_student_record_kind" json:"kind"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Merge applies sheet fields onto the student. Only the given keys change; a nil value
// stores an explicit null. When a subject score changes, the prior average is kept in
// PreviousAvgScore so score drops can be measured.
func (s *Student) Merge(fields map[string]*string) {
	scoresChanged := false
	for _, key := range ScoreColumns {
		if value, ok := fields[key]; ok && deref(value) != deref(s.scoreField(key)) {
			scoresChanged = true
			break
		}
	}
	if scoresChanged && s.hasScores() {
		previous := risk.AverageScore(deref(s.MathScore), deref(s.PhysicsScore), deref(s.ChemistryScore))
		s.PreviousAvgScore = &previous
	}

	for key, value := range fields {
		if key == "id" {
			continue
		}
		if _, known := StudentColumns[key]; known {
			s.setColumn(key, value)
			continue
		}
		if s.Attributes == nil {
			s.Attributes = datatypes.JSONMap{}
		}
		if value == nil {
			s.Attributes[key] = nil
		} else {
			s.Attributes[key] = *value
		}
	}
}

func (s *Student) hasScores() bool {
	return s.MathScore != nil || s.PhysicsScore != nil || s.ChemistryScore != nil
}

func (s *Student) scoreField(key string) *string {
	switch key {
	case "math_score":
		return s.MathScore
	case "physics_score":
		return s.PhysicsScore
	case "chemistry_score":
		return s.ChemistryScore
	}
	return nil
}

func (s *Student) setColumn(key string, value *string) {
	var copied *string
	if value != nil {
		v := *value
		copied = &v
	}

	switch key {
	case "first_name":
		s.FirstName = copied
	case "last_name":
		s.LastName = copied
	case "email":
		s.Email = copied
	case "gender":
		s.Gender = copied
	case "math_score":
		s.MathScore = copied
	case "physics_score":
		s.PhysicsScore = copied
	case "chemistry_score":
		s.ChemistryScore = copied
	case "absence_days":
		s.AbsenceDays = copied
	case "fee_paid":
		s.FeePaid = copied
	case "fee_pending":
		s.FeePending = copied
	case "fee_due_date":
		s.FeeDueDate = copied
	case "debar_risk":
		s.DebarRisk = copied
	}
}
