package service

import (
	"sync"

	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

var attemptsAttributes = []string{"attempts_count", "backlogs_count", "attempts"}

func studentInput(student models.Student) risk.StudentInput {
	input := risk.StudentInput{
		ID:               student.ID,
		MathScore:        models.Deref(student.MathScore),
		PhysicsScore:     models.Deref(student.PhysicsScore),
		ChemistryScore:   models.Deref(student.ChemistryScore),
		AbsenceDays:      models.Deref(student.AbsenceDays),
		FeePending:       models.Deref(student.FeePending),
		FeeDueDate:       models.Deref(student.FeeDueDate),
		DebarRisk:        models.Deref(student.DebarRisk),
		PreviousAvgScore: student.PreviousAvgScore,
	}
	for _, key := range attemptsAttributes {
		if value := student.Attribute(key); value != "" {
			input.Attempts = value
			break
		}
	}
	return input
}

func studentInputs(students []models.Student) []risk.StudentInput {
	inputs := make([]risk.StudentInput, 0, len(students))
	for _, student := range students {
		inputs = append(inputs, studentInput(student))
	}
	return inputs
}

// ThresholdStore holds the session's active threshold configuration.
type ThresholdStore struct {
	mu  sync.RWMutex
	cfg risk.ThresholdConfig
}

// NewThresholdStore seeds the store with the given configuration.
func NewThresholdStore(initial risk.ThresholdConfig) *ThresholdStore {
	return &ThresholdStore{cfg: initial}
}

// Current returns a copy of the active configuration.
func (s *ThresholdStore) Current() risk.ThresholdConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the active configuration.
func (s *ThresholdStore) Set(cfg risk.ThresholdConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}
