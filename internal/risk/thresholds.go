package risk

import "github.com/go-playground/validator/v10"

// ThresholdConfig holds the tunable parameters that drive classification and scoring.
type ThresholdConfig struct {
	AttendanceMinimum  float64 `json:"attendance_minimum" validate:"gte=0,lte=100"`
	MarksDropTolerance float64 `json:"marks_drop_tolerance" validate:"gte=0,lte=100"`
	FeeDelayDays       int     `json:"fee_delay_days" validate:"gte=0,lte=365"`
	AttendanceWeight   float64 `json:"attendance_weight" validate:"gte=0,lte=10"`
	AssessmentWeight   float64 `json:"assessment_weight" validate:"gte=0,lte=10"`
	AttemptsWeight     float64 `json:"attempts_weight" validate:"gte=0,lte=10"`
	FeesWeight         float64 `json:"fees_weight" validate:"gte=0,lte=10"`
}

// ThresholdPatch is a partial update of a ThresholdConfig. Nil fields are left untouched.
type ThresholdPatch struct {
	AttendanceMinimum  *float64 `json:"attendance_minimum" validate:"omitempty,gte=0,lte=100"`
	MarksDropTolerance *float64 `json:"marks_drop_tolerance" validate:"omitempty,gte=0,lte=100"`
	FeeDelayDays       *int     `json:"fee_delay_days" validate:"omitempty,gte=0,lte=365"`
	AttendanceWeight   *float64 `json:"attendance_weight" validate:"omitempty,gte=0,lte=10"`
	AssessmentWeight   *float64 `json:"assessment_weight" validate:"omitempty,gte=0,lte=10"`
	AttemptsWeight     *float64 `json:"attempts_weight" validate:"omitempty,gte=0,lte=10"`
	FeesWeight         *float64 `json:"fees_weight" validate:"omitempty,gte=0,lte=10"`
}

// DefaultThresholds returns the factory configuration restored by a reset.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		AttendanceMinimum:  75,
		MarksDropTolerance: 15,
		FeeDelayDays:       30,
		AttendanceWeight:   0.35,
		AssessmentWeight:   0.35,
		AttemptsWeight:     0.15,
		FeesWeight:         0.15,
	}
}

// Merge returns a copy of c with every non-nil field of patch applied.
func (c ThresholdConfig) Merge(patch ThresholdPatch) ThresholdConfig {
	if patch.AttendanceMinimum != nil {
		c.AttendanceMinimum = *patch.AttendanceMinimum
	}
	if patch.MarksDropTolerance != nil {
		c.MarksDropTolerance = *patch.MarksDropTolerance
	}
	if patch.FeeDelayDays != nil {
		c.FeeDelayDays = *patch.FeeDelayDays
	}
	if patch.AttendanceWeight != nil {
		c.AttendanceWeight = *patch.AttendanceWeight
	}
	if patch.AssessmentWeight != nil {
		c.AssessmentWeight = *patch.AssessmentWeight
	}
	if patch.AttemptsWeight != nil {
		c.AttemptsWeight = *patch.AttemptsWeight
	}
	if patch.FeesWeight != nil {
		c.FeesWeight = *patch.FeesWeight
	}
	return c
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate reports whether every parameter lies inside its accepted range.
func (c ThresholdConfig) Validate() error {
	return configValidator.Struct(c)
}
