package ai

import "context"

// BriefInput is the de-identified risk picture of one student.
type BriefInput struct {
	StudentID         string
	Tier              string
	CompositeScore    int
	Reasons           []string
	AttendancePercent float64
	AverageScore      float64
	ScoreDropPercent  float64
	FeePending        float64
	DaysOverdue       int
	Attempts          int
	PredictedLevel    string
}

// Brief is the mentor-facing intervention note drafted by the model.
type Brief struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
	Urgency string   `json:"urgency"`
	Model   string   `json:"model"`
}

// Advisor drafts intervention briefs for at-risk students.
type Advisor interface {
	Brief(ctx context.Context, input BriefInput) (Brief, error)
}
