package risk

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DefaultWorkingDays is the term length assumed when none is configured.
const DefaultWorkingDays = 100

// StudentInput is the loosely typed view of a student the core works on.
// Values arrive as stored strings and are never validated up front.
type StudentInput struct {
	ID               string
	MathScore        string
	PhysicsScore     string
	ChemistryScore   string
	AbsenceDays      string
	FeePending       string
	FeeDueDate       string
	DebarRisk        string
	Attempts         string
	PreviousAvgScore *float64
}

// Signals are the normalized numeric signals derived from a StudentInput.
type Signals struct {
	AttendancePercent float64 `json:"attendance_percent"`
	AverageScore      float64 `json:"average_score"`
	FeePending        float64 `json:"fee_pending"`
	DaysOverdue       int     `json:"days_overdue"`
	ScoreDropPercent  float64 `json:"score_drop_percent"`
	Attempts          int     `json:"attempts"`
}

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
}

// Normalizer converts raw student fields into Signals.
type Normalizer struct {
	WorkingDays int
	Now         func() time.Time
}

// NewNormalizer builds a normalizer for the given term length.
func NewNormalizer(workingDays int) Normalizer {
	return Normalizer{WorkingDays: workingDays, Now: time.Now}
}

// Normalize never fails: anything unparseable degrades to zero.
func (n Normalizer) Normalize(in StudentInput) Signals {
	average := AverageScore(in.MathScore, in.PhysicsScore, in.ChemistryScore)
	pending := ParseNumber(in.FeePending)

	signals := Signals{
		AttendancePercent: n.AttendancePercent(ParseNumber(in.AbsenceDays)),
		AverageScore:      average,
		FeePending:        pending,
		Attempts:          int(math.Max(0, ParseNumber(in.Attempts))),
	}

	if pending > 0 {
		signals.DaysOverdue = n.daysOverdue(in.FeeDueDate)
	}

	if in.PreviousAvgScore != nil && *in.PreviousAvgScore > 0 {
		drop := (*in.PreviousAvgScore - average) / *in.PreviousAvgScore * 100
		signals.ScoreDropPercent = math.Max(0, drop)
	}

	return signals
}

// AttendancePercent converts an absence count into an attendance percentage in [0,100].
func (n Normalizer) AttendancePercent(absenceDays float64) float64 {
	workingDays := n.WorkingDays
	if workingDays <= 0 {
		workingDays = DefaultWorkingDays
	}
	return math.Min(100, math.Max(0, 100-(absenceDays/float64(workingDays))*100))
}

func (n Normalizer) daysOverdue(raw string) int {
	due, ok := ParseDate(raw)
	if !ok {
		return 0
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	days := int(now().Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// AverageScore is the mean of the given subject scores, treating bad values as zero.
func AverageScore(scores ...string) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0.0
	for _, score := range scores {
		total += ParseNumber(score)
	}
	return total / float64(len(scores))
}

// ParseNumber parses a loosely formatted number, returning 0 on failure.
func ParseNumber(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	value, err := cast.ToFloat64E(trimmed)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// ParseDate tries the date layouts seen in uploaded fee sheets.
func ParseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
