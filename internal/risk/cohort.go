package risk

import (
	"math"
	"sort"
)

// DefaultTopN is the length of the "top at risk" list on the dashboard.
const DefaultTopN = 10

// Assessment is one student's classified and scored state.
type Assessment struct {
	StudentID      string   `json:"student_id"`
	Name           string   `json:"name"`
	Tier           Tier     `json:"tier"`
	CompositeScore int      `json:"composite_score"`
	Reasons        []string `json:"reasons"`
	Signals        Signals  `json:"signals"`
}

// Engine bundles the normalizer, classifier and scorer for a single config.
type Engine struct {
	normalizer Normalizer
	classifier Classifier
	cfg        ThresholdConfig
}

// NewEngine panics on a nil config, like NewClassifier.
func NewEngine(normalizer Normalizer, cfg *ThresholdConfig, mode ClassificationMode) Engine {
	classifier := NewClassifier(cfg, mode)
	return Engine{normalizer: normalizer, classifier: classifier, cfg: *cfg}
}

// Mode reports the classification mode in use.
func (e Engine) Mode() ClassificationMode {
	return e.classifier.Mode()
}

// Assess runs the full pipeline for one student.
func (e Engine) Assess(in StudentInput) Assessment {
	signals := e.normalizer.Normalize(in)
	classification := e.classifier.Classify(in, signals)
	reasons := classification.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return Assessment{
		StudentID:      in.ID,
		Tier:           classification.Tier,
		CompositeScore: CompositeScore(signals, e.cfg),
		Reasons:        reasons,
		Signals:        signals,
	}
}

// AssessAll assesses every input, preserving order.
func (e Engine) AssessAll(inputs []StudentInput) []Assessment {
	out := make([]Assessment, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, e.Assess(in))
	}
	return out
}

// CohortStats summarises a cohort. Percentages lie in [0,100].
type CohortStats struct {
	Total             int     `json:"total"`
	RedCount          int     `json:"red_count"`
	AmberCount        int     `json:"amber_count"`
	GreenCount        int     `json:"green_count"`
	AvgAttendance     float64 `json:"avg_attendance"`
	AvgScore          float64 `json:"avg_score"`
	AvgCompositeScore float64 `json:"avg_composite_score"`
	FeeCompliance     int     `json:"fee_compliance"`
}

// Aggregate folds assessments into CohortStats. An empty cohort yields zero stats.
func Aggregate(assessments []Assessment) CohortStats {
	stats := CohortStats{Total: len(assessments)}
	if stats.Total == 0 {
		return stats
	}

	var attendance, score, composite float64
	compliant := 0
	for _, a := range assessments {
		switch a.Tier {
		case TierHigh:
			stats.RedCount++
		case TierMedium:
			stats.AmberCount++
		default:
			stats.GreenCount++
		}
		attendance += a.Signals.AttendancePercent
		score += a.Signals.AverageScore
		composite += float64(a.CompositeScore)
		if a.Signals.FeePending <= 0 {
			compliant++
		}
	}

	total := float64(stats.Total)
	stats.AvgAttendance = round2(attendance / total)
	stats.AvgScore = round2(score / total)
	stats.AvgCompositeScore = round2(composite / total)
	stats.FeeCompliance = int(math.Round(100 * float64(compliant) / total))
	return stats
}

// TopAtRisk returns up to n High-tier assessments, highest composite first, ties by id.
func TopAtRisk(assessments []Assessment, n int) []Assessment {
	if n <= 0 {
		n = DefaultTopN
	}
	high := make([]Assessment, 0)
	for _, a := range assessments {
		if a.Tier == TierHigh {
			high = append(high, a)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		if high[i].CompositeScore != high[j].CompositeScore {
			return high[i].CompositeScore > high[j].CompositeScore
		}
		return high[i].StudentID < high[j].StudentID
	})
	if len(high) > n {
		high = high[:n]
	}
	return high
}

// ReasonCounts counts how often each reason appears across the cohort.
func ReasonCounts(assessments []Assessment) map[string]int {
	counts := make(map[string]int)
	for _, a := range assessments {
		for _, reason := range a.Reasons {
			counts[reason]++
		}
	}
	return counts
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
