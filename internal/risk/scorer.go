package risk

import "math"

// attemptsCeiling is the attempt count at which the attempts deficit saturates.
const attemptsCeiling = 3

// CompositeScore combines the normalized deficits into a 0-100 risk magnitude.
// Higher means riskier. Weights scale each deficit independently and are not normalised.
func CompositeScore(s Signals, cfg ThresholdConfig) int {
	attendanceDeficit := clampUnit((100 - s.AttendancePercent) / 100)
	scoreDeficit := clampUnit((100 - s.AverageScore) / 100)
	attemptsDeficit := clampUnit(float64(s.Attempts) / attemptsCeiling)

	feeDeficit := 0.0
	if s.FeePending > 0 && s.DaysOverdue > 0 {
		if cfg.FeeDelayDays <= 0 {
			feeDeficit = 1
		} else {
			feeDeficit = clampUnit(float64(s.DaysOverdue) / float64(cfg.FeeDelayDays))
		}
	}

	raw := cfg.AttendanceWeight*attendanceDeficit +
		cfg.AssessmentWeight*scoreDeficit +
		cfg.AttemptsWeight*attemptsDeficit +
		cfg.FeesWeight*feeDeficit

	return clampScore(math.Round(raw * 100))
}

// ProxyScore is the legacy dashboard figure: the rounded subject average.
func ProxyScore(averageScore float64) int {
	return clampScore(math.Round(averageScore))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
