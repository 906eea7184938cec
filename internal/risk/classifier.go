package risk

import (
	"fmt"
	"strings"
)

// Tier is the risk classification assigned to a student.
type Tier string

const (
	TierLow    Tier = "Low Risk"
	TierMedium Tier = "Medium Risk"
	TierHigh   Tier = "High Risk"
)

// Rank orders tiers from Low (0) to High (2).
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 2
	case TierMedium:
		return 1
	default:
		return 0
	}
}

// ParseTier maps stored labels, including the legacy colour names, to a Tier.
func ParseTier(raw string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high risk", "high", "red":
		return TierHigh, true
	case "medium risk", "medium", "amber":
		return TierMedium, true
	case "low risk", "low", "green":
		return TierLow, true
	default:
		return "", false
	}
}

// ClassificationMode selects where the tier comes from.
type ClassificationMode string

const (
	// ModeExternal relabels the upstream categorical debar_risk signal.
	ModeExternal ClassificationMode = "external"
	// ModeThresholdBased derives the tier from normalized signals and thresholds.
	ModeThresholdBased ClassificationMode = "threshold"
)

// ParseMode returns the mode named by raw, defaulting to ModeExternal.
func ParseMode(raw string) ClassificationMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeThresholdBased), "threshold_based", "thresholds":
		return ModeThresholdBased
	default:
		return ModeExternal
	}
}

// Classification is the tier and the reasons that triggered it.
type Classification struct {
	Tier    Tier     `json:"tier"`
	Reasons []string `json:"reasons"`
}

type debarRule struct {
	token  string
	tier   Tier
	reason string
}

var debarRules = []debarRule{
	{token: "admin debar", tier: TierHigh, reason: "Administrative debarment on record"},
	{token: "high risk", tier: TierHigh, reason: "Flagged as high risk by the source system"},
	{token: "fee default", tier: TierMedium, reason: "Fee default reported"},
	{token: "low attendance", tier: TierMedium, reason: "Low attendance reported"},
	{token: "multiple failures", tier: TierMedium, reason: "Repeated assessment failures reported"},
}

// Classifier maps signals to a Classification under one mode and threshold set.
type Classifier struct {
	cfg  ThresholdConfig
	mode ClassificationMode
}

// NewClassifier panics when cfg is nil: a missing config is a caller bug, not bad data.
func NewClassifier(cfg *ThresholdConfig, mode ClassificationMode) Classifier {
	if cfg == nil {
		panic("risk: nil ThresholdConfig")
	}
	if mode != ModeThresholdBased {
		mode = ModeExternal
	}
	return Classifier{cfg: *cfg, mode: mode}
}

// Mode reports the classifier's mode.
func (c Classifier) Mode() ClassificationMode {
	return c.mode
}

// Classify always returns a tier; absent or sentinel inputs classify as Low.
func (c Classifier) Classify(in StudentInput, signals Signals) Classification {
	if c.mode == ModeThresholdBased {
		return c.classifyThresholds(signals)
	}
	return classifyExternal(in.DebarRisk)
}

func classifyExternal(debarRisk string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(debarRisk))
	if normalized == "" || normalized == "none" {
		return Classification{Tier: TierLow, Reasons: []string{}}
	}

	tier := TierLow
	reasons := make([]string, 0, 2)
	for _, rule := range debarRules {
		if !strings.Contains(normalized, rule.token) {
			continue
		}
		reasons = append(reasons, rule.reason)
		if rule.tier.Rank() > tier.Rank() {
			tier = rule.tier
		}
	}

	if tier == TierLow {
		return Classification{Tier: TierLow, Reasons: []string{}}
	}
	return Classification{Tier: tier, Reasons: reasons}
}

func (c Classifier) classifyThresholds(s Signals) Classification {
	reasons := make([]string, 0, 3)
	forceHigh := false

	if s.AttendancePercent < c.cfg.AttendanceMinimum {
		reasons = append(reasons, fmt.Sprintf("Attendance %.0f%% is below the %.0f%% minimum", s.AttendancePercent, c.cfg.AttendanceMinimum))
		if s.AttendancePercent < c.cfg.AttendanceMinimum/2 {
			forceHigh = true
		}
	}

	if s.ScoreDropPercent > c.cfg.MarksDropTolerance {
		reasons = append(reasons, fmt.Sprintf("Average score dropped %.0f%%, beyond the %.0f%% tolerance", s.ScoreDropPercent, c.cfg.MarksDropTolerance))
	}

	if s.FeePending > 0 && s.DaysOverdue > c.cfg.FeeDelayDays {
		reasons = append(reasons, fmt.Sprintf("Fee of %.2f overdue by %d days", s.FeePending, s.DaysOverdue))
	}

	tier := TierLow
	switch {
	case forceHigh || len(reasons) >= 2:
		tier = TierHigh
	case len(reasons) == 1:
		tier = TierMedium
	}

	return Classification{Tier: tier, Reasons: reasons}
}
