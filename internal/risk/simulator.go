package risk

// TierDelta is the projected change in each tier population.
type TierDelta struct {
	Red   int `json:"red"`
	Amber int `json:"amber"`
	Green int `json:"green"`
}

func deltaOf(baseline, projected CohortStats) TierDelta {
	return TierDelta{
		Red:   projected.RedCount - baseline.RedCount,
		Amber: projected.AmberCount - baseline.AmberCount,
		Green: projected.GreenCount - baseline.GreenCount,
	}
}

// Simulation compares the cohort under the current and a proposed config.
//
// Baseline and Projected use the active classification mode, so Baseline matches the
// dashboard and Projected is what Apply would commit. In external mode tiers do not
// depend on thresholds; ThresholdDelta then carries the threshold-based projection as
// an advisory figure only.
type Simulation struct {
	Mode           ClassificationMode `json:"mode"`
	Current        ThresholdConfig    `json:"current"`
	Proposed       ThresholdConfig    `json:"proposed"`
	Baseline       CohortStats        `json:"baseline"`
	Projected      CohortStats        `json:"projected"`
	Delta          TierDelta          `json:"delta"`
	ThresholdDelta *TierDelta         `json:"threshold_delta,omitempty"`
}

// Simulator projects tier populations for hypothetical thresholds.
//
// Projections are exact: every student is reclassified under both configs.
type Simulator struct {
	normalizer Normalizer
	mode       ClassificationMode
}

// NewSimulator builds a simulator sharing the service's normalizer and mode.
func NewSimulator(normalizer Normalizer, mode ClassificationMode) Simulator {
	if mode == "" {
		mode = ModeExternal
	}
	return Simulator{normalizer: normalizer, mode: mode}
}

// Simulate reclassifies inputs under current and proposed configs.
func (s Simulator) Simulate(inputs []StudentInput, current, proposed ThresholdConfig) Simulation {
	baseline := Aggregate(NewEngine(s.normalizer, &current, s.mode).AssessAll(inputs))
	projected := Aggregate(NewEngine(s.normalizer, &proposed, s.mode).AssessAll(inputs))

	simulation := Simulation{
		Mode:      s.mode,
		Current:   current,
		Proposed:  proposed,
		Baseline:  baseline,
		Projected: projected,
		Delta:     deltaOf(baseline, projected),
	}

	if s.mode == ModeExternal {
		advisoryBase := Aggregate(NewEngine(s.normalizer, &current, ModeThresholdBased).AssessAll(inputs))
		advisoryNext := Aggregate(NewEngine(s.normalizer, &proposed, ModeThresholdBased).AssessAll(inputs))
		advisory := deltaOf(advisoryBase, advisoryNext)
		simulation.ThresholdDelta = &advisory
	}

	return simulation
}
