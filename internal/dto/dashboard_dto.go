package dto

import (
	"time"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// DashboardResponse is the cohort overview shown on the landing page.
type DashboardResponse struct {
	Stats        risk.CohortStats     `json:"stats"`
	TopAtRisk    []risk.Assessment    `json:"top_at_risk"`
	ReasonCounts map[string]int       `json:"reason_counts"`
	Thresholds   risk.ThresholdConfig `json:"thresholds"`
	Mode         string               `json:"mode"`
	GeneratedAt  time.Time            `json:"generated_at"`
	CacheHit     bool                 `json:"cache_hit"`
}
