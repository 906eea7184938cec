package dto

import "github.com/noah-isme/gema-ews-api/internal/risk"

// ThresholdResponse describes the active threshold configuration.
type ThresholdResponse struct {
	Thresholds risk.ThresholdConfig `json:"thresholds"`
	Defaults   risk.ThresholdConfig `json:"defaults"`
	IsDefault  bool                 `json:"is_default"`
	Mode       string               `json:"mode"`
}

// ThresholdApplyResponse reports the outcome of committing thresholds.
type ThresholdApplyResponse struct {
	Thresholds   risk.ThresholdConfig `json:"thresholds"`
	Reclassified ReclassifyResult     `json:"reclassified"`
}
