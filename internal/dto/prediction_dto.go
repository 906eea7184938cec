package dto

import "time"

// PredictionRunResponse summarises a bulk run against the prediction service.
type PredictionRunResponse struct {
	Processed    int            `json:"processed"`
	Stored       int64          `json:"stored"`
	Distribution map[string]int `json:"distribution"`
	ReasonCounts map[string]int `json:"reason_counts"`
	FinishedAt   time.Time      `json:"finished_at"`
}
