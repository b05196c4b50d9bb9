package domain

import "time"

// RunStatus is the state of a detection run record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunStats summarises what a detection run did.
type RunStats struct {
	MarketsEvaluated int `json:"markets_evaluated"`
	PairsEvaluated   int `json:"pairs_evaluated"`
	Skipped          int `json:"skipped"`
	Activated        int `json:"activated"`
	Refreshed        int `json:"refreshed"`
	Resolved         int `json:"resolved"`
	VolumeAlerts     int `json:"volume_alerts"`
}

// DetectionRun is the run-status record that serialises detection cycles.
type DetectionRun struct {
	ID         string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Stats      RunStats
	Error      string
}
