package domain

import "time"

// ImportState is the lifecycle of a historical import
type ImportState string

const (
	ImportRunning   ImportState = "running"
	ImportCompleted ImportState = "completed"
	ImportFailed    ImportState = "failed"
)

// maxImportErrors bounds the per-order error messages kept on progress
const maxImportErrors = 20

// ImportProgress is the pollable state of a historical import
type ImportProgress struct {
	IntegrationID string      `json:"integrationId"`
	State         ImportState `json:"state"`
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	Total         int         `json:"total"`
	Processed     int         `json:"processed"`
	Failed        int         `json:"failed"`
	Errors        []string    `json:"errors,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	FinishedAt    *time.Time  `json:"finishedAt,omitempty"`
}

// RecordFailure counts a failed order and keeps its message up to a bounded history
func (p *ImportProgress) RecordFailure(msg string) {
	p.Failed++
	if len(p.Errors) < maxImportErrors {
		p.Errors = append(p.Errors, msg)
	}
}
