package model

import "time"

// Operation identifies the kind of processing applied to an uploaded PDF.
type Operation string

const (
	OperationCheck   Operation = "check"
	OperationUnlock  Operation = "unlock"
	OperationProtect Operation = "protect"
	OperationInspect Operation = "inspect"
)

// Job statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job records one processing request against an uploaded PDF.
// This is a pure domain model with no database-specific dependencies or tags.
// StorageKey points at the archived output in object storage and is empty for
// check/inspect operations, failed jobs, and jobs whose archive upload failed.
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Operation  Operation `json:"operation"`
	Status     string    `json:"status"`
	Protected  bool      `json:"protected"`
	Size       int64     `json:"size"`
	StorageKey string    `json:"storage_key,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
