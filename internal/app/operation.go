package app

import (
	"time"
)

// Operation describes one CLI invocation. Its RunID tags every log line
// written during the invocation.
type Operation struct {
	Name    string
	Args    string
	RunID   string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation starts an operation at the given time.
func NewOperation(name, args string, started time.Time) *Operation {
	return &Operation{
		Name:    name,
		Args:    args,
		RunID:   started.UTC().Format("20060102T150405Z"),
		Started: started,
		Status:  "success",
	}
}

// Track marks the operation failed when err is non-nil and returns err.
func (op *Operation) Track(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Failed reports whether any tracked call failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
