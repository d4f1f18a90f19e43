package scanlog

import (
	"fmt"
	"strings"
)

// Status is the scan state of a record. Values are persisted in the code
// column and must not be renumbered.
type Status int64

const (
	// StatusDefault marks a record as discovered but not yet processed.
	StatusDefault Status = -1
	// StatusError marks a record whose processing failed.
	StatusError Status = -2
	// StatusScanned marks a record as processed successfully.
	StatusScanned Status = 0
	// StatusDirty marks a record as known changed and needing reprocessing.
	StatusDirty Status = 1
)

var statusNames = map[Status]string{
	StatusDefault: "default",
	StatusError:   "error",
	StatusScanned: "scanned",
	StatusDirty:   "dirty",
}

// transitions lists, for each status, the statuses it may move to.
// Self-transitions are always allowed and are not listed.
var transitions = map[Status][]Status{
	StatusDefault: {StatusScanned, StatusDirty, StatusError},
	StatusScanned: {StatusDirty, StatusDefault, StatusError},
	StatusDirty:   {StatusScanned, StatusDefault, StatusError},
	StatusError:   {StatusDefault, StatusScanned, StatusDirty},
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int64(s))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed by the
// transition table.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus parses a status name ("scanned") or its numeric code ("0").
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for status, name := range statusNames {
		if name == s || fmt.Sprint(int64(status)) == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown status: %q", s)
}
