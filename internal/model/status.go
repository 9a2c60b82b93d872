package model

import "strings"

// Status is the progress state shared by budget items, projects and breakdowns.
// Stored values are kept as entered; Bucket maps them onto the tallied set.
type Status string

const (
	// StatusCompleted marks finished work.
	StatusCompleted Status = "completed"
	// StatusOngoing marks work in progress (reported as "on track").
	StatusOngoing Status = "ongoing"
	// StatusDelayed marks work behind its target date.
	StatusDelayed Status = "delayed"
	// StatusNotAvailable is used by breakdown records with no progress report yet.
	StatusNotAvailable Status = "not_available"
	// StatusDraft is used by budget items that are not yet final.
	StatusDraft Status = "draft"
	// StatusUncategorized is the bucket for every status outside the tracked three.
	StatusUncategorized Status = "uncategorized"
)

// ParseStatus normalizes a user-supplied status string.
func ParseStatus(s string) Status {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "on_track", "on-track", "ontrack":
		return StatusOngoing
	case "n/a", "na":
		return StatusNotAvailable
	}
	return v
}

// Bucket returns the tally bucket for s.
func (s Status) Bucket() Status {
	switch s {
	case StatusCompleted, StatusOngoing, StatusDelayed:
		return s
	default:
		return StatusUncategorized
	}
}

// IsTracked reports whether the status falls into one of the tallied buckets.
func (s Status) IsTracked() bool {
	return s.Bucket() != StatusUncategorized
}

// StatusCounts tallies children by status bucket.
type StatusCounts struct {
	Completed     int `json:"completed"`
	Ongoing       int `json:"ongoing"`
	Delayed       int `json:"delayed"`
	Uncategorized int `json:"uncategorized"`
}

// Add increments the bucket for status.
func (c *StatusCounts) Add(status Status) {
	switch status.Bucket() {
	case StatusCompleted:
		c.Completed++
	case StatusOngoing:
		c.Ongoing++
	case StatusDelayed:
		c.Delayed++
	default:
		c.Uncategorized++
	}
}

// Tracked returns the number of children in the three tracked buckets.
func (c StatusCounts) Tracked() int {
	return c.Completed + c.Ongoing + c.Delayed
}
