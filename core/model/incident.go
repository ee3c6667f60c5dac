package model

import (
	"fmt"
	"time"

	"github.com/urbanpulse/fleetops/core/geo"
)

// Priority orders incidents for display and listing.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank maps the priority to a sortable weight, highest first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IncidentStatus is the incident state machine. PENDING means no assignment
// has ever existed, ASSIGNED means at least one assignment is active and
// RESOLVED is terminal.
type IncidentStatus string

const (
	IncidentPending  IncidentStatus = "PENDING"
	IncidentAssigned IncidentStatus = "ASSIGNED"
	IncidentResolved IncidentStatus = "RESOLVED"
)

// Incident is a reported event requiring one or more unit responses.
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
	Location    geo.Point      `json:"location"`
	Status      IncidentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks that the incident definition is sound.
func (i Incident) Validate() error {
	if i.Title == "" {
		return fmt.Errorf("incident title is required")
	}
	if !i.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", i.Priority)
	}
	return nil
}
