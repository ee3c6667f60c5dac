package model

import "time"

// AssignmentStatus tracks one response episode. CANCELED is reserved for a
// future manual-unassign feature; no transition currently produces it.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentCanceled  AssignmentStatus = "CANCELED"
)

// Assignment binds one unit to one incident for one response episode.
// A unit has at most one ACTIVE assignment at any time; an incident may
// have several (multiple unit types responding to the same scene).
type Assignment struct {
	ID         string           `json:"id"`
	IncidentID string           `json:"incident_id"`
	UnitID     string           `json:"unit_id"`
	Status     AssignmentStatus `json:"status"`
	AssignedAt time.Time        `json:"assigned_at"`
}
