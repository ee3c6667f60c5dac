package model

import "time"

// UnitSnapshot is one row of the broadcast payload.
type UnitSnapshot struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Type   UnitType   `json:"type"`
	Status UnitStatus `json:"status"`
	Lat    float64    `json:"lat"`
	Lng    float64    `json:"lng"`
}

// FleetSnapshot is the full fleet roster pushed to observers. The same
// complete payload is sent on every material change; observers stay
// eventually consistent without per-field diffing.
type FleetSnapshot struct {
	Units     []UnitSnapshot `json:"units"`
	Timestamp time.Time      `json:"timestamp"`
}

// SnapshotUnit converts a unit into its broadcast row.
func SnapshotUnit(u Unit) UnitSnapshot {
	return UnitSnapshot{
		ID:     u.ID,
		Name:   u.Name,
		Type:   u.Type,
		Status: u.Status,
		Lat:    u.Position.Lat,
		Lng:    u.Position.Lng,
	}
}
