package dispatch

import "github.com/urbanpulse/fleetops/core/model"

// Result reports the outcome of a dispatch request. A missing candidate is
// an expected, frequent outcome and is reported as data rather than as an
// error; callers branch on OK.
type Result struct {
	OK         bool              `json:"ok"`
	Reason     string            `json:"reason,omitempty"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
	Unit       *model.Unit       `json:"unit,omitempty"`
}
