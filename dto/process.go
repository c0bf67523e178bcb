// dto/process.go
package dto

// ProcessRequest is one visited-URL event forwarded by the browser
// extension. The stream is untrusted, unordered and may contain duplicates.
type ProcessRequest struct {
	Riddle     string `json:"riddle" validate:"required"`
	URL        string `json:"url" validate:"required"`
	StatusCode int    `json:"status_code"`
}

// EventResult reports one classified event and whether its transition
// actually fired (Applied=false covers duplicates and out-of-order no-ops).
type EventResult struct {
	Kind        string `json:"kind"`
	Level       string `json:"level,omitempty"`
	Achievement string `json:"achievement,omitempty"`
	Applied     bool   `json:"applied"`
	Points      int    `json:"points,omitempty"`
}

type ProcessResponse struct {
	Riddle string        `json:"riddle"`
	Path   string        `json:"path"`
	Events []EventResult `json:"events"`
}

type RateLevelRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}
