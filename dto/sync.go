// dto/sync.go
package dto

// Payloads published to the Presence Sync Service. Each carries only what
// the presence layer needs to react; the engine owns nothing past the
// method name and these fields.

type LevelDescriptor struct {
	Name     string `json:"name"`
	SetIndex int    `json:"set_index"`
	Index    int    `json:"index"`
	Rank     string `json:"rank"`
	IsSecret bool   `json:"is_secret"`
}

type AdvancePayload struct {
	Riddle   string          `json:"riddle"`
	Username string          `json:"username"`
	Level    LevelDescriptor `json:"level"`
	// Superseded lists ancestor levels whose "reached" access the presence
	// layer should revoke now that the player has moved past them.
	Superseded []string `json:"superseded,omitempty"`
}

type BeatPayload struct {
	Riddle       string          `json:"riddle"`
	Username     string          `json:"username"`
	Level        LevelDescriptor `json:"level"`
	Points       int             `json:"points"`
	FirstToSolve bool            `json:"first_to_solve"`
	Milestone    string          `json:"milestone,omitempty"` // set-completion role, when the level closes a set
}

type SecretFoundPayload struct {
	Riddle   string          `json:"riddle"`
	Username string          `json:"username"`
	Level    LevelDescriptor `json:"level"`
}

type SecretSolvePayload struct {
	Riddle       string          `json:"riddle"`
	Username     string          `json:"username"`
	Level        LevelDescriptor `json:"level"`
	Points       int             `json:"points"`
	FirstToSolve bool            `json:"first_to_solve"`
}

type CheevoFoundPayload struct {
	Riddle      string `json:"riddle"`
	Username    string `json:"username"`
	Achievement string `json:"achievement"`
	Rank        string `json:"rank"`
	Points      int    `json:"points"`
	MediaURL    string `json:"media_url,omitempty"`
}

type GameCompletedPayload struct {
	Riddle   string `json:"riddle"`
	Username string `json:"username"`
}
