// model/riddle.go
package model

import (
	"encoding/json"
	"time"
)

// Riddle represents one instance of the puzzle game (one community).
type Riddle struct {
	Alias      string          `json:"alias" gorm:"primaryKey"`
	FullName   string          `json:"full_name" gorm:"not null"`
	RootPaths  json.RawMessage `json:"root_paths" gorm:"type:text"` // JSON array of allowed URL prefixes
	FinalLevel string          `json:"final_level"`                 // optional; empty means last ordered level
	Unlisted   bool            `json:"unlisted" gorm:"default:false"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LevelSet is an ordered grouping of levels sharing a completion bonus.
type LevelSet struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	RiddleAlias    string    `json:"riddle" gorm:"uniqueIndex:idx_level_sets_riddle_set"`
	SetIndex       int       `json:"set_index" gorm:"uniqueIndex:idx_level_sets_riddle_set"`
	Name           string    `json:"name" gorm:"not null"`
	FinalLevel     string    `json:"final_level"` // last level in set, gates the set-completion bonus
	CompletionRole string    `json:"completion_role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Level is one stage of a riddle, normal or secret. Secret levels sit
// outside the linear (SetIndex, LevelIndex) ordering.
type Level struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	RiddleAlias string          `json:"riddle" gorm:"uniqueIndex:idx_levels_riddle_name"`
	Name        string          `json:"name" gorm:"uniqueIndex:idx_levels_riddle_name"`
	SetIndex    int             `json:"set_index"`
	LevelIndex  int             `json:"index" gorm:"column:level_index"` // order within set
	FrontPaths  json.RawMessage `json:"front_paths" gorm:"type:text"`    // JSON array; multi-entry levels register several
	AnswerPath  string          `json:"answer_path"`                     // empty means open-ended
	ImagePath   string          `json:"image_path"`
	Rank        string          `json:"rank" gorm:"default:'D'"` // D/C/B/A/S
	IsSecret    bool            `json:"is_secret" gorm:"default:false"`

	// Aggregates mutated by the engine through atomic relative updates.
	CompletionCount int    `json:"completion_count" gorm:"default:0"`
	FirstSolver     string `json:"first_solver" gorm:"default:''"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderKey collapses the (SetIndex, LevelIndex) pair into a single sortable
// key used for the monotonic current-level guard.
func (l *Level) OrderKey() int {
	return l.SetIndex<<16 | l.LevelIndex
}

// LevelRequirement is a directed edge in the prerequisite DAG: LevelName
// requires Requires. Admin-authored; assumed acyclic.
type LevelRequirement struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RiddleAlias string    `json:"riddle" gorm:"uniqueIndex:idx_level_requirements_edge"`
	LevelName   string    `json:"level" gorm:"uniqueIndex:idx_level_requirements_edge"`
	Requires    string    `json:"requires" gorm:"uniqueIndex:idx_level_requirements_edge"`
	CreatedAt   time.Time `json:"created_at"`
}
