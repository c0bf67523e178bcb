// model/achievement.go
package model

import (
	"encoding/json"
	"time"
)

// Achievement is a bonus unlock triggered by visiting one or more paths.
// Operator "or" unlocks on any listed path, "and" once every listed path
// appears in the player's visit history. A single-path condition is stored
// as "or" with one entry.
type Achievement struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	RiddleAlias string          `json:"riddle" gorm:"uniqueIndex:idx_achievements_riddle_title"`
	Title       string          `json:"title" gorm:"uniqueIndex:idx_achievements_riddle_title"`
	Description string          `json:"description" gorm:"type:text"`
	Rank        string          `json:"rank" gorm:"default:'C'"`
	Operator    string          `json:"operator" gorm:"default:'or'"`
	Paths       json.RawMessage `json:"paths" gorm:"type:text"` // JSON array of trigger paths
	ImagePath   string          `json:"image_path"`             // object key in the media bucket, optional
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
