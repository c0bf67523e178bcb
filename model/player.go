// model/player.go
package model

import (
	"time"
)

// PlayerLevelState is the single source of truth for "has the player
// unlocked/solved this level". A row with FindTime set is the unlocked
// predicate; CompletionTime is only ever set on a row whose FindTime is
// already set. Fields move unset -> set and never back.
type PlayerLevelState struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	RiddleAlias    string     `json:"riddle" gorm:"uniqueIndex:idx_player_level_states_key"`
	Username       string     `json:"username" gorm:"uniqueIndex:idx_player_level_states_key"`
	LevelName      string     `json:"level" gorm:"uniqueIndex:idx_player_level_states_key"`
	FindTime       *time.Time `json:"find_time"`
	CompletionTime *time.Time `json:"completion_time"`
	Rating         *int       `json:"rating"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PlayerAchievementState is insert-once; the unique index is the
// idempotency guard against concurrent duplicate submissions.
type PlayerAchievementState struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RiddleAlias string    `json:"riddle" gorm:"uniqueIndex:idx_player_achievements_key"`
	Username    string    `json:"username" gorm:"uniqueIndex:idx_player_achievements_key"`
	Title       string    `json:"title" gorm:"uniqueIndex:idx_player_achievements_key"`
	UnlockTime  time.Time `json:"unlock_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlayerRiddleAccount tracks one player's standing in one riddle.
// CurrentOrder mirrors CurrentLevel's OrderKey so the advance guard can be
// a single conditional UPDATE; score moves only by relative increments.
type PlayerRiddleAccount struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	RiddleAlias      string    `json:"riddle" gorm:"uniqueIndex:idx_player_riddle_accounts_key"`
	Username         string    `json:"username" gorm:"uniqueIndex:idx_player_riddle_accounts_key"`
	CurrentLevel     string    `json:"current_level"` // empty means not started
	CurrentOrder     int       `json:"current_order" gorm:"default:-1"`
	Score            int       `json:"score" gorm:"default:0"`
	PageCount        int       `json:"page_count" gorm:"default:0"`
	HitCount         int       `json:"hit_count" gorm:"default:0"`
	LastVisitedLevel string    `json:"last_visited_level"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PlayerScore is the cross-riddle score; unlisted riddles never touch it.
type PlayerScore struct {
	Username  string    `json:"username" gorm:"primaryKey"`
	Score     int       `json:"score" gorm:"default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageVisit is the per-player visit log consulted by AND achievements.
// Telemetry beyond the unique (riddle, username, path) row is not
// consistency-critical.
type PageVisit struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RiddleAlias string    `json:"riddle" gorm:"uniqueIndex:idx_page_visits_key"`
	Username    string    `json:"username" gorm:"uniqueIndex:idx_page_visits_key"`
	Path        string    `json:"path" gorm:"uniqueIndex:idx_page_visits_key"`
	LevelName   string    `json:"level"`
	VisitCount  int       `json:"visit_count" gorm:"default:1"`
	FirstSeen   time.Time `json:"first_seen"`
}

// All lists every persistent record for migration.
func All() []interface{} {
	return []interface{}{
		&Riddle{},
		&LevelSet{},
		&Level{},
		&LevelRequirement{},
		&Achievement{},
		&PlayerLevelState{},
		&PlayerAchievementState{},
		&PlayerRiddleAccount{},
		&PlayerScore{},
		&PageVisit{},
	}
}
