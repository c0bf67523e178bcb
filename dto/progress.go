// dto/progress.go
package dto

import "time"

type LevelProgress struct {
	Level          string     `json:"level"`
	IsSecret       bool       `json:"is_secret"`
	FindTime       *time.Time `json:"find_time,omitempty"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	Rating         *int       `json:"rating,omitempty"`
}

type AchievementProgress struct {
	Title      string    `json:"title"`
	Rank       string    `json:"rank"`
	UnlockTime time.Time `json:"unlock_time"`
}

type ProgressResponse struct {
	Riddle       string                `json:"riddle"`
	Username     string                `json:"username"`
	CurrentLevel string                `json:"current_level"`
	Score        int                   `json:"score"`
	FoundCount   int                   `json:"found_count"`
	SolvedCount  int                   `json:"solved_count"`
	PageCount    int                   `json:"page_count"`
	Levels       []LevelProgress       `json:"levels"`
	Achievements []AchievementProgress `json:"achievements"`
}

type LeaderboardEntry struct {
	Username     string `json:"username"`
	CurrentLevel string `json:"current_level"`
	Score        int    `json:"score"`
}

type LeaderboardResponse struct {
	Riddle  string             `json:"riddle"`
	Entries []LeaderboardEntry `json:"entries"`
}
