package handlers

import (
	"github.com/riddlehouse/riddle_api/dto"
)

type ProgressionServiceInterface interface {
	ProcessVisit(username string, req dto.ProcessRequest) (*dto.ProcessResponse, error)
	GetProgress(riddle, username string) (*dto.ProgressResponse, error)
	RateLevel(riddle, username, level string, rating int) error
	Leaderboard(riddle string, limit int) (*dto.LeaderboardResponse, error)
}

type CatalogServiceInterface interface {
	ReloadRiddle(alias string) error
}

type MediaServiceInterface interface {
	Enabled() bool
	UploadMedia(objectName string, data []byte, contentType string) error
}
