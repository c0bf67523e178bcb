// services/sql.go
package services

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/riddlehouse/riddle_api/model"
	"github.com/riddlehouse/riddle_api/shared"
)

// SqlService owns the Persistent Store. Every idempotency guarantee of the
// engine lives here: conditional updates whose affected-row count signals
// whether a transition fired, and unique-constraint inserts for the
// insert-once rows.
type SqlService struct {
	context.DefaultService
	db *gorm.DB

	driver   string
	database string
}

const SQL_SVC = "sql_svc"

// Id returns Service ID
func (ds SqlService) Id() string {
	return SQL_SVC
}

// Db Access to raw SqlService db
func (ds SqlService) Db() *gorm.DB {
	return ds.db
}

// Configure the service
func (ds *SqlService) Configure(ctx *context.Context) error {
	ds.driver = os.Getenv("DB_DRIVER")
	if ds.driver == "" {
		ds.driver = "sqlite"
	}
	ds.database = os.Getenv("DB_DATABASE")
	if ds.database == "" {
		ds.database = "riddle.db"
	}

	return ds.DefaultService.Configure(ctx)
}

// Start the service and open connection to the database
// Migrate any tables that have changed since last runtime
func (ds *SqlService) Start() (err error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	}

	switch ds.driver {
	case "postgres":
		ds.db, err = gorm.Open(postgres.Open(ds.database), cfg)
	default:
		ds.db, err = gorm.Open(sqlite.Open(ds.database), cfg)
	}
	if err != nil {
		return err
	}

	if err = ds.db.AutoMigrate(model.All()...); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Printf("Database connected and migrated successfully (%s)", ds.driver)
	return nil
}

func (ds *SqlService) Shutdown() {
}

func (ds *SqlService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &shared.AppError{StatusCode: http.StatusNotFound, Kind: shared.KindNotFound, Message: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &shared.AppError{StatusCode: http.StatusConflict, Kind: shared.KindConflict, Message: "already exists", Err: err}
	default:
		return shared.NewStoreUnavailableError(err)
	}
}

// ==================== CATALOG READS ====================

func (ds *SqlService) GetRiddle(alias string) (*model.Riddle, error) {
	var riddle model.Riddle
	if err := ds.db.Where("alias = ?", alias).First(&riddle).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &riddle, nil
}

func (ds *SqlService) ListLevels(riddle string) ([]model.Level, error) {
	var levels []model.Level
	err := ds.db.Where("riddle_alias = ?", riddle).
		Order("set_index, level_index, name").
		Find(&levels).Error
	return levels, ds.HandleError(err)
}

func (ds *SqlService) GetLevel(riddle, name string) (*model.Level, error) {
	var level model.Level
	if err := ds.db.Where("riddle_alias = ? AND name = ?", riddle, name).First(&level).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &level, nil
}

func (ds *SqlService) ListLevelSets(riddle string) ([]model.LevelSet, error) {
	var sets []model.LevelSet
	err := ds.db.Where("riddle_alias = ?", riddle).Order("set_index").Find(&sets).Error
	return sets, ds.HandleError(err)
}

func (ds *SqlService) ListRequirements(riddle string) ([]model.LevelRequirement, error) {
	var reqs []model.LevelRequirement
	err := ds.db.Where("riddle_alias = ?", riddle).Find(&reqs).Error
	return reqs, ds.HandleError(err)
}

func (ds *SqlService) ListAchievements(riddle string) ([]model.Achievement, error) {
	var cheevos []model.Achievement
	err := ds.db.Where("riddle_alias = ?", riddle).Order("title").Find(&cheevos).Error
	return cheevos, ds.HandleError(err)
}

// ==================== PLAYER ACCOUNTS ====================

// GetOrCreateAccount creates the per-riddle account row lazily on first
// contact. A concurrent create losing the unique-index race falls back to
// fetching the winner's row.
func (ds *SqlService) GetOrCreateAccount(riddle, username string) (*model.PlayerRiddleAccount, error) {
	var acct model.PlayerRiddleAccount
	err := ds.db.Where("riddle_alias = ? AND username = ?", riddle, username).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ds.HandleError(err)
	}

	id, _ := uuid.NewV7()
	acct = model.PlayerRiddleAccount{
		ID:           id.String(),
		RiddleAlias:  riddle,
		Username:     username,
		CurrentOrder: -1,
	}
	if err := ds.db.Create(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = ds.db.Where("riddle_alias = ? AND username = ?", riddle, username).First(&acct).Error
			return &acct, ds.HandleError(err)
		}
		return nil, ds.HandleError(err)
	}
	return &acct, nil
}

func (ds *SqlService) GetAccount(riddle, username string) (*model.PlayerRiddleAccount, error) {
	var acct model.PlayerRiddleAccount
	if err := ds.db.Where("riddle_alias = ? AND username = ?", riddle, username).First(&acct).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &acct, nil
}

// AdvanceCurrentLevel moves the current-level pointer forward only. The
// order-key guard makes reordered advance events converge on the
// highest-index level rather than the last one processed.
func (ds *SqlService) AdvanceCurrentLevel(riddle, username, level string, order int) error {
	err := ds.db.Model(&model.PlayerRiddleAccount{}).
		Where("riddle_alias = ? AND username = ? AND current_order < ?", riddle, username, order).
		Updates(map[string]interface{}{
			"current_level": level,
			"current_order": order,
		}).Error
	return ds.HandleError(err)
}

// CompleteAccount parks the current-level pointer on the terminal sentinel.
func (ds *SqlService) CompleteAccount(riddle, username string) error {
	return ds.AdvanceCurrentLevel(riddle, username, shared.AccountCompleted, shared.AccountCompletedOrder)
}

func (ds *SqlService) IncrementScore(riddle, username string, delta int) error {
	err := ds.db.Model(&model.PlayerRiddleAccount{}).
		Where("riddle_alias = ? AND username = ?", riddle, username).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
	return ds.HandleError(err)
}

// IncrementGlobalScore upserts the cross-riddle score row. Callers skip it
// for unlisted riddles.
func (ds *SqlService) IncrementGlobalScore(username string, delta int) error {
	err := ds.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"score":      gorm.Expr("player_scores.score + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&model.PlayerScore{Username: username, Score: delta, UpdatedAt: time.Now()}).Error
	return ds.HandleError(err)
}

func (ds *SqlService) IncrementHitCount(riddle, username string) error {
	err := ds.db.Model(&model.PlayerRiddleAccount{}).
		Where("riddle_alias = ? AND username = ?", riddle, username).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
	return ds.HandleError(err)
}

func (ds *SqlService) IncrementPageCount(riddle, username string) error {
	err := ds.db.Model(&model.PlayerRiddleAccount{}).
		Where("riddle_alias = ? AND username = ?", riddle, username).
		UpdateColumn("page_count", gorm.Expr("page_count + 1")).Error
	return ds.HandleError(err)
}

func (ds *SqlService) SetLastVisitedLevel(riddle, username, level string) error {
	err := ds.db.Model(&model.PlayerRiddleAccount{}).
		Where("riddle_alias = ? AND username = ?", riddle, username).
		UpdateColumn("last_visited_level", level).Error
	return ds.HandleError(err)
}

// ==================== LEVEL STATE ====================

// CreateLevelFindIfAbsent inserts the find row; the unique index makes a
// replay a no-op. Returns whether this call actually recorded the find.
func (ds *SqlService) CreateLevelFindIfAbsent(riddle, username, level string, t time.Time) (bool, error) {
	id, _ := uuid.NewV7()
	row := model.PlayerLevelState{
		ID:          id.String(),
		RiddleAlias: riddle,
		Username:    username,
		LevelName:   level,
		FindTime:    &t,
	}
	res := ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "riddle_alias"}, {Name: "username"}, {Name: "level_name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkLevelSolved sets the completion time iff the level was found and not
// yet solved. The WHERE clause is the whole no-skip invariant.
func (ds *SqlService) MarkLevelSolved(riddle, username, level string, t time.Time) (bool, error) {
	res := ds.db.Model(&model.PlayerLevelState{}).
		Where("riddle_alias = ? AND username = ? AND level_name = ?", riddle, username, level).
		Where("find_time IS NOT NULL AND completion_time IS NULL").
		Updates(map[string]interface{}{"completion_time": t, "updated_at": t})
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetLevelRating records a player's rating for a solved level. Overwriting
// an earlier rating is allowed; rating an unsolved level is not.
func (ds *SqlService) SetLevelRating(riddle, username, level string, rating int) (bool, error) {
	res := ds.db.Model(&model.PlayerLevelState{}).
		Where("riddle_alias = ? AND username = ? AND level_name = ?", riddle, username, level).
		Where("completion_time IS NOT NULL").
		Updates(map[string]interface{}{"rating": rating, "updated_at": time.Now()})
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// IsUnlockedUnsolved reports whether the player has found but not yet
// solved a level. The classifier uses it to gate answer-path events.
func (ds *SqlService) IsUnlockedUnsolved(riddle, username, level string) (bool, error) {
	var count int64
	err := ds.db.Model(&model.PlayerLevelState{}).
		Where("riddle_alias = ? AND username = ? AND level_name = ?", riddle, username, level).
		Where("find_time IS NOT NULL AND completion_time IS NULL").
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

func (ds *SqlService) GetLevelState(riddle, username, level string) (*model.PlayerLevelState, error) {
	var state model.PlayerLevelState
	if err := ds.db.Where("riddle_alias = ? AND username = ? AND level_name = ?", riddle, username, level).First(&state).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &state, nil
}

func (ds *SqlService) ListLevelStates(riddle, username string) ([]model.PlayerLevelState, error) {
	var states []model.PlayerLevelState
	err := ds.db.Where("riddle_alias = ? AND username = ?", riddle, username).Find(&states).Error
	return states, ds.HandleError(err)
}

// ==================== LEVEL AGGREGATES ====================

func (ds *SqlService) IncrementLevelCompletionCount(riddle, level string) error {
	err := ds.db.Model(&model.Level{}).
		Where("riddle_alias = ? AND name = ?", riddle, level).
		UpdateColumn("completion_count", gorm.Expr("completion_count + 1")).Error
	return ds.HandleError(err)
}

// ClaimFirstSolve atomically claims the first-to-solve slot for a level.
// Exactly one caller ever sees true.
func (ds *SqlService) ClaimFirstSolve(riddle, level, username string) (bool, error) {
	res := ds.db.Model(&model.Level{}).
		Where("riddle_alias = ? AND name = ? AND first_solver = ''", riddle, level).
		UpdateColumn("first_solver", username)
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ==================== ACHIEVEMENTS ====================

// InsertPlayerAchievementIfAbsent is the single duplicate guard for cheevo
// unlocks: one atomic insert-or-nothing, never check-then-insert.
func (ds *SqlService) InsertPlayerAchievementIfAbsent(riddle, username, title string, t time.Time) (bool, error) {
	id, _ := uuid.NewV7()
	row := model.PlayerAchievementState{
		ID:          id.String(),
		RiddleAlias: riddle,
		Username:    username,
		Title:       title,
		UnlockTime:  t,
	}
	res := ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "riddle_alias"}, {Name: "username"}, {Name: "title"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (ds *SqlService) ListPlayerAchievements(riddle, username string) ([]model.PlayerAchievementState, error) {
	var rows []model.PlayerAchievementState
	err := ds.db.Where("riddle_alias = ? AND username = ?", riddle, username).Order("unlock_time").Find(&rows).Error
	return rows, ds.HandleError(err)
}

// ==================== PAGE VISITS ====================

// RecordPageVisit upserts the visit-log row; returns whether the path was
// seen for the first time.
func (ds *SqlService) RecordPageVisit(riddle, username, path, level string) (bool, error) {
	id, _ := uuid.NewV7()
	row := model.PageVisit{
		ID:          id.String(),
		RiddleAlias: riddle,
		Username:    username,
		Path:        path,
		LevelName:   level,
		VisitCount:  1,
		FirstSeen:   time.Now(),
	}
	res := ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "riddle_alias"}, {Name: "username"}, {Name: "path"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, ds.HandleError(res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	err := ds.db.Model(&model.PageVisit{}).
		Where("riddle_alias = ? AND username = ? AND path = ?", riddle, username, path).
		UpdateColumn("visit_count", gorm.Expr("visit_count + 1")).Error
	return false, ds.HandleError(err)
}

func (ds *SqlService) HasVisited(riddle, username, path string) (bool, error) {
	var count int64
	err := ds.db.Model(&model.PageVisit{}).
		Where("riddle_alias = ? AND username = ? AND path = ?", riddle, username, path).
		Count(&count).Error
	if err != nil {
		return false, ds.HandleError(err)
	}
	return count > 0, nil
}

// ==================== LEADERBOARD ====================

func (ds *SqlService) TopAccounts(riddle string, limit int) ([]model.PlayerRiddleAccount, error) {
	var accounts []model.PlayerRiddleAccount
	err := ds.db.Where("riddle_alias = ?", riddle).
		Order("score DESC, username").
		Limit(limit).
		Find(&accounts).Error
	return accounts, ds.HandleError(err)
}
