// services/progression.go
package services

import (
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/shared"
)

// ProgressionService is the per-player state machine. Every transition is
// idempotent and monotonic: the row-exists rule guards advances, the
// conditional completion update guards solves, and the unique achievement
// insert guards unlocks. Any subset of a player's events, in any order,
// converges to the same final state; nothing here needs an in-process lock.
type ProgressionService struct {
	context.DefaultService

	sqlSvc        *SqlService
	catalogSvc    *CatalogService
	syncSvc       *SyncService
	monitoringSvc *MonitoringService
}

const PROGRESSION_SVC = "progression_svc"

func (svc ProgressionService) Id() string {
	return PROGRESSION_SVC
}

func (svc *ProgressionService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ProgressionService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.catalogSvc = svc.Service(CATALOG_SVC).(*CatalogService)
	svc.syncSvc = svc.Service(SYNC_SVC).(*SyncService)
	svc.monitoringSvc, _ = svc.Service(MONITORING_SVC).(*MonitoringService)
	return nil
}

// ProcessVisit handles one visited-URL event: normalize, classify, apply.
// A store failure aborts the whole event (the extension resubmits); each
// applied step is independently re-appliable, so a crash mid-sequence is
// safe.
func (svc *ProgressionService) ProcessVisit(username string, req dto.ProcessRequest) (*dto.ProcessResponse, error) {
	started := time.Now()

	cat, err := svc.catalogSvc.Catalog(req.Riddle)
	if err != nil {
		return nil, err
	}

	path, err := cat.NormalizePath(req.URL)
	if err != nil {
		return nil, err
	}

	acct, err := svc.sqlSvc.GetOrCreateAccount(req.Riddle, username)
	if err != nil {
		return nil, err
	}

	if err := svc.sqlSvc.IncrementHitCount(req.Riddle, username); err != nil {
		return nil, err
	}

	resp := &dto.ProcessResponse{Riddle: req.Riddle, Path: path, Events: []dto.EventResult{}}

	// A dead page nobody registered: hit-counter bookkeeping only.
	if req.StatusCode == 404 && !cat.Known(path) {
		return resp, nil
	}

	visitedLevel := ""
	if level := cat.LevelForPath(path); level != nil {
		visitedLevel = level.Name
		if err := svc.sqlSvc.SetLastVisitedLevel(req.Riddle, username, level.Name); err != nil {
			return nil, err
		}
	}

	// The visit goes into the log before achievement evaluation so an
	// AND condition can be completed by the path that just arrived.
	firstVisit, err := svc.sqlSvc.RecordPageVisit(req.Riddle, username, path, visitedLevel)
	if err != nil {
		return nil, err
	}
	if firstVisit {
		if err := svc.sqlSvc.IncrementPageCount(req.Riddle, username); err != nil {
			return nil, err
		}
	}

	events, err := svc.classify(cat, acct, username, path)
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		result, err := svc.apply(cat, username, ev)
		if err != nil {
			return nil, err
		}
		resp.Events = append(resp.Events, result)
		if svc.monitoringSvc != nil {
			outcome := "noop"
			if result.Applied {
				outcome = "applied"
			}
			svc.monitoringSvc.RecordTransition(ev.Kind.String(), outcome)
		}
	}

	resp.Events = append(resp.Events, dto.EventResult{
		Kind:    EventVisitPage.String(),
		Level:   visitedLevel,
		Applied: firstVisit,
	})

	if svc.monitoringSvc != nil {
		svc.monitoringSvc.RecordVisit(req.Riddle, time.Since(started))
	}
	return resp, nil
}

// apply runs one transition. Applied=false means an idempotent no-op: the
// guard condition was already satisfied (duplicate) or not yet satisfied
// (out of order, usually a solve racing ahead of its find).
func (svc *ProgressionService) apply(cat *RiddleCatalog, username string, ev Event) (dto.EventResult, error) {
	riddle := cat.Riddle.Alias
	now := time.Now()

	switch ev.Kind {
	case EventAdvanceNormal:
		inserted, err := svc.sqlSvc.CreateLevelFindIfAbsent(riddle, username, ev.Level.Name, now)
		if err != nil || !inserted {
			return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name}, err
		}
		if err := svc.sqlSvc.AdvanceCurrentLevel(riddle, username, ev.Level.Name, ev.Level.OrderKey()); err != nil {
			return dto.EventResult{}, err
		}
		var superseded []string
		for _, ancestor := range cat.AncestorsOf(ev.Level.Name) {
			if ancestor.Name != ev.Level.Name {
				superseded = append(superseded, ancestor.Name)
			}
		}
		svc.syncSvc.Advance(riddle, username, ev.Level, superseded)
		return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name, Applied: true}, nil

	case EventCompleteNormal:
		solved, err := svc.sqlSvc.MarkLevelSolved(riddle, username, ev.Level.Name, now)
		if err != nil || !solved {
			if err == nil {
				log.Debugf("Completion of %s/%s for %s was a no-op", riddle, ev.Level.Name, username)
			}
			return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name}, err
		}

		points := shared.LevelPoints[ev.Level.Rank]
		if err := svc.award(cat, username, points); err != nil {
			return dto.EventResult{}, err
		}
		first, err := svc.sqlSvc.ClaimFirstSolve(riddle, ev.Level.Name, username)
		if err != nil {
			return dto.EventResult{}, err
		}
		if err := svc.sqlSvc.IncrementLevelCompletionCount(riddle, ev.Level.Name); err != nil {
			return dto.EventResult{}, err
		}

		milestone := ""
		if cat.IsFinalOfSet(ev.Level) {
			if set := cat.SetOf(ev.Level); set != nil {
				milestone = set.CompletionRole
			}
		}
		svc.syncSvc.Beat(riddle, username, ev.Level, points, first, milestone)

		if cat.IsFinalLevel(ev.Level) {
			if err := svc.sqlSvc.CompleteAccount(riddle, username); err != nil {
				return dto.EventResult{}, err
			}
			svc.syncSvc.GameCompleted(riddle, username)
		}
		return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name, Applied: true, Points: points}, nil

	case EventFindSecret:
		inserted, err := svc.sqlSvc.CreateLevelFindIfAbsent(riddle, username, ev.Level.Name, now)
		if err != nil || !inserted {
			return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name}, err
		}
		svc.syncSvc.SecretFound(riddle, username, ev.Level)
		return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name, Applied: true}, nil

	case EventCompleteSecret:
		solved, err := svc.sqlSvc.MarkLevelSolved(riddle, username, ev.Level.Name, now)
		if err != nil || !solved {
			return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name}, err
		}
		points := shared.LevelPoints[ev.Level.Rank]
		if err := svc.award(cat, username, points); err != nil {
			return dto.EventResult{}, err
		}
		first, err := svc.sqlSvc.ClaimFirstSolve(riddle, ev.Level.Name, username)
		if err != nil {
			return dto.EventResult{}, err
		}
		if err := svc.sqlSvc.IncrementLevelCompletionCount(riddle, ev.Level.Name); err != nil {
			return dto.EventResult{}, err
		}
		svc.syncSvc.SecretSolve(riddle, username, ev.Level, points, first)
		return dto.EventResult{Kind: ev.Kind.String(), Level: ev.Level.Name, Applied: true, Points: points}, nil

	case EventUnlockAchievement:
		inserted, err := svc.sqlSvc.InsertPlayerAchievementIfAbsent(riddle, username, ev.Cheevo.Title, now)
		if err != nil || !inserted {
			return dto.EventResult{Kind: ev.Kind.String(), Achievement: ev.Cheevo.Title}, err
		}
		points := shared.CheevoPoints[ev.Cheevo.Rank]
		if err := svc.award(cat, username, points); err != nil {
			return dto.EventResult{}, err
		}
		svc.syncSvc.CheevoFound(riddle, username, ev.Cheevo, points)
		return dto.EventResult{Kind: ev.Kind.String(), Achievement: ev.Cheevo.Title, Applied: true, Points: points}, nil
	}

	return dto.EventResult{Kind: ev.Kind.String()}, nil
}

// award applies a score delta to the riddle account and, for listed
// riddles, to the global score. Relative increments only; concurrent
// events for the same player must not clobber each other.
func (svc *ProgressionService) award(cat *RiddleCatalog, username string, points int) error {
	if points == 0 {
		return nil
	}
	if err := svc.sqlSvc.IncrementScore(cat.Riddle.Alias, username, points); err != nil {
		return err
	}
	if !cat.Riddle.Unlisted {
		return svc.sqlSvc.IncrementGlobalScore(username, points)
	}
	return nil
}

// ==================== READ SIDE ====================

func (svc *ProgressionService) GetProgress(riddle, username string) (*dto.ProgressResponse, error) {
	cat, err := svc.catalogSvc.Catalog(riddle)
	if err != nil {
		return nil, err
	}

	acct, err := svc.sqlSvc.GetOrCreateAccount(riddle, username)
	if err != nil {
		return nil, err
	}

	states, err := svc.sqlSvc.ListLevelStates(riddle, username)
	if err != nil {
		return nil, err
	}
	cheevos, err := svc.sqlSvc.ListPlayerAchievements(riddle, username)
	if err != nil {
		return nil, err
	}

	resp := &dto.ProgressResponse{
		Riddle:       riddle,
		Username:     username,
		CurrentLevel: acct.CurrentLevel,
		Score:        acct.Score,
		PageCount:    acct.PageCount,
		Levels:       make([]dto.LevelProgress, 0, len(states)),
		Achievements: make([]dto.AchievementProgress, 0, len(cheevos)),
	}

	for _, state := range states {
		isSecret := false
		if level := cat.Level(state.LevelName); level != nil {
			isSecret = level.IsSecret
		}
		resp.Levels = append(resp.Levels, dto.LevelProgress{
			Level:          state.LevelName,
			IsSecret:       isSecret,
			FindTime:       state.FindTime,
			CompletionTime: state.CompletionTime,
			Rating:         state.Rating,
		})
		if state.FindTime != nil {
			resp.FoundCount++
		}
		if state.CompletionTime != nil {
			resp.SolvedCount++
		}
	}

	for _, row := range cheevos {
		rank := ""
		for i := range cat.cheevos {
			if cat.cheevos[i].Achievement.Title == row.Title {
				rank = cat.cheevos[i].Achievement.Rank
				break
			}
		}
		resp.Achievements = append(resp.Achievements, dto.AchievementProgress{
			Title:      row.Title,
			Rank:       rank,
			UnlockTime: row.UnlockTime,
		})
	}

	return resp, nil
}

// RateLevel stores a 1..5 rating for a level the player has solved.
func (svc *ProgressionService) RateLevel(riddle, username, level string, rating int) error {
	cat, err := svc.catalogSvc.Catalog(riddle)
	if err != nil {
		return err
	}
	if cat.Level(level) == nil {
		return shared.NewNotFoundError(nil, "unknown level")
	}

	ok, err := svc.sqlSvc.SetLevelRating(riddle, username, level, rating)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewConflictError(nil, "level not solved yet")
	}
	return nil
}

func (svc *ProgressionService) Leaderboard(riddle string, limit int) (*dto.LeaderboardResponse, error) {
	if _, err := svc.catalogSvc.Catalog(riddle); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	accounts, err := svc.sqlSvc.TopAccounts(riddle, limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.LeaderboardResponse{Riddle: riddle, Entries: make([]dto.LeaderboardEntry, 0, len(accounts))}
	for _, acct := range accounts {
		resp.Entries = append(resp.Entries, dto.LeaderboardEntry{
			Username:     acct.Username,
			CurrentLevel: acct.CurrentLevel,
			Score:        acct.Score,
		})
	}
	return resp, nil
}
