package services

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/model"
	"github.com/riddlehouse/riddle_api/shared"
)

func TestHappyPath(t *testing.T) {
	e := newTestEngine(t)

	resp := e.visit(t, "alice", "/a")
	assert.Equal(t, []string{EventAdvanceNormal.String()}, appliedKinds(resp))

	resp = e.visit(t, "alice", "/a/ans")
	assert.Equal(t, []string{EventCompleteNormal.String()}, appliedKinds(resp))

	acct := e.account(t, "alice")
	assert.Equal(t, "one", acct.CurrentLevel)
	assert.Equal(t, 50, acct.Score)

	e.visit(t, "alice", "/b")
	e.visit(t, "alice", "/b/ans")
	e.visit(t, "alice", "/c")
	resp = e.visit(t, "alice", "/c/ans")
	assert.Equal(t, []string{EventCompleteNormal.String()}, appliedKinds(resp))

	acct = e.account(t, "alice")
	assert.Equal(t, shared.AccountCompleted, acct.CurrentLevel)
	assert.Equal(t, 50+100+400, acct.Score)

	// Every page was new, plus the riddle itself is done.
	assert.Equal(t, 6, acct.PageCount)
	assert.Equal(t, 6, acct.HitCount)

	completed := e.publisher.callsFor(shared.SyncGameCompleted)
	require.Len(t, completed, 1)
}

func TestDuplicateVisitsConverge(t *testing.T) {
	e := newTestEngine(t)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	score := e.account(t, "alice").Score

	// The extension resubmits; nothing may double-fire.
	resp := e.visit(t, "alice", "/a")
	assert.Empty(t, appliedKinds(resp))
	resp = e.visit(t, "alice", "/a/ans")
	assert.Empty(t, appliedKinds(resp))

	acct := e.account(t, "alice")
	assert.Equal(t, score, acct.Score)
	assert.Equal(t, "one", acct.CurrentLevel)
	assert.Equal(t, 2, acct.PageCount, "revisits do not grow the page count")
	assert.Equal(t, 4, acct.HitCount, "every submission grows the hit count")
}

func TestAnswerBeforeFrontIsNoOp(t *testing.T) {
	e := newTestEngine(t)

	// The answer page arrives before the level was ever unlocked: no
	// completion, no points, and the event replays cleanly later.
	resp := e.visit(t, "alice", "/a/ans")
	assert.Empty(t, appliedKinds(resp))
	assert.Equal(t, 0, e.account(t, "alice").Score)

	e.visit(t, "alice", "/a")
	resp = e.visit(t, "alice", "/a/ans")
	assert.Equal(t, []string{EventCompleteNormal.String()}, appliedKinds(resp))
	assert.Equal(t, 50, e.account(t, "alice").Score)
}

func TestSecretAnswerRequiresFind(t *testing.T) {
	e := newTestEngine(t)

	resp := e.visit(t, "alice", "/secret/ans")
	assert.Empty(t, appliedKinds(resp))

	resp = e.visit(t, "alice", "/secret")
	assert.Equal(t, []string{EventFindSecret.String()}, appliedKinds(resp))

	resp = e.visit(t, "alice", "/secret/ans")
	assert.Equal(t, []string{EventCompleteSecret.String()}, appliedKinds(resp))

	acct := e.account(t, "alice")
	assert.Equal(t, 200, acct.Score)
	assert.Empty(t, acct.CurrentLevel, "secrets never move the current level")
}

func TestCurrentLevelIsMonotonic(t *testing.T) {
	e := newTestEngine(t)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	e.visit(t, "alice", "/b")
	assert.Equal(t, "two", e.account(t, "alice").CurrentLevel)

	// Revisiting an earlier front page never moves the pointer back.
	e.visit(t, "alice", "/a")
	assert.Equal(t, "two", e.account(t, "alice").CurrentLevel)

	// Nor does a stale advance replayed straight against the store.
	require.NoError(t, e.sqlSvc.AdvanceCurrentLevel("demo", "alice", "one", 1<<16|1))
	assert.Equal(t, "two", e.account(t, "alice").CurrentLevel)
}

func TestUnknown404IsHitOnly(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.svc.ProcessVisit("alice", dto.ProcessRequest{
		Riddle:     "demo",
		URL:        testRoot + "/missing",
		StatusCode: 404,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Events)

	acct := e.account(t, "alice")
	assert.Equal(t, 1, acct.HitCount)
	assert.Equal(t, 0, acct.PageCount)
}

func TestMalformedURLRejected(t *testing.T) {
	e := newTestEngine(t)

	for _, raw := range []string{"", "/a", "https://elsewhere.example.com/a"} {
		_, err := e.svc.ProcessVisit("alice", dto.ProcessRequest{Riddle: "demo", URL: raw})
		require.Error(t, err, "url %q", raw)
		appErr, ok := shared.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, 400, appErr.StatusCode)
	}
}

func TestAchievementOr(t *testing.T) {
	e := newTestEngine(t)

	resp := e.visit(t, "alice", "/hidden/luck")
	assert.Equal(t, []string{EventUnlockAchievement.String()}, appliedKinds(resp))
	assert.Equal(t, 25, e.account(t, "alice").Score)

	// The second trigger path is a duplicate unlock, not a second award.
	resp = e.visit(t, "alice", "/hidden/charm")
	assert.Empty(t, appliedKinds(resp))
	assert.Equal(t, 25, e.account(t, "alice").Score)
}

func TestAchievementAnd(t *testing.T) {
	e := newTestEngine(t)

	assert.Empty(t, appliedKinds(e.visit(t, "alice", "/rooms/east")))
	assert.Empty(t, appliedKinds(e.visit(t, "alice", "/rooms/west")))

	resp := e.visit(t, "alice", "/rooms/north")
	assert.Equal(t, []string{EventUnlockAchievement.String()}, appliedKinds(resp))
	assert.Equal(t, 100, e.account(t, "alice").Score)

	// Replaying the completing path after the fact stays a no-op.
	assert.Empty(t, appliedKinds(e.visit(t, "alice", "/rooms/north")))
	assert.Equal(t, 100, e.account(t, "alice").Score)
}

func TestFirstSolveClaimedOnce(t *testing.T) {
	e := newTestEngine(t)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	e.visit(t, "bob", "/a")
	e.visit(t, "bob", "/a/ans")

	beats := e.publisher.callsFor(shared.SyncBeat)
	require.Len(t, beats, 2)

	level, err := e.sqlSvc.GetLevel("demo", "one")
	require.NoError(t, err)
	assert.Equal(t, "alice", level.FirstSolver)
	assert.Equal(t, 2, level.CompletionCount)
}

// TestConvergenceUnderPermutation replays the same event set in shuffled
// orders until a full pass applies nothing, modelling the extension
// resubmitting its backlog. Every order must converge to the identical
// final state with every award granted exactly once.
func TestConvergenceUnderPermutation(t *testing.T) {
	pages := []string{
		"/a", "/a/ans", "/b", "/b/ans", "/c", "/c/ans",
		"/secret", "/secret/ans",
		"/hidden/luck",
		"/rooms/east", "/rooms/west", "/rooms/north",
	}
	wantScore := 50 + 100 + 400 + 200 + 25 + 100

	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 8; run++ {
		order := append([]string(nil), pages...)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		e := newTestEngine(t)

		for pass := 0; pass < len(pages)+1; pass++ {
			applied := 0
			for _, page := range order {
				applied += len(appliedKinds(e.visit(t, "alice", page)))
			}
			if applied == 0 {
				break
			}
		}

		acct := e.account(t, "alice")
		assert.Equal(t, wantScore, acct.Score, "order %v", order)
		assert.Equal(t, shared.AccountCompleted, acct.CurrentLevel, "order %v", order)

		progress, err := e.svc.GetProgress("demo", "alice")
		require.NoError(t, err)
		assert.Equal(t, 4, progress.FoundCount)
		assert.Equal(t, 4, progress.SolvedCount)
		assert.Len(t, progress.Achievements, 2)
	}
}

// A single unordered pass must never double-count or regress, even though
// it may legitimately leave late transitions unapplied.
func TestSinglePassNeverOverCounts(t *testing.T) {
	pages := []string{"/c/ans", "/c", "/b/ans", "/b", "/a/ans", "/a"}
	maxScore := 50 + 100 + 400

	e := newTestEngine(t)
	for _, page := range pages {
		e.visit(t, "alice", page)
	}

	acct := e.account(t, "alice")
	assert.LessOrEqual(t, acct.Score, maxScore)

	progress, err := e.svc.GetProgress("demo", "alice")
	require.NoError(t, err)
	assert.LessOrEqual(t, progress.SolvedCount, progress.FoundCount)
}

func TestRateLevel(t *testing.T) {
	e := newTestEngine(t)

	err := e.svc.RateLevel("demo", "alice", "missing", 3)
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)

	err = e.svc.RateLevel("demo", "alice", "one", 3)
	require.Error(t, err, "unsolved levels cannot be rated")
	appErr, ok = shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	require.NoError(t, e.svc.RateLevel("demo", "alice", "one", 4))

	state, err := e.sqlSvc.GetLevelState("demo", "alice", "one")
	require.NoError(t, err)
	require.NotNil(t, state.Rating)
	assert.Equal(t, 4, *state.Rating)
}

func TestGetProgress(t *testing.T) {
	e := newTestEngine(t)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	e.visit(t, "alice", "/b")
	e.visit(t, "alice", "/secret")
	e.visit(t, "alice", "/hidden/luck")

	progress, err := e.svc.GetProgress("demo", "alice")
	require.NoError(t, err)

	assert.Equal(t, "two", progress.CurrentLevel)
	assert.Equal(t, 50+25, progress.Score)
	assert.Equal(t, 3, progress.FoundCount)
	assert.Equal(t, 1, progress.SolvedCount)
	require.Len(t, progress.Achievements, 1)
	assert.Equal(t, "Lucky Find", progress.Achievements[0].Title)
	assert.Equal(t, "D", progress.Achievements[0].Rank)

	secretSeen := false
	for _, lvl := range progress.Levels {
		if lvl.Level == "shadow" {
			secretSeen = true
			assert.True(t, lvl.IsSecret)
			assert.Nil(t, lvl.CompletionTime)
		}
	}
	assert.True(t, secretSeen)
}

func seedGhostRiddle(t *testing.T, db *gorm.DB) {
	t.Helper()

	mustJSON := func(v []string) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	require.NoError(t, db.Create(&model.Riddle{
		Alias:     "ghost",
		FullName:  "Ghost Riddle",
		RootPaths: mustJSON([]string{"https://ghost.riddlehouse.net"}),
		Unlisted:  true,
	}).Error)
	require.NoError(t, db.Create(&model.Level{
		ID: "g1", RiddleAlias: "ghost", Name: "one", SetIndex: 1, LevelIndex: 1,
		FrontPaths: mustJSON([]string{"/a"}), AnswerPath: "/a/ans", Rank: "D",
	}).Error)
}

func TestUnlistedRiddleSkipsGlobalScore(t *testing.T) {
	e := newTestEngine(t)
	seedGhostRiddle(t, e.sqlSvc.db)

	visitGhost := func(page string) {
		_, err := e.svc.ProcessVisit("alice", dto.ProcessRequest{
			Riddle: "ghost",
			URL:    "https://ghost.riddlehouse.net" + page,
		})
		require.NoError(t, err)
	}
	visitGhost("/a")
	visitGhost("/a/ans")

	acct, err := e.sqlSvc.GetAccount("ghost", "alice")
	require.NoError(t, err)
	assert.Equal(t, 50, acct.Score, "the per-riddle score still accrues")

	var global []model.PlayerScore
	require.NoError(t, e.sqlSvc.db.Find(&global).Error)
	assert.Empty(t, global, "unlisted solves stay off the cross-riddle board")

	// The same solve on a listed riddle lands on it.
	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	require.NoError(t, e.sqlSvc.db.Find(&global).Error)
	require.Len(t, global, 1)
	assert.Equal(t, "alice", global[0].Username)
	assert.Equal(t, 50, global[0].Score)
}

func TestLeaderboard(t *testing.T) {
	e := newTestEngine(t)

	e.visit(t, "alice", "/a")
	e.visit(t, "alice", "/a/ans")
	e.visit(t, "alice", "/b")
	e.visit(t, "alice", "/b/ans")
	e.visit(t, "bob", "/a")
	e.visit(t, "bob", "/a/ans")

	board, err := e.svc.Leaderboard("demo", 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "alice", board.Entries[0].Username)
	assert.Equal(t, 150, board.Entries[0].Score)
	assert.Equal(t, "bob", board.Entries[1].Username)
	assert.Equal(t, 50, board.Entries[1].Score)

	board, err = e.svc.Leaderboard("demo", 1)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
}
