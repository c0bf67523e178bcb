package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/model"
)

// fakePublisher captures presence calls instead of talking to a broker.
type fakePublisher struct {
	mu    sync.Mutex
	fail  bool
	calls []fakeCall
}

type fakeCall struct {
	Method string
	Body   []byte
}

func (p *fakePublisher) publish(_ context.Context, method string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("broker unreachable")
	}
	p.calls = append(p.calls, fakeCall{Method: method, Body: body})
	return nil
}

func (p *fakePublisher) callsFor(method string) []fakeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []fakeCall
	for _, c := range p.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A unique shared-cache DSN keeps every pooled connection on the same
	// in-memory database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type testEngine struct {
	svc       *ProgressionService
	sqlSvc    *SqlService
	catalog   *CatalogService
	publisher *fakePublisher
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := newTestDB(t)
	seedDemoRiddle(t, db)

	sqlSvc := &SqlService{db: db}
	catalogSvc := &CatalogService{sqlSvc: sqlSvc, cache: make(map[string]*RiddleCatalog)}
	publisher := &fakePublisher{}
	syncSvc := &SyncService{publisher: publisher, timeout: time.Second}
	svc := &ProgressionService{
		sqlSvc:     sqlSvc,
		catalogSvc: catalogSvc,
		syncSvc:    syncSvc,
	}

	return &testEngine{svc: svc, sqlSvc: sqlSvc, catalog: catalogSvc, publisher: publisher}
}

const testRoot = "https://demo.riddlehouse.net"

func seedDemoRiddle(t *testing.T, db *gorm.DB) {
	t.Helper()

	mustJSON := func(v []string) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	require.NoError(t, db.Create(&model.Riddle{
		Alias:     "demo",
		FullName:  "Demo Riddle",
		RootPaths: mustJSON([]string{testRoot}),
	}).Error)

	require.NoError(t, db.Create(&model.LevelSet{
		ID: "set1", RiddleAlias: "demo", SetIndex: 1, Name: "The Gate",
		FinalLevel: "two", CompletionRole: "gatekeeper",
	}).Error)
	require.NoError(t, db.Create(&model.LevelSet{
		ID: "set2", RiddleAlias: "demo", SetIndex: 2, Name: "The Vault",
		FinalLevel: "three",
	}).Error)

	levels := []model.Level{
		{ID: "l1", RiddleAlias: "demo", Name: "one", SetIndex: 1, LevelIndex: 1,
			FrontPaths: mustJSON([]string{"/a"}), AnswerPath: "/a/ans", Rank: "D"},
		{ID: "l2", RiddleAlias: "demo", Name: "two", SetIndex: 1, LevelIndex: 2,
			FrontPaths: mustJSON([]string{"/b"}), AnswerPath: "/b/ans", Rank: "C"},
		{ID: "l3", RiddleAlias: "demo", Name: "three", SetIndex: 2, LevelIndex: 1,
			FrontPaths: mustJSON([]string{"/c"}), AnswerPath: "/c/ans", Rank: "A"},
		{ID: "ls", RiddleAlias: "demo", Name: "shadow", IsSecret: true,
			FrontPaths: mustJSON([]string{"/secret"}), AnswerPath: "/secret/ans", Rank: "B"},
	}
	for i := range levels {
		require.NoError(t, db.Create(&levels[i]).Error)
	}

	requirements := []model.LevelRequirement{
		{ID: "r1", RiddleAlias: "demo", LevelName: "two", Requires: "one"},
		{ID: "r2", RiddleAlias: "demo", LevelName: "three", Requires: "two"},
	}
	for i := range requirements {
		require.NoError(t, db.Create(&requirements[i]).Error)
	}

	cheevos := []model.Achievement{
		{ID: "a1", RiddleAlias: "demo", Title: "Lucky Find", Rank: "D", Operator: "or",
			Paths: mustJSON([]string{"/hidden/luck", "/hidden/charm"})},
		{ID: "a2", RiddleAlias: "demo", Title: "Cartographer", Rank: "B", Operator: "and",
			Paths: mustJSON([]string{"/rooms/east", "/rooms/west", "/rooms/north"})},
	}
	for i := range cheevos {
		require.NoError(t, db.Create(&cheevos[i]).Error)
	}
}

// visit submits one page URL for a player and fails the test on error.
func (e *testEngine) visit(t *testing.T, username, page string) *dto.ProcessResponse {
	t.Helper()
	resp, err := e.svc.ProcessVisit(username, dto.ProcessRequest{
		Riddle: "demo",
		URL:    testRoot + page,
	})
	require.NoError(t, err)
	return resp
}

func (e *testEngine) account(t *testing.T, username string) *model.PlayerRiddleAccount {
	t.Helper()
	acct, err := e.sqlSvc.GetAccount("demo", username)
	require.NoError(t, err)
	return acct
}

// appliedKinds filters a response down to the transitions that fired.
func appliedKinds(resp *dto.ProcessResponse) []string {
	var kinds []string
	for _, ev := range resp.Events {
		if ev.Applied && ev.Kind != EventVisitPage.String() {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}
