package services

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddlehouse/riddle_api/model"
	"github.com/riddlehouse/riddle_api/shared"
)

func demoCatalog(t *testing.T) *RiddleCatalog {
	t.Helper()

	mustJSON := func(v []string) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	riddle := &model.Riddle{
		Alias:     "demo",
		RootPaths: mustJSON([]string{testRoot}),
	}
	sets := []model.LevelSet{
		{ID: "set1", RiddleAlias: "demo", SetIndex: 1, FinalLevel: "two", CompletionRole: "gatekeeper"},
		{ID: "set2", RiddleAlias: "demo", SetIndex: 2, FinalLevel: "three"},
	}
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
	reqs := []model.LevelRequirement{
		{ID: "r1", RiddleAlias: "demo", LevelName: "two", Requires: "one"},
		{ID: "r2", RiddleAlias: "demo", LevelName: "three", Requires: "two"},
	}
	cheevos := []model.Achievement{
		{ID: "a1", RiddleAlias: "demo", Title: "Lucky Find", Rank: "D", Operator: "or",
			Paths: mustJSON([]string{"/hidden/luck", "/hidden/charm"})},
	}

	return NewRiddleCatalog(riddle, levels, sets, reqs, cheevos)
}

func TestNormalizePagePath(t *testing.T) {
	cases := map[string]string{
		"":              "/index.htm",
		"/":             "/index.htm",
		"/a":            "/a.htm",
		"a":             "/a.htm",
		"/a/":           "/a/index.htm",
		"/a.htm":        "/a.htm",
		"/a.php":        "/a.php",
		"//a//b":        "/a/b.htm",
		"/rooms/east":   "/rooms/east.htm",
		"/img/logo.png": "/img/logo.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePagePath(in), "input %q", in)
	}
}

func TestNormalizePath(t *testing.T) {
	cat := demoCatalog(t)

	t.Run("inside root", func(t *testing.T) {
		path, err := cat.NormalizePath(testRoot + "/a")
		require.NoError(t, err)
		assert.Equal(t, "/a.htm", path)
	})

	t.Run("query and fragment dropped", func(t *testing.T) {
		path, err := cat.NormalizePath(testRoot + "/a?x=1#frag")
		require.NoError(t, err)
		assert.Equal(t, "/a.htm", path)
	})

	t.Run("exactly root", func(t *testing.T) {
		path, err := cat.NormalizePath(testRoot)
		require.NoError(t, err)
		assert.Equal(t, "/index.htm", path)
	})

	t.Run("outside root", func(t *testing.T) {
		_, err := cat.NormalizePath("https://elsewhere.example.com/a")
		require.Error(t, err)
		appErr, ok := shared.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, 400, appErr.StatusCode)
	})

	t.Run("relative url", func(t *testing.T) {
		_, err := cat.NormalizePath("/a")
		require.Error(t, err)
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := cat.NormalizePath("")
		require.Error(t, err)
	})
}

func TestNextLevel(t *testing.T) {
	cat := demoCatalog(t)

	require.NotNil(t, cat.NextLevel(""))
	assert.Equal(t, "one", cat.NextLevel("").Name)
	assert.Equal(t, "two", cat.NextLevel("one").Name)
	assert.Equal(t, "three", cat.NextLevel("two").Name)
	assert.Nil(t, cat.NextLevel("three"))
	assert.Nil(t, cat.NextLevel(shared.AccountCompleted))

	// Secrets never appear in the linear order.
	for _, level := range []string{"", "one", "two"} {
		next := cat.NextLevel(level)
		if next != nil {
			assert.False(t, next.IsSecret)
		}
	}
}

func TestPathIndexes(t *testing.T) {
	cat := demoCatalog(t)

	fronts := cat.FrontLevels("/a.htm")
	require.Len(t, fronts, 1)
	assert.Equal(t, "one", fronts[0].Name)

	answers := cat.AnswerLevels("/a/ans.htm")
	require.Len(t, answers, 1)
	assert.Equal(t, "one", answers[0].Name)

	assert.Empty(t, cat.FrontLevels("/nowhere.htm"))
	assert.NotNil(t, cat.LevelForPath("/secret.htm"))
	assert.Nil(t, cat.LevelForPath("/nowhere.htm"))
}

func TestFinalLevels(t *testing.T) {
	cat := demoCatalog(t)

	assert.False(t, cat.IsFinalOfSet(cat.Level("one")))
	assert.True(t, cat.IsFinalOfSet(cat.Level("two")))
	assert.True(t, cat.IsFinalOfSet(cat.Level("three")))

	// "three" is the last ordered level, so with no designated final it
	// beats the riddle; set finals earlier in the order do not.
	assert.False(t, cat.IsFinalLevel(cat.Level("one")))
	assert.False(t, cat.IsFinalLevel(cat.Level("two")))
	assert.True(t, cat.IsFinalLevel(cat.Level("three")))
	assert.False(t, cat.IsFinalLevel(cat.Level("shadow")))
}

func TestAncestorsOf(t *testing.T) {
	cat := demoCatalog(t)

	names := func(levels []*model.Level) []string {
		var out []string
		for _, l := range levels {
			out = append(out, l.Name)
		}
		return out
	}

	// "two" closes set 1, so the walk from "three" stops there instead of
	// dragging in everything behind it.
	assert.Equal(t, []string{"two", "three"}, names(cat.AncestorsOf("three")))

	// When the set-final level is the root itself the walk continues past it.
	assert.Equal(t, []string{"one", "two"}, names(cat.AncestorsOf("two")))

	assert.Equal(t, []string{"one"}, names(cat.AncestorsOf("one")))
	assert.Nil(t, cat.AncestorsOf("missing"))
}

func TestCatalogConcurrentAccess(t *testing.T) {
	e := newTestEngine(t)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				if got := e.catalog.Id(); got != CATALOG_SVC {
					errs <- assert.AnError
					return
				}
				if _, err := e.catalog.Catalog("demo"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, e.catalog.ReloadRiddle("demo"))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestKnown(t *testing.T) {
	cat := demoCatalog(t)

	assert.True(t, cat.Known("/a.htm"))
	assert.True(t, cat.Known("/a/ans.htm"))
	assert.True(t, cat.Known("/secret.htm"))
	assert.True(t, cat.Known("/hidden/luck.htm"))
	assert.False(t, cat.Known("/nowhere.htm"))
}
