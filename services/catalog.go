// services/catalog.go
package services

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/riddlehouse/riddle_api/model"
	"github.com/riddlehouse/riddle_api/shared"
)

// CatalogService owns the per-riddle indexed view of levels, level-sets,
// requirement edges and achievements. Catalogs are built from the store on
// first use and cached until an explicit Reload; nothing here is ambient
// global state.
type CatalogService struct {
	context.DefaultService
	sqlSvc *SqlService

	mu    sync.RWMutex
	cache map[string]*RiddleCatalog
}

const CATALOG_SVC = "catalog_svc"

func (svc *CatalogService) Id() string {
	return CATALOG_SVC
}

func (svc *CatalogService) Configure(ctx *context.Context) error {
	svc.cache = make(map[string]*RiddleCatalog)
	return svc.DefaultService.Configure(ctx)
}

func (svc *CatalogService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	return nil
}

// Catalog returns the cached view for a riddle, building it on first use.
func (svc *CatalogService) Catalog(alias string) (*RiddleCatalog, error) {
	svc.mu.RLock()
	cat, ok := svc.cache[alias]
	svc.mu.RUnlock()
	if ok {
		return cat, nil
	}
	return svc.Reload(alias)
}

// Reload rebuilds a riddle's catalog from the store. Called after admin
// content edits.
func (svc *CatalogService) Reload(alias string) (*RiddleCatalog, error) {
	cat, err := svc.build(alias)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	svc.cache[alias] = cat
	svc.mu.Unlock()

	log.Printf("Catalog loaded for riddle %s: %d levels, %d achievements", alias, len(cat.byName), len(cat.cheevos))
	return cat, nil
}

// ReloadRiddle is the handler-facing form of Reload.
func (svc *CatalogService) ReloadRiddle(alias string) error {
	_, err := svc.Reload(alias)
	return err
}

func (svc *CatalogService) build(alias string) (*RiddleCatalog, error) {
	riddle, err := svc.sqlSvc.GetRiddle(alias)
	if err != nil {
		return nil, err
	}
	levels, err := svc.sqlSvc.ListLevels(alias)
	if err != nil {
		return nil, err
	}
	sets, err := svc.sqlSvc.ListLevelSets(alias)
	if err != nil {
		return nil, err
	}
	reqs, err := svc.sqlSvc.ListRequirements(alias)
	if err != nil {
		return nil, err
	}
	cheevos, err := svc.sqlSvc.ListAchievements(alias)
	if err != nil {
		return nil, err
	}
	return NewRiddleCatalog(riddle, levels, sets, reqs, cheevos), nil
}

// cheevoRule is an achievement with its unlock condition parsed out of the
// stored JSON.
type cheevoRule struct {
	Achievement *model.Achievement
	Operator    string
	Paths       []string
}

// RiddleCatalog is the read-mostly indexed view for a single riddle.
type RiddleCatalog struct {
	Riddle *model.Riddle

	roots    []string
	ordered  []*model.Level // normal levels by (setIndex, index)
	secrets  []*model.Level
	byName   map[string]*model.Level
	fronts   map[string][]*model.Level
	answers  map[string][]*model.Level
	sets     map[int]*model.LevelSet
	requires map[string][]string
	cheevos  []cheevoRule
}

func NewRiddleCatalog(riddle *model.Riddle, levels []model.Level, sets []model.LevelSet, reqs []model.LevelRequirement, cheevos []model.Achievement) *RiddleCatalog {
	cat := &RiddleCatalog{
		Riddle:   riddle,
		byName:   make(map[string]*model.Level),
		fronts:   make(map[string][]*model.Level),
		answers:  make(map[string][]*model.Level),
		sets:     make(map[int]*model.LevelSet),
		requires: make(map[string][]string),
	}

	if riddle.RootPaths != nil {
		if err := json.Unmarshal(riddle.RootPaths, &cat.roots); err != nil {
			log.Printf("Failed to unmarshal root paths for riddle %s: %v", riddle.Alias, err)
		}
	}

	for i := range sets {
		set := &sets[i]
		cat.sets[set.SetIndex] = set
	}

	for i := range levels {
		level := &levels[i]
		cat.byName[level.Name] = level

		var fronts []string
		if level.FrontPaths != nil {
			if err := json.Unmarshal(level.FrontPaths, &fronts); err != nil {
				log.Printf("Failed to unmarshal front paths for level %s: %v", level.Name, err)
			}
		}
		for _, p := range fronts {
			p = normalizePagePath(p)
			cat.fronts[p] = append(cat.fronts[p], level)
		}
		if level.AnswerPath != "" {
			p := normalizePagePath(level.AnswerPath)
			cat.answers[p] = append(cat.answers[p], level)
		}

		if level.IsSecret {
			cat.secrets = append(cat.secrets, level)
		} else {
			cat.ordered = append(cat.ordered, level)
		}
	}

	sort.Slice(cat.ordered, func(i, j int) bool {
		return cat.ordered[i].OrderKey() < cat.ordered[j].OrderKey()
	})

	for i := range reqs {
		req := &reqs[i]
		cat.requires[req.LevelName] = append(cat.requires[req.LevelName], req.Requires)
	}

	for i := range cheevos {
		cheevo := &cheevos[i]
		rule := cheevoRule{Achievement: cheevo, Operator: cheevo.Operator}
		if rule.Operator == "" {
			rule.Operator = shared.ConditionOr
		}
		var paths []string
		if cheevo.Paths != nil {
			if err := json.Unmarshal(cheevo.Paths, &paths); err != nil {
				log.Printf("Failed to unmarshal paths for achievement %s: %v", cheevo.Title, err)
			}
		}
		for _, p := range paths {
			rule.Paths = append(rule.Paths, normalizePagePath(p))
		}
		cat.cheevos = append(cat.cheevos, rule)
	}

	return cat
}

// Level looks up a level by name.
func (cat *RiddleCatalog) Level(name string) *model.Level {
	return cat.byName[name]
}

// NextLevel returns the global successor of current by (setIndex, index)
// order, skipping secret levels. An empty current means "not started" and
// yields the first level; no successor yields nil.
func (cat *RiddleCatalog) NextLevel(current string) *model.Level {
	if len(cat.ordered) == 0 {
		return nil
	}
	if current == "" {
		return cat.ordered[0]
	}
	if current == shared.AccountCompleted {
		return nil
	}
	for i, level := range cat.ordered {
		if level.Name == current {
			if i+1 < len(cat.ordered) {
				return cat.ordered[i+1]
			}
			return nil
		}
	}
	return nil
}

// FrontLevels returns every level registering path as a front path.
func (cat *RiddleCatalog) FrontLevels(path string) []*model.Level {
	return cat.fronts[path]
}

// AnswerLevels returns every level registering path as its answer path.
func (cat *RiddleCatalog) AnswerLevels(path string) []*model.Level {
	return cat.answers[path]
}

// LevelForPath matches either a front path or an answer path.
func (cat *RiddleCatalog) LevelForPath(path string) *model.Level {
	if levels := cat.fronts[path]; len(levels) > 0 {
		return levels[0]
	}
	if levels := cat.answers[path]; len(levels) > 0 {
		return levels[0]
	}
	return nil
}

// SetOf returns the level-set a level belongs to, if any.
func (cat *RiddleCatalog) SetOf(level *model.Level) *model.LevelSet {
	return cat.sets[level.SetIndex]
}

// IsFinalOfSet reports whether completing level closes its set.
func (cat *RiddleCatalog) IsFinalOfSet(level *model.Level) bool {
	set := cat.sets[level.SetIndex]
	return set != nil && set.FinalLevel == level.Name
}

// IsFinalLevel reports whether completing level beats the whole riddle:
// the riddle's designated final level, or the last ordered level when none
// is designated.
func (cat *RiddleCatalog) IsFinalLevel(level *model.Level) bool {
	if level.IsSecret {
		return false
	}
	if cat.Riddle.FinalLevel != "" {
		return cat.Riddle.FinalLevel == level.Name
	}
	n := len(cat.ordered)
	return n > 0 && cat.ordered[n-1].Name == level.Name
}

// AncestorsOf walks the requirement DAG backward from a level, collecting
// every transitively required level. A branch stops expanding at a level
// that is the designated final of its set (it already subsumes everything
// earlier in that set) unless that level is the traversal root. A level
// with no requirements resolves to itself alone.
func (cat *RiddleCatalog) AncestorsOf(name string) []*model.Level {
	root := cat.byName[name]
	if root == nil {
		return nil
	}

	visited := map[string]bool{name: true}
	result := []*model.Level{root}
	queue := []string{name}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		level := cat.byName[cur]
		if level == nil {
			continue
		}
		if cur != name && cat.IsFinalOfSet(level) {
			continue
		}

		for _, req := range cat.requires[cur] {
			if visited[req] {
				continue
			}
			visited[req] = true
			ancestor := cat.byName[req]
			if ancestor == nil {
				log.Printf("Requirement edge %s -> %s references unknown level in riddle %s", cur, req, cat.Riddle.Alias)
				continue
			}
			result = append(result, ancestor)
			queue = append(queue, req)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderKey() != result[j].OrderKey() {
			return result[i].OrderKey() < result[j].OrderKey()
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Known reports whether a normalized path belongs to any registered level
// or achievement condition.
func (cat *RiddleCatalog) Known(path string) bool {
	if len(cat.fronts[path]) > 0 || len(cat.answers[path]) > 0 {
		return true
	}
	for _, rule := range cat.cheevos {
		for _, p := range rule.Paths {
			if p == path {
				return true
			}
		}
	}
	return false
}

// NormalizePath reduces a raw visited URL to the catalog's canonical page
// path: scheme and host validated, root prefix stripped, query/fragment
// dropped, then the same page normalization applied to stored paths.
// Anything that fails here is a MALFORMED_EVENT and never reaches the
// classifier.
func (cat *RiddleCatalog) NormalizePath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", shared.NewBadRequestError(nil, "empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", shared.NewBadRequestError(err, "invalid url")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", shared.NewBadRequestError(nil, "url must be absolute")
	}

	full := u.Scheme + "://" + u.Host + u.Path
	for _, root := range cat.roots {
		root = strings.TrimSuffix(root, "/")
		if full == root {
			return normalizePagePath("/"), nil
		}
		if strings.HasPrefix(full, root+"/") {
			return normalizePagePath(full[len(root):]), nil
		}
	}
	return "", shared.NewBadRequestError(nil, fmt.Sprintf("url outside riddle %s root", cat.Riddle.Alias))
}

// normalizePagePath is applied to stored level/achievement paths and to
// visited paths alike, so both sides of a comparison agree on one form:
// leading slash, collapsed slashes, "index" for directory paths, a ".htm"
// extension when none is present.
func normalizePagePath(p string) string {
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if strings.HasSuffix(p, "/") {
		p += "index"
	}
	if last := p[strings.LastIndex(p, "/")+1:]; !strings.Contains(last, ".") {
		p += ".htm"
	}
	return p
}
