// services/classifier.go
package services

import (
	"github.com/riddlehouse/riddle_api/model"
)

// EventKind identifies one semantic event derived from a visited path.
type EventKind int

const (
	EventCompleteNormal EventKind = iota
	EventAdvanceNormal
	EventFindSecret
	EventCompleteSecret
	EventUnlockAchievement
	EventVisitPage
)

func (k EventKind) String() string {
	switch k {
	case EventCompleteNormal:
		return "complete_normal"
	case EventAdvanceNormal:
		return "advance_normal"
	case EventFindSecret:
		return "find_secret"
	case EventCompleteSecret:
		return "complete_secret"
	case EventUnlockAchievement:
		return "unlock_achievement"
	case EventVisitPage:
		return "visit_page"
	default:
		return "unknown"
	}
}

// Event is one classified outcome of a path visit.
type Event struct {
	Kind   EventKind
	Level  *model.Level
	Cheevo *model.Achievement
}

// classify maps a normalized path to zero or more semantic events. The
// checks are independent and non-exclusive: a single path can be the
// answer of the current level and the front page of the next one, so
// chained levels must produce both events from one visit.
func (svc *ProgressionService) classify(cat *RiddleCatalog, acct *model.PlayerRiddleAccount, username, path string) ([]Event, error) {
	var events []Event

	// Answer page of an unlocked-but-unsolved normal level.
	for _, level := range cat.AnswerLevels(path) {
		if level.IsSecret {
			continue
		}
		open, err := svc.sqlSvc.IsUnlockedUnsolved(cat.Riddle.Alias, username, level.Name)
		if err != nil {
			return nil, err
		}
		if open {
			events = append(events, Event{Kind: EventCompleteNormal, Level: level})
		}
	}

	// Front page of the player's computed next normal level.
	if next := cat.NextLevel(acct.CurrentLevel); next != nil {
		for _, level := range cat.FrontLevels(path) {
			if !level.IsSecret && level.Name == next.Name {
				events = append(events, Event{Kind: EventAdvanceNormal, Level: level})
			}
		}
	}

	// Front page of any secret level; secrets sit outside the linear order.
	for _, level := range cat.FrontLevels(path) {
		if level.IsSecret {
			events = append(events, Event{Kind: EventFindSecret, Level: level})
		}
	}

	// Answer page of a secret level. The no-skip guard lives in the
	// transition, not here.
	for _, level := range cat.AnswerLevels(path) {
		if level.IsSecret {
			events = append(events, Event{Kind: EventCompleteSecret, Level: level})
		}
	}

	// Achievement conditions.
	for i := range cat.cheevos {
		rule := &cat.cheevos[i]
		satisfied, err := EvaluateCondition(rule.Operator, rule.Paths, path, func(p string) (bool, error) {
			return svc.sqlSvc.HasVisited(cat.Riddle.Alias, username, p)
		})
		if err != nil {
			return nil, err
		}
		if satisfied {
			events = append(events, Event{Kind: EventUnlockAchievement, Cheevo: rule.Achievement})
		}
	}

	return events, nil
}
