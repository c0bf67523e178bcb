// services/cheevo.go
package services

import (
	"github.com/riddlehouse/riddle_api/shared"
)

// EvaluateCondition decides whether an achievement's unlock condition is
// satisfied by the arrival of path. An "or" condition (single paths
// included) fires the instant any listed path matches. An "and" condition
// fires only once every other listed path already appears in the player's
// visit history, so the achievement unlocks on whichever path completes
// the set regardless of visit order. The caller must record the current
// visit before evaluating, or the completing path would not count.
func EvaluateCondition(operator string, paths []string, path string, visited func(string) (bool, error)) (bool, error) {
	matched := false
	for _, p := range paths {
		if p == path {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	if operator != shared.ConditionAnd {
		return true, nil
	}

	for _, p := range paths {
		if p == path {
			continue
		}
		seen, err := visited(p)
		if err != nil {
			return false, err
		}
		if !seen {
			return false, nil
		}
	}
	return true, nil
}
