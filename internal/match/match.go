// Package match holds the live-match domain model: score records, goal
// events, and the classifier that turns a (current, previous) record pair
// into semantic events.
package match

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Statuses
// --------------------------------------------------------------------------

// Match statuses as delivered by the live feed. HALF_TIME and FT are feed
// aliases for PAUSED and FINISHED respectively.
const (
	StatusScheduled = "SCHEDULED"
	StatusInPlay    = "IN_PLAY"
	StatusPaused    = "PAUSED"
	StatusHalfTime  = "HALF_TIME"
	StatusFinished  = "FINISHED"
	StatusFT        = "FT"
)

// IsFinished reports whether a status means full time.
func IsFinished(status string) bool {
	return status == StatusFinished || status == StatusFT
}

// IsPaused reports whether a status means the half-time interval.
func IsPaused(status string) bool {
	return status == StatusPaused || status == StatusHalfTime
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Record is one live-score row. Two instances matter per webhook delivery:
// the current row and, when the envelope carries one, the previous row.
type Record struct {
	MatchID   string `json:"match_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Status    string `json:"status"`
	Minute    int    `json:"minute"`
	Goals     []Goal `json:"goals"`
	RedCards  int    `json:"red_cards"`
}

// Goal is a single goal entry from the live feed's goals array.
type Goal struct {
	Team    string `json:"team"`
	Scorer  string `json:"scorer"`
	Minute  int    `json:"minute"`
	TeamID  string `json:"team_id,omitempty"`
	OwnGoal bool   `json:"own_goal,omitempty"`
}

// Key returns the goal's deduplication identity: normalized scorer name,
// minute, and team id. Array order in the feed is not significant; goal sets
// are compared by these keys.
func (g Goal) Key() string {
	return fmt.Sprintf("%s|%d|%s", NormalizeName(g.Scorer), g.Minute, g.TeamID)
}

// SlotKey identifies the (minute, team) slot a goal occupies, ignoring the
// scorer. Used to detect reallocations.
func (g Goal) SlotKey() string {
	return fmt.Sprintf("%d|%s", g.Minute, g.TeamID)
}

// NormalizeName lowercases and collapses whitespace for name comparison.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// --------------------------------------------------------------------------
// Goal set operations
// --------------------------------------------------------------------------

// GoalSet indexes goals by identity key for set comparison.
func GoalSet(goals []Goal) map[string]Goal {
	set := make(map[string]Goal, len(goals))
	for _, g := range goals {
		set[g.Key()] = g
	}
	return set
}

// DiffGoals returns the goals present in current but absent from previous,
// compared by identity key.
func DiffGoals(current, previous []Goal) []Goal {
	prev := GoalSet(previous)
	var added []Goal
	for _, g := range current {
		if _, ok := prev[g.Key()]; !ok {
			added = append(added, g)
		}
	}
	return added
}

// SameSlots reports whether two goal lists occupy the same (minute, team)
// slots with the same multiplicity.
func SameSlots(a, b []Goal) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, g := range a {
		counts[g.SlotKey()]++
	}
	for _, g := range b {
		counts[g.SlotKey()]--
		if counts[g.SlotKey()] < 0 {
			return false
		}
	}
	return true
}

// IsReallocation reports whether current is a scorer correction of previous:
// same goal count, identical (minute, team) slots, but at least one scorer
// name differs. A reallocation is not a new goal.
func IsReallocation(current, previous []Goal) bool {
	if len(current) == 0 || len(current) != len(previous) {
		return false
	}
	if !SameSlots(current, previous) {
		return false
	}
	return len(DiffGoals(current, previous)) > 0
}

// LatestGoalFor returns the highest-minute goal attributed to the given team
// side, or nil when none match.
func LatestGoalFor(goals []Goal, team TeamMatcher) *Goal {
	var latest *Goal
	for i := range goals {
		if !team.Matches(goals[i]) {
			continue
		}
		if latest == nil || goals[i].Minute > latest.Minute {
			latest = &goals[i]
		}
	}
	return latest
}
