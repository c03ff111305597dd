package match

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// Kind names a semantic match event.
type Kind string

const (
	KindKickoff        Kind = "kickoff"
	KindGoal           Kind = "goal"
	KindGoalDisallowed Kind = "goal_disallowed"
	KindScoreUpdate    Kind = "score_update"
	KindHalfTime       Kind = "half_time"
	KindFullTime       Kind = "full_time"
)

// Half distinguishes first and second half kickoffs.
type Half int

const (
	FirstHalf Half = iota + 1
	SecondHalf
)

// Event is one classified semantic event. Goal is set for goal events and
// best-effort for disallowed goals (nil when no candidate was found). Side
// is the team the event is attributed to; SideUnknown with Ambiguous set
// means name matching failed and the attribution is a guess.
type Event struct {
	Kind      Kind
	Half      Half
	Goal      *Goal
	Side      Side
	Ambiguous bool
}

// Result is the classifier output. Reallocated signals a scorer correction:
// the stored goal list must be updated silently, with no notification.
type Result struct {
	Events      []Event
	Reallocated bool
}

// --------------------------------------------------------------------------
// Classifier
// --------------------------------------------------------------------------

// Classify derives semantic events from a state diff. previous may be nil or
// carry a partial row; an unknown previous status counts as "not in play"
// for kickoff detection only. lastNotified is the persisted goal list from
// the notification state and, when non-nil, is preferred over previous.Goals
// as the baseline for goal diffing. teams supplies fixture team names for
// goal attribution and may be zero when the fixture is unknown.
//
// One delivery can yield several events (a goal at the half-time whistle
// produces both Goal and HalfTime); callers process each independently.
func Classify(current Record, previous *Record, lastNotified []Goal, teams Teams) Result {
	var res Result

	// Rule 1: score decrease means a goal was disallowed. Fires per
	// decreased side and suppresses goal detection for this delivery —
	// a decrease must never also be read as a goal.
	suppressed := false
	if previous != nil {
		for _, side := range decreasedSides(current, *previous) {
			res.Events = append(res.Events, disallowedEvent(current, *previous, side, teams))
			suppressed = true
		}
	}

	// Rules 2 and 3: goal diffing against the best available baseline.
	baseline, baselineKnown := goalBaseline(previous, lastNotified)
	if !suppressed {
		scoreUnchanged := previous == nil ||
			(current.HomeScore == previous.HomeScore && current.AwayScore == previous.AwayScore)

		if scoreUnchanged && baselineKnown && IsReallocation(current.Goals, baseline) {
			res.Reallocated = true
		} else {
			for _, g := range DiffGoals(current.Goals, baseline) {
				goal := g
				side := SideForTeam(goal.Team, teams)
				if side == SideUnknown && goal.TeamID == "" {
					// Attribution failed; degrade to a best guess
					// rather than dropping the event.
					res.Events = append(res.Events, Event{Kind: KindGoal, Goal: &goal, Side: side, Ambiguous: true})
					continue
				}
				res.Events = append(res.Events, Event{Kind: KindGoal, Goal: &goal, Side: side})
			}
		}

		// Rule 3: score moved but the feed populated no goals array on
		// either side — the manual correction path.
		if len(res.Events) == 0 && !res.Reallocated &&
			previous != nil && !scoreUnchanged &&
			len(current.Goals) == 0 && len(baseline) == 0 {
			res.Events = append(res.Events, Event{Kind: KindScoreUpdate})
		}
	}

	// Rule 4: kickoff. A restart out of the interval is a second-half
	// kickoff irrespective of score; otherwise 0-0 going in play with a
	// non-playing (or unknown) previous status is the opening whistle.
	prevStatus := ""
	if previous != nil {
		prevStatus = previous.Status
	}
	if current.Status == StatusInPlay {
		switch {
		case IsPaused(prevStatus):
			res.Events = append(res.Events, Event{Kind: KindKickoff, Half: SecondHalf})
		case current.HomeScore == 0 && current.AwayScore == 0 && prevStatus != StatusInPlay:
			res.Events = append(res.Events, Event{Kind: KindKickoff, Half: FirstHalf})
		}
	}

	// Rule 5: half-time whistle.
	if prevStatus == StatusInPlay && IsPaused(current.Status) {
		res.Events = append(res.Events, Event{Kind: KindHalfTime})
	}

	// Rule 6: full-time whistle.
	if IsFinished(current.Status) && !IsFinished(prevStatus) {
		res.Events = append(res.Events, Event{Kind: KindFullTime})
	}

	return res
}

// decreasedSides returns the sides whose score went down.
func decreasedSides(current, previous Record) []Side {
	var sides []Side
	if current.HomeScore < previous.HomeScore {
		sides = append(sides, SideHome)
	}
	if current.AwayScore < previous.AwayScore {
		sides = append(sides, SideAway)
	}
	return sides
}

// disallowedEvent builds a GoalDisallowed event with best-effort scorer and
// minute attribution for the decreased side.
func disallowedEvent(current, previous Record, side Side, teams Teams) Event {
	matcher := TeamMatcher{Name: teams.Name(side)}
	ev := Event{Kind: KindGoalDisallowed, Side: side, Ambiguous: teams.Name(side) == ""}

	// A current goal for the side that previous never had.
	prevSet := GoalSet(previous.Goals)
	for i := range current.Goals {
		g := current.Goals[i]
		if !matcher.Matches(g) {
			continue
		}
		if _, ok := prevSet[g.Key()]; !ok {
			ev.Goal = &g
			return ev
		}
	}

	// The goal removed from the record: present previously, gone now.
	curSet := GoalSet(current.Goals)
	for i := range previous.Goals {
		g := previous.Goals[i]
		if !matcher.Matches(g) {
			continue
		}
		if _, ok := curSet[g.Key()]; !ok {
			ev.Goal = &g
			return ev
		}
	}

	// Fall back to the latest goal previously on record for the side.
	ev.Goal = LatestGoalFor(previous.Goals, matcher)
	return ev
}

// goalBaseline picks the "previously notified" goal set: the persisted
// notification state when available, else the previous record's goals.
func goalBaseline(previous *Record, lastNotified []Goal) ([]Goal, bool) {
	if lastNotified != nil {
		return lastNotified, true
	}
	if previous != nil {
		return previous.Goals, true
	}
	return nil, false
}
