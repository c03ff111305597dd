package notify

import (
	"fmt"

	"github.com/fiveaside/matchpulse/internal/match"
)

// Message is a formatted push notification.
type Message struct {
	Title string
	Body  string
}

// Scoreline formats the plain "{home} {h}-{a} {away}" line.
func Scoreline(cur match.Record, teams match.Teams) string {
	return fmt.Sprintf("%s %d-%d %s", teams.Home, cur.HomeScore, cur.AwayScore, teams.Away)
}

// bracketScoreline wraps the scoring side's number in brackets. An unknown
// side defaults to home — a best guess, logged upstream as ambiguous.
func bracketScoreline(cur match.Record, teams match.Teams, side match.Side) string {
	if side == match.SideAway {
		return fmt.Sprintf("%s %d - [%d] %s", teams.Home, cur.HomeScore, cur.AwayScore, teams.Away)
	}
	return fmt.Sprintf("%s [%d] - %d %s", teams.Home, cur.HomeScore, cur.AwayScore, teams.Away)
}

// KickoffMessage formats the first or second half kickoff push.
func KickoffMessage(half match.Half, teams match.Teams) Message {
	body := "Kickoff!"
	if half == match.SecondHalf {
		body = "Second half underway"
	}
	return Message{
		Title: fmt.Sprintf("%s vs %s", teams.Home, teams.Away),
		Body:  body,
	}
}

// GoalMessage formats a goal or own-goal push.
func GoalMessage(goal match.Goal, side match.Side, cur match.Record, teams match.Teams) Message {
	if goal.OwnGoal {
		return Message{
			Title: "Own Goal",
			Body: fmt.Sprintf("%d' Own goal by %s\n%s",
				goal.Minute, goal.Scorer, Scoreline(cur, teams)),
		}
	}

	scoringTeam := teams.Name(side)
	if scoringTeam == "" {
		scoringTeam = goal.Team
	}
	return Message{
		Title: fmt.Sprintf("%s scores!", scoringTeam),
		Body: fmt.Sprintf("%d' %s\n%s",
			goal.Minute, goal.Scorer, bracketScoreline(cur, teams, side)),
	}
}

// DisallowedMessage formats a VAR goal-disallowed push. Scorer and minute
// are best-effort; when attribution failed the body degrades to team only.
func DisallowedMessage(ev match.Event, cur match.Record, teams match.Teams) Message {
	team := teams.Name(ev.Side)
	if team == "" && ev.Goal != nil {
		team = ev.Goal.Team
	}
	if ev.Goal == nil {
		return Message{
			Title: "Goal Disallowed",
			Body:  fmt.Sprintf("Goal for %s was disallowed by VAR\n%s", team, Scoreline(cur, teams)),
		}
	}
	return Message{
		Title: "Goal Disallowed",
		Body: fmt.Sprintf("%d' %s's goal for %s was disallowed by VAR\n%s",
			ev.Goal.Minute, ev.Goal.Scorer, team, Scoreline(cur, teams)),
	}
}

// HalfTimeMessage formats the half-time push.
func HalfTimeMessage(cur match.Record, teams match.Teams) Message {
	return Message{
		Title: "Half-Time",
		Body:  fmt.Sprintf("%s %d'", Scoreline(cur, teams), cur.Minute),
	}
}

// ScoreUpdateMessage formats the manual-correction push used when the score
// moved with no goals array populated.
func ScoreUpdateMessage(cur match.Record, teams match.Teams) Message {
	return Message{
		Title: "Score Update",
		Body:  Scoreline(cur, teams),
	}
}

// FullTimeTitle formats the shared full-time title.
func FullTimeTitle(cur match.Record, teams match.Teams) string {
	return fmt.Sprintf("FT: %s", Scoreline(cur, teams))
}

// FullTimeBody formats the personalized full-time body: whether the user's
// pick was correct and what share of players got the fixture right. Small
// shares get an "Only" prefix.
func FullTimeBody(correct bool, pct int) string {
	phrase := fmt.Sprintf("%d%% of players got this fixture correct", pct)
	if pct <= 20 {
		phrase = "Only " + phrase
	}
	if correct {
		return "Got it right! " + phrase
	}
	return "Wrong pick " + phrase
}

// RoundCompleteMessage formats the one-shot round-complete push.
func RoundCompleteMessage(round int) Message {
	return Message{
		Title: fmt.Sprintf("Round %d Complete!", round),
		Body:  "All games finished. Check your results!",
	}
}
