package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fiveaside/matchpulse/internal/match"
)

var msgTeams = match.Teams{Home: "Arsenal", Away: "Chelsea"}

func TestKickoffMessage(t *testing.T) {
	t.Parallel()

	first := KickoffMessage(match.FirstHalf, msgTeams)
	assert.Equal(t, "Arsenal vs Chelsea", first.Title)
	assert.Equal(t, "Kickoff!", first.Body)

	second := KickoffMessage(match.SecondHalf, msgTeams)
	assert.Equal(t, "Second half underway", second.Body)
}

func TestGoalMessageBracketsScoringSide(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 1, AwayScore: 2}

	home := GoalMessage(match.Goal{Scorer: "Saka", Minute: 23}, match.SideHome, cur, msgTeams)
	assert.Equal(t, "Arsenal scores!", home.Title)
	assert.Equal(t, "23' Saka\nArsenal [1] - 2 Chelsea", home.Body)

	away := GoalMessage(match.Goal{Scorer: "Palmer", Minute: 67}, match.SideAway, cur, msgTeams)
	assert.Equal(t, "Chelsea scores!", away.Title)
	assert.Equal(t, "67' Palmer\nArsenal 1 - [2] Chelsea", away.Body)
}

func TestGoalMessageOwnGoal(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 1, AwayScore: 0}
	msg := GoalMessage(match.Goal{Scorer: "Colwill", Minute: 12, OwnGoal: true}, match.SideHome, cur, msgTeams)

	assert.Equal(t, "Own Goal", msg.Title)
	assert.Equal(t, "12' Own goal by Colwill\nArsenal 1-0 Chelsea", msg.Body)
}

func TestDisallowedMessage(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 1, AwayScore: 1}

	ev := match.Event{
		Kind: match.KindGoalDisallowed,
		Side: match.SideHome,
		Goal: &match.Goal{Scorer: "Havertz", Minute: 58},
	}
	msg := DisallowedMessage(ev, cur, msgTeams)
	assert.Equal(t, "Goal Disallowed", msg.Title)
	assert.Equal(t, "58' Havertz's goal for Arsenal was disallowed by VAR\nArsenal 1-1 Chelsea", msg.Body)

	// No candidate goal found: team-only body.
	ev.Goal = nil
	msg = DisallowedMessage(ev, cur, msgTeams)
	assert.Equal(t, "Goal for Arsenal was disallowed by VAR\nArsenal 1-1 Chelsea", msg.Body)
}

func TestHalfTimeMessage(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 2, AwayScore: 0, Minute: 45}
	msg := HalfTimeMessage(cur, msgTeams)

	assert.Equal(t, "Half-Time", msg.Title)
	assert.Equal(t, "Arsenal 2-0 Chelsea 45'", msg.Body)
}

func TestScoreUpdateMessage(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 1, AwayScore: 0}
	msg := ScoreUpdateMessage(cur, msgTeams)

	assert.Equal(t, "Score Update", msg.Title)
	assert.Equal(t, "Arsenal 1-0 Chelsea", msg.Body)
}

func TestFullTimeTitle(t *testing.T) {
	t.Parallel()

	cur := match.Record{HomeScore: 3, AwayScore: 1}
	assert.Equal(t, "FT: Arsenal 3-1 Chelsea", FullTimeTitle(cur, msgTeams))
}

func TestFullTimeBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		correct bool
		pct     int
		want    string
	}{
		{"correct common", true, 65, "Got it right! 65% of players got this fixture correct"},
		{"correct rare", true, 20, "Got it right! Only 20% of players got this fixture correct"},
		{"wrong common", false, 65, "Wrong pick 65% of players got this fixture correct"},
		{"wrong rare", false, 7, "Wrong pick Only 7% of players got this fixture correct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FullTimeBody(tt.correct, tt.pct))
		})
	}
}

func TestRoundCompleteMessage(t *testing.T) {
	t.Parallel()

	msg := RoundCompleteMessage(12)
	assert.Equal(t, "Round 12 Complete!", msg.Title)
	assert.Equal(t, "All games finished. Check your results!", msg.Body)
}
