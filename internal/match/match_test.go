package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoalKeyNormalizesScorer(t *testing.T) {
	t.Parallel()

	a := Goal{Scorer: "  Danny  Ings ", Minute: 12, TeamID: "t1"}
	b := Goal{Scorer: "danny ings", Minute: 12, TeamID: "t1"}
	assert.Equal(t, a.Key(), b.Key())

	c := Goal{Scorer: "danny ings", Minute: 13, TeamID: "t1"}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestDiffGoalsIgnoresOrder(t *testing.T) {
	t.Parallel()

	prev := []Goal{
		{Scorer: "Saka", Minute: 10, TeamID: "t1"},
		{Scorer: "Odegaard", Minute: 25, TeamID: "t1"},
	}
	cur := []Goal{
		{Scorer: "Odegaard", Minute: 25, TeamID: "t1"},
		{Scorer: "Saka", Minute: 10, TeamID: "t1"},
		{Scorer: "Havertz", Minute: 61, TeamID: "t1"},
	}

	added := DiffGoals(cur, prev)
	assert.Len(t, added, 1)
	assert.Equal(t, "Havertz", added[0].Scorer)
}

func TestSameSlots(t *testing.T) {
	t.Parallel()

	a := []Goal{{Scorer: "Saka", Minute: 10, TeamID: "t1"}}
	b := []Goal{{Scorer: "Martinelli", Minute: 10, TeamID: "t1"}}
	c := []Goal{{Scorer: "Saka", Minute: 11, TeamID: "t1"}}

	assert.True(t, SameSlots(a, b))
	assert.False(t, SameSlots(a, c))
	assert.False(t, SameSlots(a, nil))
}

func TestIsReallocation(t *testing.T) {
	t.Parallel()

	prev := []Goal{{Scorer: "Saka", Minute: 10, TeamID: "t1"}}

	// Same slot, different scorer: a correction, not a new goal.
	assert.True(t, IsReallocation([]Goal{{Scorer: "Martinelli", Minute: 10, TeamID: "t1"}}, prev))

	// Same list: nothing changed.
	assert.False(t, IsReallocation([]Goal{{Scorer: "Saka", Minute: 10, TeamID: "t1"}}, prev))

	// Extra goal: not a reallocation.
	assert.False(t, IsReallocation([]Goal{
		{Scorer: "Saka", Minute: 10, TeamID: "t1"},
		{Scorer: "Martinelli", Minute: 30, TeamID: "t1"},
	}, prev))
}

func TestSideForTeam(t *testing.T) {
	t.Parallel()

	teams := Teams{Home: "Manchester United", Away: "Newcastle United FC"}

	tests := []struct {
		name string
		team string
		want Side
	}{
		{"exact home", "Manchester United", SideHome},
		{"exact away normalized", "newcastle united fc", SideAway},
		{"substring away", "Newcastle", SideAway},
		{"ambiguous", "United", SideUnknown},
		{"empty", "", SideUnknown},
		{"no match", "Arsenal", SideUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SideForTeam(tt.team, teams))
		})
	}
}

func TestTeamMatcherPrefersTeamID(t *testing.T) {
	t.Parallel()

	m := TeamMatcher{Name: "Arsenal", ID: "t1"}
	assert.True(t, m.Matches(Goal{Team: "Someone Else", TeamID: "t1"}))
	assert.False(t, m.Matches(Goal{Team: "Arsenal", TeamID: "t2"}))

	// Without ids, fall back to name containment.
	m = TeamMatcher{Name: "Arsenal FC"}
	assert.True(t, m.Matches(Goal{Team: "Arsenal"}))
	assert.False(t, m.Matches(Goal{Team: "Chelsea"}))
}
