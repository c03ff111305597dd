// Package fixture maps live match identifiers to prediction fixtures. A
// fixture is the scheduled match users predict on, distinct from the
// live-score row that tracks it in real time.
package fixture

// Source names one of the three parallel fixture/pick table pairs. Sources
// are probed in order; the first one holding a match id is authoritative.
type Source struct {
	Name string // statement suffix: "main", "test", "casual"
}

// Sources in resolution priority order: production, staging/test, the
// casual ruleset.
var Sources = []Source{
	{Name: "main"},
	{Name: "test"},
	{Name: "casual"},
}

// Fixture is one scheduled match within a round.
type Fixture struct {
	Index    int
	Round    int
	HomeTeam string
	AwayTeam string
	MatchID  string
	Source   Source
}

// Pick is a user's predicted outcome for one fixture.
type Pick struct {
	UserID    string
	Selection string // HOME | DRAW | AWAY
}

// Outcome values stored in round_results and held by picks.
const (
	OutcomeHome = "HOME"
	OutcomeDraw = "DRAW"
	OutcomeAway = "AWAY"
)

// OutcomeFor derives the result of a finished match from its final score.
func OutcomeFor(homeScore, awayScore int) string {
	switch {
	case homeScore > awayScore:
		return OutcomeHome
	case awayScore > homeScore:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}
