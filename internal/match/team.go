package match

import "strings"

// Side distinguishes the two teams of a fixture.
type Side int

const (
	SideUnknown Side = iota
	SideHome
	SideAway
)

func (s Side) String() string {
	switch s {
	case SideHome:
		return "home"
	case SideAway:
		return "away"
	default:
		return "unknown"
	}
}

// Teams carries the fixture's team names for goal attribution.
type Teams struct {
	Home string
	Away string
}

// Name returns the team name for a side, empty for SideUnknown.
func (t Teams) Name(s Side) string {
	switch s {
	case SideHome:
		return t.Home
	case SideAway:
		return t.Away
	default:
		return ""
	}
}

// SideForTeam attributes a feed team name to a fixture side. Exact normalized
// match first, then substring containment in either direction. The feed and
// the fixture table spell team names independently, so containment is a
// documented best-effort fallback; SideUnknown means attribution failed.
func SideForTeam(team string, teams Teams) Side {
	name := NormalizeName(team)
	home := NormalizeName(teams.Home)
	away := NormalizeName(teams.Away)
	if name == "" {
		return SideUnknown
	}
	if name == home {
		return SideHome
	}
	if name == away {
		return SideAway
	}
	homeHit := home != "" && (strings.Contains(home, name) || strings.Contains(name, home))
	awayHit := away != "" && (strings.Contains(away, name) || strings.Contains(name, away))
	if homeHit && !awayHit {
		return SideHome
	}
	if awayHit && !homeHit {
		return SideAway
	}
	return SideUnknown
}

// TeamMatcher matches goals to one fixture side, preferring team ids over
// name containment when both records carry one.
type TeamMatcher struct {
	Name string
	ID   string
}

// Matches reports whether a goal is attributed to this team.
func (m TeamMatcher) Matches(g Goal) bool {
	if m.ID != "" && g.TeamID != "" {
		return m.ID == g.TeamID
	}
	if m.Name == "" || g.Team == "" {
		return false
	}
	a := NormalizeName(m.Name)
	b := NormalizeName(g.Team)
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
