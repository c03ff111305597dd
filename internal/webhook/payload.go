// Package webhook normalizes change-notification payloads. The database
// webhook has shipped three envelope shapes over time; this package resolves
// the shape once and hands downstream code a canonical (current, previous)
// record pair.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fiveaside/matchpulse/internal/match"
)

// ErrIgnored marks a payload that is not an error but carries nothing to
// process: wrong table, or no usable current record.
var ErrIgnored = errors.New("ignored payload")

// --------------------------------------------------------------------------
// Envelope shapes
// --------------------------------------------------------------------------

// envelope is the union of the three webhook envelope shapes:
//
//	{type, table, record, old_record}   change-data-capture shape
//	{new, old}                          trigger shape
//	bare record                         legacy shape, no previous state
type envelope struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
	New       json.RawMessage `json:"new"`
	Old       json.RawMessage `json:"old"`
}

// Payload is the normalized result: the current record and, when the
// envelope carried one, the previous record.
type Payload struct {
	Current  match.Record
	Previous *match.Record
}

// Normalize resolves the envelope shape and decodes the record pair.
// liveTable is the only table this handler processes; payloads naming any
// other table return ErrIgnored.
func Normalize(body []byte, liveTable string) (*Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Table != "" && env.Table != liveTable {
		return nil, fmt.Errorf("table %q: %w", env.Table, ErrIgnored)
	}

	currentRaw, previousRaw := pickShape(env, body)
	if len(currentRaw) == 0 || string(currentRaw) == "null" {
		return nil, fmt.Errorf("no current record: %w", ErrIgnored)
	}

	current, err := decodeRecord(currentRaw)
	if err != nil {
		return nil, fmt.Errorf("decode current record: %w", err)
	}
	if current.MatchID == "" {
		return nil, fmt.Errorf("record has no match id: %w", ErrIgnored)
	}

	p := &Payload{Current: *current}
	if len(previousRaw) > 0 && string(previousRaw) != "null" {
		// A partial or malformed previous is tolerated; the classifier
		// treats missing previous fields as unknown.
		if prev, err := decodeRecord(previousRaw); err == nil {
			p.Previous = prev
		}
	}
	return p, nil
}

// pickShape selects the raw current/previous pair for whichever envelope
// shape the payload uses. A body with neither record/new keys is treated as
// a bare record.
func pickShape(env envelope, body []byte) (current, previous json.RawMessage) {
	switch {
	case len(env.Record) > 0:
		return env.Record, env.OldRecord
	case len(env.New) > 0:
		return env.New, env.Old
	default:
		return body, nil
	}
}

// --------------------------------------------------------------------------
// Record decoding
// --------------------------------------------------------------------------

// rawRecord tolerates the field aliases the feed has used for the same
// columns.
type rawRecord struct {
	MatchID   string    `json:"match_id"`
	ID        string    `json:"id"`
	HomeScore *int      `json:"home_score"`
	AwayScore *int      `json:"away_score"`
	Status    string    `json:"status"`
	Minute    int       `json:"minute"`
	Goals     []rawGoal `json:"goals"`
	RedCards  int       `json:"red_cards"`
}

type rawGoal struct {
	Team    string `json:"team"`
	TeamAlt string `json:"team_name"`
	Scorer  string `json:"scorer"`
	Player  string `json:"player"`
	Minute  int    `json:"minute"`
	TeamID  string `json:"team_id"`
	OwnGoal bool   `json:"own_goal"`
}

func decodeRecord(raw json.RawMessage) (*match.Record, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}

	rec := &match.Record{
		MatchID:  r.MatchID,
		Status:   r.Status,
		Minute:   r.Minute,
		RedCards: r.RedCards,
	}
	if rec.MatchID == "" {
		rec.MatchID = r.ID
	}
	if r.HomeScore != nil {
		rec.HomeScore = *r.HomeScore
	}
	if r.AwayScore != nil {
		rec.AwayScore = *r.AwayScore
	}
	for _, g := range r.Goals {
		goal := match.Goal{
			Team:    g.Team,
			Scorer:  g.Scorer,
			Minute:  g.Minute,
			TeamID:  g.TeamID,
			OwnGoal: g.OwnGoal,
		}
		if goal.Team == "" {
			goal.Team = g.TeamAlt
		}
		if goal.Scorer == "" {
			goal.Scorer = g.Player
		}
		rec.Goals = append(rec.Goals, goal)
	}
	return rec, nil
}
