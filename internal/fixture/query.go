package fixture

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound means no fixture in any source carries the match id.
var ErrNotFound = errors.New("no fixture for match")

// Resolver looks up fixtures and picks across the three sources.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver creates a Resolver backed by the shared pool.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// ByMatchID finds the fixture for a live match. Sources are probed in
// priority order and the first hit wins; returns ErrNotFound when no source
// knows the match.
func (r *Resolver) ByMatchID(ctx context.Context, matchID string) (*Fixture, error) {
	for _, src := range Sources {
		var f Fixture
		err := r.pool.QueryRow(ctx, "fixture_by_match_"+src.Name, matchID).Scan(
			&f.Index, &f.Round, &f.HomeTeam, &f.AwayTeam, &f.MatchID,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fixture by match (%s): %w", src.Name, err)
		}
		f.Source = src
		return &f, nil
	}
	return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
}

// ByRound returns all of a round's fixtures that carry a match identifier,
// from a single source.
func (r *Resolver) ByRound(ctx context.Context, src Source, round int) ([]Fixture, error) {
	rows, err := r.pool.Query(ctx, "fixtures_by_round_"+src.Name, round)
	if err != nil {
		return nil, fmt.Errorf("fixtures by round (%s): %w", src.Name, err)
	}
	defer rows.Close()

	var fixtures []Fixture
	for rows.Next() {
		var f Fixture
		if err := rows.Scan(&f.Index, &f.Round, &f.HomeTeam, &f.AwayTeam, &f.MatchID); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		f.Source = src
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// PicksFor returns every pick on one fixture within a round.
func (r *Resolver) PicksFor(ctx context.Context, src Source, fixtureIndex, round int) ([]Pick, error) {
	rows, err := r.pool.Query(ctx, "pick_users_"+src.Name, fixtureIndex, round)
	if err != nil {
		return nil, fmt.Errorf("picks for fixture (%s): %w", src.Name, err)
	}
	defer rows.Close()

	var picks []Pick
	for rows.Next() {
		var p Pick
		if err := rows.Scan(&p.UserID, &p.Selection); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// RoundUserIDs returns every user holding at least one pick in the round.
func (r *Resolver) RoundUserIDs(ctx context.Context, src Source, round int) ([]string, error) {
	rows, err := r.pool.Query(ctx, "round_pick_users_"+src.Name, round)
	if err != nil {
		return nil, fmt.Errorf("round pick users (%s): %w", src.Name, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// PickBreakdown returns the pick counts per selection for one fixture.
func (r *Resolver) PickBreakdown(ctx context.Context, src Source, fixtureIndex, round int) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, "pick_breakdown_"+src.Name, fixtureIndex, round)
	if err != nil {
		return nil, fmt.Errorf("pick breakdown (%s): %w", src.Name, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var selection string
		var n int
		if err := rows.Scan(&selection, &n); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		counts[selection] = n
	}
	return counts, rows.Err()
}
