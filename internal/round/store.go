package round

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the pgx-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store backed by the shared pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) StatusForMatches(ctx context.Context, matchIDs []string) (map[string]MatchStatus, error) {
	rows, err := s.pool.Query(ctx, "live_status_for_matches", matchIDs)
	if err != nil {
		return nil, fmt.Errorf("live status for matches: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]MatchStatus, len(matchIDs))
	for rows.Next() {
		var id string
		var st MatchStatus
		if err := rows.Scan(&id, &st.Status, &st.HomeScore, &st.AwayScore); err != nil {
			return nil, fmt.Errorf("scan match status: %w", err)
		}
		statuses[id] = st
	}
	return statuses, rows.Err()
}

func (s *PGStore) ResultsExist(ctx context.Context, round int) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "round_results_exist", round).Scan(&exists); err != nil {
		return false, fmt.Errorf("round results exist: %w", err)
	}
	return exists, nil
}

func (s *PGStore) WriteResults(ctx context.Context, round int, results []Result) error {
	for _, r := range results {
		if _, err := s.pool.Exec(ctx, "round_result_insert", round, r.FixtureIndex, r.Outcome); err != nil {
			return fmt.Errorf("insert result for fixture %d: %w", r.FixtureIndex, err)
		}
	}
	return nil
}

func (s *PGStore) MarkerSince(ctx context.Context, round int, since time.Time) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "round_marker_since", round, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("round marker since: %w", err)
	}
	return exists, nil
}

func (s *PGStore) WriteMarker(ctx context.Context, round int, at time.Time) error {
	if _, err := s.pool.Exec(ctx, "round_marker_upsert", round, at); err != nil {
		return fmt.Errorf("upsert round marker: %w", err)
	}
	return nil
}
