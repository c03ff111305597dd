// Package notify owns the per-match notification state, the idempotency
// claim protocol that arbitrates concurrent webhook deliveries, message
// formatting, and push dispatch.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiveaside/matchpulse/internal/match"
)

// State is the persisted per-match notification row: what was last notified
// and when. It is the sole source of truth for idempotency — overwritten on
// every claimed event, never deleted for the lifetime of a match.
type State struct {
	MatchID    string
	HomeScore  int
	AwayScore  int
	Status     string
	Signature  string
	Goals      []match.Goal
	NotifiedAt time.Time
}

// StateStore reads and writes notification state rows.
type StateStore interface {
	// Get returns the state for a match, or nil when none exists yet.
	Get(ctx context.Context, matchID string) (*State, error)
	// Upsert overwrites the state row for the state's match.
	Upsert(ctx context.Context, st *State) error
}

// PGStateStore is the pgx-backed StateStore.
type PGStateStore struct {
	pool *pgxpool.Pool
}

// NewPGStateStore creates a store backed by the shared pool.
func NewPGStateStore(pool *pgxpool.Pool) *PGStateStore {
	return &PGStateStore{pool: pool}
}

func (s *PGStateStore) Get(ctx context.Context, matchID string) (*State, error) {
	var st State
	var goalsRaw []byte
	err := s.pool.QueryRow(ctx, "state_get", matchID).Scan(
		&st.MatchID, &st.HomeScore, &st.AwayScore, &st.Status,
		&st.Signature, &goalsRaw, &st.NotifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification state: %w", err)
	}
	if len(goalsRaw) > 0 {
		if err := json.Unmarshal(goalsRaw, &st.Goals); err != nil {
			return nil, fmt.Errorf("decode stored goals: %w", err)
		}
	}
	return &st, nil
}

func (s *PGStateStore) Upsert(ctx context.Context, st *State) error {
	goals := st.Goals
	if goals == nil {
		goals = []match.Goal{}
	}
	goalsRaw, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("encode goals: %w", err)
	}
	_, err = s.pool.Exec(ctx, "state_upsert",
		st.MatchID, st.HomeScore, st.AwayScore, st.Status,
		st.Signature, goalsRaw, st.NotifiedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert notification state: %w", err)
	}
	return nil
}
