// Package audience computes the notification-eligible recipients for a
// fixture or a whole round: users with a pick, joined against their active
// devices and their per-key notification preferences.
package audience

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/match"
)

// --------------------------------------------------------------------------
// Preference keys
// --------------------------------------------------------------------------

// PrefKey is a notification preference key. KeyNone means the event is sent
// regardless of preference.
type PrefKey string

const (
	KeyNone         PrefKey = ""
	KeyScoreUpdates PrefKey = "score-updates"
	KeyFinalWhistle PrefKey = "final-whistle"
	KeyRoundResults PrefKey = "gw-results"
)

// KeyFor maps an event kind to its preference key. Kickoff, half-time, and
// goal-disallowed bypass the preference check entirely while goal and
// full-time honor it. The asymmetry is long-standing shipped behavior and is
// kept as-is pending product clarification.
func KeyFor(kind match.Kind) PrefKey {
	switch kind {
	case match.KindGoal, match.KindScoreUpdate:
		return KeyScoreUpdates
	case match.KindFullTime:
		return KeyFinalWhistle
	default:
		return KeyNone
	}
}

// --------------------------------------------------------------------------
// Resolver
// --------------------------------------------------------------------------

// Recipient is one user with at least one active device token. Pick carries
// the user's selection when the audience was resolved for a single fixture.
type Recipient struct {
	UserID string
	Tokens []string
	Pick   string
}

// Resolver joins picks, subscriptions, and preferences.
type Resolver struct {
	pool     *pgxpool.Pool
	fixtures *fixture.Resolver
}

// NewResolver creates a Resolver backed by the shared pool.
func NewResolver(pool *pgxpool.Pool, fixtures *fixture.Resolver) *Resolver {
	return &Resolver{pool: pool, fixtures: fixtures}
}

// ForFixture resolves the recipients for one fixture's event: all users with
// a pick on it, minus users who disabled the key, minus users with zero
// active devices. An empty result is not an error.
func (r *Resolver) ForFixture(ctx context.Context, fx fixture.Fixture, key PrefKey) ([]Recipient, error) {
	picks, err := r.fixtures.PicksFor(ctx, fx.Source, fx.Index, fx.Round)
	if err != nil {
		return nil, err
	}
	if len(picks) == 0 {
		return nil, nil
	}

	userIDs := make([]string, 0, len(picks))
	selections := make(map[string]string, len(picks))
	for _, p := range picks {
		userIDs = append(userIDs, p.UserID)
		selections[p.UserID] = p.Selection
	}

	recipients, err := r.assemble(ctx, userIDs, key)
	if err != nil {
		return nil, err
	}
	for i := range recipients {
		recipients[i].Pick = selections[recipients[i].UserID]
	}
	return recipients, nil
}

// ForRound resolves the recipients for a round-level event: every user with
// any pick in the round.
func (r *Resolver) ForRound(ctx context.Context, src fixture.Source, round int, key PrefKey) ([]Recipient, error) {
	userIDs, err := r.fixtures.RoundUserIDs(ctx, src, round)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}
	return r.assemble(ctx, userIDs, key)
}

// assemble applies the preference filter and the active-device join.
func (r *Resolver) assemble(ctx context.Context, userIDs []string, key PrefKey) ([]Recipient, error) {
	if key != KeyNone {
		prefs, err := r.preferences(ctx, key, userIDs)
		if err != nil {
			return nil, err
		}
		userIDs = FilterByPreference(userIDs, prefs)
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	tokens, err := r.activeTokens(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	var recipients []Recipient
	for _, id := range userIDs {
		if len(tokens[id]) == 0 {
			continue
		}
		recipients = append(recipients, Recipient{UserID: id, Tokens: tokens[id]})
	}
	return recipients, nil
}

// preferences returns the explicit preference rows for a key. Users without
// a row are absent from the map and default to enabled.
func (r *Resolver) preferences(ctx context.Context, key PrefKey, userIDs []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, "prefs_for_users", string(key), userIDs)
	if err != nil {
		return nil, fmt.Errorf("preferences for %q: %w", key, err)
	}
	defer rows.Close()

	prefs := make(map[string]bool)
	for rows.Next() {
		var userID string
		var enabled bool
		if err := rows.Scan(&userID, &enabled); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs[userID] = enabled
	}
	return prefs, rows.Err()
}

// activeTokens returns the active device tokens per user.
func (r *Resolver) activeTokens(ctx context.Context, userIDs []string) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, "active_tokens_for_users", userIDs)
	if err != nil {
		return nil, fmt.Errorf("active tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[string][]string)
	for rows.Next() {
		var userID, token string
		if err := rows.Scan(&userID, &token); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		tokens[userID] = append(tokens[userID], token)
	}
	return tokens, rows.Err()
}

// FilterByPreference drops users whose preference row for the key is an
// explicit false. Absent rows count as enabled.
func FilterByPreference(userIDs []string, prefs map[string]bool) []string {
	kept := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if enabled, ok := prefs[id]; ok && !enabled {
			continue
		}
		kept = append(kept, id)
	}
	return kept
}
