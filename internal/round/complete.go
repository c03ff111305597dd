// Package round detects when every fixture in a round has finished and
// performs the one-time round completion side effects: writing the round's
// results and sending the round-complete notification.
package round

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fiveaside/matchpulse/internal/audience"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/match"
	"github.com/fiveaside/matchpulse/internal/notify"
)

// MatchStatus is the live status snapshot for one match.
type MatchStatus struct {
	Status    string
	HomeScore int
	AwayScore int
}

// Result is one fixture's final outcome within a round.
type Result struct {
	FixtureIndex int
	Outcome      string
}

// Store is the persistence surface the aggregator needs.
type Store interface {
	StatusForMatches(ctx context.Context, matchIDs []string) (map[string]MatchStatus, error)
	ResultsExist(ctx context.Context, round int) (bool, error)
	// WriteResults must be idempotent (insert-on-conflict-do-nothing).
	WriteResults(ctx context.Context, round int, results []Result) error
	MarkerSince(ctx context.Context, round int, since time.Time) (bool, error)
	WriteMarker(ctx context.Context, round int, at time.Time) error
}

// FixtureLister lists a round's fixtures that carry a match identifier.
type FixtureLister interface {
	ByRound(ctx context.Context, src fixture.Source, round int) ([]fixture.Fixture, error)
}

// AudienceSource resolves the round-wide notification audience.
type AudienceSource interface {
	ForRound(ctx context.Context, src fixture.Source, round int, key audience.PrefKey) ([]audience.Recipient, error)
}

// Outcome reports what a completion check did.
type Outcome struct {
	AllFinished      bool           `json:"all_finished"`
	Finished         int            `json:"finished"`
	Total            int            `json:"total"`
	ResultsWritten   bool           `json:"results_written"`
	NotificationSent bool           `json:"notification_sent"`
	Summary          notify.Summary `json:"summary"`
}

// Aggregator runs the completion check after a full-time event. The check is
// independent of whether the triggering invocation won the full-time claim —
// any delivery observing the final fixture finish may complete the round.
type Aggregator struct {
	store        Store
	fixtures     FixtureLister
	audiences    AudienceSource
	dispatcher   *notify.Dispatcher
	markerWindow time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewAggregator creates an Aggregator. markerWindow bounds how recently a
// round-complete notification may have been sent before another is allowed.
func NewAggregator(store Store, fixtures FixtureLister, audiences AudienceSource, dispatcher *notify.Dispatcher, markerWindow time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:        store,
		fixtures:     fixtures,
		audiences:    audiences,
		dispatcher:   dispatcher,
		markerWindow: markerWindow,
		logger:       logger,
		now:          time.Now,
	}
}

// CheckAndComplete checks whether every fixture in the round with a match
// identifier has finished and, when so, writes results (existence-guarded)
// and sends the round-complete push (marker-guarded).
func (a *Aggregator) CheckAndComplete(ctx context.Context, src fixture.Source, round int) (*Outcome, error) {
	fixtures, err := a.fixtures.ByRound(ctx, src, round)
	if err != nil {
		return nil, fmt.Errorf("load round fixtures: %w", err)
	}
	out := &Outcome{Total: len(fixtures)}
	if len(fixtures) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(fixtures))
	for _, fx := range fixtures {
		ids = append(ids, fx.MatchID)
	}
	statuses, err := a.store.StatusForMatches(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load match statuses: %w", err)
	}

	for _, fx := range fixtures {
		if st, ok := statuses[fx.MatchID]; ok && match.IsFinished(st.Status) {
			out.Finished++
		}
	}
	out.AllFinished = out.Finished == len(fixtures)
	if !out.AllFinished {
		return out, nil
	}

	// Results write: naturally idempotent via the existence check plus
	// insert-on-conflict, so no claim protocol here.
	exists, err := a.store.ResultsExist(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("check round results: %w", err)
	}
	if !exists {
		results := make([]Result, 0, len(fixtures))
		for _, fx := range fixtures {
			st := statuses[fx.MatchID]
			results = append(results, Result{
				FixtureIndex: fx.Index,
				Outcome:      fixture.OutcomeFor(st.HomeScore, st.AwayScore),
			})
		}
		if err := a.store.WriteResults(ctx, round, results); err != nil {
			return nil, fmt.Errorf("write round results: %w", err)
		}
		out.ResultsWritten = true
		a.logger.Info("Round results written", "round", round, "fixtures", len(results))
	}

	// Notification: guarded by a dedicated marker row so the completing
	// webhook firing twice sends once.
	nowTs := a.now()
	sent, err := a.store.MarkerSince(ctx, round, nowTs.Add(-a.markerWindow))
	if err != nil {
		return nil, fmt.Errorf("check round marker: %w", err)
	}
	if sent {
		return out, nil
	}

	recipients, err := a.audiences.ForRound(ctx, src, round, audience.KeyRoundResults)
	if err != nil {
		return nil, fmt.Errorf("resolve round audience: %w", err)
	}
	msg := notify.RoundCompleteMessage(round)
	out.Summary = a.dispatcher.Send(ctx, recipients, msg, map[string]string{
		"type":  "round_complete",
		"round": strconv.Itoa(round),
	})
	out.NotificationSent = true

	if err := a.store.WriteMarker(ctx, round, nowTs); err != nil {
		return nil, fmt.Errorf("write round marker: %w", err)
	}
	a.logger.Info("Round complete notification sent",
		"round", round, "recipients", len(recipients),
		"accepted", out.Summary.Accepted, "failed", out.Summary.Failed)
	return out, nil
}
