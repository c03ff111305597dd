package round

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiveaside/matchpulse/internal/audience"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/match"
	"github.com/fiveaside/matchpulse/internal/notify"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeStore struct {
	statuses   map[string]MatchStatus
	hasResults bool
	written    [][]Result
	markerAt   time.Time
	markers    int
}

func (s *fakeStore) StatusForMatches(_ context.Context, matchIDs []string) (map[string]MatchStatus, error) {
	out := make(map[string]MatchStatus)
	for _, id := range matchIDs {
		if st, ok := s.statuses[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (s *fakeStore) ResultsExist(_ context.Context, _ int) (bool, error) {
	return s.hasResults, nil
}

func (s *fakeStore) WriteResults(_ context.Context, _ int, results []Result) error {
	s.written = append(s.written, results)
	s.hasResults = true
	return nil
}

func (s *fakeStore) MarkerSince(_ context.Context, _ int, since time.Time) (bool, error) {
	return !s.markerAt.IsZero() && s.markerAt.After(since), nil
}

func (s *fakeStore) WriteMarker(_ context.Context, _ int, at time.Time) error {
	s.markerAt = at
	s.markers++
	return nil
}

type fakeLister struct {
	fixtures []fixture.Fixture
}

func (l *fakeLister) ByRound(_ context.Context, _ fixture.Source, _ int) ([]fixture.Fixture, error) {
	return l.fixtures, nil
}

type fakeAudience struct {
	recipients []audience.Recipient
	calls      int
}

func (a *fakeAudience) ForRound(_ context.Context, _ fixture.Source, _ int, key audience.PrefKey) ([]audience.Recipient, error) {
	a.calls++
	if key != audience.KeyRoundResults {
		return nil, nil
	}
	return a.recipients, nil
}

type countingPush struct {
	sends int
}

func (c *countingPush) IsSubscribed(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (c *countingPush) SendBatch(_ context.Context, tokens []string, _, _ string, _ map[string]string) (int, int, error) {
	c.sends++
	return len(tokens), 0, nil
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testAggregator(store *fakeStore, lister *fakeLister, aud *fakeAudience, client *countingPush, now time.Time) *Aggregator {
	dispatcher := notify.NewDispatcher(client, testLogger)
	a := NewAggregator(store, lister, aud, dispatcher, time.Hour, testLogger)
	a.now = func() time.Time { return now }
	return a
}

func roundFixtures() []fixture.Fixture {
	src := fixture.Sources[0]
	return []fixture.Fixture{
		{Index: 0, Round: 5, MatchID: "m1", Source: src},
		{Index: 1, Round: 5, MatchID: "m2", Source: src},
		{Index: 2, Round: 5, MatchID: "m3", Source: src},
	}
}

func TestCheckAndCompleteNotAllFinished(t *testing.T) {
	t.Parallel()

	store := &fakeStore{statuses: map[string]MatchStatus{
		"m1": {Status: match.StatusFinished, HomeScore: 2, AwayScore: 0},
		"m2": {Status: match.StatusFT, HomeScore: 1, AwayScore: 1},
		"m3": {Status: match.StatusInPlay, HomeScore: 0, AwayScore: 0},
	}}
	client := &countingPush{}
	a := testAggregator(store, &fakeLister{fixtures: roundFixtures()}, &fakeAudience{}, client, time.Now())

	out, err := a.CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)

	assert.False(t, out.AllFinished)
	assert.Equal(t, 2, out.Finished)
	assert.Equal(t, 3, out.Total)
	assert.Empty(t, store.written)
	assert.Zero(t, client.sends)
}

func TestCheckAndCompleteWritesResultsAndNotifies(t *testing.T) {
	t.Parallel()

	store := &fakeStore{statuses: map[string]MatchStatus{
		"m1": {Status: match.StatusFinished, HomeScore: 2, AwayScore: 0},
		"m2": {Status: match.StatusFT, HomeScore: 1, AwayScore: 1},
		"m3": {Status: match.StatusFinished, HomeScore: 0, AwayScore: 3},
	}}
	aud := &fakeAudience{recipients: []audience.Recipient{
		{UserID: "u1", Tokens: []string{"tok1"}},
	}}
	client := &countingPush{}
	a := testAggregator(store, &fakeLister{fixtures: roundFixtures()}, aud, client, time.Now())

	out, err := a.CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)

	assert.True(t, out.AllFinished)
	assert.True(t, out.ResultsWritten)
	assert.True(t, out.NotificationSent)
	assert.Equal(t, 1, out.Summary.Accepted)

	require.Len(t, store.written, 1)
	assert.Equal(t, []Result{
		{FixtureIndex: 0, Outcome: fixture.OutcomeHome},
		{FixtureIndex: 1, Outcome: fixture.OutcomeDraw},
		{FixtureIndex: 2, Outcome: fixture.OutcomeAway},
	}, store.written[0])

	assert.Equal(t, 1, client.sends)
	assert.Equal(t, 1, store.markers)
}

func TestCheckAndCompleteResultsGuard(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		hasResults: true,
		statuses: map[string]MatchStatus{
			"m1": {Status: match.StatusFinished},
			"m2": {Status: match.StatusFinished},
			"m3": {Status: match.StatusFinished},
		},
	}
	client := &countingPush{}
	a := testAggregator(store, &fakeLister{fixtures: roundFixtures()}, &fakeAudience{}, client, time.Now())

	out, err := a.CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)

	assert.False(t, out.ResultsWritten)
	assert.Empty(t, store.written)
	// The notification path still runs; it has its own guard.
	assert.True(t, out.NotificationSent)
}

func TestCheckAndCompleteMarkerGuardsSecondNotification(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{statuses: map[string]MatchStatus{
		"m1": {Status: match.StatusFinished},
		"m2": {Status: match.StatusFinished},
		"m3": {Status: match.StatusFinished},
	}}
	aud := &fakeAudience{recipients: []audience.Recipient{
		{UserID: "u1", Tokens: []string{"tok1"}},
	}}
	client := &countingPush{}
	lister := &fakeLister{fixtures: roundFixtures()}

	out, err := testAggregator(store, lister, aud, client, now).
		CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)
	require.True(t, out.NotificationSent)

	// A second completing delivery ten minutes later is inside the marker
	// window and sends nothing.
	out, err = testAggregator(store, lister, aud, client, now.Add(10*time.Minute)).
		CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)

	assert.True(t, out.AllFinished)
	assert.False(t, out.NotificationSent)
	assert.Equal(t, 1, client.sends)
	assert.Equal(t, 1, store.markers)
}

func TestCheckAndCompleteEmptyRound(t *testing.T) {
	t.Parallel()

	client := &countingPush{}
	a := testAggregator(&fakeStore{}, &fakeLister{}, &fakeAudience{}, client, time.Now())

	out, err := a.CheckAndComplete(context.Background(), fixture.Sources[0], 5)
	require.NoError(t, err)
	assert.False(t, out.AllFinished)
	assert.Zero(t, out.Total)
	assert.Zero(t, client.sends)
}
