// Package livematch orchestrates one webhook delivery end to end: normalize
// the payload, classify what happened, claim each event, resolve the
// audience, dispatch pushes, and run the round completion check.
package livematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/fiveaside/matchpulse/internal/audience"
	"github.com/fiveaside/matchpulse/internal/config"
	"github.com/fiveaside/matchpulse/internal/fixture"
	"github.com/fiveaside/matchpulse/internal/match"
	"github.com/fiveaside/matchpulse/internal/notify"
	"github.com/fiveaside/matchpulse/internal/round"
	"github.com/fiveaside/matchpulse/internal/webhook"
)

// --------------------------------------------------------------------------
// Collaborator surfaces
// --------------------------------------------------------------------------

// FixtureResolver maps matches to fixtures and exposes pick statistics.
type FixtureResolver interface {
	ByMatchID(ctx context.Context, matchID string) (*fixture.Fixture, error)
	PickBreakdown(ctx context.Context, src fixture.Source, fixtureIndex, roundNumber int) (map[string]int, error)
}

// AudienceResolver resolves a fixture's notification recipients.
type AudienceResolver interface {
	ForFixture(ctx context.Context, fx fixture.Fixture, key audience.PrefKey) ([]audience.Recipient, error)
}

// Claimer runs the idempotency claim protocol.
type Claimer interface {
	Claim(ctx context.Context, current match.Record, ev match.Event) (notify.ClaimResult, error)
}

// RoundChecker runs the round completion check.
type RoundChecker interface {
	CheckAndComplete(ctx context.Context, src fixture.Source, roundNumber int) (*round.Outcome, error)
}

// DeliveryRecorder appends audit rows for committed dispatches. May be nil.
type DeliveryRecorder interface {
	Record(ctx context.Context, matchID, eventKind, signature, title string, sum notify.Summary) error
}

// --------------------------------------------------------------------------
// Reports
// --------------------------------------------------------------------------

// EventReport describes what happened to one classified event.
type EventReport struct {
	Kind      match.Kind      `json:"kind"`
	Signature string          `json:"signature"`
	Claim     string          `json:"claim"`
	Summary   *notify.Summary `json:"summary,omitempty"`
}

// Report is the handler-facing result of one delivery.
type Report struct {
	Message string         `json:"message"`
	MatchID string         `json:"match_id,omitempty"`
	Events  []EventReport  `json:"events,omitempty"`
	Round   *round.Outcome `json:"round,omitempty"`
}

// --------------------------------------------------------------------------
// Processor
// --------------------------------------------------------------------------

// Processor composes the per-delivery pipeline. Invocations share nothing in
// process; all coordination runs through the persisted notification state.
type Processor struct {
	cfg        *config.Config
	logger     *slog.Logger
	states     notify.StateStore
	claims     Claimer
	fixtures   FixtureResolver
	audiences  AudienceResolver
	dispatcher *notify.Dispatcher
	rounds     RoundChecker
	deliveries DeliveryRecorder
}

// NewProcessor wires a Processor. deliveries may be nil to disable the audit
// log.
func NewProcessor(cfg *config.Config, logger *slog.Logger, states notify.StateStore, claims Claimer, fixtures FixtureResolver, audiences AudienceResolver, dispatcher *notify.Dispatcher, rounds RoundChecker, deliveries DeliveryRecorder) *Processor {
	return &Processor{
		cfg:        cfg,
		logger:     logger,
		states:     states,
		claims:     claims,
		fixtures:   fixtures,
		audiences:  audiences,
		dispatcher: dispatcher,
		rounds:     rounds,
		deliveries: deliveries,
	}
}

// Process handles one webhook body. webhook.ErrIgnored propagates for the
// handler to answer as a non-error; any other error means the delivery
// should be retried by the sender (no claim was committed at that point).
func (p *Processor) Process(ctx context.Context, body []byte) (*Report, error) {
	payload, err := webhook.Normalize(body, p.cfg.LiveScoreTable)
	if err != nil {
		return nil, err
	}
	current := payload.Current

	fx, err := p.fixtures.ByMatchID(ctx, current.MatchID)
	if errors.Is(err, fixture.ErrNotFound) {
		p.logger.Info("No fixture for match, nothing to notify", "matchId", current.MatchID)
		return &Report{Message: "no fixture for match", MatchID: current.MatchID}, nil
	}
	if err != nil {
		return nil, err
	}
	teams := match.Teams{Home: fx.HomeTeam, Away: fx.AwayTeam}

	st, err := p.states.Get(ctx, current.MatchID)
	if err != nil {
		return nil, err
	}

	// When the envelope carried no previous record, the persisted state is
	// the best-effort substitute for what we last knew. Heuristic only:
	// the classifier treats its fields as unknown-tolerant.
	previous := payload.Previous
	var lastGoals []match.Goal
	if st != nil {
		lastGoals = st.Goals
		if lastGoals == nil {
			lastGoals = []match.Goal{}
		}
		if previous == nil {
			previous = &match.Record{
				MatchID:   st.MatchID,
				HomeScore: st.HomeScore,
				AwayScore: st.AwayScore,
				Status:    st.Status,
				Goals:     st.Goals,
			}
		}
	}

	res := match.Classify(current, previous, lastGoals, teams)

	if res.Reallocated {
		if err := p.storeReallocation(ctx, st, current); err != nil {
			p.logger.Warn("Failed to store goal reallocation", "matchId", current.MatchID, "error", err)
		} else {
			p.logger.Info("Goal reallocation stored, no notification", "matchId", current.MatchID)
		}
	}

	report := &Report{MatchID: current.MatchID}
	sawFullTime := false
	for _, ev := range res.Events {
		if ev.Kind == match.KindFullTime {
			sawFullTime = true
		}
		evReport, err := p.processEvent(ctx, *fx, teams, current, ev)
		if err != nil {
			return nil, err
		}
		report.Events = append(report.Events, *evReport)
	}

	// Completion-checking is independent of whether this invocation won
	// the full-time claim; any delivery observing the last finish may
	// complete the round.
	if sawFullTime {
		out, err := p.rounds.CheckAndComplete(ctx, fx.Source, fx.Round)
		if err != nil {
			p.logger.Warn("Round completion check failed",
				"round", fx.Round, "matchId", current.MatchID, "error", err)
		} else {
			report.Round = out
		}
	}

	report.Message = summarizeReport(report, res)
	return report, nil
}

// processEvent claims one event and, when claimed, dispatches it.
func (p *Processor) processEvent(ctx context.Context, fx fixture.Fixture, teams match.Teams, current match.Record, ev match.Event) (*EventReport, error) {
	if ev.Ambiguous {
		p.logger.Warn("Team attribution ambiguous, proceeding with best guess",
			"matchId", current.MatchID, "event", ev.Kind)
	}

	sig := notify.SignatureFor(ev, current)
	evReport := &EventReport{Kind: ev.Kind, Signature: sig}

	claim, err := p.claims.Claim(ctx, current, ev)
	if err != nil {
		return nil, fmt.Errorf("claim %s for %s: %w", ev.Kind, current.MatchID, err)
	}
	evReport.Claim = claim.String()
	if claim != notify.Claimed {
		p.logger.Info("Event not claimed",
			"matchId", current.MatchID, "event", ev.Kind, "signature", sig, "claim", claim.String())
		return evReport, nil
	}

	recipients, err := p.audiences.ForFixture(ctx, fx, audience.KeyFor(ev.Kind))
	if err != nil {
		// The claim is committed; failing the delivery now would retry
		// into AlreadyNotified. Log and report a zero-sent event.
		p.logger.Error("Audience resolution failed after claim",
			"matchId", current.MatchID, "event", ev.Kind, "signature", sig, "error", err)
		evReport.Summary = &notify.Summary{}
		return evReport, nil
	}

	data := map[string]string{
		"type":          string(ev.Kind),
		"match_id":      current.MatchID,
		"fixture_index": strconv.Itoa(fx.Index),
		"round":         strconv.Itoa(fx.Round),
	}

	var title string
	var sum notify.Summary
	if ev.Kind == match.KindFullTime {
		title, sum = p.dispatchFullTime(ctx, fx, teams, current, recipients, data)
	} else {
		msg := messageFor(ev, current, teams)
		title = msg.Title
		sum = p.dispatcher.Send(ctx, recipients, msg, data)
	}
	evReport.Summary = &sum

	p.logger.Info("Event dispatched",
		"matchId", current.MatchID, "event", ev.Kind, "signature", sig,
		"recipients", len(recipients), "accepted", sum.Accepted,
		"failed", sum.Failed, "skipped", sum.Skipped)

	if p.deliveries != nil {
		if err := p.deliveries.Record(ctx, current.MatchID, string(ev.Kind), sig, title, sum); err != nil {
			p.logger.Warn("Failed to record delivery", "matchId", current.MatchID, "error", err)
		}
	}
	return evReport, nil
}

// dispatchFullTime sends the personalized full-time push: each user learns
// whether their pick was correct and what share of players got it right.
func (p *Processor) dispatchFullTime(ctx context.Context, fx fixture.Fixture, teams match.Teams, current match.Record, recipients []audience.Recipient, data map[string]string) (string, notify.Summary) {
	outcome := fixture.OutcomeFor(current.HomeScore, current.AwayScore)
	pct := 0
	if breakdown, err := p.fixtures.PickBreakdown(ctx, fx.Source, fx.Index, fx.Round); err != nil {
		p.logger.Warn("Pick breakdown unavailable, using zero percent",
			"matchId", current.MatchID, "error", err)
	} else {
		pct = correctPercent(breakdown, outcome)
	}

	title := notify.FullTimeTitle(current, teams)
	sum := p.dispatcher.SendPersonalized(ctx, recipients, func(r audience.Recipient) notify.Message {
		return notify.Message{
			Title: title,
			Body:  notify.FullTimeBody(r.Pick == outcome, pct),
		}
	}, data)
	return title, sum
}

// storeReallocation overwrites the stored goal list without touching the
// signature or timestamp — a scorer correction is not a notification.
func (p *Processor) storeReallocation(ctx context.Context, st *notify.State, current match.Record) error {
	updated := notify.State{MatchID: current.MatchID}
	if st != nil {
		updated = *st
	}
	updated.Goals = current.Goals
	updated.HomeScore = current.HomeScore
	updated.AwayScore = current.AwayScore
	return p.states.Upsert(ctx, &updated)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func messageFor(ev match.Event, current match.Record, teams match.Teams) notify.Message {
	switch ev.Kind {
	case match.KindKickoff:
		return notify.KickoffMessage(ev.Half, teams)
	case match.KindGoal:
		return notify.GoalMessage(*ev.Goal, ev.Side, current, teams)
	case match.KindGoalDisallowed:
		return notify.DisallowedMessage(ev, current, teams)
	case match.KindHalfTime:
		return notify.HalfTimeMessage(current, teams)
	default:
		return notify.ScoreUpdateMessage(current, teams)
	}
}

func correctPercent(breakdown map[string]int, outcome string) int {
	total := 0
	for _, n := range breakdown {
		total += n
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(breakdown[outcome]) / float64(total)))
}

func summarizeReport(report *Report, res match.Result) string {
	if len(report.Events) == 0 {
		if res.Reallocated {
			return "goal reallocation recorded"
		}
		return "no events"
	}
	claimed := 0
	for _, ev := range report.Events {
		if ev.Claim == notify.Claimed.String() {
			claimed++
		}
	}
	return fmt.Sprintf("%d event(s) classified, %d claimed", len(report.Events), claimed)
}
