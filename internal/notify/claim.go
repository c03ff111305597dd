package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fiveaside/matchpulse/internal/match"
)

// --------------------------------------------------------------------------
// Claim protocol
// --------------------------------------------------------------------------

// ClaimResult is the outcome of a claim attempt. Callers must branch on it;
// only Claimed authorizes a send.
type ClaimResult int

const (
	// Claimed: this invocation owns the event and must dispatch.
	Claimed ClaimResult = iota
	// AlreadyNotified: the stored state shows this event was handled.
	AlreadyNotified
	// LostRace: a concurrent invocation overwrote the claim first.
	LostRace
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyNotified:
		return "already_notified"
	case LostRace:
		return "lost_race"
	default:
		return "unknown"
	}
}

// Windows holds the idempotency tuning. Goal and Kickoff bound how long a
// matching signature blocks a re-send; zero means unbounded (half-time and
// full-time are naturally one-shot per status value). Tolerance is the
// clock slack allowed between the written and read-back claim timestamps.
type Windows struct {
	Goal      time.Duration
	Kickoff   time.Duration
	Tolerance time.Duration
}

// Coordinator arbitrates which of any number of concurrent deliveries owns
// sending for a given event signature.
//
// The protocol is an optimistic claim: read, compare signature, write the
// candidate state, read back, and verify the own write survived. It narrows
// the duplicate-send window to one read round-trip rather than providing
// mutual exclusion; a rare double send under truly simultaneous writes is
// accepted, since the push provider tolerates occasional duplicates.
type Coordinator struct {
	store StateStore
	win   Windows
	now   func() time.Time
}

// NewCoordinator creates a Coordinator over a state store.
func NewCoordinator(store StateStore, win Windows) *Coordinator {
	return &Coordinator{store: store, win: win, now: time.Now}
}

// Claim attempts to establish this invocation as the sole sender for the
// event. On Claimed the state row already holds the post-event state — the
// claim is committed before any send is attempted, biasing toward "state
// says sent but push failed" over duplicate sends.
func (c *Coordinator) Claim(ctx context.Context, current match.Record, ev match.Event) (ClaimResult, error) {
	st, err := c.store.Get(ctx, current.MatchID)
	if err != nil {
		return LostRace, err
	}

	target := targetStatus(ev)

	// Cheap pre-check for status events: the recorded status transition
	// is the primary defense against duplicate status notifications.
	if target != "" && st != nil && st.Status == target {
		return AlreadyNotified, nil
	}

	sig := SignatureFor(ev, current)
	nowTs := c.now().UTC().Truncate(time.Microsecond)

	if st != nil && st.Signature == sig {
		window := c.windowFor(ev.Kind)
		if window == 0 || nowTs.Sub(st.NotifiedAt) <= window {
			return AlreadyNotified, nil
		}
	}

	candidate := c.candidateState(st, current, ev, target, sig, nowTs)
	if err := c.store.Upsert(ctx, candidate); err != nil {
		return LostRace, err
	}

	// Read back and verify our write survived. A different signature or a
	// timestamp off by more than the tolerance means a concurrent
	// invocation overwrote the claim; do not send, and do not disturb the
	// winner's state.
	verify, err := c.store.Get(ctx, current.MatchID)
	if err != nil {
		return LostRace, err
	}
	if verify == nil || verify.Signature != sig {
		return LostRace, nil
	}
	if drift := absDuration(verify.NotifiedAt.Sub(nowTs)); drift > c.win.Tolerance {
		return LostRace, nil
	}
	return Claimed, nil
}

// candidateState builds the post-event state. Score-bearing events carry the
// goal list forward; status events record the status transition. Only status
// events move Status, so a goal claimed in the same delivery as a half-time
// whistle does not pre-empt the half-time pre-check.
func (c *Coordinator) candidateState(st *State, current match.Record, ev match.Event, target, sig string, nowTs time.Time) *State {
	candidate := &State{MatchID: current.MatchID, Signature: sig, NotifiedAt: nowTs}
	if st != nil {
		candidate.Status = st.Status
		candidate.Goals = st.Goals
	}
	candidate.HomeScore = current.HomeScore
	candidate.AwayScore = current.AwayScore

	if target != "" {
		candidate.Status = target
	} else {
		candidate.Goals = current.Goals
	}
	return candidate
}

func (c *Coordinator) windowFor(kind match.Kind) time.Duration {
	switch kind {
	case match.KindKickoff:
		return c.win.Kickoff
	case match.KindGoal, match.KindGoalDisallowed, match.KindScoreUpdate:
		return c.win.Goal
	default:
		return 0
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// --------------------------------------------------------------------------
// Signatures
// --------------------------------------------------------------------------

// SignatureFor derives the canonical deduplication key for an event. Goal
// signatures cover the whole current goal set (sorted, so feed ordering is
// irrelevant); status events use the target status.
func SignatureFor(ev match.Event, current match.Record) string {
	switch ev.Kind {
	case match.KindGoal:
		keys := make([]string, 0, len(current.Goals))
		for _, g := range current.Goals {
			keys = append(keys, g.Key())
		}
		sort.Strings(keys)
		return "goals:" + strings.Join(keys, ";")
	case match.KindGoalDisallowed:
		goalKey := ""
		if ev.Goal != nil {
			goalKey = ev.Goal.Key()
		}
		return fmt.Sprintf("disallowed:%d-%d:%s", current.HomeScore, current.AwayScore, goalKey)
	case match.KindScoreUpdate:
		return fmt.Sprintf("score:%d-%d", current.HomeScore, current.AwayScore)
	default:
		return "status:" + targetStatus(ev)
	}
}

// targetStatus returns the canonical status a status event transitions the
// state row to, or "" for non-status events. Feed aliases (FT, HALF_TIME)
// collapse to their canonical values so the pre-check is alias-proof.
func targetStatus(ev match.Event) string {
	switch ev.Kind {
	case match.KindKickoff:
		return match.StatusInPlay
	case match.KindHalfTime:
		return match.StatusPaused
	case match.KindFullTime:
		return match.StatusFinished
	default:
		return ""
	}
}
