package notify

import (
	"context"
	"log/slog"

	"github.com/fiveaside/matchpulse/internal/audience"
)

// PushClient is the provider surface the dispatcher needs: a per-device
// subscription check and a batched send.
type PushClient interface {
	IsSubscribed(ctx context.Context, token string) (bool, error)
	SendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) (accepted, failed int, err error)
}

// Summary reports one dispatch: devices accepted and failed by the provider,
// devices skipped because they are unsubscribed at the OS level, and the
// total the provider was actually asked to deliver to.
type Summary struct {
	Accepted       int `json:"accepted"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	TotalAttempted int `json:"total_attempted"`
}

func (s *Summary) add(other Summary) {
	s.Accepted += other.Accepted
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.TotalAttempted += other.TotalAttempted
}

// Dispatcher formats nothing itself; it takes prepared messages, screens
// device tokens against the provider, and sends. Provider errors are logged
// and counted, never raised — the idempotency state is already committed by
// the time a send runs, and a retry storm is worse than a missed push.
type Dispatcher struct {
	client PushClient
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(client PushClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

// Send delivers one message to every recipient's devices in a single batch.
func (d *Dispatcher) Send(ctx context.Context, recipients []audience.Recipient, msg Message, data map[string]string) Summary {
	var all []string
	var sum Summary
	for _, r := range recipients {
		tokens, skipped := d.screenTokens(ctx, r.Tokens)
		sum.Skipped += skipped
		all = append(all, tokens...)
	}
	if len(all) == 0 {
		return sum
	}

	sum.add(d.sendBatch(ctx, all, msg, data))
	return sum
}

// SendPersonalized delivers a per-recipient message built by build. Used for
// full-time pushes, whose body depends on each user's pick.
func (d *Dispatcher) SendPersonalized(ctx context.Context, recipients []audience.Recipient, build func(audience.Recipient) Message, data map[string]string) Summary {
	var sum Summary
	for _, r := range recipients {
		tokens, skipped := d.screenTokens(ctx, r.Tokens)
		sum.Skipped += skipped
		if len(tokens) == 0 {
			continue
		}
		sum.add(d.sendBatch(ctx, tokens, build(r), data))
	}
	return sum
}

// screenTokens drops devices the provider reports as unsubscribed. A failed
// check counts the device in rather than out — the send itself will surface
// a real delivery problem.
func (d *Dispatcher) screenTokens(ctx context.Context, tokens []string) (kept []string, skipped int) {
	for _, token := range tokens {
		subscribed, err := d.client.IsSubscribed(ctx, token)
		if err != nil {
			d.logger.Warn("Subscription check failed, sending anyway", "error", err)
			kept = append(kept, token)
			continue
		}
		if !subscribed {
			skipped++
			continue
		}
		kept = append(kept, token)
	}
	return kept, skipped
}

func (d *Dispatcher) sendBatch(ctx context.Context, tokens []string, msg Message, data map[string]string) Summary {
	sum := Summary{TotalAttempted: len(tokens)}
	accepted, failed, err := d.client.SendBatch(ctx, tokens, msg.Title, msg.Body, data)
	if err != nil {
		d.logger.Error("Push send failed",
			"title", msg.Title, "devices", len(tokens), "error", err)
		sum.Failed = len(tokens)
		return sum
	}
	sum.Accepted = accepted
	sum.Failed = failed
	return sum
}
