package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiveaside/matchpulse/internal/audience"
)

type fakePushClient struct {
	unsubscribed map[string]bool
	checkErr     error
	sendErr      error
	batches      [][]string
	titles       []string
}

func (c *fakePushClient) IsSubscribed(_ context.Context, token string) (bool, error) {
	if c.checkErr != nil {
		return false, c.checkErr
	}
	return !c.unsubscribed[token], nil
}

func (c *fakePushClient) SendBatch(_ context.Context, tokens []string, title, _ string, _ map[string]string) (int, int, error) {
	if c.sendErr != nil {
		return 0, 0, c.sendErr
	}
	c.batches = append(c.batches, tokens)
	c.titles = append(c.titles, title)
	return len(tokens), 0, nil
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSendSingleBatchAcrossRecipients(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{}
	d := NewDispatcher(client, discardLogger)

	recipients := []audience.Recipient{
		{UserID: "u1", Tokens: []string{"tok1", "tok2"}},
		{UserID: "u2", Tokens: []string{"tok3"}},
	}

	sum := d.Send(context.Background(), recipients, Message{Title: "Half-Time"}, nil)
	assert.Equal(t, Summary{Accepted: 3, TotalAttempted: 3}, sum)
	require.Len(t, client.batches, 1)
	assert.Equal(t, []string{"tok1", "tok2", "tok3"}, client.batches[0])
}

func TestSendSkipsUnsubscribedDevices(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{unsubscribed: map[string]bool{"tok2": true}}
	d := NewDispatcher(client, discardLogger)

	recipients := []audience.Recipient{{UserID: "u1", Tokens: []string{"tok1", "tok2"}}}
	sum := d.Send(context.Background(), recipients, Message{Title: "Goal"}, nil)

	assert.Equal(t, Summary{Accepted: 1, Skipped: 1, TotalAttempted: 1}, sum)
}

func TestSendChecksFailOpen(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{checkErr: errors.New("provider down")}
	d := NewDispatcher(client, discardLogger)

	recipients := []audience.Recipient{{UserID: "u1", Tokens: []string{"tok1"}}}
	sum := d.Send(context.Background(), recipients, Message{Title: "Goal"}, nil)

	// The check failure does not drop the device.
	assert.Equal(t, Summary{Accepted: 1, TotalAttempted: 1}, sum)
}

func TestSendProviderErrorIsCountedNotRaised(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{sendErr: errors.New("send failed")}
	d := NewDispatcher(client, discardLogger)

	recipients := []audience.Recipient{{UserID: "u1", Tokens: []string{"tok1", "tok2"}}}
	sum := d.Send(context.Background(), recipients, Message{Title: "Goal"}, nil)

	assert.Equal(t, Summary{Failed: 2, TotalAttempted: 2}, sum)
}

func TestSendPersonalizedBuildsPerRecipient(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{}
	d := NewDispatcher(client, discardLogger)

	recipients := []audience.Recipient{
		{UserID: "u1", Tokens: []string{"tok1"}},
		{UserID: "u2", Tokens: []string{"tok2"}},
	}

	sum := d.SendPersonalized(context.Background(), recipients, func(r audience.Recipient) Message {
		return Message{Title: "FT for " + r.UserID}
	}, nil)

	assert.Equal(t, Summary{Accepted: 2, TotalAttempted: 2}, sum)
	assert.Equal(t, []string{"FT for u1", "FT for u2"}, client.titles)
}

func TestSendNoRecipientsNoBatch(t *testing.T) {
	t.Parallel()

	client := &fakePushClient{}
	d := NewDispatcher(client, discardLogger)

	sum := d.Send(context.Background(), nil, Message{Title: "Goal"}, nil)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, client.batches)
}
