package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBatch(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendResponse{Accepted: 2, Failed: 1})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	accepted, failed, err := c.SendBatch(context.Background(),
		[]string{"tok1", "tok2", "tok3"}, "Goal!", "1-0",
		map[string]string{"match_id": "m1"})

	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, failed)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []string{"tok1", "tok2", "tok3"}, gotBody.Tokens)
	assert.Equal(t, "Goal!", gotBody.Title)
	assert.Equal(t, "m1", gotBody.Data["match_id"])
}

func TestSendBatchUnexpectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, _, err := c.SendBatch(context.Background(), []string{"tok1"}, "t", "b", nil)
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestIsSubscribed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/devices/tok1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deviceResponse{Token: "tok1", Subscribed: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	subscribed, err := c.IsSubscribed(context.Background(), "tok1")
	require.NoError(t, err)
	assert.True(t, subscribed)
}

func TestIsSubscribedUnknownDevice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	subscribed, err := c.IsSubscribed(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestNoAuthHeaderWithoutKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deviceResponse{Subscribed: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.IsSubscribed(context.Background(), "tok1")
	require.NoError(t, err)
}
