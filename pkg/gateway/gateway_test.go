package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillminer/skillminer/pkg/types/mining"
)

func testConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.InitialDelayMs = 1
	cfg.MaxDelayMs = 5
	cfg.BackoffType = "fixed"
	return cfg
}

func sampleProposal() mining.ChangeProposal {
	return mining.ChangeProposal{
		NewSkillID: "shop-example-com",
		Summary:    "Create skill",
		SelectorChanges: []mining.SelectorChange{
			{Action: mining.ActionAddOrUpdate, Selector: ".buy-btn", UsageCount: 10, SuccessRate: 0.8},
		},
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint cannot be empty")

	_, err = NewClient(Config{Endpoint: "not a url"})
	require.Error(t, err)

	client, err := NewClient(Config{Endpoint: "http://localhost:9999/apply"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Attempts, client.cfg.Attempts)
}

func TestApplyPostsProposal(t *testing.T) {
	var received mining.ChangeProposal
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Token = "secret"
	client, err := NewClient(cfg)
	require.NoError(t, err)

	require.NoError(t, client.Apply(context.Background(), sampleProposal()))
	assert.Equal(t, "Bearer secret", authHeader)
	assert.Equal(t, "shop-example-com", received.NewSkillID)
	require.Len(t, received.SelectorChanges, 1)
}

func TestApplyRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	require.NoError(t, client.Apply(context.Background(), sampleProposal()))
	assert.Equal(t, int64(3), calls.Load())
}

func TestApplyDoesNotRetryPermanentRejection(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "schema mismatch", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Apply(context.Background(), sampleProposal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int64(1), calls.Load())
}

func TestApplyExhaustsAttempts(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Attempts = 2
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Apply(context.Background(), sampleProposal())
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestApplyRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	require.NoError(t, client.Apply(context.Background(), sampleProposal()))
	assert.Equal(t, int64(2), calls.Load())
}
