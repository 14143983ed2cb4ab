package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillminer/skillminer/pkg/proposalcache"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/synthesizer"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

type stubGateway struct {
	err     error
	applied int
}

func (g *stubGateway) Apply(_ context.Context, _ mining.ChangeProposal) error {
	if g.err != nil {
		return g.err
	}
	g.applied++
	return nil
}

func newTestServer(t *testing.T, gw synthesizer.Gateway) (*Server, store.CandidateStore, string) {
	t.Helper()

	st := store.NewMemoryStore()
	stored, err := st.Merge(context.Background(), mining.Candidate{
		Source:        mining.SourceShadow,
		VirtualDomain: "shop.example.com",
		Selectors: []mining.SelectorStat{
			{Selector: ".buy-btn", UsageCount: 10, SuccessCount: 8, SuccessRate: 0.8, LastSeenAt: time.Now().UTC()},
		},
	})
	require.NoError(t, err)

	service := synthesizer.NewService(st, proposalcache.New(), gw)
	server, err := NewServer(&ServerConfig{Host: "localhost", Port: 8317}, st, service)
	require.NoError(t, err)

	return server, st, stored.ID
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServerConfigValidate(t *testing.T) {
	require.NoError(t, (&ServerConfig{Host: "localhost", Port: 8317}).Validate())
	require.Error(t, (&ServerConfig{Host: "", Port: 8317}).Validate())
	require.Error(t, (&ServerConfig{Host: "localhost", Port: 0}).Validate())
	require.Error(t, (&ServerConfig{Host: "localhost", Port: 70000}).Validate())
}

func TestHealthz(t *testing.T) {
	server, _, _ := newTestServer(t, nil)

	rec := doRequest(t, server, "GET", "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListCandidates(t *testing.T) {
	server, _, id := newTestServer(t, nil)

	rec := doRequest(t, server, "GET", "/api/candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Candidates []mining.Candidate `json:"candidates"`
		Total      int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, id, resp.Candidates[0].ID)
}

func TestGetCandidate(t *testing.T) {
	server, _, id := newTestServer(t, nil)

	rec := doRequest(t, server, "GET", "/api/candidates/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var c mining.Candidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "shop.example.com", c.VirtualDomain)

	rec = doRequest(t, server, "GET", "/api/candidates/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetStatus(t *testing.T) {
	server, st, id := newTestServer(t, nil)

	rec := doRequest(t, server, "PUT", "/api/candidates/"+id+"/status", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mining.StatusApproved, got.Status)

	// approved -> rejected is not a legal edge
	rec = doRequest(t, server, "PUT", "/api/candidates/"+id+"/status", map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, server, "PUT", "/api/candidates/nope/status", map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, "PUT", "/api/candidates/"+id+"/status", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetNotes(t *testing.T) {
	server, st, id := newTestServer(t, nil)

	rec := doRequest(t, server, "PUT", "/api/candidates/"+id+"/notes", map[string]string{"notes": "re-check selectors"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "re-check selectors", got.Notes)
}

func TestProposalEndpoints(t *testing.T) {
	server, _, id := newTestServer(t, nil)

	// No proposal cached yet.
	rec := doRequest(t, server, "GET", fmt.Sprintf("/api/candidates/%s/proposal", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, "POST", fmt.Sprintf("/api/candidates/%s/proposal", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p mining.ChangeProposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "shop-example-com", p.NewSkillID)
	require.Len(t, p.SelectorChanges, 1)

	// Now the cached copy is served.
	rec = doRequest(t, server, "GET", fmt.Sprintf("/api/candidates/%s/proposal", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cached mining.ChangeProposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	assert.Equal(t, p.NewSkillID, cached.NewSkillID)
}

func TestGenerateProposalUnknownCandidate(t *testing.T) {
	server, _, _ := newTestServer(t, nil)

	rec := doRequest(t, server, "POST", "/api/candidates/nope/proposal", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyEndpoint(t *testing.T) {
	gw := &stubGateway{}
	server, st, id := newTestServer(t, gw)

	// candidate status cannot be applied
	rec := doRequest(t, server, "POST", fmt.Sprintf("/api/candidates/%s/apply", id), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, st.SetStatus(context.Background(), id, mining.StatusApproved))

	rec = doRequest(t, server, "POST", fmt.Sprintf("/api/candidates/%s/apply", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gw.applied)

	got, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mining.StatusMerged, got.Status)
}

func TestApplyEndpointGatewayFailure(t *testing.T) {
	gw := &stubGateway{err: fmt.Errorf("registry down")}
	server, st, id := newTestServer(t, gw)

	require.NoError(t, st.SetStatus(context.Background(), id, mining.StatusApproved))

	rec := doRequest(t, server, "POST", fmt.Sprintf("/api/candidates/%s/apply", id), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	got, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mining.StatusApproved, got.Status)
}
