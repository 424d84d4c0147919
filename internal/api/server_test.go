// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumxr/atrium/internal/engine"
	"github.com/atriumxr/atrium/internal/health"
	"github.com/atriumxr/atrium/internal/journal"
	"github.com/atriumxr/atrium/internal/lifecycle"
	"github.com/atriumxr/atrium/internal/memwatch"
	"github.com/atriumxr/atrium/internal/state"
)

func newTestServer(t *testing.T, jrnl *journal.Journal) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Options{
		Sampler: memwatch.SamplerFunc(func() (uint64, uint64, bool) { return 0, 0, false }),
	})
	t.Cleanup(eng.Cleanup)

	hm := health.NewManager("v-test")
	hm.Register(&health.StateChecker{States: eng.States})

	return New(eng, jrnl, hm), eng
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestStateEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	router := srv.Router()

	require.True(t, eng.States.Transition(state.Loading, nil))

	rec := get(t, router, "/api/v1/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Current   string   `json:"current"`
		Previous  string   `json:"previous"`
		Reachable []string `json:"reachable"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Loading", resp.Current)
	assert.Equal(t, "Initializing", resp.Previous)
	assert.Equal(t, []string{"Ready", "Error"}, resp.Reachable)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	router := srv.Router()

	require.True(t, eng.States.Transition(state.Loading, nil))
	require.True(t, eng.States.Transition(state.Ready, nil))

	rec := get(t, router, "/api/v1/state/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		History []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"history"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.History, 2)
	assert.Equal(t, "Initializing", resp.History[0].From)
	assert.Equal(t, "Ready", resp.History[1].To)
}

func TestErrorsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := get(t, router, "/api/v1/errors")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Counts   map[string]int `json:"counts"`
		InFlight bool           `json:"inFlight"`
	}
	decode(t, rec, &resp)
	assert.Empty(t, resp.Counts)
	assert.False(t, resp.InFlight)
}

func TestErrorResetEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/errors/NetworkError/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Kind  string `json:"kind"`
		Reset bool   `json:"reset"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "NetworkError", resp.Kind)
	assert.True(t, resp.Reset)
}

func TestErrorResetUnknownKind(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/errors/Meltdown/reset", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown error kind")
}

func TestResourcesEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	router := srv.Router()

	eng.Resources.Register(&struct{ n string }{n: "a"}, lifecycle.Metadata{Kind: "texture", Label: "hall-a"})

	rec := get(t, router, "/api/v1/resources")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int `json:"count"`
		Entries []struct {
			Kind  string `json:"kind"`
			Label string `json:"label"`
		} `json:"entries"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "texture", resp.Entries[0].Kind)
}

func TestJournalEndpointDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(t, srv.Router(), "/api/v1/journal")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJournalEndpoint(t *testing.T) {
	jrnl, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = jrnl.Close() })

	srv, eng := newTestServer(t, jrnl)
	jrnl.Attach(eng.Events)
	router := srv.Router()

	require.True(t, eng.States.Transition(state.Loading, nil))

	rec := get(t, router, "/api/v1/journal?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []struct {
			Topic string `json:"topic"`
		} `json:"records"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "stateChange", resp.Records[0].Topic)
}

func TestJournalEndpointBadLimit(t *testing.T) {
	jrnl, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = jrnl.Close() })

	srv, _ := newTestServer(t, jrnl)
	router := srv.Router()

	for _, q := range []string{"limit=0", "limit=-1", "limit=1001", "limit=abc"} {
		rec := get(t, router, "/api/v1/journal?"+q)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "query %s", q)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(t, srv.Router(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "atrium_")
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := get(t, router, "/api/v1/state")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-Id"))
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Router(), "/api/v1/nope").Code)
}
