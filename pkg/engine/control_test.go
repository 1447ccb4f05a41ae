package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apicentric/pulsed/pkg/requestlog"
	"github.com/apicentric/pulsed/pkg/service"
)

func scenarioDefinition(t *testing.T) *service.Definition {
	t.Helper()
	def := &service.Definition{
		Name: "flaky",
		Endpoints: []service.Endpoint{{
			Method:    "GET",
			Path:      "/items",
			Responses: []service.ResponseSpec{{Status: 200, Body: `{"ok":true}`}},
		}},
		Scenarios: []service.Scenario{{
			Name:  "outage",
			Error: &service.ErrorSpec{Status: 503, Body: `{"error":"down"}`},
		}},
	}
	require.NoError(t, def.Validate())
	def.Normalize()
	return def
}

func controlJSON(t *testing.T, rt *ServiceRuntime, method, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec.Code, payload
}

func TestControlScenarioToggleDrivesErrorBurst(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))

	// Before activation every request succeeds.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doGet(rt, "/items").Code)
	}

	code, payload := controlJSON(t, rt, http.MethodPut, "/__pulsed/scenarios/outage")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"outage"}, payload["active"])

	// During the window every request fails with the forced status.
	for i := 0; i < 5; i++ {
		rec := doGet(rt, "/items")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"error":"down"}`, rec.Body.String())
	}

	code, _ = controlJSON(t, rt, http.MethodDelete, "/__pulsed/scenarios/outage")
	require.Equal(t, http.StatusOK, code)

	// After the window closes, success resumes immediately.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doGet(rt, "/items").Code)
	}
}

func TestControlScenarioUnknownName(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))

	code, _ := controlJSON(t, rt, http.MethodPut, "/__pulsed/scenarios/ghost")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = controlJSON(t, rt, http.MethodDelete, "/__pulsed/scenarios/outage")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestControlScenarioList(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))
	rt.state.Activate(rt.Definition(), "outage")

	code, payload := controlJSON(t, rt, http.MethodGet, "/__pulsed/scenarios")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"outage"}, payload["available"])
	assert.Equal(t, []any{"outage"}, payload["active"])
}

func TestControlLogsPolling(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))

	for i := 0; i < 5; i++ {
		doGet(rt, "/items")
	}

	code, payload := controlJSON(t, rt, http.MethodGet, "/__pulsed/logs?limit=2")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), payload["count"])
	assert.Equal(t, float64(5), payload["total"])

	// Control traffic itself is not logged as service traffic.
	code, payload = controlJSON(t, rt, http.MethodGet, "/__pulsed/logs")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), payload["total"])
}

func TestControlLogsFilterByStatus(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))
	doGet(rt, "/items")
	doGet(rt, "/missing")

	code, payload := controlJSON(t, rt, http.MethodGet, "/__pulsed/logs?status=404")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), payload["count"])
}

func TestControlLogsClear(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))
	doGet(rt, "/items")

	code, _ := controlJSON(t, rt, http.MethodDelete, "/__pulsed/logs")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, 0, rt.Logs().Count())
}

func TestControlHealth(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))

	code, payload := controlJSON(t, rt, http.MethodGet, "/__pulsed/health")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "flaky", payload["service"])
}

func TestControlUnknownEndpoint(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))

	code, _ := controlJSON(t, rt, http.MethodGet, "/__pulsed/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestControlLogStreamPushesEntries(t *testing.T) {
	rt := newTestRuntime(t, scenarioDefinition(t))
	server := httptest.NewServer(rt)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/__pulsed/logs/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	// Give the subscription a moment to register before traffic flows.
	time.Sleep(50 * time.Millisecond)

	httpResp, err := http.Get(server.URL + "/items")
	require.NoError(t, err)
	_ = httpResp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var entry requestlog.Entry
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "/items", entry.Path)
	assert.Equal(t, http.StatusOK, entry.Status)
}
