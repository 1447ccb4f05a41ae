package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apicentric/pulsed/pkg/service"
)

func simpleDefinition(name string, port int) *service.Definition {
	return &service.Definition{
		Name: name,
		Port: port,
		Endpoints: []service.Endpoint{{
			Method:    "GET",
			Path:      "/ping",
			Responses: []service.ResponseSpec{{Status: 200, Body: `{"pong":true}`}},
		}},
	}
}

func TestManagerStartServesTraffic(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	rt, err := m.Start(simpleDefinition("ping", 0))
	require.NoError(t, err)
	require.True(t, rt.Running())
	require.NotZero(t, rt.Port())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", rt.Port()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, true, payload["pong"])
}

func TestManagerRejectsDuplicateName(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	_, err := m.Start(simpleDefinition("dup", 0))
	require.NoError(t, err)

	_, err = m.Start(simpleDefinition("dup", 0))
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestManagerRejectsDuplicatePort(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	_, err = m.Start(simpleDefinition("a", port))
	require.NoError(t, err)

	// The registry rejects the port before any bind attempt.
	_, err = m.Start(simpleDefinition("b", port))
	assert.ErrorIs(t, err, ErrPortInUse)
}

func TestManagerRejectsInvalidDefinition(t *testing.T) {
	m := NewManager(nil)

	def := simpleDefinition("bad", 0)
	def.Endpoints = nil

	_, err := m.Start(def)
	var vErr *service.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, m.List())
}

func TestManagerStop(t *testing.T) {
	m := NewManager(nil)

	rt, err := m.Start(simpleDefinition("stopme", 0))
	require.NoError(t, err)
	port := rt.Port()

	require.NoError(t, m.Stop(context.Background(), "stopme"))
	assert.False(t, rt.Running())
	assert.Empty(t, m.List())

	_, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", port))
	assert.Error(t, err)

	assert.ErrorIs(t, m.Stop(context.Background(), "stopme"), ErrServiceNotFound)
}

func TestManagerEdit(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	rt, err := m.Start(simpleDefinition("edit", 0))
	require.NoError(t, err)

	updated := simpleDefinition("edit", 0)
	updated.Endpoints[0].Responses[0].Body = `{"pong":"v2"}`
	require.NoError(t, m.Edit("edit", updated))

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", rt.Port()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "v2", payload["pong"])
}

func TestManagerEditRejectsRename(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	_, err := m.Start(simpleDefinition("fixed", 0))
	require.NoError(t, err)

	err = m.Edit("fixed", simpleDefinition("renamed", 0))
	var vErr *service.ValidationError
	assert.ErrorAs(t, err, &vErr)

	assert.ErrorIs(t, m.Edit("missing", simpleDefinition("missing", 0)), ErrServiceNotFound)
}

func TestManagerServicesAreIndependent(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { _ = m.StopAll(context.Background()) })

	healthy, err := m.Start(simpleDefinition("healthy", 0))
	require.NoError(t, err)

	// A service whose templates always fail must not affect its neighbor.
	broken := simpleDefinition("broken", 0)
	broken.Endpoints[0].Responses[0].Body = `{{fixtures.nothing}}`
	brokenRT, err := m.Start(broken)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", brokenRT.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", healthy.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManagerStopAll(t *testing.T) {
	m := NewManager(nil)

	_, err := m.Start(simpleDefinition("one", 0))
	require.NoError(t, err)
	_, err = m.Start(simpleDefinition("two", 0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.StopAll(ctx))
	assert.Empty(t, m.List())
}
