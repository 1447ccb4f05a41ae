package engine

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apicentric/pulsed/pkg/requestlog"
)

// upgrader accepts any origin: the control API serves local dashboards and
// CLIs against a simulator, not production traffic.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// serveControl routes /__pulsed/ control requests: request-log inspection,
// scenario toggles, and health.
func (rt *ServiceRuntime) serveControl(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, controlPrefix)
	path = strings.TrimSuffix(path, "/")

	switch {
	case path == "/logs":
		switch r.Method {
		case http.MethodGet:
			rt.handleLogList(w, r)
		case http.MethodDelete:
			rt.logs.Clear()
			w.WriteHeader(http.StatusNoContent)
		default:
			controlError(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	case path == "/logs/stream":
		rt.handleLogStream(w, r)

	case path == "/scenarios" && r.Method == http.MethodGet:
		rt.handleScenarioList(w)

	case strings.HasPrefix(path, "/scenarios/"):
		rt.handleScenarioToggle(w, r, strings.TrimPrefix(path, "/scenarios/"))

	case path == "/health":
		rt.handleHealth(w)

	default:
		controlError(w, http.StatusNotFound, "unknown control endpoint")
	}
}

func (rt *ServiceRuntime) handleLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Method:   q.Get("method"),
		Path:     q.Get("path"),
		Scenario: q.Get("scenario"),
	}
	if v := q.Get("status"); v != "" {
		filter.Status, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	entries := rt.logs.List(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"total":   rt.logs.Count(),
	})
}

// handleLogStream pushes new log entries over a websocket until the client
// disconnects. Entries a slow client misses are dropped, never buffered
// against the response path.
func (rt *ServiceRuntime) handleLogStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	sub, cancel := rt.logs.Subscribe()
	defer cancel()

	// Reader goroutine: detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case entry, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
	}
}

func (rt *ServiceRuntime) handleScenarioList(w http.ResponseWriter) {
	def := rt.def.Load()
	available := make([]string, 0, len(def.Scenarios))
	for _, sc := range def.Scenarios {
		available = append(available, sc.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": available,
		"active":    rt.state.Active(),
	})
}

func (rt *ServiceRuntime) handleScenarioToggle(w http.ResponseWriter, r *http.Request, name string) {
	def := rt.def.Load()

	switch r.Method {
	case http.MethodPut:
		if def.FindScenario(name) == nil {
			controlError(w, http.StatusNotFound, "unknown scenario "+name)
			return
		}
		rt.state.Activate(def, name)
		writeJSON(w, http.StatusOK, map[string]any{"active": rt.state.Active()})

	case http.MethodDelete:
		if !rt.state.Deactivate(name) {
			controlError(w, http.StatusNotFound, "scenario "+name+" not active")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"active": rt.state.Active()})

	default:
		controlError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *ServiceRuntime) handleHealth(w http.ResponseWriter) {
	def := rt.def.Load()

	rt.mu.Lock()
	uptime := time.Duration(0)
	if rt.running {
		uptime = time.Since(rt.startTime)
	}
	rt.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"service":       def.Name,
		"version":       def.Version,
		"uptimeSeconds": int(uptime.Seconds()),
		"requests":      rt.logs.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func controlError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
