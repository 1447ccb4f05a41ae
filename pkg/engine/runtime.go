package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apicentric/pulsed/pkg/logging"
	"github.com/apicentric/pulsed/pkg/requestlog"
	"github.com/apicentric/pulsed/pkg/router"
	"github.com/apicentric/pulsed/pkg/selector"
	"github.com/apicentric/pulsed/pkg/service"
	"github.com/apicentric/pulsed/pkg/template"
)

// maxRequestBody bounds how much of a request body is read for templating
// and logging.
const maxRequestBody = 1 << 20

// ServiceRuntime is one running simulated service: a listener plus the
// state needed to answer its requests. The definition is behind an atomic
// pointer so edits swap it wholesale while traffic is flowing.
type ServiceRuntime struct {
	logger *slog.Logger
	router *router.Router

	def atomic.Pointer[service.Definition]
	sel atomic.Pointer[selector.Selector]

	state     *selector.State
	sequences *template.SequenceStore
	renderer  *template.Engine
	logs      *requestlog.MemoryStore

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	running   bool
	startTime time.Time
}

func newServiceRuntime(def *service.Definition, rt *router.Router, logger *slog.Logger) *ServiceRuntime {
	if logger == nil {
		logger = logging.Nop()
	}
	sequences := template.NewSequenceStore()
	r := &ServiceRuntime{
		logger:    logger.With("service", def.Name),
		router:    rt,
		state:     selector.NewState(logger),
		sequences: sequences,
		renderer:  template.NewWithSequences(sequences),
		logs:      requestlog.NewMemoryStore(1000),
	}
	r.def.Store(def)
	r.sel.Store(selector.New(logger, len(def.Endpoints)))
	return r
}

// Definition returns the current definition snapshot.
func (rt *ServiceRuntime) Definition() *service.Definition {
	return rt.def.Load()
}

// Logs exposes the service's request log store.
func (rt *ServiceRuntime) Logs() requestlog.SubscribableStore {
	return rt.logs
}

// Scenarios exposes the service's scenario state.
func (rt *ServiceRuntime) Scenarios() *selector.State {
	return rt.state
}

// Port returns the bound port, which may differ from the definition's when
// the definition asked for auto-assignment.
func (rt *ServiceRuntime) Port() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.listener == nil {
		return rt.def.Load().Port
	}
	if addr, ok := rt.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return rt.def.Load().Port
}

// Running reports whether the listener is up.
func (rt *ServiceRuntime) Running() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.running
}

// Start binds the listener and begins serving. Serve errors after startup
// are logged, not returned: a dying service must not take the process down.
func (rt *ServiceRuntime) Start() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.running {
		return fmt.Errorf("service %s already running", rt.def.Load().Name)
	}

	def := rt.def.Load()
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", def.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", def.Port, err)
	}

	rt.listener = listener
	rt.server = &http.Server{
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rt.running = true
	rt.startTime = time.Now()

	server := rt.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("listener stopped unexpectedly", "error", err)
		}
	}()

	rt.logger.Info("service started", "port", rt.portLocked(), "endpoints", len(def.Endpoints))
	return nil
}

func (rt *ServiceRuntime) portLocked() int {
	if addr, ok := rt.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return rt.def.Load().Port
}

// Stop shuts the listener down gracefully.
func (rt *ServiceRuntime) Stop(ctx context.Context) error {
	rt.mu.Lock()
	server := rt.server
	rt.server = nil
	rt.listener = nil
	rt.running = false
	rt.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.logger.Info("service stopped")
	return nil
}

// Edit replaces the definition. The swap is atomic: concurrent requests see
// either the old or the new definition in full. Sequential counters restart;
// named sequences and the request log survive.
func (rt *ServiceRuntime) Edit(def *service.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.Normalize()

	current := rt.def.Load()
	if def.Port != current.Port {
		return fmt.Errorf("cannot change port from %d to %d on a running service, restart it instead",
			current.Port, def.Port)
	}

	// A request racing the swap may pair the new selector with the old
	// definition or vice versa; the selector tolerates out-of-range
	// endpoint indexes, so either pairing stays safe.
	rt.sel.Store(selector.New(rt.logger, len(def.Endpoints)))
	rt.def.Store(def)
	rt.logger.Info("definition updated", "endpoints", len(def.Endpoints))
	return nil
}
