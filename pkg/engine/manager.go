package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/apicentric/pulsed/pkg/logging"
	"github.com/apicentric/pulsed/pkg/router"
	"github.com/apicentric/pulsed/pkg/service"
)

var (
	// ErrServiceNotFound reports an operation on an unknown service name.
	ErrServiceNotFound = errors.New("service not found")
	// ErrServiceExists reports a start with an already-registered name.
	ErrServiceExists = errors.New("service already exists")
	// ErrPortInUse reports a start on a port claimed by another service.
	ErrPortInUse = errors.New("port already in use by another service")
)

// Manager owns all running service runtimes. Services are independent: the
// manager's lock guards only the registry, never the request path, and the
// pattern cache is the single piece of state runtimes share.
type Manager struct {
	logger *slog.Logger
	router *router.Router

	mu       sync.RWMutex
	services map[string]*ServiceRuntime
}

// NewManager creates a manager with a fresh process-wide pattern cache.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		logger:   logger,
		router:   router.New(router.NewPatternCache()),
		services: make(map[string]*ServiceRuntime),
	}
}

// Start validates a definition, registers it, and brings its listener up.
// Validation failure is fatal only to this service.
func (m *Manager) Start(def *service.Definition) (*ServiceRuntime, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def.Normalize()

	m.mu.Lock()
	if _, ok := m.services[def.Name]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrServiceExists, def.Name)
	}
	if def.Port != 0 {
		for name, other := range m.services {
			if other.Definition().Port == def.Port {
				m.mu.Unlock()
				return nil, fmt.Errorf("%w: port %d held by %s", ErrPortInUse, def.Port, name)
			}
		}
	}
	rt := newServiceRuntime(def, m.router, m.logger)
	m.services[def.Name] = rt
	m.mu.Unlock()

	if err := rt.Start(); err != nil {
		m.mu.Lock()
		delete(m.services, def.Name)
		m.mu.Unlock()
		return nil, err
	}
	return rt, nil
}

// Stop shuts down one service and removes it from the registry.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	rt, ok := m.services[name]
	delete(m.services, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return rt.Stop(ctx)
}

// StopAll shuts down every service, returning the first error encountered.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	runtimes := make([]*ServiceRuntime, 0, len(m.services))
	for _, rt := range m.services {
		runtimes = append(runtimes, rt)
	}
	m.services = make(map[string]*ServiceRuntime)
	m.mu.Unlock()

	var firstErr error
	for _, rt := range runtimes {
		if err := rt.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Edit atomically replaces a running service's definition. The definition
// keeps its name and port; traffic in flight sees old or new, never a mix.
func (m *Manager) Edit(name string, def *service.Definition) error {
	m.mu.RLock()
	rt, ok := m.services[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if def.Name != name {
		return &service.ValidationError{Field: "name", Message: "definition name cannot change on edit"}
	}
	return rt.Edit(def)
}

// Get returns the runtime for a service name.
func (m *Manager) Get(name string) (*ServiceRuntime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.services[name]
	return rt, ok
}

// List returns all runtimes sorted by service name.
func (m *Manager) List() []*ServiceRuntime {
	m.mu.RLock()
	runtimes := make([]*ServiceRuntime, 0, len(m.services))
	for _, rt := range m.services {
		runtimes = append(runtimes, rt)
	}
	m.mu.RUnlock()

	sort.Slice(runtimes, func(i, j int) bool {
		return runtimes[i].Definition().Name < runtimes[j].Definition().Name
	})
	return runtimes
}
