package selector

import (
	"log/slog"
	"sync"

	"github.com/apicentric/pulsed/pkg/logging"
	"github.com/apicentric/pulsed/pkg/service"
)

// State tracks which scenarios are active for one service. Activation order
// matters: when two active scenarios cover the same endpoint, the most
// recently activated one wins.
type State struct {
	logger *slog.Logger

	mu    sync.RWMutex
	order []string
}

// NewState creates an empty scenario state.
func NewState(logger *slog.Logger) *State {
	if logger == nil {
		logger = logging.Nop()
	}
	return &State{logger: logger}
}

// Activate marks a scenario active. Re-activating moves it to the end of the
// activation order. When the new scenario covers an endpoint that another
// active scenario already covers, the conflict is logged and the newer
// activation wins.
func (s *State) Activate(def *service.Definition, name string) {
	scenario := def.FindScenario(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = remove(s.order, name)
	if scenario != nil {
		for _, other := range s.order {
			prev := def.FindScenario(other)
			if prev != nil && overlap(def, scenario, prev) {
				s.logger.Warn("scenario conflict, last activation wins",
					"service", def.Name, "activated", name, "overlaps", other)
			}
		}
	}
	s.order = append(s.order, name)
}

// Deactivate removes a scenario from the active set. It reports whether the
// scenario was active.
func (s *State) Deactivate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.order)
	s.order = remove(s.order, name)
	return len(s.order) != n
}

// Active returns the active scenario names in activation order.
func (s *State) Active() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// effectiveFor returns the scenario governing an endpoint, or nil. The most
// recent activation that covers the endpoint wins.
func (s *State) effectiveFor(def *service.Definition, method, path string) *service.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		sc := def.FindScenario(s.order[i])
		if sc != nil && sc.Covers(method, path) {
			return sc
		}
	}
	return nil
}

func remove(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// overlap reports whether two scenarios both cover at least one endpoint of
// the definition.
func overlap(def *service.Definition, a, b *service.Scenario) bool {
	for i := range def.Endpoints {
		ep := &def.Endpoints[i]
		if a.Covers(ep.Method, ep.Path) && b.Covers(ep.Method, ep.Path) {
			return true
		}
	}
	return false
}
