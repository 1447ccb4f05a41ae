package selector

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/apicentric/pulsed/pkg/logging"
	"github.com/apicentric/pulsed/pkg/service"
)

// Request is one selection to perform.
type Request struct {
	Endpoint *service.Endpoint
	// Index is the endpoint's position in the definition, keying the
	// sequential counter.
	Index int
	// Env is the guard-expression environment (method, path, params,
	// query, headers, body).
	Env map[string]any
}

// Choice is the selected response. Forced is set when an active scenario's
// error injection replaced the endpoint's own candidates; Scenario names the
// scenario that injected a fault, if any.
type Choice struct {
	Response service.ResponseSpec
	Scenario string
	Forced   bool
}

// Selector chooses responses for one running definition. Guard programs are
// compiled once and cached; sequential counters are per endpoint and restart
// when the definition is edited (the engine builds a fresh Selector then).
type Selector struct {
	logger   *slog.Logger
	counters []atomic.Uint64

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New creates a selector for a definition with the given endpoint count.
func New(logger *slog.Logger, endpoints int) *Selector {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Selector{
		logger:   logger,
		counters: make([]atomic.Uint64, endpoints),
		programs: make(map[string]*vm.Program),
	}
}

// Choose picks exactly one response for a matched endpoint. Scenario faults
// apply first: latency sleeps (honoring ctx cancellation), then error
// injection short-circuits selection entirely. Otherwise guards run in
// declared order and the endpoint strategy breaks the tie.
func (s *Selector) Choose(ctx context.Context, def *service.Definition, state *State, req Request) (*Choice, error) {
	scenario := s.effectiveScenario(def, state, req.Endpoint)
	scenarioName := ""
	if scenario != nil {
		scenarioName = scenario.Name

		if scenario.Latency != nil {
			if err := sleepLatency(ctx, scenario.Latency); err != nil {
				return nil, err
			}
		}
		if scenario.Error != nil {
			return &Choice{
				Response: forcedResponse(scenario),
				Scenario: scenarioName,
				Forced:   true,
			}, nil
		}
	}

	candidates := req.Endpoint.Candidates()
	if len(candidates) == 0 {
		// Validation refuses zero-candidate endpoints before traffic.
		return nil, fmt.Errorf("endpoint %s %s has no response candidates", req.Endpoint.Method, req.Endpoint.Path)
	}

	for i := range candidates {
		if candidates[i].Guard == "" {
			continue
		}
		ok, err := s.evalGuard(candidates[i].Guard, req.Env)
		if err != nil {
			s.logger.Debug("guard evaluation failed, treating as no match",
				"guard", candidates[i].Guard, "error", err)
			continue
		}
		if ok {
			return &Choice{Response: candidates[i], Scenario: scenarioName}, nil
		}
	}

	return &Choice{Response: s.fallback(req, candidates), Scenario: scenarioName}, nil
}

func (s *Selector) fallback(req Request, candidates []service.ResponseSpec) service.ResponseSpec {
	switch req.Endpoint.Strategy {
	case service.StrategySequential:
		// A request racing a definition edit may carry an index from the
		// old definition; fall back to the first candidate then.
		if req.Index < 0 || req.Index >= len(s.counters) {
			return candidates[0]
		}
		n := s.counters[req.Index].Add(1) - 1
		return candidates[int(n%uint64(len(candidates)))]
	case service.StrategyRandom:
		return candidates[mathrand.Intn(len(candidates))]
	default:
		for i := range candidates {
			if candidates[i].Guard == "" {
				return candidates[i]
			}
		}
		// Every candidate is guarded and none matched; answer with the
		// first rather than failing mid-traffic.
		return candidates[0]
	}
}

// effectiveScenario resolves which scenario, if any, governs this request.
// An endpoint-level scenario pin takes precedence over the active set.
func (s *Selector) effectiveScenario(def *service.Definition, state *State, ep *service.Endpoint) *service.Scenario {
	if ep.Scenario != "" {
		return def.FindScenario(ep.Scenario)
	}
	if state == nil {
		return nil
	}
	return state.effectiveFor(def, ep.Method, ep.Path)
}

func (s *Selector) evalGuard(src string, env map[string]any) (bool, error) {
	s.mu.RLock()
	prog, ok := s.programs[src]
	s.mu.RUnlock()

	if !ok {
		var err error
		prog, err = expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.programs[src] = prog
		s.mu.Unlock()
	}

	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	return ok && b, nil
}

func sleepLatency(ctx context.Context, spec *service.LatencySpec) error {
	ms := spec.MinMs
	if spec.MaxMs > spec.MinMs {
		ms += mathrand.Intn(spec.MaxMs - spec.MinMs + 1)
	}
	if ms <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}

func forcedResponse(scenario *service.Scenario) service.ResponseSpec {
	body := scenario.Error.Body
	if body == "" {
		body = fmt.Sprintf(`{"error":"injected by scenario '%s'"}`, scenario.Name)
	}
	return service.ResponseSpec{
		Status:      scenario.Error.Status,
		ContentType: "application/json",
		Body:        body,
	}
}
