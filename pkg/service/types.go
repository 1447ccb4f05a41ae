package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy selects among eligible response candidates when no guard matches.
// It is a closed set: validation rejects anything else, and the selector
// switches exhaustively over these values.
type Strategy string

const (
	// StrategyDefault picks the first candidate with no guard.
	StrategyDefault Strategy = ""
	// StrategyGuarded is guard-only selection; with no truthy guard the
	// first guard-free candidate is used.
	StrategyGuarded Strategy = "guarded"
	// StrategySequential cycles candidates in declaration order, one per
	// request, wrapping after the last.
	StrategySequential Strategy = "sequential"
	// StrategyRandom draws a candidate uniformly.
	StrategyRandom Strategy = "random"
)

// Definition is the validated, immutable description of one simulated service.
type Definition struct {
	// Name uniquely identifies the service within the engine.
	Name string `json:"name" yaml:"name"`

	// Version is a free-form version label carried through to logs.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Description is an optional longer description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Port is the TCP port the service listens on. 0 means auto-assign.
	Port int `json:"port" yaml:"port"`

	// BasePath is stripped from incoming paths before endpoint matching
	// (e.g. "/api/v1"). Empty means the service is mounted at the root.
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`

	// Endpoints are matched in declaration order; the first structural
	// match wins. The same (method, path) pair may appear more than once.
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`

	// Fixtures are named, read-only sample datasets available to response
	// templates as fixtures.<name>.
	Fixtures map[string]any `json:"fixtures,omitempty" yaml:"fixtures,omitempty"`

	// Scenarios are service-scoped fault toggles (latency, forced errors).
	Scenarios []Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`

	// CORS configures cross-origin handling for the service's listener.
	CORS *CORSConfig `json:"cors,omitempty" yaml:"cors,omitempty"`

	// Logging controls per-service log verbosity.
	Logging LogConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LogConfig holds per-service logging settings.
type LogConfig struct {
	// Verbose exposes render-failure detail in 500 response bodies and
	// lowers the operational log level for this service.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// CORSConfig configures cross-origin resource sharing for a service.
type CORSConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	AllowOrigins []string `json:"allowOrigins,omitempty" yaml:"allowOrigins,omitempty"`
	AllowMethods []string `json:"allowMethods,omitempty" yaml:"allowMethods,omitempty"`
	AllowHeaders []string `json:"allowHeaders,omitempty" yaml:"allowHeaders,omitempty"`
	MaxAgeSecs   int      `json:"maxAgeSeconds,omitempty" yaml:"maxAgeSeconds,omitempty"`
}

// Endpoint is one (method, path pattern) route within a Definition.
//
// Response candidates may be declared either as the ordered Responses list or
// as the status-keyed ByStatus map, never both. Normalize folds ByStatus into
// Responses so the rest of the engine only ever sees the list form.
type Endpoint struct {
	Method      string `json:"method" yaml:"method"`
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Strategy picks among candidates when no guard matches.
	Strategy Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Scenario names a scenario that applies to this endpoint even when it
	// targets other endpoints or nothing explicitly.
	Scenario string `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	Responses []ResponseSpec       `json:"responses,omitempty" yaml:"responses,omitempty"`
	ByStatus  map[int]ResponseSpec `json:"byStatus,omitempty" yaml:"byStatus,omitempty"`
}

// Candidates returns the normalized, ordered response candidates.
// After Normalize this is always the Responses slice.
func (e *Endpoint) Candidates() []ResponseSpec {
	return e.Responses
}

// ResponseSpec describes one candidate response for an endpoint.
type ResponseSpec struct {
	// Status is the HTTP status code to emit. Defaults to 200.
	Status int `json:"status" yaml:"status"`

	// ContentType defaults to application/json when empty.
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// Headers are response headers; values are templates.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is a template in the response templating language. In YAML/JSON
	// sources it may be written as a structured value, which is stored as
	// its canonical JSON encoding.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Guard is a boolean expression evaluated against the request; when
	// set, this candidate is only eligible if the guard is truthy.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`

	// DelayMs adds a fixed delay before the response is written,
	// independent of scenario latency injection.
	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// Scenario is a named, service-scoped toggle injecting latency and/or a
// forced error, consulted before normal response selection.
type Scenario struct {
	Name string `json:"name" yaml:"name"`

	// Endpoints optionally limits the scenario to specific routes, written
	// as "METHOD /path" (the declared pattern, not a concrete request
	// path). Empty means the scenario covers the whole service.
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`

	// Latency injects a random delay in [MinMs, MaxMs] per request.
	Latency *LatencySpec `json:"latency,omitempty" yaml:"latency,omitempty"`

	// Error short-circuits selection with a forced status and body.
	Error *ErrorSpec `json:"error,omitempty" yaml:"error,omitempty"`
}

// LatencySpec bounds injected latency.
type LatencySpec struct {
	MinMs int `json:"minMs" yaml:"minMs"`
	MaxMs int `json:"maxMs" yaml:"maxMs"`
}

// ErrorSpec describes a forced error response.
type ErrorSpec struct {
	Status int    `json:"status" yaml:"status"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Covers reports whether the scenario applies to the given endpoint,
// identified by its declared method and path pattern.
func (s *Scenario) Covers(method, path string) bool {
	if len(s.Endpoints) == 0 {
		return true
	}
	key := strings.ToUpper(method) + " " + path
	for _, target := range s.Endpoints {
		if normalizeEndpointKey(target) == key {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts body written either as a string or as a structured
// JSON value. Structured bodies are stored as their JSON encoding, so config
// sources can write body: {"id": 1} instead of body: "{\"id\": 1}".
func (r *ResponseSpec) UnmarshalJSON(data []byte) error {
	var proxy struct {
		Status      int               `json:"status"`
		ContentType string            `json:"contentType"`
		Headers     map[string]string `json:"headers"`
		Body        json.RawMessage   `json:"body"`
		Guard       string            `json:"guard"`
		DelayMs     int               `json:"delayMs"`
	}
	if err := json.Unmarshal(data, &proxy); err != nil {
		return err
	}

	r.Status = proxy.Status
	r.ContentType = proxy.ContentType
	r.Headers = proxy.Headers
	r.Guard = proxy.Guard
	r.DelayMs = proxy.DelayMs

	if len(proxy.Body) == 0 {
		r.Body = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(proxy.Body, &s); err == nil {
		r.Body = s
		return nil
	}

	// Object, array, number, or boolean: keep the raw JSON text.
	r.Body = string(proxy.Body)
	return nil
}

// UnmarshalYAML accepts body written either as a scalar or as a YAML
// mapping/sequence. Structured bodies are re-encoded as JSON text.
func (r *ResponseSpec) UnmarshalYAML(value *yaml.Node) error {
	var proxy struct {
		Status      int               `yaml:"status"`
		ContentType string            `yaml:"contentType"`
		Headers     map[string]string `yaml:"headers"`
		Body        yaml.Node         `yaml:"body"`
		Guard       string            `yaml:"guard"`
		DelayMs     int               `yaml:"delayMs"`
	}
	if err := value.Decode(&proxy); err != nil {
		return err
	}

	r.Status = proxy.Status
	r.ContentType = proxy.ContentType
	r.Headers = proxy.Headers
	r.Guard = proxy.Guard
	r.DelayMs = proxy.DelayMs

	switch proxy.Body.Kind {
	case 0:
		// Body absent.
		r.Body = ""
	case yaml.ScalarNode:
		r.Body = proxy.Body.Value
	default:
		var structured any
		if err := proxy.Body.Decode(&structured); err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
		encoded, err := json.Marshal(structured)
		if err != nil {
			return fmt.Errorf("encode body as JSON: %w", err)
		}
		r.Body = string(encoded)
	}
	return nil
}

// Normalize folds status-keyed candidate maps into the ordered list form and
// fills defaults (status 200, application/json content type). It assumes the
// definition already passed Validate, which rejects endpoints declaring both
// forms.
func (d *Definition) Normalize() {
	for i := range d.Endpoints {
		ep := &d.Endpoints[i]

		if len(ep.ByStatus) > 0 {
			statuses := make([]int, 0, len(ep.ByStatus))
			for status := range ep.ByStatus {
				statuses = append(statuses, status)
			}
			// Deterministic order: 200 first, then ascending. This
			// preserves the "default to 200 when nothing matches"
			// behavior of status-keyed definitions.
			sort.Ints(statuses)
			ordered := make([]ResponseSpec, 0, len(statuses))
			if spec, ok := ep.ByStatus[200]; ok {
				spec.Status = 200
				ordered = append(ordered, spec)
			}
			for _, status := range statuses {
				if status == 200 {
					continue
				}
				spec := ep.ByStatus[status]
				spec.Status = status
				ordered = append(ordered, spec)
			}
			ep.Responses = ordered
			ep.ByStatus = nil
		}

		for j := range ep.Responses {
			if ep.Responses[j].Status == 0 {
				ep.Responses[j].Status = 200
			}
			if ep.Responses[j].ContentType == "" {
				ep.Responses[j].ContentType = "application/json"
			}
		}
	}
}

// FindScenario returns the named scenario, or nil.
func (d *Definition) FindScenario(name string) *Scenario {
	for i := range d.Scenarios {
		if d.Scenarios[i].Name == name {
			return &d.Scenarios[i]
		}
	}
	return nil
}
