package service

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// ValidationError represents a definition-validation failure with context.
// It is the "DefinitionInvalid" class of the engine's error taxonomy: fatal
// to loading the one service it names, never raised mid-traffic.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid definition: %s: %s", e.Field, e.Message)
}

// validMethods are the allowed HTTP methods.
var validMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Validate checks the definition and returns the first problem found.
// Call it before Normalize; it accepts either candidate form but rejects
// endpoints declaring both.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "service name is required"}
	}
	if d.Port < 0 || d.Port > 65535 {
		return &ValidationError{Field: "port", Message: fmt.Sprintf("port %d out of range", d.Port)}
	}
	if d.BasePath != "" && !strings.HasPrefix(d.BasePath, "/") {
		return &ValidationError{Field: "basePath", Message: "base path must start with '/'"}
	}
	if len(d.Endpoints) == 0 {
		return &ValidationError{Field: "endpoints", Message: "at least one endpoint is required"}
	}

	for i := range d.Endpoints {
		if err := d.Endpoints[i].validate(fmt.Sprintf("endpoints[%d]", i)); err != nil {
			return err
		}
	}

	seenScenarios := make(map[string]bool)
	for i := range d.Scenarios {
		sc := &d.Scenarios[i]
		field := fmt.Sprintf("scenarios[%d]", i)
		if strings.TrimSpace(sc.Name) == "" {
			return &ValidationError{Field: field + ".name", Message: "scenario name is required"}
		}
		if seenScenarios[sc.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate scenario %q", sc.Name)}
		}
		seenScenarios[sc.Name] = true

		if sc.Latency == nil && sc.Error == nil {
			return &ValidationError{Field: field, Message: "scenario must declare latency and/or error"}
		}
		if sc.Latency != nil {
			if sc.Latency.MinMs < 0 || sc.Latency.MaxMs < 0 {
				return &ValidationError{Field: field + ".latency", Message: "latency must not be negative"}
			}
			if sc.Latency.MinMs > sc.Latency.MaxMs {
				return &ValidationError{Field: field + ".latency", Message: "minMs must not exceed maxMs"}
			}
		}
		if sc.Error != nil && (sc.Error.Status < 100 || sc.Error.Status > 599) {
			return &ValidationError{Field: field + ".error.status", Message: "status must be between 100 and 599"}
		}
		for _, target := range sc.Endpoints {
			if !d.hasEndpointKey(target) {
				return &ValidationError{
					Field:   field + ".endpoints",
					Message: fmt.Sprintf("target %q does not match any declared endpoint", target),
				}
			}
		}
	}

	// Endpoint scenario overrides must name a declared scenario.
	for i := range d.Endpoints {
		name := d.Endpoints[i].Scenario
		if name != "" && !seenScenarios[name] {
			return &ValidationError{
				Field:   fmt.Sprintf("endpoints[%d].scenario", i),
				Message: fmt.Sprintf("unknown scenario %q", name),
			}
		}
	}

	return nil
}

func (e *Endpoint) validate(field string) error {
	method := strings.ToUpper(e.Method)
	if !validMethods[method] {
		return &ValidationError{Field: field + ".method", Message: fmt.Sprintf("invalid HTTP method %q", e.Method)}
	}
	if err := validatePattern(e.Path); err != nil {
		return &ValidationError{Field: field + ".path", Message: err.Error()}
	}

	switch e.Strategy {
	case StrategyDefault, StrategyGuarded, StrategySequential, StrategyRandom:
	default:
		return &ValidationError{Field: field + ".strategy", Message: fmt.Sprintf("unknown strategy %q", e.Strategy)}
	}

	// Explicit rule for the dual candidate forms: one or the other, never
	// both, never neither.
	if len(e.Responses) > 0 && len(e.ByStatus) > 0 {
		return &ValidationError{Field: field, Message: "declare responses or byStatus, not both"}
	}
	if len(e.Responses) == 0 && len(e.ByStatus) == 0 {
		return &ValidationError{Field: field, Message: "endpoint has no response candidates"}
	}

	check := func(spec *ResponseSpec, specField string) error {
		if spec.Status != 0 && (spec.Status < 100 || spec.Status > 599) {
			return &ValidationError{Field: specField + ".status", Message: "status must be between 100 and 599"}
		}
		if spec.DelayMs < 0 {
			return &ValidationError{Field: specField + ".delayMs", Message: "delay must not be negative"}
		}
		if spec.Guard != "" {
			if _, err := expr.Compile(spec.Guard); err != nil {
				return &ValidationError{Field: specField + ".guard", Message: fmt.Sprintf("malformed guard: %v", err)}
			}
		}
		return nil
	}

	for i := range e.Responses {
		if err := check(&e.Responses[i], fmt.Sprintf("%s.responses[%d]", field, i)); err != nil {
			return err
		}
	}
	for status := range e.ByStatus {
		spec := e.ByStatus[status]
		if status < 100 || status > 599 {
			return &ValidationError{Field: fmt.Sprintf("%s.byStatus.%d", field, status), Message: "status must be between 100 and 599"}
		}
		if err := check(&spec, fmt.Sprintf("%s.byStatus.%d", field, status)); err != nil {
			return err
		}
	}
	return nil
}

// validatePattern checks path-pattern syntax: a leading slash, balanced
// braces, and non-empty parameter names confined to single segments.
func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("path is required")
	}
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("path must start with '/'")
	}
	for _, segment := range strings.Split(strings.Trim(pattern, "/"), "/") {
		open := strings.Count(segment, "{")
		closed := strings.Count(segment, "}")
		if open != closed || open > 1 {
			return fmt.Errorf("malformed parameter in segment %q", segment)
		}
		if open == 1 {
			if !strings.HasPrefix(segment, "{") || !strings.HasSuffix(segment, "}") {
				return fmt.Errorf("parameter must span the whole segment %q", segment)
			}
			if len(segment) == 2 {
				return fmt.Errorf("empty parameter name in %q", pattern)
			}
		}
	}
	return nil
}

func (d *Definition) hasEndpointKey(key string) bool {
	for i := range d.Endpoints {
		declared := strings.ToUpper(d.Endpoints[i].Method) + " " + d.Endpoints[i].Path
		if declared == normalizeEndpointKey(key) {
			return true
		}
	}
	return false
}

// normalizeEndpointKey upper-cases the method part of a "METHOD /path" key.
func normalizeEndpointKey(key string) string {
	parts := strings.SplitN(key, " ", 2)
	if len(parts) != 2 {
		return key
	}
	return strings.ToUpper(parts[0]) + " " + parts[1]
}
