package router

import (
	"errors"
	"strings"

	"github.com/apicentric/pulsed/pkg/service"
)

var (
	// ErrNoRoute means no endpoint pattern matched the request path.
	ErrNoRoute = errors.New("no route matched")
	// ErrMethodNotAllowed means a pattern matched the path but no endpoint
	// on that path accepts the request method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Match is the result of resolving a request against a definition.
type Match struct {
	// Endpoint points into the definition passed to Resolve.
	Endpoint *service.Endpoint
	// Index is the endpoint's position in the definition, used by callers
	// that keep per-endpoint state keyed by declaration order.
	Index int
	// Params holds the extracted path parameter values. Non-nil.
	Params map[string]string
}

// Router resolves requests against service definitions using a shared
// pattern cache. A single Router may serve many definitions concurrently.
type Router struct {
	cache *PatternCache
}

// New creates a router backed by the given pattern cache.
func New(cache *PatternCache) *Router {
	return &Router{cache: cache}
}

// Resolve finds the first endpoint in declaration order whose pattern
// matches path and whose method matches method (case-insensitively).
//
// If at least one pattern matched the path but none of those endpoints
// accepts the method, Resolve returns ErrMethodNotAllowed; if nothing
// matched the path at all it returns ErrNoRoute.
func (r *Router) Resolve(def *service.Definition, method, path string) (*Match, error) {
	pathMatched := false

	for i := range def.Endpoints {
		ep := &def.Endpoints[i]

		m, err := r.cache.Get(ep.Path)
		if err != nil {
			// Validation rejects uncompilable patterns before a
			// definition is served; surface it anyway rather than
			// silently skipping the endpoint.
			return nil, err
		}

		params, ok := m.Match(path)
		if !ok {
			continue
		}
		pathMatched = true

		if !strings.EqualFold(ep.Method, method) {
			continue
		}
		return &Match{Endpoint: ep, Index: i, Params: params}, nil
	}

	if pathMatched {
		return nil, ErrMethodNotAllowed
	}
	return nil, ErrNoRoute
}
