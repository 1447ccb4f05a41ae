package template

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Context carries everything an expression may reference during one render.
// It is built once per request and treated as read-only by the engine.
type Context struct {
	Fixtures map[string]any
	Request  RequestContext
}

// RequestContext is the template-visible view of the incoming request.
type RequestContext struct {
	Method string
	Path   string
	// Params holds path parameter values extracted by the router.
	Params  map[string]string
	Query   url.Values
	Headers http.Header
	// Body is the parsed JSON body, nil when the body was empty or not JSON.
	Body    any
	RawBody string
}

// NewRequestContext captures the template-visible fields of an incoming
// request. The body is parsed as JSON on a best-effort basis; a non-JSON
// body is still reachable through request.rawBody.
func NewRequestContext(r *http.Request, params map[string]string, rawBody []byte) RequestContext {
	rc := RequestContext{
		Method:  r.Method,
		Path:    r.URL.Path,
		Params:  params,
		Query:   r.URL.Query(),
		Headers: r.Header,
		RawBody: string(rawBody),
	}
	if len(rawBody) > 0 {
		var parsed any
		if err := json.Unmarshal(rawBody, &parsed); err == nil {
			rc.Body = parsed
		}
	}
	return rc
}

// Env builds the expr-lang environment used by conditional-block predicates
// and response guards. Query and header values are flattened to their first
// value so expressions read naturally (request.query.page == "2").
func (c *Context) Env() map[string]any {
	query := make(map[string]string, len(c.Request.Query))
	for k, vs := range c.Request.Query {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]string, len(c.Request.Headers))
	for k, vs := range c.Request.Headers {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}

	params := c.Request.Params
	if params == nil {
		params = map[string]string{}
	}
	fixtures := c.Fixtures
	if fixtures == nil {
		fixtures = map[string]any{}
	}

	return map[string]any{
		"fixtures": fixtures,
		"params":   params,
		"request": map[string]any{
			"method":  c.Request.Method,
			"path":    c.Request.Path,
			"params":  params,
			"query":   query,
			"headers": headers,
			"body":    c.Request.Body,
			"rawBody": c.Request.RawBody,
		},
	}
}
