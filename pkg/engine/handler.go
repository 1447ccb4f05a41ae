package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apicentric/pulsed/pkg/requestlog"
	"github.com/apicentric/pulsed/pkg/router"
	"github.com/apicentric/pulsed/pkg/selector"
	"github.com/apicentric/pulsed/pkg/service"
	"github.com/apicentric/pulsed/pkg/template"
)

const controlPrefix = "/__pulsed"

// outcome collects what the pipeline decided so exactly one log entry is
// written per request, whatever path it took.
type outcome struct {
	status      int
	body        string
	headers     map[string]string
	contentType string
	scenario    string
	errDetail   string
}

// ServeHTTP is the request pipeline: snapshot the definition, strip the
// base path, resolve the route, select a response, render it, and append
// one log entry.
func (rt *ServiceRuntime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, controlPrefix+"/") || r.URL.Path == controlPrefix {
		rt.serveControl(w, r)
		return
	}

	start := time.Now()
	def := rt.def.Load()

	if rt.applyCORS(w, r, def) {
		return
	}

	rawBody, _ := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))

	out := rt.handle(r, rawBody)

	w.Header().Set("Content-Type", out.contentType)
	for name, value := range out.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(out.status)
	_, _ = io.WriteString(w, out.body)

	entry := &requestlog.Entry{
		Service:      def.Name,
		Method:       r.Method,
		Path:         r.URL.Path,
		QueryString:  r.URL.RawQuery,
		Headers:      r.Header,
		Body:         requestlog.Truncate(string(rawBody)),
		BodySize:     len(rawBody),
		RemoteAddr:   r.RemoteAddr,
		Status:       out.status,
		ResponseBody: requestlog.Truncate(out.body),
		DurationMs:   int(time.Since(start).Milliseconds()),
		Scenario:     out.scenario,
		Error:        out.errDetail,
	}
	rt.logs.Log(entry)

	if out.errDetail != "" {
		rt.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path,
			"status", out.status, "error", out.errDetail)
	} else if def.Logging.Verbose {
		rt.logger.Debug("request handled", "method", r.Method, "path", r.URL.Path,
			"status", out.status, "durationMs", entry.DurationMs)
	}
}

func (rt *ServiceRuntime) handle(r *http.Request, rawBody []byte) outcome {
	def := rt.def.Load()

	path, ok := stripBasePath(r.URL.Path, def.BasePath)
	if !ok {
		return errorOutcome(http.StatusNotFound, "no route matched", "")
	}

	match, err := rt.router.Resolve(def, r.Method, path)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrMethodNotAllowed):
			return errorOutcome(http.StatusMethodNotAllowed, "method not allowed", "")
		case errors.Is(err, router.ErrNoRoute):
			return errorOutcome(http.StatusNotFound, "no route matched", "")
		default:
			return errorOutcome(http.StatusInternalServerError, "internal error", err.Error())
		}
	}

	tctx := &template.Context{
		Fixtures: def.Fixtures,
		Request:  template.NewRequestContext(r, match.Params, rawBody),
	}

	choice, err := rt.sel.Load().Choose(r.Context(), def, rt.state, selector.Request{
		Endpoint: match.Endpoint,
		Index:    match.Index,
		Env:      tctx.Env(),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client gave up during injected latency.
			return outcome{status: http.StatusServiceUnavailable,
				contentType: "application/json",
				body:        `{"error":"request cancelled"}`,
				errDetail:   err.Error()}
		}
		return errorOutcome(http.StatusInternalServerError, "internal error", err.Error())
	}

	spec := choice.Response

	if spec.DelayMs > 0 {
		select {
		case <-r.Context().Done():
			return outcome{status: http.StatusServiceUnavailable,
				contentType: "application/json",
				body:        `{"error":"request cancelled"}`,
				scenario:    choice.Scenario,
				errDetail:   r.Context().Err().Error()}
		case <-time.After(time.Duration(spec.DelayMs) * time.Millisecond):
		}
	}

	headers, err := rt.renderer.RenderHeaders(spec.Headers, tctx)
	if err != nil {
		return rt.renderFailure(def, match, spec.Status, choice.Scenario, err)
	}
	body, err := rt.renderer.Render(spec.Body, tctx)
	if err != nil {
		return rt.renderFailure(def, match, spec.Status, choice.Scenario, err)
	}

	return outcome{
		status:      spec.Status,
		body:        body,
		headers:     headers,
		contentType: spec.ContentType,
		scenario:    choice.Scenario,
	}
}

// renderFailure maps a template error to a 500. The failing expression is
// only exposed in the response body when the service runs verbose; it is
// always recorded in the log entry.
func (rt *ServiceRuntime) renderFailure(def *service.Definition, match *router.Match, status int, scenario string, err error) outcome {
	var rErr *template.RenderError
	if errors.As(err, &rErr) {
		rErr.Service = def.Name
		rErr.Endpoint = match.Endpoint.Method + " " + match.Endpoint.Path
		rErr.Status = status
	}

	message := "response rendering failed"
	if def.Logging.Verbose {
		message = err.Error()
	}
	body, _ := json.Marshal(map[string]string{"error": message})
	return outcome{
		status:      http.StatusInternalServerError,
		contentType: "application/json",
		body:        string(body),
		scenario:    scenario,
		errDetail:   err.Error(),
	}
}

func errorOutcome(status int, message, detail string) outcome {
	body, _ := json.Marshal(map[string]string{"error": message})
	return outcome{
		status:      status,
		contentType: "application/json",
		body:        string(body),
		errDetail:   detail,
	}
}

func stripBasePath(path, base string) (string, bool) {
	if base == "" || base == "/" {
		return path, true
	}
	if !strings.HasPrefix(path, base) {
		return "", false
	}
	rest := strings.TrimPrefix(path, base)
	if rest == "" {
		return "/", true
	}
	if !strings.HasPrefix(rest, "/") {
		// /api/v1x must not match base /api/v1.
		return "", false
	}
	return rest, true
}
