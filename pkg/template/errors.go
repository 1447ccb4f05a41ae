package template

import "fmt"

// RenderError reports a template that could not be rendered. Expr is the
// offending {{...}} expression; Path names the reference that failed to
// resolve, when one did. Service, Endpoint and Status are filled in by the
// request pipeline so log output can say which response definition broke.
type RenderError struct {
	Expr     string
	Path     string
	Detail   string
	Service  string
	Endpoint string
	Status   int
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %q", e.Expr)
	if e.Path != "" {
		msg += fmt.Sprintf(": unresolved %q", e.Path)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Endpoint != "" {
		msg += fmt.Sprintf(" (service %s, endpoint %s, status %d)", e.Service, e.Endpoint, e.Status)
	}
	return msg
}

func newRenderError(expr, path, detail string) *RenderError {
	return &RenderError{Expr: expr, Path: path, Detail: detail}
}
