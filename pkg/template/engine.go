package template

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
)

// Engine renders templates. It is safe for concurrent use: the predicate and
// jsonpath caches are guarded, and sequences carry their own lock.
type Engine struct {
	sequences *SequenceStore

	mu       sync.RWMutex
	programs map[string]*vm.Program
	paths    map[string]jp.Expr
}

// New creates an engine with a fresh sequence store.
func New() *Engine {
	return NewWithSequences(NewSequenceStore())
}

// NewWithSequences creates an engine sharing an existing sequence store, so
// sequence("name") values survive definition edits.
func NewWithSequences(store *SequenceStore) *Engine {
	return &Engine{
		sequences: store,
		programs:  make(map[string]*vm.Program),
		paths:     make(map[string]jp.Expr),
	}
}

// segment is one piece of a split template: literal text when tag is false,
// otherwise the trimmed content between {{ and }}.
type segment struct {
	content string
	tag     bool
}

func splitSegments(tmpl string) ([]segment, error) {
	var segs []segment
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if rest != "" {
				segs = append(segs, segment{content: rest})
			}
			return segs, nil
		}
		if open > 0 {
			segs = append(segs, segment{content: rest[:open]})
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			return nil, fmt.Errorf("unclosed {{ in template")
		}
		content := strings.TrimSpace(rest[open+2 : open+close])
		segs = append(segs, segment{content: content, tag: true})
		rest = rest[open+close+2:]
	}
}

// Render expands a template against a context. When the template is exactly
// one expression, the resolved value is emitted whole; otherwise expression
// results are serialized in place between the literal parts.
func (e *Engine) Render(tmpl string, ctx *Context) (string, error) {
	segs, err := splitSegments(tmpl)
	if err != nil {
		return "", newRenderError(tmpl, "", err.Error())
	}

	if len(segs) == 1 && segs[0].tag && !isBlockTag(segs[0].content) {
		val, err := e.eval(segs[0].content, ctx)
		if err != nil {
			return "", err
		}
		return emitValue(val)
	}

	var sb strings.Builder
	if err := e.renderRange(segs, 0, len(segs), ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderHeaders expands each header value as a template. Header values are
// small, so whole-value emission applies per value.
func (e *Engine) RenderHeaders(headers map[string]string, ctx *Context) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	for name, tmpl := range headers {
		val, err := e.Render(tmpl, ctx)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

func isBlockTag(content string) bool {
	return strings.HasPrefix(content, "#if ") || content == "else" || content == "/if"
}

func (e *Engine) renderRange(segs []segment, from, to int, ctx *Context, sb *strings.Builder) error {
	i := from
	for i < to {
		seg := segs[i]
		if !seg.tag {
			sb.WriteString(seg.content)
			i++
			continue
		}

		switch {
		case strings.HasPrefix(seg.content, "#if "):
			elseIdx, endIdx, err := findBlockEnds(segs, i+1, to)
			if err != nil {
				return newRenderError(seg.content, "", err.Error())
			}
			ok, err := e.evalPredicate(strings.TrimSpace(seg.content[4:]), ctx)
			if err != nil {
				return err
			}
			if ok {
				branchEnd := endIdx
				if elseIdx >= 0 {
					branchEnd = elseIdx
				}
				if err := e.renderRange(segs, i+1, branchEnd, ctx, sb); err != nil {
					return err
				}
			} else if elseIdx >= 0 {
				if err := e.renderRange(segs, elseIdx+1, endIdx, ctx, sb); err != nil {
					return err
				}
			}
			i = endIdx + 1

		case seg.content == "else", seg.content == "/if":
			return newRenderError(seg.content, "", "tag outside an #if block")

		default:
			val, err := e.eval(seg.content, ctx)
			if err != nil {
				return err
			}
			s, err := emitValue(val)
			if err != nil {
				return err
			}
			sb.WriteString(s)
			i++
		}
	}
	return nil
}

// findBlockEnds locates the {{else}} and {{/if}} belonging to the block that
// opened just before from. elseIdx is -1 when the block has no else branch.
func findBlockEnds(segs []segment, from, to int) (elseIdx, endIdx int, err error) {
	elseIdx = -1
	depth := 0
	for i := from; i < to; i++ {
		if !segs[i].tag {
			continue
		}
		switch {
		case strings.HasPrefix(segs[i].content, "#if "):
			depth++
		case segs[i].content == "else":
			if depth == 0 {
				if elseIdx >= 0 {
					return -1, -1, fmt.Errorf("duplicate else in #if block")
				}
				elseIdx = i
			}
		case segs[i].content == "/if":
			if depth == 0 {
				return elseIdx, i, nil
			}
			depth--
		}
	}
	return -1, -1, fmt.Errorf("unterminated #if block")
}

// eval parses and resolves one expression.
func (e *Engine) eval(src string, ctx *Context) (any, error) {
	node, err := parseExpr(src)
	if err != nil {
		return nil, newRenderError(src, "", err.Error())
	}
	val, err := e.resolve(node, ctx)
	if err != nil {
		var rErr *RenderError
		if ok := asRenderError(err, &rErr); ok && rErr.Expr == "" {
			rErr.Expr = src
		}
		return nil, err
	}
	return val, nil
}

func asRenderError(err error, target **RenderError) bool {
	re, ok := err.(*RenderError)
	if ok {
		*target = re
	}
	return ok
}

// evalPredicate compiles and runs a conditional-block predicate, caching the
// compiled program per source text.
func (e *Engine) evalPredicate(src string, ctx *Context) (bool, error) {
	e.mu.RLock()
	prog, ok := e.programs[src]
	e.mu.RUnlock()

	if !ok {
		var err error
		prog, err = expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return false, newRenderError(src, "", fmt.Sprintf("malformed predicate: %v", err))
		}
		e.mu.Lock()
		e.programs[src] = prog
		e.mu.Unlock()
	}

	out, err := expr.Run(prog, ctx.Env())
	if err != nil {
		return false, newRenderError(src, "", fmt.Sprintf("predicate failed: %v", err))
	}
	return truthy(out), nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// resolve walks a parsed expression down to a concrete value.
func (e *Engine) resolve(node *exprNode, ctx *Context) (any, error) {
	switch node.kind {
	case nodeLiteral:
		return node.value, nil
	case nodeRef:
		return e.resolveRef(node, ctx)
	default:
		return e.call(node, ctx)
	}
}

func (e *Engine) resolveRef(node *exprNode, ctx *Context) (any, error) {
	full := strings.Join(node.path, ".")
	head, rest := node.path[0], node.path[1:]

	switch head {
	case "fixtures":
		if len(rest) == 0 {
			return nil, newRenderError("", full, "fixture name required")
		}
		if ctx.Fixtures == nil {
			return nil, newRenderError("", full, "no fixtures defined")
		}
		return walkValue(map[string]any(ctx.Fixtures), rest, full)

	case "params":
		if len(rest) != 1 {
			return nil, newRenderError("", full, "params takes a single parameter name")
		}
		val, ok := ctx.Request.Params[rest[0]]
		if !ok {
			return nil, newRenderError("", full, "no such path parameter")
		}
		return val, nil

	case "request":
		return resolveRequestRef(full, rest, &ctx.Request)

	case "faker":
		if len(rest) != 1 {
			return nil, newRenderError("", full, "faker takes a single kind")
		}
		val, ok := fakerValue(rest[0])
		if !ok {
			return nil, newRenderError("", full, "unknown faker kind")
		}
		return val, nil
	}

	return nil, newRenderError("", full, "unknown reference")
}

func resolveRequestRef(full string, rest []string, req *RequestContext) (any, error) {
	if len(rest) == 0 {
		return nil, newRenderError("", full, "request field required")
	}

	switch rest[0] {
	case "method":
		return req.Method, nil
	case "path":
		return req.Path, nil
	case "rawBody":
		return req.RawBody, nil
	case "params":
		if len(rest) != 2 {
			return nil, newRenderError("", full, "request.params takes a single name")
		}
		val, ok := req.Params[rest[1]]
		if !ok {
			return nil, newRenderError("", full, "no such path parameter")
		}
		return val, nil
	case "query":
		if len(rest) != 2 {
			return nil, newRenderError("", full, "request.query takes a single name")
		}
		vals, ok := req.Query[rest[1]]
		if !ok || len(vals) == 0 {
			return nil, newRenderError("", full, "no such query parameter")
		}
		return vals[0], nil
	case "header":
		if len(rest) != 2 {
			return nil, newRenderError("", full, "request.header takes a single name")
		}
		vals, ok := req.Headers[http.CanonicalHeaderKey(rest[1])]
		if !ok || len(vals) == 0 {
			return nil, newRenderError("", full, "no such header")
		}
		return vals[0], nil
	case "body":
		if req.Body == nil {
			return nil, newRenderError("", full, "request body is empty or not JSON")
		}
		if len(rest) == 1 {
			return req.Body, nil
		}
		return walkValue(req.Body, rest[1:], full)
	}

	return nil, newRenderError("", full, "unknown request field")
}

// walkValue descends a parsed JSON value by map keys and numeric indices.
func walkValue(current any, segments []string, full string) (any, error) {
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, newRenderError("", full, fmt.Sprintf("missing field %q", seg))
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, newRenderError("", full, fmt.Sprintf("bad index %q", seg))
			}
			current = v[idx]
		default:
			return nil, newRenderError("", full, fmt.Sprintf("cannot descend into %T at %q", current, seg))
		}
	}
	return current, nil
}

// jsonPath returns a cached compiled jsonpath expression.
func (e *Engine) jsonPath(path string) (jp.Expr, error) {
	e.mu.RLock()
	cached, ok := e.paths[path]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	compiled, err := jp.ParseString(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.paths[path] = compiled
	e.mu.Unlock()
	return compiled, nil
}
