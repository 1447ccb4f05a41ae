package template

import (
	"encoding/json"
	"fmt"
	mathrand "math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// call dispatches a function-call expression. Arguments are resolved left to
// right except where a function needs laziness (default).
func (e *Engine) call(node *exprNode, ctx *Context) (any, error) {
	expr := node.String()

	switch node.name {
	case "find":
		return e.callFind(node, ctx)

	case "length":
		if len(node.args) != 1 {
			return nil, newRenderError(expr, "", "length takes one argument")
		}
		val, err := e.resolve(node.args[0], ctx)
		if err != nil {
			return nil, err
		}
		switch v := val.(type) {
		case string:
			return int64(len(v)), nil
		case []any:
			return int64(len(v)), nil
		case map[string]any:
			return int64(len(v)), nil
		}
		return nil, newRenderError(expr, "", fmt.Sprintf("length of %T is undefined", val))

	case "upper", "lower":
		if len(node.args) != 1 {
			return nil, newRenderError(expr, "", node.name+" takes one argument")
		}
		val, err := e.resolve(node.args[0], ctx)
		if err != nil {
			return nil, err
		}
		s, err := stringify(val)
		if err != nil {
			return nil, newRenderError(expr, "", err.Error())
		}
		if node.name == "upper" {
			return strings.ToUpper(s), nil
		}
		return strings.ToLower(s), nil

	case "default":
		if len(node.args) != 2 {
			return nil, newRenderError(expr, "", "default takes two arguments")
		}
		val, err := e.resolve(node.args[0], ctx)
		if err != nil {
			// An unresolved first argument falls back; anything else
			// (malformed nested call) still fails the render.
			var rErr *RenderError
			if !asRenderError(err, &rErr) || rErr.Path == "" {
				return nil, err
			}
			return e.resolve(node.args[1], ctx)
		}
		if val == nil || val == "" {
			return e.resolve(node.args[1], ctx)
		}
		return val, nil

	case "concat":
		if len(node.args) == 0 {
			return nil, newRenderError(expr, "", "concat needs at least one argument")
		}
		var sb strings.Builder
		for _, arg := range node.args {
			val, err := e.resolve(arg, ctx)
			if err != nil {
				return nil, err
			}
			s, err := stringify(val)
			if err != nil {
				return nil, newRenderError(expr, "", err.Error())
			}
			sb.WriteString(s)
		}
		return sb.String(), nil

	case "jsonpath":
		return e.callJSONPath(node, ctx)

	case "uuid":
		if len(node.args) != 0 {
			return nil, newRenderError(expr, "", "uuid takes no arguments")
		}
		return uuid.New().String(), nil

	case "now":
		if len(node.args) != 0 {
			return nil, newRenderError(expr, "", "now takes no arguments")
		}
		return time.Now().UTC().Format(time.RFC3339), nil

	case "timestamp":
		if len(node.args) != 0 {
			return nil, newRenderError(expr, "", "timestamp takes no arguments")
		}
		return time.Now().Unix(), nil

	case "sequence":
		return e.callSequence(node)

	case "random.int":
		lo, hi, err := e.twoInts(node, ctx)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, newRenderError(expr, "", "min exceeds max")
		}
		return lo + mathrand.Int63n(hi-lo+1), nil

	case "random.float":
		lo, hi, err := e.twoFloats(node, ctx)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, newRenderError(expr, "", "min exceeds max")
		}
		return lo + mathrand.Float64()*(hi-lo), nil

	case "random.string":
		n := int64(10)
		if len(node.args) > 1 {
			return nil, newRenderError(expr, "", "random.string takes at most one argument")
		}
		if len(node.args) == 1 {
			val, err := e.resolveInt(node.args[0], ctx)
			if err != nil {
				return nil, err
			}
			n = val
		}
		if n < 1 || n > 4096 {
			return nil, newRenderError(expr, "", "length out of range")
		}
		return randomString(int(n)), nil
	}

	return nil, newRenderError(expr, "", "unknown function "+node.name)
}

// callFind looks up the first element of a collection whose field matches a
// value. Comparison is loose: a string path parameter "1" matches a numeric
// fixture id 1.
func (e *Engine) callFind(node *exprNode, ctx *Context) (any, error) {
	expr := node.String()
	if len(node.args) != 3 {
		return nil, newRenderError(expr, "", "find takes (collection, key, value)")
	}

	collection, err := e.resolve(node.args[0], ctx)
	if err != nil {
		return nil, err
	}
	items, ok := collection.([]any)
	if !ok {
		return nil, newRenderError(expr, "", "find requires a list collection")
	}

	key, err := e.resolve(node.args[1], ctx)
	if err != nil {
		return nil, err
	}
	keyStr, err := stringify(key)
	if err != nil {
		return nil, newRenderError(expr, "", err.Error())
	}

	want, err := e.resolve(node.args[2], ctx)
	if err != nil {
		return nil, err
	}
	wantStr, err := stringify(want)
	if err != nil {
		return nil, newRenderError(expr, "", err.Error())
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		got, ok := obj[keyStr]
		if !ok {
			continue
		}
		gotStr, err := stringify(got)
		if err != nil {
			continue
		}
		if gotStr == wantStr {
			return obj, nil
		}
	}
	return nil, newRenderError(expr, node.args[0].String(),
		fmt.Sprintf("no element with %s=%s", keyStr, wantStr))
}

func (e *Engine) callJSONPath(node *exprNode, ctx *Context) (any, error) {
	expr := node.String()
	if len(node.args) != 2 {
		return nil, newRenderError(expr, "", "jsonpath takes (path, value)")
	}
	pathLit, ok := node.args[0].value.(string)
	if node.args[0].kind != nodeLiteral || !ok {
		return nil, newRenderError(expr, "", "jsonpath path must be a string literal")
	}

	compiled, err := e.jsonPath(pathLit)
	if err != nil {
		return nil, newRenderError(expr, "", fmt.Sprintf("bad jsonpath: %v", err))
	}

	target, err := e.resolve(node.args[1], ctx)
	if err != nil {
		return nil, err
	}

	results := compiled.Get(target)
	switch len(results) {
	case 0:
		return nil, newRenderError(expr, pathLit, "jsonpath matched nothing")
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (e *Engine) callSequence(node *exprNode) (any, error) {
	expr := node.String()
	if len(node.args) < 1 || len(node.args) > 2 {
		return nil, newRenderError(expr, "", `sequence takes ("name") or ("name", start)`)
	}
	name, ok := node.args[0].value.(string)
	if node.args[0].kind != nodeLiteral || !ok {
		return nil, newRenderError(expr, "", "sequence name must be a string literal")
	}
	start := int64(1)
	if len(node.args) == 2 {
		n, ok := node.args[1].value.(int64)
		if node.args[1].kind != nodeLiteral || !ok {
			return nil, newRenderError(expr, "", "sequence start must be an integer literal")
		}
		start = n
	}
	return e.sequences.Next(name, start), nil
}

func (e *Engine) twoInts(node *exprNode, ctx *Context) (int64, int64, error) {
	if len(node.args) != 2 {
		return 0, 0, newRenderError(node.String(), "", node.name+" takes (min, max)")
	}
	lo, err := e.resolveInt(node.args[0], ctx)
	if err != nil {
		return 0, 0, err
	}
	hi, err := e.resolveInt(node.args[1], ctx)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func (e *Engine) twoFloats(node *exprNode, ctx *Context) (float64, float64, error) {
	if len(node.args) != 2 {
		return 0, 0, newRenderError(node.String(), "", node.name+" takes (min, max)")
	}
	lo, err := e.resolveFloat(node.args[0], ctx)
	if err != nil {
		return 0, 0, err
	}
	hi, err := e.resolveFloat(node.args[1], ctx)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func (e *Engine) resolveInt(node *exprNode, ctx *Context) (int64, error) {
	val, err := e.resolve(node, ctx)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return 0, newRenderError(node.String(), "", "integer required")
}

func (e *Engine) resolveFloat(node *exprNode, ctx *Context) (float64, error) {
	val, err := e.resolve(node, ctx)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, newRenderError(node.String(), "", "number required")
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomAlphabet[mathrand.Intn(len(randomAlphabet))]
	}
	return string(b)
}

// stringify renders a scalar value as text. Structured values are rejected
// so callers get a clear error instead of Go's default formatting.
func stringify(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("value is null")
	}
	return "", fmt.Errorf("value of type %T is not a scalar", val)
}

// emitValue serializes a resolved value into template output. Strings are
// emitted raw; maps and slices become JSON documents; numbers keep their
// shortest decimal form.
func emitValue(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case nil:
		return "null", nil
	case bool, int, int64, float64:
		return stringify(v)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return "", newRenderError("", "", fmt.Sprintf("cannot serialize value: %v", err))
	}
	return string(data), nil
}
