package template

import (
	"fmt"
	"strconv"
	"strings"
)

type nodeKind int

const (
	nodeLiteral nodeKind = iota
	nodeRef
	nodeCall
)

// exprNode is the parsed form of one template expression. The grammar is
// deliberately tiny: literals, dotted references, and calls whose arguments
// are themselves expressions.
type exprNode struct {
	kind nodeKind

	value any      // nodeLiteral
	path  []string // nodeRef
	name  string   // nodeCall, possibly dotted (random.int)
	args  []*exprNode
}

func (n *exprNode) String() string {
	switch n.kind {
	case nodeLiteral:
		return fmt.Sprintf("%v", n.value)
	case nodeRef:
		return strings.Join(n.path, ".")
	default:
		parts := make([]string, len(n.args))
		for i, a := range n.args {
			parts[i] = a.String()
		}
		return n.name + "(" + strings.Join(parts, ", ") + ")"
	}
}

func parseExpr(src string) (*exprNode, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}

	// Quoted string literal.
	if len(src) >= 2 {
		first, last := src[0], src[len(src)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			inner := src[1 : len(src)-1]
			if strings.ContainsRune(inner, rune(first)) {
				return nil, fmt.Errorf("malformed string literal %s", src)
			}
			return &exprNode{kind: nodeLiteral, value: inner}, nil
		}
	}

	switch src {
	case "true":
		return &exprNode{kind: nodeLiteral, value: true}, nil
	case "false":
		return &exprNode{kind: nodeLiteral, value: false}, nil
	case "null":
		return &exprNode{kind: nodeLiteral, value: nil}, nil
	}

	if n, err := strconv.ParseInt(src, 10, 64); err == nil {
		return &exprNode{kind: nodeLiteral, value: n}, nil
	}
	if f, err := strconv.ParseFloat(src, 64); err == nil {
		return &exprNode{kind: nodeLiteral, value: f}, nil
	}

	// Call: name(args...), where name is a dotted identifier.
	if open := strings.IndexByte(src, '('); open > 0 && strings.HasSuffix(src, ")") {
		name := src[:open]
		if !validCallName(name) {
			return nil, fmt.Errorf("malformed expression %q", src)
		}
		rawArgs, err := splitArgs(src[open+1 : len(src)-1])
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", src, err)
		}
		node := &exprNode{kind: nodeCall, name: name}
		for _, raw := range rawArgs {
			arg, err := parseExpr(raw)
			if err != nil {
				return nil, fmt.Errorf("in %q: %w", src, err)
			}
			node.args = append(node.args, arg)
		}
		return node, nil
	}

	// Dotted reference.
	segments := strings.Split(src, ".")
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, "(){}\"' ") {
			return nil, fmt.Errorf("malformed reference %q", src)
		}
	}
	return &exprNode{kind: nodeRef, path: segments}, nil
}

func validCallName(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}

// splitArgs splits a call's argument list at top-level commas, respecting
// quoted strings and nested calls.
func splitArgs(src string) ([]string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}

	var args []string
	var sb strings.Builder
	depth := 0
	var quote byte

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case quote != 0:
			sb.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			sb.WriteByte(ch)
		case ch == '(':
			depth++
			sb.WriteByte(ch)
		case ch == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in arguments")
			}
			sb.WriteByte(ch)
		case ch == ',' && depth == 0:
			args = append(args, strings.TrimSpace(sb.String()))
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string in arguments")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in arguments")
	}
	args = append(args, strings.TrimSpace(sb.String()))
	return args, nil
}
