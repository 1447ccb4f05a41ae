package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is the compiled form of one path pattern. It is immutable after
// Compile and safe for concurrent use.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
	params  []string
}

// Compile turns a path pattern like /users/{id} into an anchored matcher.
// Literal segments are matched exactly; each {name} parameter matches one
// non-empty path segment.
func Compile(pattern string) (*Matcher, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with '/'", pattern)
	}

	var params []string
	var sb strings.Builder
	sb.WriteString("^")

	trimmed := strings.TrimSuffix(pattern, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	for _, segment := range strings.Split(trimmed, "/")[1:] {
		sb.WriteString("/")
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			name := segment[1 : len(segment)-1]
			if name == "" {
				return nil, fmt.Errorf("pattern %q has an empty parameter name", pattern)
			}
			params = append(params, name)
			sb.WriteString("(?P<")
			sb.WriteString(name)
			sb.WriteString(">[^/]+)")
			continue
		}
		if strings.ContainsAny(segment, "{}") {
			return nil, fmt.Errorf("pattern %q mixes literals and parameters in segment %q", pattern, segment)
		}
		sb.WriteString(regexp.QuoteMeta(segment))
	}
	sb.WriteString("/?$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}

	return &Matcher{pattern: pattern, re: re, params: params}, nil
}

// Pattern returns the original pattern string.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match tests a concrete request path against the pattern. On success it
// returns the extracted parameter values keyed by parameter name; the map is
// non-nil and empty for parameterless patterns.
func (m *Matcher) Match(path string) (map[string]string, bool) {
	captures := m.re.FindStringSubmatch(path)
	if captures == nil {
		return nil, false
	}

	params := make(map[string]string, len(m.params))
	for i, name := range m.re.SubexpNames() {
		if i > 0 && name != "" && i < len(captures) {
			params[name] = captures[i]
		}
	}
	return params, true
}
