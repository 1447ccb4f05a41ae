// Package template renders response bodies and headers from a bounded
// template language. Templates mix literal text with {{expression}} regions
// and {{#if expr}}...{{else}}...{{/if}} blocks.
//
// Expressions are interpreted, not evaluated as a script: the surface is
// dotted references (fixtures.*, request.*, params.*), a fixed set of
// functions (find, length, jsonpath, upper, lower, default, concat), and
// generators (uuid(), now(), random.*, sequence(), faker.*). There is no
// I/O and no looping construct, so a hostile request body cannot drive
// arbitrary logic through a template.
//
// Conditional block predicates use expr-lang over a read-only environment
// of fixtures and request data; compiled predicates are cached per engine.
//
// An unresolved reference is always a *RenderError, never a silent empty
// value. When a template is exactly one expression, the resolved value is
// emitted whole: strings raw, maps and slices as JSON documents.
package template
