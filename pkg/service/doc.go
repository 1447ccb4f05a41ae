// Package service defines the in-memory model of one simulated API: its
// endpoints, canned fixtures, response candidates, and scenarios.
//
// A Definition is built by parsing a YAML or JSON source, validated once, and
// then treated as immutable. Edits replace the whole value; nothing mutates a
// live Definition field-by-field, which is what lets the engine swap
// definitions atomically under traffic.
package service
