// Package engine runs simulated services and answers their traffic.
//
// Each running service owns a ServiceRuntime: an HTTP listener, an
// atomically swappable definition snapshot, scenario state, a response
// selector, a template renderer, and a bounded request log. Runtimes are
// independent failure domains; the only state shared between them is the
// process-wide path-pattern cache.
//
// The Manager starts, stops, and edits runtimes. Editing swaps the
// definition pointer, so an in-flight request observes either the old or
// the new definition, never a mix.
//
// Every runtime also mounts a small control API under /__pulsed/ for log
// inspection (polling and websocket streaming), scenario toggles, and
// health checks.
package engine
