// Package selector picks exactly one response candidate for a matched
// endpoint. Selection runs in a fixed order: active scenario fault injection
// first (latency, forced errors), then guard expressions in declared order,
// then the endpoint's strategy (sequential, random, or first guard-free
// candidate).
//
// A Selector is created per running definition; sequential counters restart
// when a definition is edited. Scenario toggles live in a State that is read
// on every request and written only by the control API.
package selector
