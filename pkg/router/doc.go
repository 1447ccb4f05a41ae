// Package router maps an incoming (method, path) onto an endpoint of a
// service definition, extracting named path parameters along the way.
//
// Path patterns use literal segments plus {name} parameters, e.g.
// /users/{id}. Each distinct pattern string is compiled once per process and
// cached in a PatternCache shared across all services; the cache is the only
// process-wide mutable state in the engine and is built for many concurrent
// readers.
//
// Endpoints are tested in declaration order and the first structural match
// wins. That ordering is a user-observable contract: the same route may be
// declared more than once and callers rely on the first declaration taking
// precedence.
package router
