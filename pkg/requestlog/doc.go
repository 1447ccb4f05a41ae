// Package requestlog records one immutable entry per handled request.
//
// Entries are appended by the request pipeline and read by observers: the
// control API's polling endpoint, its websocket stream, and the CLI. The
// in-memory store keeps a bounded window with FIFO eviction and notifies
// subscribers without ever blocking the response path.
package requestlog
