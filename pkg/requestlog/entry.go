package requestlog

import "time"

// maxBodyBytes caps how much of a request or response body is retained in a
// log entry.
const maxBodyBytes = 10 * 1024

// Entry captures one handled request and its response. Entries are immutable
// once logged.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// Service is the simulated service that handled the request.
	Service string `json:"service"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the request URL path.
	Path string `json:"path"`

	// QueryString is the raw query string, if any.
	QueryString string `json:"queryString,omitempty"`

	// Headers are the request headers (multi-value).
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the request body, truncated to a bounded size.
	Body string `json:"body,omitempty"`

	// BodySize is the original request body size in bytes.
	BodySize int `json:"bodySize"`

	// RemoteAddr is the client address.
	RemoteAddr string `json:"remoteAddr,omitempty"`

	// Status is the response status code.
	Status int `json:"status"`

	// ResponseBody is the response body, truncated to a bounded size.
	ResponseBody string `json:"responseBody,omitempty"`

	// DurationMs is the request processing time in milliseconds.
	DurationMs int `json:"durationMs"`

	// Scenario names the scenario that injected a fault, if any.
	Scenario string `json:"scenario,omitempty"`

	// Error holds the failure detail when rendering or routing failed.
	Error string `json:"error,omitempty"`
}

// Truncate bounds a body for storage in an entry.
func Truncate(body string) string {
	if len(body) > maxBodyBytes {
		return body[:maxBodyBytes]
	}
	return body
}
