package requestlog

// Logger is the minimal interface the request pipeline needs: it appends an
// entry and must never block the response path.
type Logger interface {
	Log(entry *Entry)
}

// Store is the read side used by the control API and the CLI.
type Store interface {
	Logger

	// Get retrieves a log entry by ID, or nil.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of retained entries.
	Count() int
}

// Filter narrows a List call.
type Filter struct {
	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// Status filters by response status code.
	Status int

	// Scenario filters entries produced under a named scenario.
	Scenario string

	// HasError filters by error presence.
	HasError *bool

	// Limit caps the number of entries returned.
	Limit int

	// Offset skips entries from the newest end.
	Offset int
}

// Subscriber receives entries as they are logged.
type Subscriber chan *Entry

// SubscribableStore extends Store with push delivery for live observers.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber. The returned function removes it.
	// Slow subscribers miss entries instead of slowing the pipeline.
	Subscribe() (Subscriber, func())
}
