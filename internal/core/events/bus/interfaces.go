package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub event bus.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type() string.
// - Synchronous delivery: Publish calls handler callbacks in the caller goroutine.
// - Error aggregation: multiple handler errors are joined and returned from Publish.
// - Queued ingestion: Enqueue buffers events from other goroutines; Drain
//   delivers them in arrival order in the caller goroutine. This is how
//   signals produced off the frame loop enter the single-threaded core.
//
// Handlers should be quick; delivery happens inside the simulation frame.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of
	// event.Type(). If one or more handlers return an error, a joined error
	// is returned.
	Publish(event Event) error
	// Enqueue buffers an event for later delivery. Safe for concurrent use.
	Enqueue(event Event)
	// Drain delivers all buffered events in arrival order and returns the
	// joined handler errors, if any. Must be called from a single goroutine.
	Drain() error

	// Subscribe registers a handler for a specific event type and returns a
	// Subscription handle that can be used to cancel later.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Safe to call with nil.
	Unsubscribe(Subscription) error

	// Metrics returns a best-effort snapshot of accumulated counters.
	Metrics() Metrics
}

// Event is an immutable message transported by the EventBus.
// Implementations should treat Event values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is a user callback invoked per delivered event. If it returns
// an error, Publish/Drain aggregates and returns it.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
// Use Cancel or EventBus.Unsubscribe to stop receiving events.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the event type this subscription listens to.
	EventType() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}

// Metrics is a minimal set of delivery counters.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	QueuedHighWater   uint64
	SubscribersActive uint64
}
