package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// simpleEvent is a basic implementation of Event.
// It can be used by callers who don't have their own Event types.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// subscription implements Subscription.
type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active }
func (s *subscription) Cancel() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
	return nil
}

// inMemoryBus is a thread-safe implementation of EventBus.
type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: eventType -> subID -> subscription
	handlers map[string]map[string]*subscription
	metrics  Metrics

	queueMu sync.Mutex
	queue   []Event
}

// New creates a new EventBus instance.
func New() EventBus {
	return &inMemoryBus{
		handlers: make(map[string]map[string]*subscription),
	}
}

func (b *inMemoryBus) Publish(event Event) error {
	return b.deliver(event)
}

func (b *inMemoryBus) Enqueue(event Event) {
	b.queueMu.Lock()
	b.queue = append(b.queue, event)
	n := uint64(len(b.queue))
	b.queueMu.Unlock()

	b.mu.Lock()
	if n > b.metrics.QueuedHighWater {
		b.metrics.QueuedHighWater = n
	}
	b.mu.Unlock()
}

func (b *inMemoryBus) Drain() error {
	b.queueMu.Lock()
	pending := b.queue
	b.queue = nil
	b.queueMu.Unlock()

	var errs []error
	for _, e := range pending {
		if err := b.deliver(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if eventType == "" {
		return nil, errors.New("bus: empty event type")
	}
	if handler == nil {
		return nil, errors.New("bus: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		handler:   handler,
		active:    true,
	}
	sub.cancel = func() { b.remove(sub) }

	byType, ok := b.handlers[eventType]
	if !ok {
		byType = make(map[string]*subscription)
		b.handlers[eventType] = byType
	}
	byType[sub.id] = sub
	b.metrics.SubscribersActive++
	return sub, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) deliver(event Event) error {
	b.mu.RLock()
	byType := b.handlers[event.Type()]
	subs := make([]*subscription, 0, len(byType))
	for _, s := range byType {
		if s.active {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.handler(event); err != nil {
			errs = append(errs, err)
		}
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(subs))
	b.metrics.Errors += uint64(len(errs))
	b.mu.Unlock()

	return errors.Join(errs...)
}

func (b *inMemoryBus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if byType, ok := b.handlers[sub.eventType]; ok {
		if _, present := byType[sub.id]; present {
			delete(byType, sub.id)
			if b.metrics.SubscribersActive > 0 {
				b.metrics.SubscribersActive--
			}
		}
		if len(byType) == 0 {
			delete(b.handlers, sub.eventType)
		}
	}
}
