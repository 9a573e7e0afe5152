package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by coursebell components.
const (
	TopicPassCompleted     = "pass.completed"
	TopicPassSkipped       = "pass.skipped"
	TopicReminderScheduled = "reminder.scheduled"
	TopicReminderFailed    = "reminder.failed"
	TopicDeliveryArmed     = "delivery.armed"
	TopicDeliverySent      = "delivery.sent"
	TopicDeliveryFailed    = "delivery.failed"
	TopicDeliveryDropped   = "delivery.dropped"
	TopicLeadChanged       = "lead.changed"
)

// Event is a small in-memory signal.
//
// Publish never blocks: subscribers get buffered channels and a slow
// subscriber loses events instead of stalling a reconciliation pass.
type Event struct {
	Topic string
	Time  time.Time
	Data  any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Publish is a nil-safe helper for components with an optional bus.
func Publish(b Bus, topic string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Topic: topic, Time: time.Now(), Data: data})
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Hold the read lock while sending so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
