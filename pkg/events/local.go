package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/diagnosis/rsvp-events/pkg/logger"
)

// LocalEventBus delivers messages synchronously inside the process. It backs
// the API when NATS is disabled and doubles as a recorder in tests.
type LocalEventBus struct {
	mu       sync.Mutex
	subs     map[string][]func(*Message)
	queues   map[string]bool
	received []*Message
}

func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		subs:   make(map[string][]func(*Message)),
		queues: make(map[string]bool),
	}
}

func (b *LocalEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	logger.DebugContext(ctx, "Publishing local event", "subject", subject)

	msg := newMessage(subject, payload)
	b.mu.Lock()
	b.received = append(b.received, msg)
	handlers := append([]func(*Message){}, b.subs[subject]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (b *LocalEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], handler)
	return nil
}

// QueueSubscribe keeps one handler per (subject, queue), matching the
// deliver-once semantics of a NATS queue group.
func (b *LocalEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	b.mu.Lock()
	key := subject + "|" + queue
	if b.queues[key] {
		b.mu.Unlock()
		return nil
	}
	b.queues[key] = true
	b.mu.Unlock()
	return b.Subscribe(subject, handler)
}

func (b *LocalEventBus) Close() error { return nil }

// Messages returns the published messages for subject, oldest first.
func (b *LocalEventBus) Messages(subject string) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Message
	for _, m := range b.received {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

var (
	_ EventBus = (*NATSEventBus)(nil)
	_ EventBus = (*LocalEventBus)(nil)
)
