package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/diagnosis/rsvp-events/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Subject, err)
	}
	return nil
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("rsvp-events"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(newMessage(msg.Subject, msg.Data))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(newMessage(msg.Subject, msg.Data))
	})
	return err
}

// Ping reports whether the connection is currently up.
func (n *NATSEventBus) Ping(ctx context.Context) error {
	if status := n.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func newMessage(subject string, data []byte) *Message {
	return &Message{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
	}
}

// Event types and subjects
const (
	// Event lifecycle
	EventCreated = "event.created"
	EventUpdated = "event.updated"
	EventDeleted = "event.deleted"

	// Guest responses
	RSVPCreated  = "rsvp.created"
	RSVPUpdated  = "rsvp.updated"
	GuestDeleted = "guest.deleted"
)

// Event payloads
type EventCreatedEvent struct {
	EventID   string    `json:"event_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type EventUpdatedEvent struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EventDeletedEvent struct {
	EventID       string    `json:"event_id"`
	GuestsRemoved int64     `json:"guests_removed"`
	DeletedAt     time.Time `json:"deleted_at"`
}

// RSVPEvent is published for both rsvp.created and rsvp.updated. It carries
// enough of the event for the notifier to write e-mails without a lookup.
type RSVPEvent struct {
	EventID        string    `json:"event_id"`
	EventName      string    `json:"event_name"`
	EventDate      time.Time `json:"event_date"`
	EventLocation  string    `json:"event_location"`
	HostName       string    `json:"host_name,omitempty"`
	HostEmail      string    `json:"host_email,omitempty"`
	GuestID        string    `json:"guest_id"`
	GuestName      string    `json:"guest_name"`
	GuestEmail     string    `json:"guest_email"`
	Response       string    `json:"response"`
	NumberOfGuests int       `json:"number_of_guests"`
	Message        string    `json:"message,omitempty"`
	GuestCount     int       `json:"guest_count"`
	Delta          int       `json:"delta"`
	RespondedAt    time.Time `json:"responded_at"`
}

type GuestDeletedEvent struct {
	EventID    string    `json:"event_id"`
	GuestID    string    `json:"guest_id"`
	GuestEmail string    `json:"guest_email"`
	Delta      int       `json:"delta"`
	GuestCount int       `json:"guest_count"`
	DeletedAt  time.Time `json:"deleted_at"`
}
