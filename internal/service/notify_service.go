package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/rsvp-events/internal/platform/mailer"
	"github.com/diagnosis/rsvp-events/pkg/events"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

// Notifier turns RSVP domain events into e-mails.
type Notifier struct {
	mailer  mailer.Service
	baseURL string
	timeout time.Duration
}

func NewNotifier(m mailer.Service, baseURL string) *Notifier {
	return &Notifier{mailer: m, baseURL: baseURL, timeout: 15 * time.Second}
}

// Subscribe joins queue on both RSVP subjects so each message is handled by
// one notifier instance.
func (n *Notifier) Subscribe(bus events.Subscriber, queue string) error {
	for _, subject := range []string{events.RSVPCreated, events.RSVPUpdated} {
		if err := bus.QueueSubscribe(subject, queue, n.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

func (n *Notifier) handle(msg *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var ev events.RSVPEvent
	if err := msg.Decode(&ev); err != nil {
		logger.ErrorContext(ctx, "Dropping malformed RSVP message", "error", err, "message_id", msg.ID)
		return
	}
	ctx = logger.WithEventID(ctx, ev.EventID)
	if err := n.HandleRSVP(ctx, msg.Subject, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to send RSVP mail", "error", err, "guest_id", ev.GuestID)
	}
}

// HandleRSVP sends the guest confirmation and, when the event has a host
// e-mail, the host notification. Both are attempted; the first error wins.
func (n *Notifier) HandleRSVP(ctx context.Context, subject string, ev events.RSVPEvent) error {
	m := mailer.RSVPMail{
		EventName:      ev.EventName,
		EventDate:      ev.EventDate.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		EventLocation:  ev.EventLocation,
		EventURL:       fmt.Sprintf("%s/rsvp/%s", n.baseURL, ev.EventID),
		HostName:       ev.HostName,
		HostEmail:      ev.HostEmail,
		GuestName:      ev.GuestName,
		GuestEmail:     ev.GuestEmail,
		Attending:      ev.Response == "attending",
		NumberOfGuests: ev.NumberOfGuests,
		Message:        ev.Message,
		Updated:        subject == events.RSVPUpdated,
	}

	firstErr := n.mailer.SendRSVPConfirmation(ctx, m)
	if ev.HostEmail != "" {
		if err := n.mailer.SendHostNotification(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		logger.InfoContext(ctx, "RSVP mail sent", "guest_id", ev.GuestID, "host_notified", ev.HostEmail != "")
	}
	return firstErr
}
