package mailer

import (
	"context"
	"sync"

	"github.com/diagnosis/rsvp-events/pkg/logger"
)

// DevMailer logs mail instead of sending it and remembers what it "sent".
type DevMailer struct {
	mu   sync.Mutex
	Sent []SentMail
}

type SentMail struct {
	To      string
	Subject string
	Text    string
}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	logger.InfoContext(ctx, "[DEV MAIL]",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	d.mu.Lock()
	d.Sent = append(d.Sent, SentMail{To: toEmail, Subject: subject, Text: text})
	d.mu.Unlock()
	return "dev", nil
}

func (d *DevMailer) SendRSVPConfirmation(ctx context.Context, r RSVPMail) error {
	subject, text, html := rsvpConfirmation(r)
	_, err := d.Send(ctx, r.GuestEmail, r.GuestName, subject, text, html)
	return err
}

func (d *DevMailer) SendHostNotification(ctx context.Context, r RSVPMail) error {
	subject, text, html := hostNotification(r)
	_, err := d.Send(ctx, r.HostEmail, r.HostName, subject, text, html)
	return err
}

// Messages returns a copy of everything sent so far.
func (d *DevMailer) Messages() []SentMail {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SentMail(nil), d.Sent...)
}

var (
	_ Service = (*DevMailer)(nil)
	_ Service = (*SMTPMailer)(nil)
	_ Service = (*Mailer)(nil)
)
