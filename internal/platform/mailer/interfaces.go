package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/diagnosis/rsvp-events/pkg/config"
)

type Service interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
	SendRSVPConfirmation(ctx context.Context, m RSVPMail) error
	SendHostNotification(ctx context.Context, m RSVPMail) error
}

// RSVPMail is everything the RSVP templates need.
type RSVPMail struct {
	EventName      string
	EventDate      string
	EventLocation  string
	EventURL       string
	HostName       string
	HostEmail      string
	GuestName      string
	GuestEmail     string
	Attending      bool
	NumberOfGuests int
	Message        string
	Updated        bool
}

// New picks the mailer named by cfg.Driver. Unknown drivers and a MailerSend
// driver without an API key fall back to the dev mailer.
func New(cfg config.EmailConfig) (Service, error) {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "mailersend":
		m := NewMailer(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
		if !m.Enabled {
			return nil, fmt.Errorf("mailersend driver needs MAILERSEND_API_KEY and MAILER_FROM")
		}
		return m, nil
	default:
		return NewDevMailer(), nil
	}
}
