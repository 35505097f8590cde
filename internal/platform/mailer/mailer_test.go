package mailer

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/rsvp-events/pkg/config"
)

func TestNew_SelectsDriver(t *testing.T) {
	m, err := New(config.EmailConfig{Driver: "dev"})
	if err != nil {
		t.Fatalf("dev: %v", err)
	}
	if _, ok := m.(*DevMailer); !ok {
		t.Fatalf("expected DevMailer, got %T", m)
	}

	m, err = New(config.EmailConfig{Driver: "smtp", SMTPHost: "localhost", SMTPPort: 1025, FromEmail: "a@b.co"})
	if err != nil {
		t.Fatalf("smtp: %v", err)
	}
	if _, ok := m.(*SMTPMailer); !ok {
		t.Fatalf("expected SMTPMailer, got %T", m)
	}

	if _, err := New(config.EmailConfig{Driver: "mailersend"}); err == nil {
		t.Fatal("expected error for mailersend without API key")
	}

	m, err = New(config.EmailConfig{Driver: "mailersend", MailerSendKey: "k", FromEmail: "a@b.co"})
	if err != nil {
		t.Fatalf("mailersend: %v", err)
	}
	if _, ok := m.(*Mailer); !ok {
		t.Fatalf("expected Mailer, got %T", m)
	}
}

func TestDevMailer_RSVPTemplates(t *testing.T) {
	d := NewDevMailer()
	mail := RSVPMail{
		EventName:      "Garden Party",
		GuestName:      "Jane Doe",
		GuestEmail:     "jane@example.com",
		HostEmail:      "host@example.com",
		Attending:      true,
		NumberOfGuests: 3,
		Message:        "<3",
	}

	if err := d.SendRSVPConfirmation(context.Background(), mail); err != nil {
		t.Fatal(err)
	}
	if err := d.SendHostNotification(context.Background(), mail); err != nil {
		t.Fatal(err)
	}

	sent := d.Messages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].To != "jane@example.com" || !strings.Contains(sent[0].Text, "party of 3") {
		t.Errorf("unexpected confirmation %+v", sent[0])
	}
	if sent[1].To != "host@example.com" || !strings.Contains(sent[1].Subject, "Garden Party") {
		t.Errorf("unexpected host notification %+v", sent[1])
	}
}

func TestTemplates_EscapeHTML(t *testing.T) {
	_, _, html := hostNotification(RSVPMail{GuestName: "<b>x</b> y", Message: "<script>"})
	if strings.Contains(html, "<script>") || strings.Contains(html, "<b>x</b>") {
		t.Errorf("html not escaped: %s", html)
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	from := mail.Address{Name: "RSVP", Address: "noreply@rsvp.example.com"}
	to := mail.Address{Name: "Jane Doe", Address: "jane@example.com"}
	msg := string(buildMessage(from, to, "Fiesta en el jardín", "plain", "<p>html</p>", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)))

	for _, want := range []string{
		"From: \"RSVP\" <noreply@rsvp.example.com>\r\n",
		"To: \"Jane Doe\" <jane@example.com>\r\n",
		"Subject: =?utf-8?q?",
		"Date: Fri, 01 May 2026 12:00:00 +0000\r\n",
		"@rsvp.example.com>\r\n",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Type: text/html; charset=utf-8",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
