package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/rsvp-events/pkg/config"
)

const smtpDialTimeout = 10 * time.Second

// SMTPMailer delivers through a plain SMTP relay. With UseTLS off and no
// user it talks to a local catcher such as Mailpit on 1025.
type SMTPMailer struct {
	addr   string
	host   string
	from   mail.Address
	user   string
	pass   string
	useTLS bool
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	host := strings.TrimSpace(cfg.SMTPHost)
	return &SMTPMailer{
		addr:   net.JoinHostPort(host, strconv.Itoa(cfg.SMTPPort)),
		host:   host,
		from:   mail.Address{Name: cfg.FromName, Address: strings.TrimSpace(cfg.FromEmail)},
		user:   strings.TrimSpace(cfg.SMTPUser),
		pass:   cfg.SMTPPass,
		useTLS: cfg.SMTPUseTLS,
	}
}

func buildMessage(from, to mail.Address, subject, text, html string, now time.Time) []byte {
	boundary := "rsvp-" + uuid.NewString()
	domain := "rsvp-events.local"
	if at := strings.LastIndex(from.Address, "@"); at >= 0 {
		domain = from.Address[at+1:]
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	for _, part := range []struct{ ctype, body string }{{"text/plain", text}, {"text/html", html}} {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n\r\n", part.ctype)
		fmt.Fprintf(&buf, "%s\r\n\r\n", part.body)
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

// Send returns an empty message id; relays do not report one before DATA ends.
func (s *SMTPMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return "", fmt.Errorf("empty recipient email")
	}

	c, err := s.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("smtp dial %s: %w", s.addr, err)
	}
	defer c.Close()

	if !s.useTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return "", fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.user != "" {
		if err := c.Auth(smtp.PlainAuth("", s.user, s.pass, s.host)); err != nil {
			return "", fmt.Errorf("smtp auth: %w", err)
		}
	}

	msg := buildMessage(s.from, mail.Address{Name: toName, Address: toEmail}, subject, text, html, time.Now())
	if err := c.Mail(s.from.Address); err != nil {
		return "", err
	}
	if err := c.Rcpt(toEmail); err != nil {
		return "", err
	}
	w, err := c.Data()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(msg); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return "", c.Quit()
}

// dial connects with implicit TLS when useTLS is set (port 465 style).
// The deadline comes from ctx, capped at smtpDialTimeout.
func (s *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, smtpDialTimeout)
	defer cancel()

	d := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if s.useTLS {
		td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: s.host}}
		conn, err = td.DialContext(ctx, "tcp", s.addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", s.addr)
	}
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline.Add(smtpDialTimeout))
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (s *SMTPMailer) SendRSVPConfirmation(ctx context.Context, r RSVPMail) error {
	subject, text, html := rsvpConfirmation(r)
	_, err := s.Send(ctx, r.GuestEmail, r.GuestName, subject, text, html)
	return err
}

func (s *SMTPMailer) SendHostNotification(ctx context.Context, r RSVPMail) error {
	subject, text, html := hostNotification(r)
	_, err := s.Send(ctx, r.HostEmail, r.HostName, subject, text, html)
	return err
}
