package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"
)

// Resend's SMTP relay. The username is fixed; the password is the API key.
const (
	DefaultSMTPHost     = "smtp.resend.com"
	DefaultSMTPPort     = 465
	DefaultSMTPUsername = "resend"
)

// SMTPProvider builds Senders that relay through an SMTP server, using the
// client's API key as the password.
type SMTPProvider struct {
	Host     string
	Port     int
	Username string
	TLSMode  string // "ssl" | "starttls" | "none"; empty picks by port
	Timeout  time.Duration
}

// NewSMTPProvider returns a Provider for the Resend SMTP relay. Zero values
// select Resend's host, port and username.
func NewSMTPProvider(host string, port int, username string, timeout time.Duration) *SMTPProvider {
	if host == "" {
		host = DefaultSMTPHost
	}
	if port == 0 {
		port = DefaultSMTPPort
	}
	if username == "" {
		username = DefaultSMTPUsername
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPProvider{Host: host, Port: port, Username: username, Timeout: timeout}
}

// Sender implements Provider.
func (p *SMTPProvider) Sender(apiKey string) Sender {
	return &smtpSender{cfg: *p, password: apiKey}
}

type smtpSender struct {
	cfg      SMTPProvider
	password string
}

// Send delivers m over SMTP. SMTP has no provider-assigned id, so the
// Message-ID header is generated here and its local part returned.
func (s *smtpSender) Send(ctx context.Context, m Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("email: smtp: %w", err)
	}

	id := uuid.NewString()

	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", m.To...)
	msg.SetHeader("Subject", m.Subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, messageIDDomain(m.From)))

	// multipart/alternative when both parts are present.
	switch {
	case m.Text != "" && m.HTML != "":
		msg.SetBody("text/plain", m.Text)
		msg.AddAlternative("text/html", m.HTML)
	case m.HTML != "":
		msg.SetBody("text/html", m.HTML)
	default:
		msg.SetBody("text/plain", m.Text)
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	d.Timeout = s.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d.Timeout {
			d.Timeout = left
		}
	}

	switch s.mode() {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	if err := d.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("email: smtp send: %w", err)
	}
	return id, nil
}

func (s *smtpSender) mode() string {
	if s.cfg.TLSMode != "" {
		return s.cfg.TLSMode
	}
	if s.cfg.Port == 465 || s.cfg.Port == 2465 {
		return "ssl"
	}
	return "starttls"
}

// messageIDDomain takes the domain from a From address such as
// "Acme <noreply@acme.com>".
func messageIDDomain(from string) string {
	from = strings.TrimSuffix(strings.TrimSpace(from), ">")
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}
