// Package email defines the interface for transactional email delivery and
// provides Resend-backed implementations: the HTTP API and the SMTP relay.
package email

import (
	"context"
	"fmt"
	"time"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string // optional; sent as the HTML alternative verbatim
}

// Sender delivers a Message. It returns the provider-assigned message id,
// which may be empty when the provider does not report one.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// Provider hands out a Sender authenticated with a client's API key. Every
// tenant has its own Resend key, so senders are built per dispatch.
type Provider interface {
	Sender(apiKey string) Sender
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(apiKey string) Sender

// Sender implements Provider.
func (f ProviderFunc) Sender(apiKey string) Sender {
	return f(apiKey)
}

// Options selects and configures a Provider.
type Options struct {
	Transport     string // "api" (default) | "smtp"
	ResendBaseURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	Timeout       time.Duration
}

// NewProvider returns the Provider named by o.Transport.
func NewProvider(o Options) (Provider, error) {
	switch o.Transport {
	case "", "api":
		return NewResendProvider(o.ResendBaseURL, o.Timeout), nil
	case "smtp":
		return NewSMTPProvider(o.SMTPHost, o.SMTPPort, o.SMTPUser, o.Timeout), nil
	default:
		return nil, fmt.Errorf("email: unknown transport %q", o.Transport)
	}
}
