package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageIDDomain(t *testing.T) {
	assert.Equal(t, "client1.com", messageIDDomain("noreply@client1.com"))
	assert.Equal(t, "acme.com", messageIDDomain("Acme <noreply@acme.com>"))
	assert.Equal(t, "localhost", messageIDDomain("nobody"))
	assert.Equal(t, "localhost", messageIDDomain("trailing@"))
}

func TestSMTPProvider_Defaults(t *testing.T) {
	p := NewSMTPProvider("", 0, "", 0)
	assert.Equal(t, DefaultSMTPHost, p.Host)
	assert.Equal(t, DefaultSMTPPort, p.Port)
	assert.Equal(t, DefaultSMTPUsername, p.Username)
	assert.Equal(t, 15*time.Second, p.Timeout)

	s := p.Sender("re_key").(*smtpSender)
	assert.Equal(t, "re_key", s.password)
	assert.Equal(t, "ssl", s.mode())
}

func TestSMTPSender_ModeByPort(t *testing.T) {
	assert.Equal(t, "starttls", (&smtpSender{cfg: SMTPProvider{Port: 587}}).mode())
	assert.Equal(t, "none", (&smtpSender{cfg: SMTPProvider{Port: 25, TLSMode: "none"}}).mode())
}

func TestSMTPSender_CancelledContextFailsFast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSMTPProvider("127.0.0.1", 1, "", time.Second).Sender("k").Send(ctx, Message{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProvider_SelectsTransport(t *testing.T) {
	p, err := NewProvider(Options{})
	assert.NoError(t, err)
	assert.IsType(t, &ResendProvider{}, p)

	p, err = NewProvider(Options{Transport: "smtp", SMTPPort: 587})
	assert.NoError(t, err)
	if assert.IsType(t, &SMTPProvider{}, p) {
		assert.Equal(t, 587, p.(*SMTPProvider).Port)
	}

	_, err = NewProvider(Options{Transport: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown transport")
}
