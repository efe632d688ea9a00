// Package notify turns a delivered shipment event into an email for the
// client that owns the webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyashahama/shipment-notifier/internal/email"
	"github.com/nyashahama/shipment-notifier/internal/metrics"
	"github.com/nyashahama/shipment-notifier/internal/registry"
	"github.com/nyashahama/shipment-notifier/internal/render"
	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// DefaultSendTimeout bounds one provider call when none is configured.
const DefaultSendTimeout = 15 * time.Second

// Outcome is the result of one dispatch attempt. Exactly one of EmailID
// (possibly empty) or Error is meaningful, depending on Success.
type Outcome struct {
	Success    bool
	EmailID    string
	ClientName string
	Error      string
}

// Recorder receives dispatch measurements. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveDispatch(clientID, result string, d time.Duration)
}

// Dispatcher holds the dependencies for lookup → render → send.
type Dispatcher struct {
	clients  *registry.Registry
	provider email.Provider
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
}

// NewDispatcher constructs a Dispatcher. recorder may be nil; a timeout of
// zero selects DefaultSendTimeout.
func NewDispatcher(
	clients *registry.Registry,
	provider email.Provider,
	recorder Recorder,
	logger *slog.Logger,
	timeout time.Duration,
) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		clients:  clients,
		provider: provider,
		recorder: recorder,
		logger:   logger,
		timeout:  timeout,
	}
}

// Dispatch sends the delivery notification for ev on behalf of clientID.
// It never returns an error: every failure is folded into the Outcome.
//
// The provider call is detached from ctx cancellation (a client hanging up
// must not abort a send already in flight) but is bounded by the send
// timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, ev shipment.Event) Outcome {
	start := time.Now()
	log := d.logger.With(
		"dispatch_id", uuid.NewString(),
		"client_id", clientID,
		"awb", string(ev.AWB),
	)

	profile, outcome, result := d.resolve(clientID)
	if result != "" {
		d.observe(clientID, result, start)
		log.Warn("dispatch: rejected", "error", outcome.Error)
		return outcome
	}

	rendered := render.Explain(profile.Template, ev)
	if rendered.Err != nil {
		log.Warn("dispatch: template fell back to default",
			"template", rendered.Requested,
			"error", rendered.Err,
		)
	}

	msg := email.Message{
		From:    profile.Sender.From,
		To:      profile.Sender.To,
		Subject: InterpolateSubject(profile.Sender.Subject, ev),
		Text:    rendered.Body,
	}
	if !profile.Sender.OmitHTML {
		msg.HTML = rendered.Body
	}

	outcome = d.send(ctx, profile, msg)
	if !outcome.Success {
		d.observe(clientID, metrics.ResultSendFailed, start)
		log.Error("dispatch: send failed", "error", outcome.Error, "elapsed", time.Since(start))
		return outcome
	}

	d.observe(clientID, metrics.ResultSent, start)
	log.Info("dispatch: email sent",
		"email_id", outcome.EmailID,
		"template", rendered.Used.String(),
		"elapsed", time.Since(start),
	)
	return outcome
}

// SendTest sends a fixed test message to the client's recipients, to verify
// its sender configuration end to end.
func (d *Dispatcher) SendTest(ctx context.Context, clientID string) Outcome {
	start := time.Now()

	profile, outcome, result := d.resolve(clientID)
	if result != "" {
		return outcome
	}

	msg := email.Message{
		From:    profile.Sender.From,
		To:      profile.Sender.To,
		Subject: "Test Email - " + profile.Name,
		Text: fmt.Sprintf("This is a test email for client %s (ID: %s)\n\nConfiguration is working correctly.",
			profile.Name, profile.ID),
		HTML: fmt.Sprintf("<p>This is a test email for client <strong>%s</strong> (ID: %s)</p><p>Configuration is working correctly.</p>",
			profile.Name, profile.ID),
	}

	outcome = d.send(ctx, profile, msg)
	d.logger.Info("dispatch: test email",
		"client_id", clientID,
		"success", outcome.Success,
		"email_id", outcome.EmailID,
		"error", outcome.Error,
		"elapsed", time.Since(start),
	)
	return outcome
}

// InterpolateSubject replaces every {{awb}} and {{courier_name}} token in
// subject. Absent values become empty strings; no other tokens are known.
func InterpolateSubject(subject string, ev shipment.Event) string {
	return strings.NewReplacer(
		"{{awb}}", string(ev.AWB),
		"{{courier_name}}", string(ev.CourierName),
	).Replace(subject)
}

// resolve looks up clientID and checks it can authenticate. On failure it
// returns the Outcome to report and a non-empty metrics result.
func (d *Dispatcher) resolve(clientID string) (registry.Profile, Outcome, string) {
	profile, ok := d.clients.Lookup(clientID)
	if !ok {
		return registry.Profile{}, Outcome{
			Error: fmt.Sprintf("Client %s not found", clientID),
		}, metrics.ResultNotFound
	}
	if !profile.HasCredentials() {
		return profile, Outcome{
			ClientName: profile.Name,
			Error:      fmt.Sprintf("Invalid client configuration for client %s", clientID),
		}, metrics.ResultConfigFault
	}
	return profile, Outcome{}, ""
}

func (d *Dispatcher) send(ctx context.Context, profile registry.Profile, msg email.Message) Outcome {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	id, err := d.provider.Sender(profile.Sender.APIKey).Send(sendCtx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("email send timed out after %s: %w", d.timeout, err)
		}
		return Outcome{ClientName: profile.Name, Error: err.Error()}
	}
	return Outcome{Success: true, EmailID: id, ClientName: profile.Name}
}

func (d *Dispatcher) observe(clientID, result string, start time.Time) {
	if d.recorder == nil {
		return
	}
	if result == metrics.ResultNotFound {
		// Unknown ids are caller-controlled; keep them out of label values.
		clientID = "unknown"
	}
	d.recorder.ObserveDispatch(clientID, result, time.Since(start))
}
