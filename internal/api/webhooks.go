package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nyashahama/shipment-notifier/internal/registry"
	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// ─── POST /webhook/{clientId}/shipment ────────────────────────────────────────

// handleShipmentWebhook receives a carrier status update for one client.
//
// Only DELIVERED events produce an email; every other status is acknowledged
// with 200 so the carrier stops retrying. A failed send is reported as 500
// but the event still counts as processed: the status code communicates the
// email failure, not a rejection of the webhook.
func (s *Server) handleShipmentWebhook(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")

	// ── 1. Client id must be numeric ──────────────────────────────────────────
	if !registry.ValidID(clientID) {
		s.logger.Warn("webhook: invalid client id", "client_id", clientID, logField(r))
		respondErr(w, http.StatusBadRequest, "Invalid client ID. Must be a number.")
		return
	}

	// ── 2. Unknown clients are 404 whatever the body says ─────────────────────
	profile, ok := s.clients.Lookup(clientID)
	if !ok {
		s.logger.Warn("webhook: unknown client", "client_id", clientID, logField(r))
		respondErr(w, http.StatusNotFound, fmt.Sprintf("Client %s not found", clientID))
		return
	}

	// ── 3. Parse and validate the event ───────────────────────────────────────
	var ev shipment.Event
	if err := decode(w, r, &ev); err != nil {
		s.logger.Warn("webhook: unreadable payload", "client_id", clientID, "error", err, logField(r))
		respond(w, http.StatusBadRequest, envelope{
			Message: "Invalid webhook payload",
			Error:   err.Error(),
		})
		return
	}

	if missing := ev.MissingFields(); len(missing) > 0 {
		s.logger.Warn("webhook: missing fields",
			"client_id", clientID,
			"missing", missing,
			logField(r),
		)
		respond(w, http.StatusBadRequest, envelope{
			Message:       "Invalid webhook payload",
			MissingFields: missing,
		})
		return
	}

	log := s.logger.With(
		"client_id", clientID,
		"awb", string(ev.AWB),
		"status", string(ev.ShipmentStatus),
		logField(r),
	)
	log.Info("webhook: received")

	// ── 4. Non-terminal statuses are acknowledged without an email ────────────
	if !ev.IsDelivered() {
		log.Info("webhook: no notification needed")
		respond(w, http.StatusOK, envelope{
			Success: true,
			Message: "Webhook processed successfully. No email sent (status not DELIVERED)",
			Client:  profile.Name,
			Status:  string(ev.ShipmentStatus),
		})
		return
	}

	// ── 5. Delivered: send the notification and wait for the result ───────────
	out := s.dispatcher.Dispatch(r.Context(), clientID, ev)
	if !out.Success {
		log.Error("webhook: email sending failed", "error", out.Error)
		respond(w, http.StatusInternalServerError, envelope{
			Message: "Webhook processed but email sending failed",
			Error:   out.Error,
		})
		return
	}

	log.Info("webhook: email sent", "email_id", out.EmailID)
	respond(w, http.StatusOK, envelope{
		Success: true,
		Message: "Webhook processed and email sent successfully",
		Client:  out.ClientName,
		EmailID: out.EmailID,
	})
}

// ─── GET /webhook/{clientId}/status ───────────────────────────────────────────

type clientSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EmailTemplate string `json:"emailTemplate"`
}

type webhookStatusResponse struct {
	Success   bool          `json:"success"`
	Client    clientSummary `json:"client"`
	Timestamp string        `json:"timestamp"`
}

// handleWebhookStatus returns the profile summary for one client.
func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")

	profile, ok := s.clients.Lookup(clientID)
	if !ok {
		respondErr(w, http.StatusNotFound, fmt.Sprintf("Client %s not found", clientID))
		return
	}

	respond(w, http.StatusOK, webhookStatusResponse{
		Success: true,
		Client: clientSummary{
			ID:            profile.ID,
			Name:          profile.Name,
			EmailTemplate: profile.Template,
		},
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
