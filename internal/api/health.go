package api

import (
	"net/http"
	"runtime"
	"time"
)

// ─── GET / and /hello ─────────────────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"message": "Multi-Client Webhook API Server"})
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("I am ok. whtools server running!"))
}

// ─── GET /health ──────────────────────────────────────────────────────────────

type memoryStats struct {
	RSS       uint64 `json:"rss"`
	HeapTotal uint64 `json:"heapTotal"`
	HeapUsed  uint64 `json:"heapUsed"`
	External  uint64 `json:"external"`
}

type healthResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
	Uptime    float64     `json:"uptime"` // seconds
	Memory    memoryStats `json:"memory"`
	Clients   int         `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s.logger.Debug("health check requested", logField(r))

	respond(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: timestamp(),
		Uptime:    time.Since(s.started).Seconds(),
		Memory: memoryStats{
			RSS:       ms.Sys,
			HeapTotal: ms.HeapSys,
			HeapUsed:  ms.HeapAlloc,
			External:  ms.StackSys,
		},
		Clients: s.clients.Len(),
	})
}

// ─── GET /health/clients ──────────────────────────────────────────────────────

type clientListing struct {
	clientSummary
	WebhookURL string `json:"webhookUrl"`
}

type clientsResponse struct {
	Success bool            `json:"success"`
	Clients []clientListing `json:"clients"`
	Total   int             `json:"total"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	profiles := s.clients.Profiles()

	out := make([]clientListing, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, clientListing{
			clientSummary: clientSummary{
				ID:            p.ID,
				Name:          p.Name,
				EmailTemplate: p.Template,
			},
			WebhookURL: "/webhook/" + p.ID + "/shipment",
		})
	}

	respond(w, http.StatusOK, clientsResponse{
		Success: true,
		Clients: out,
		Total:   len(out),
	})
}
