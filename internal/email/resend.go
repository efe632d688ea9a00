package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultResendBaseURL is the production Resend API.
const DefaultResendBaseURL = "https://api.resend.com"

// ResendProvider builds Senders for the Resend HTTP API.
type ResendProvider struct {
	BaseURL    string       // default DefaultResendBaseURL
	HTTPClient *http.Client // default: 15s timeout
}

// NewResendProvider returns a Provider for the Resend HTTP API. An empty
// baseURL selects the production endpoint; a zero timeout selects 15s.
func NewResendProvider(baseURL string, timeout time.Duration) *ResendProvider {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ResendProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Sender implements Provider.
func (p *ResendProvider) Sender(apiKey string) Sender {
	return NewResendClient(apiKey, p.BaseURL, p.HTTPClient)
}

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, baseURL string, httpClient *http.Client) Sender {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &resendClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// resendResponse covers both the success body ({"id"}) and the error body,
// which Resend sends flat ({"statusCode","name","message"}) and some
// proxies wrap in an "error" object.
type resendResponse struct {
	ID         string `json:"id"`
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	Error      *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// APIError is a rejection reported by the Resend API. Its Error text is the
// provider's own message so it can be surfaced to callers unchanged.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("resend: unexpected status %d", e.StatusCode)
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

// Send posts the message to /emails and returns the Resend email id.
func (c *resendClient) Send(ctx context.Context, m Message) (string, error) {
	reqBody := resendRequest{
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Text,
		HTML:    m.HTML,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/emails",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	parseErr := json.Unmarshal(respBytes, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		switch {
		case parseErr != nil:
			apiErr.Message = fmt.Sprintf("resend: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
		case parsed.Error != nil:
			apiErr.Name, apiErr.Message = parsed.Error.Name, parsed.Error.Message
		default:
			apiErr.Name, apiErr.Message = parsed.Name, parsed.Message
		}
		return "", apiErr
	}

	if parsed.Error != nil {
		return "", &APIError{StatusCode: resp.StatusCode, Name: parsed.Error.Name, Message: parsed.Error.Message}
	}

	// A 2xx without a readable id is still an accepted email.
	return parsed.ID, nil
}
