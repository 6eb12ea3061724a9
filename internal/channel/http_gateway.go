// internal/channel/http_gateway.go
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPGateway talks to the chat gateway that owns the actual sockets.
// GET  /sessions/{id}/status  -> {"connected": bool}
// POST /sessions/{id}/messages {"destination": "...", ...payload} -> {"id": "..."}
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *HTTPGateway) IsConnected(sessionID string) bool {
	resp, err := g.Client.Get(g.sessionURL(sessionID) + "/status")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Connected
}

func (g *HTTPGateway) Send(ctx context.Context, sessionID, destination string, p Payload) (string, error) {
	reqBody := struct {
		Destination string `json:"destination"`
		Payload
	}{Destination: destination, Payload: p}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sessionURL(sessionID)+"/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return "", fmt.Errorf("gateway: %s", apiErr.Error)
		}
		return "", fmt.Errorf("gateway: send returned status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("gateway: decode send response: %w", err)
	}
	return body.ID, nil
}

func (g *HTTPGateway) sessionURL(sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s", g.BaseURL, url.PathEscape(sessionID))
}

var _ Channel = (*HTTPGateway)(nil)
