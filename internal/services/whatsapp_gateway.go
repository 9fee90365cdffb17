package services

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

// WhatsAppGatewayError is a non-2xx answer of the WhatsApp gateway.
type WhatsAppGatewayError struct {
	StatusCode int
	Body       string
}

func (e *WhatsAppGatewayError) Error() string {
	return fmt.Sprintf("whatsapp gateway returned status %d: %s", e.StatusCode, e.Body)
}

// WhatsAppGateway talks to the external WhatsApp gateway. Session calls are
// authenticated with the session's own token, admin calls with the admin token.
type WhatsAppGateway struct {
	baseURL    string
	adminToken string
	client     *http.Client
	pause      func(time.Duration)
}

func NewWhatsAppGateway(baseURL, adminToken string, client *http.Client) *WhatsAppGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &WhatsAppGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		client:     client,
		pause:      time.Sleep,
	}
}

type gatewayEnvelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
}

func (g *WhatsAppGateway) makeRequest(ctx context.Context, method, endpoint string, headers map[string]string, payload, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &WhatsAppGatewayError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}

	var env gatewayEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = env.Data
		return nil
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func sessionHeader(token string) map[string]string {
	return map[string]string{"token": token}
}

// SessionStatus mirrors the gateway's view of one session.
type SessionStatus struct {
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"loggedIn"`
	JID       string `json:"jid"`
}

func (g *WhatsAppGateway) SessionStatus(ctx context.Context, token string) (*SessionStatus, error) {
	var st SessionStatus
	if err := g.makeRequest(ctx, http.MethodGet, "/session/status", sessionHeader(token), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Connect asks the gateway to open the session and subscribe to messages.
func (g *WhatsAppGateway) Connect(ctx context.Context, token string) error {
	return g.makeRequest(ctx, http.MethodPost, "/session/connect", sessionHeader(token), map[string]interface{}{
		"Subscribe": []string{"Message"},
		"Immediate": true,
	}, nil)
}

// QRCode returns the pairing QR code as a data URL.
func (g *WhatsAppGateway) QRCode(ctx context.Context, token string) (string, error) {
	var out struct {
		QRCode string `json:"QRCode"`
	}
	if err := g.makeRequest(ctx, http.MethodGet, "/session/qr", sessionHeader(token), nil, &out); err != nil {
		return "", err
	}
	return out.QRCode, nil
}

// GetWebhook relays the gateway's webhook configuration as is.
func (g *WhatsAppGateway) GetWebhook(ctx context.Context, token string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := g.makeRequest(ctx, http.MethodGet, "/webhook", sessionHeader(token), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *WhatsAppGateway) SetWebhook(ctx context.Context, token, webhookURL string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := g.makeRequest(ctx, http.MethodPost, "/webhook", sessionHeader(token), map[string]string{
		"webhookURL": webhookURL,
	}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateUser registers a new session at the gateway.
func (g *WhatsAppGateway) CreateUser(ctx context.Context, name, token, webhookURL string) error {
	if g.adminToken == "" {
		return fmt.Errorf("whatsapp gateway admin token is not configured")
	}
	return g.makeRequest(ctx, http.MethodPost, "/admin/users", map[string]string{"Authorization": g.adminToken}, map[string]string{
		"name":    name,
		"token":   token,
		"webhook": webhookURL,
		"events":  "Message",
	}, nil)
}

func (g *WhatsAppGateway) setPresence(ctx context.Context, token, phone, state string) error {
	return g.makeRequest(ctx, http.MethodPost, "/chat/presence", sessionHeader(token), map[string]string{
		"Phone": phone,
		"State": state,
	}, nil)
}

func (g *WhatsAppGateway) sendText(ctx context.Context, token, phone, text string) error {
	return g.makeRequest(ctx, http.MethodPost, "/chat/send/text", sessionHeader(token), map[string]string{
		"Phone": phone,
		"Body":  text,
	}, nil)
}

// NormalizePhone turns a phone number or chat id into the digits-only form
// the gateway expects. Group ids are returned unchanged.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	// If it's already a group ID, it's correct
	if strings.HasSuffix(phone, "@g.us") {
		return phone
	}

	phone = strings.TrimSuffix(phone, "@s.whatsapp.net")
	phone = strings.TrimSuffix(phone, "@c.us")

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone = b.String()

	// Standardize Indonesian numbers starting with '0' to '62'
	if strings.HasPrefix(phone, "0") {
		phone = "62" + strings.TrimPrefix(phone, "0")
	}
	return phone
}

// SendMessage sends a text with a short typing indicator first
// (composing -> paused -> send).
func (g *WhatsAppGateway) SendMessage(ctx context.Context, token, phone, text string) error {
	phone = NormalizePhone(phone)

	if err := g.setPresence(ctx, token, phone, "composing"); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	g.pause(150 * time.Millisecond)

	if err := g.setPresence(ctx, token, phone, "paused"); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	g.pause(50 * time.Millisecond)

	if err := g.sendText(ctx, token, phone, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}
