package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GatewayClient talks to the Evolution-style messaging gateway. Every
// business action the gateway exposes gets its own method so payload
// shapes are checked at compile time instead of being multiplexed
// through an action string.
type GatewayClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

func NewGatewayClient(baseURL, apiKey string, logger *logrus.Logger) *GatewayClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &GatewayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		Logger: logger,
	}
}

// GatewayError carries the gateway's HTTP status and raw body so callers
// can distinguish channel-level failures from transport ones.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// IsChannelBlocked reports whether the error indicates the messaging
// channel itself is banned, logged out, or otherwise unusable, as opposed
// to a transient failure. Used to drive connection failover.
func IsChannelBlocked(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	if ge.StatusCode == http.StatusUnauthorized || ge.StatusCode == http.StatusForbidden {
		return true
	}
	body := strings.ToLower(ge.Body)
	for _, marker := range []string{"banned", "blocked", "logged out", "connection closed"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a send may be retried without risking a
// duplicate-looking failure mode: 429 and 5xx only.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.StatusCode == http.StatusTooManyRequests || ge.StatusCode >= 500
}

type InstanceState struct {
	InstanceName string `json:"instanceName"`
	State        string `json:"state"` // open, close, connecting
}

type QRCode struct {
	Code        string `json:"code"` // raw QR payload
	PairingCode string `json:"pairingCode,omitempty"`
}

type SendResult struct {
	MessageID  string `json:"messageId"`
	HTTPStatus int    `json:"-"`
	RawBody    string `json:"-"`
}

// CreateInstance provisions a new gateway instance for a connection and
// returns its per-instance token.
func (g *GatewayClient) CreateInstance(ctx context.Context, instanceName string) (string, error) {
	payload := map[string]interface{}{
		"instanceName": instanceName,
		"qrcode":       true,
	}
	var out struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
		} `json:"instance"`
		Hash struct {
			APIKey string `json:"apikey"`
		} `json:"hash"`
	}
	if _, err := g.do(ctx, http.MethodPost, "/instance/create", payload, &out); err != nil {
		return "", err
	}
	return out.Hash.APIKey, nil
}

// Connect asks the gateway for a fresh QR / pairing code for an instance
// awaiting pairing.
func (g *GatewayClient) Connect(ctx context.Context, instanceName string) (*QRCode, error) {
	var out QRCode
	if _, err := g.do(ctx, http.MethodGet, "/instance/connect/"+instanceName, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectionState returns the live open/close state of the instance.
func (g *GatewayClient) ConnectionState(ctx context.Context, instanceName string) (*InstanceState, error) {
	var out struct {
		Instance InstanceState `json:"instance"`
	}
	if _, err := g.do(ctx, http.MethodGet, "/instance/connectionState/"+instanceName, nil, &out); err != nil {
		return nil, err
	}
	if out.Instance.InstanceName == "" {
		out.Instance.InstanceName = instanceName
	}
	return &out.Instance, nil
}

// Logout disconnects the WhatsApp session without deleting the instance.
func (g *GatewayClient) Logout(ctx context.Context, instanceName string) error {
	_, err := g.do(ctx, http.MethodDelete, "/instance/logout/"+instanceName, nil, nil)
	return err
}

// DeleteInstance removes the instance from the gateway entirely.
func (g *GatewayClient) DeleteInstance(ctx context.Context, instanceName string) error {
	_, err := g.do(ctx, http.MethodDelete, "/instance/delete/"+instanceName, nil, nil)
	return err
}

// SendText delivers a plain text message to a phone number or group JID.
func (g *GatewayClient) SendText(ctx context.Context, instanceName, recipient, text string) (*SendResult, error) {
	payload := map[string]interface{}{
		"number": recipient,
		"text":   text,
	}
	return g.send(ctx, "/message/sendText/"+instanceName, payload)
}

// SendMedia delivers a media message referenced by URL.
func (g *GatewayClient) SendMedia(ctx context.Context, instanceName, recipient, mediaURL, caption string) (*SendResult, error) {
	payload := map[string]interface{}{
		"number":   recipient,
		"mediaUrl": mediaURL,
		"caption":  caption,
	}
	return g.send(ctx, "/message/sendMedia/"+instanceName, payload)
}

func (g *GatewayClient) send(ctx context.Context, path string, payload interface{}) (*SendResult, error) {
	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	status, raw, err := g.doRaw(ctx, http.MethodPost, path, payload, &out)
	if err != nil {
		return nil, err
	}
	return &SendResult{
		MessageID:  out.Key.ID,
		HTTPStatus: status,
		RawBody:    raw,
	}, nil
}

func (g *GatewayClient) do(ctx context.Context, method, path string, payload, out interface{}) (int, error) {
	status, _, err := g.doRaw(ctx, method, path, payload, out)
	return status, err
}

func (g *GatewayClient) doRaw(ctx context.Context, method, path string, payload, out interface{}) (int, string, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.APIKey)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", err
	}

	if resp.StatusCode >= 400 {
		g.Logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("gateway request failed")
		return resp.StatusCode, string(raw), &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, string(raw), fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return resp.StatusCode, string(raw), nil
}
