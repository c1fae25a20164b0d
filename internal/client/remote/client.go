// Package remote provides the HTTP client for the question box API.
//
// Failures are classified into two sentinel errors: ErrRejected for
// payloads the server refused (retrying will not help) and ErrTransport
// for network trouble (retrying later is expected to help). Callers branch
// on the class, never on status codes.
package remote

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

	"github.com/google/uuid"
)

var (
	ErrRejected  = errors.New("remote rejected submission")
	ErrTransport = errors.New("transport failure")
)

// Client represents a question box API client.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Client instance. The timeout bounds every call;
// a timed-out call is classified as a transport failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// envelope mirrors the server's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
		}
		return env.Data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return nil, fmt.Errorf("%w: status %s", ErrRejected, resp.Status)
	default:
		return nil, fmt.Errorf("%w: status %s", ErrTransport, resp.Status)
	}
}

// SubmitQuestion inserts a question and returns the server-assigned id.
func (c *Client) SubmitQuestion(ctx context.Context, category, questionText string) (uuid.UUID, error) {
	data, err := c.post(ctx, "/api/questions", map[string]string{
		"category":      category,
		"question_text": questionText,
	})
	if err != nil {
		return uuid.Nil, err
	}

	var idStr string
	if err := json.Unmarshal(data, &idStr); err != nil {
		return uuid.Nil, fmt.Errorf("%w: decode question id: %v", ErrTransport, err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: parse question id: %v", ErrTransport, err)
	}

	return id, nil
}

// TriggerNewQuestionNotify asks the server to notify admins about a freshly
// submitted question. The call is best-effort; its failure must not be
// treated as a failure of the submission itself.
func (c *Client) TriggerNewQuestionNotify(ctx context.Context, questionID uuid.UUID) error {
	_, err := c.post(ctx, "/api/notify/question", map[string]string{
		"question_id": questionID.String(),
	})
	return err
}

// RegisterToken upserts the device push token with the server.
func (c *Client) RegisterToken(ctx context.Context, token, deviceType string) error {
	_, err := c.post(ctx, "/api/push/register", map[string]string{
		"token":       token,
		"device_type": deviceType,
	})
	return err
}

// Healthy probes the server's liveness endpoint. Used as the connectivity
// watcher's reachability signal.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
