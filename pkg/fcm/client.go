// Package fcm provides a client for the FCM legacy HTTP push gateway.
//
// The client sends one request per recipient token. It is constructed with
// an environment-provided server key; an empty key is a valid "feature
// disabled" state, not an error.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// Notification is the payload delivered to a single device.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Client represents an FCM gateway client.
type Client struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewClient creates a new FCM Client instance. The timeout bounds every
// gateway call; a timed-out send is reported as an ordinary error.
func NewClient(endpoint, serverKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Client{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a server key is configured. When false, callers
// should skip gateway calls entirely and degrade to a queued result.
func (c *Client) Enabled() bool {
	return c.serverKey != ""
}

// sendRequest represents the payload for the FCM legacy send API.
type sendRequest struct {
	To           string            `json:"to"`
	Notification notificationBody  `json:"notification"`
	Data         map[string]string `json:"data"`
}

type notificationBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

// Send delivers a notification to the given recipient token.
//
// It returns an error if the gateway is unreachable or responds with a
// non-200 status; the caller decides whether that failure aborts anything.
func (c *Client) Send(ctx context.Context, token string, n Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}

	reqBody := sendRequest{
		To: token,
		Notification: notificationBody{
			Title: n.Title,
			Body:  n.Body,
			Sound: "default",
		},
		Data: data,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm gateway error: %s", resp.Status)
	}

	return nil
}
