// Package push delivers notifications to mobile devices through Expo.
package push

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

// Notification is the payload shown on the device
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

type expoMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound"`
	Data  map[string]any `json:"data,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoSender posts messages to the Expo push API
type ExpoSender struct {
	url         string
	accessToken string
	client      *http.Client
}

func NewExpoSender(url, accessToken string) *ExpoSender {
	return &ExpoSender{
		url:         url,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Send pushes n to every device token in one request. Tokens that Expo
// rejects are reported together in the returned error.
func (s *ExpoSender) Send(ctx context.Context, tokens []string, n Notification) error {
	if len(tokens) == 0 {
		return nil
	}

	msgs := make([]expoMessage, len(tokens))
	for i, t := range tokens {
		msgs[i] = expoMessage{To: t, Title: n.Title, Body: n.Body, Sound: "default", Data: n.Data}
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post push: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed expoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("expo error %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}

	var failed []string
	for i, ticket := range parsed.Data {
		if ticket.Status == "error" && i < len(tokens) {
			failed = append(failed, fmt.Sprintf("%s (%s)", tokens[i], ticket.Message))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("push rejected for %s", strings.Join(failed, ", "))
	}
	return nil
}
