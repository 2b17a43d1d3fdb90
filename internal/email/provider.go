package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/locaro/venue-api/internal/config"
	"github.com/locaro/venue-api/pkg/circuitbreaker"
)

type providerSender struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
	cb      *circuitbreaker.CircuitBreaker
}

// NewProviderSender talks to the delivery provider's HTTP API. A circuit
// breaker keeps a flapping provider from stalling every dispatch request.
func NewProviderSender(cfg config.ProviderConfig, from string) Sender {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &providerSender{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    from,
		client:  &http.Client{Timeout: timeout},
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "email-provider",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

func (s *providerSender) Transport() string {
	return "provider"
}

type providerRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type providerResponse struct {
	ID string `json:"id"`
}

func (s *providerSender) Send(ctx context.Context, msg *Message) (string, error) {
	payload, err := json.Marshal(providerRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	var id string
	err = s.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build send request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call delivery provider: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return fmt.Errorf("failed to read provider response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("delivery provider returned %d: %s", resp.StatusCode, body)
		}

		var pr providerResponse
		if err := json.Unmarshal(body, &pr); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
		if pr.ID == "" {
			return fmt.Errorf("delivery provider returned no message id")
		}
		id = pr.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
