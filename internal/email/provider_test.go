package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaro/venue-api/internal/config"
	"github.com/locaro/venue-api/internal/model"
)

func TestProviderSendReturnsMessageID(t *testing.T) {
	var captured providerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "msg_abc123"})
	}))
	defer server.Close()

	sender := NewProviderSender(config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "re_test_key",
	}, "noreply@locaro.example")

	id, err := sender.Send(context.Background(), &Message{
		To:      "venue@example.com",
		Subject: "60-119 guests · Mitte",
		Text:    "A new venue request matches your venue.",
		Type:    model.EmailTypeBroadcast,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_abc123", id)

	assert.Equal(t, "noreply@locaro.example", captured.From)
	assert.Equal(t, []string{"venue@example.com"}, captured.To)
	assert.Equal(t, "60-119 guests · Mitte", captured.Subject)
	assert.Equal(t, "provider", sender.Transport())
}

func TestProviderSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := NewProviderSender(config.ProviderConfig{BaseURL: server.URL, APIKey: "k"}, "noreply@locaro.example")

	_, err := sender.Send(context.Background(), &Message{To: "venue@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestProviderSendRejectsEmptyMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	sender := NewProviderSender(config.ProviderConfig{BaseURL: server.URL, APIKey: "k"}, "noreply@locaro.example")

	_, err := sender.Send(context.Background(), &Message{To: "venue@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message id")
}

func TestProviderCircuitOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewProviderSender(config.ProviderConfig{BaseURL: server.URL, APIKey: "k"}, "noreply@locaro.example")

	for i := 0; i < 5; i++ {
		_, err := sender.Send(context.Background(), &Message{To: "venue@example.com"})
		require.Error(t, err)
	}

	// The breaker is now open: the failure is immediate, without an HTTP call.
	_, err := sender.Send(context.Background(), &Message{To: "venue@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestNewSenderPicksTransport(t *testing.T) {
	withKey := NewSender(config.EmailConfig{Provider: config.ProviderConfig{APIKey: "k"}})
	assert.Equal(t, "provider", withKey.Transport())

	withoutKey := NewSender(config.EmailConfig{SMTP: config.SMTPConfig{Host: "localhost", Port: 1025}})
	assert.Equal(t, "smtp", withoutKey.Transport())
}
