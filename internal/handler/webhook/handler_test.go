package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaro/venue-api/internal/service/delivery"
	"github.com/locaro/venue-api/pkg/clock"
)

type fakeReconciler struct {
	events []*delivery.Event
	err    error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, ev *delivery.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func newWebhookRouter(t *testing.T, rec *fakeReconciler, secret string, now time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(rec, secret, &clock.Fake{T: now}, zerolog.Nop(), nil)
	h.RegisterRoutes(r.Group(""))
	return r
}

func postEvent(r *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validHeaders(t *testing.T, body []byte, at time.Time) map[string]string {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	sig, err := Sign(testSecret, "msg_2f9a", ts, body)
	require.NoError(t, err)
	return map[string]string{
		headerID:        "msg_2f9a",
		headerTimestamp: ts,
		headerSignature: sig,
	}
}

func TestHandleAppliesSignedEvent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.delivered","created_at":"2025-06-01T11:59:00Z","data":{"email_id":"abc-123"}}`)
	w := postEvent(r, body, validHeaders(t, body, now))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.events, 1)
	assert.Equal(t, delivery.KindDelivered, rec.events[0].Kind)
	assert.Equal(t, "abc-123", rec.events[0].MessageID)
}

func TestHandleRejectsInvalidSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.delivered","data":{"email_id":"abc-123"}}`)
	headers := validHeaders(t, []byte(`different body`), now)
	w := postEvent(r, body, headers)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, rec.events, "unverified event must not reach the reconciler")
}

func TestHandleRejectsMissingHeaders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	w := postEvent(r, []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, rec.events)
}

func TestHandleFailsClosedWithoutSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, "", now)

	body := []byte(`{"type":"email.delivered","data":{"email_id":"abc-123"}}`)
	w := postEvent(r, body, validHeaders(t, body, now))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, rec.events)
}

func TestHandleRejectsPayloadWithoutMessageID(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.delivered","data":{}}`)
	w := postEvent(r, body, validHeaders(t, body, now))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.events)
}

func TestHandleStaleTimestampRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.delivered","data":{"email_id":"abc-123"}}`)
	headers := validHeaders(t, body, now.Add(-10*time.Minute))
	w := postEvent(r, body, headers)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, rec.events)
}

func TestHandleReconcilerFailureReturns500(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{err: fmt.Errorf("database down")}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.delivered","data":{"email_id":"abc-123"}}`)
	w := postEvent(r, body, validHeaders(t, body, now))

	// 500 makes the provider retry later.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleUnknownEventTypeAcknowledged(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &fakeReconciler{}
	r := newWebhookRouter(t, rec, testSecret, now)

	body := []byte(`{"type":"email.scheduled","data":{"email_id":"abc-123"}}`)
	w := postEvent(r, body, validHeaders(t, body, now))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.events, 1)
	assert.Equal(t, delivery.KindUnknown, rec.events[0].Kind)
}
