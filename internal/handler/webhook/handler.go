package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/locaro/venue-api/internal/handler"
	"github.com/locaro/venue-api/internal/service/delivery"
	"github.com/locaro/venue-api/pkg/clock"
	apperrors "github.com/locaro/venue-api/pkg/errors"
	"github.com/locaro/venue-api/pkg/metrics"
)

// maxBodyBytes caps webhook payloads; provider events are small.
const maxBodyBytes = 64 << 10

const (
	headerID        = "svix-id"
	headerTimestamp = "svix-timestamp"
	headerSignature = "svix-signature"
)

type Handler struct {
	reconciler delivery.Service
	secret     string
	clk        clock.Clock
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

func NewHandler(reconciler delivery.Service, secret string, clk clock.Clock, logger zerolog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		reconciler: reconciler,
		secret:     secret,
		clk:        clk,
		logger:     logger,
		metrics:    m,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/email", h.Handle)
}

// Handle ingests one provider callback. Status codes are the whole
// contract: 200 processed or benignly ignored, 401 bad signature, 400
// malformed payload, 500 missing configuration or true processing failure
// (so the provider retries).
func (h *Handler) Handle(c *gin.Context) {
	if h.secret == "" {
		// Fail closed: never accept unverified events.
		h.logger.Error().Msg("webhook signing secret not configured")
		h.reject("config")
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("webhook not configured"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.reject("body")
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("unreadable payload"))
		return
	}

	now := time.Now()
	if h.clk != nil {
		now = h.clk.Now()
	}
	if err := VerifySignature(
		h.secret,
		c.GetHeader(headerID),
		c.GetHeader(headerTimestamp),
		c.GetHeader(headerSignature),
		body,
		now,
	); err != nil {
		h.logger.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("webhook signature verification failed")
		h.reject("signature")
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid signature"))
		return
	}

	event, err := delivery.ParseEvent(body)
	if err != nil {
		h.reject("payload")
		c.JSON(apperrors.HTTPStatus(err), handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.reconciler.Reconcile(c.Request.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("message_id", event.MessageID).Msg("failed to reconcile webhook event")
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("processing failed"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.WebhookRejected.WithLabelValues(reason).Inc()
	}
}
