package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/RobinLiu69/MentionDodger/internal/correlation"
	"github.com/RobinLiu69/MentionDodger/internal/domain"
	"github.com/RobinLiu69/MentionDodger/internal/metrics"
)

const (
	// Delivery headers set by the chat platform bridge.
	HeaderDeliveryID = "X-Ghostwatch-Delivery-Id"
	HeaderTimestamp  = "X-Ghostwatch-Timestamp"
	HeaderSignature  = "X-Ghostwatch-Signature"

	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
	maxTimestampAge = 10 * time.Minute
)

// messageHandler is the downstream consumer of verified messages.
type messageHandler interface {
	HandleMessage(ctx context.Context, msg *domain.Message) error
}

// WebhookHandler receives chat message deliveries over HTTP. Each delivery is
// HMAC-signed over delivery ID, timestamp, and raw body; unsigned or stale
// deliveries are rejected before the body is parsed.
type WebhookHandler struct {
	secret  []byte
	tracker messageHandler
	clock   clockwork.Clock
}

// NewWebhookHandler creates a handler verifying deliveries with the shared secret.
func NewWebhookHandler(secret string, tracker messageHandler, clock clockwork.Clock) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), tracker: tracker, clock: clock}
}

// HandleMessage is the Echo handler for POST /webhooks/messages.
func (wh *WebhookHandler) HandleMessage(c echo.Context) error {
	req := c.Request()
	ctx := correlation.WithID(req.Context(), correlation.NewID())

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("read_error").Inc()
		return c.NoContent(http.StatusBadRequest)
	}
	if len(body) > maxBodyBytes {
		metrics.WebhookRequestsTotal.WithLabelValues("too_large").Inc()
		return c.NoContent(http.StatusRequestEntityTooLarge)
	}

	deliveryID := req.Header.Get(HeaderDeliveryID)
	timestamp := req.Header.Get(HeaderTimestamp)
	signature := req.Header.Get(HeaderSignature)

	if !wh.verifySignature(deliveryID, timestamp, body, signature) {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_signature").Inc()
		slog.WarnContext(ctx, "Rejecting webhook with invalid signature", "delivery_id", deliveryID)
		return c.NoContent(http.StatusForbidden)
	}

	if !wh.timestampFresh(timestamp) {
		metrics.WebhookRequestsTotal.WithLabelValues("stale_timestamp").Inc()
		slog.WarnContext(ctx, "Rejecting webhook with stale timestamp",
			"delivery_id", deliveryID, "timestamp", timestamp)
		return c.NoContent(http.StatusForbidden)
	}

	parsedDeliveryID, err := uuid.Parse(deliveryID)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_delivery_id").Inc()
		return c.NoContent(http.StatusBadRequest)
	}

	var msg domain.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_payload").Inc()
		slog.WarnContext(ctx, "Rejecting unparseable webhook payload",
			"delivery_id", deliveryID, "error", err)
		return c.NoContent(http.StatusBadRequest)
	}
	msg.DeliveryID = parsedDeliveryID

	if msg.GuildID == "" || msg.ChannelID == "" || msg.AuthorID == "" {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_payload").Inc()
		return c.NoContent(http.StatusBadRequest)
	}

	if err := wh.tracker.HandleMessage(ctx, &msg); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("handler_error").Inc()
		slog.ErrorContext(ctx, "Failed to process webhook message",
			"delivery_id", deliveryID, "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	metrics.WebhookRequestsTotal.WithLabelValues("ok").Inc()
	return c.NoContent(http.StatusNoContent)
}

// verifySignature checks the HMAC-SHA256 over deliveryID + timestamp + body.
func (wh *WebhookHandler) verifySignature(deliveryID, timestamp string, body []byte, signature string) bool {
	if deliveryID == "" || timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, wh.secret)
	mac.Write([]byte(deliveryID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// timestampFresh bounds the replay window; the deduper handles redeliveries
// inside it.
func (wh *WebhookHandler) timestampFresh(timestamp string) bool {
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return false
	}
	age := wh.clock.Since(ts)
	return age > -maxTimestampAge && age < maxTimestampAge
}

// Sign computes the signature header value for a delivery. Exported for the
// bridge client and tests.
func Sign(secret, deliveryID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deliveryID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
