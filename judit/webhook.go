// CLAUDE:SUMMARY Webhook intake: HMAC check, raw delivery storage, tracking webhook timestamp, publication derivation from lawsuit items.
package judit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/judit/internal/store"
	"github.com/hazyhaar/jurimon/kit"
	"github.com/hazyhaar/jurimon/telemetry"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body, optionally
// prefixed with "sha256=".
const SignatureHeader = "X-Signature-256"

var (
	webhookTrackingKeys = normalize.Aliases{"tracking_id", "trackingId", "reference_id", "referenceId"}
	webhookTypeKeys     = normalize.Aliases{"event_type", "eventType", "type"}
	webhookPayloadKeys  = normalize.Aliases{"payload", "response_data", "data"}
	webhookRequestKeys  = normalize.Aliases{"request_id", "requestId"}
)

// verifySignature reports whether signature matches body. Without a
// configured secret every delivery passes unverified.
func (svc *Service) verifySignature(body []byte, signature string) (verified bool, err error) {
	secret := svc.config.WebhookSecret
	if secret == "" {
		return false, nil
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	decoded, derr := hex.DecodeString(signature)
	if signature == "" || derr != nil {
		return false, ErrSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), decoded) {
		return false, ErrSignature
	}
	return true, nil
}

// Sign returns the signature header value for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook ingests one delivery. The raw body is stored first, then
// the tracking's webhook timestamp is set and every lawsuit item becomes an
// inbox publication.
func (svc *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	verified, err := svc.verifySignature(body, signature)
	if err != nil {
		telemetry.WebhookDeliveries.WithLabelValues("rejected").Inc()
		svc.logger.WarnContext(ctx, "judit: webhook signature rejected", "remote_addr", kit.GetRemoteAddr(ctx))
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: webhook body is not a JSON object", ErrInvalidInput)
	}

	now := svc.now()
	res := &WebhookResult{
		DeliveryID: svc.newWhkID(),
		TrackingID: webhookTrackingKeys.String(m),
		Verified:   verified,
	}
	if err := svc.store.InsertWebhookDelivery(ctx, &store.WebhookDelivery{
		ID:         res.DeliveryID,
		TrackingID: res.TrackingID,
		EventType:  webhookTypeKeys.String(m),
		Payload:    string(body),
		Verified:   verified,
		ReceivedAt: now.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	telemetry.WebhookDeliveries.WithLabelValues(strconv.FormatBool(verified)).Inc()

	if res.TrackingID != "" {
		known, err := svc.store.TouchWebhook(ctx, res.TrackingID, now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("judit: %w", err)
		}
		res.KnownTracking = known
		if !known {
			svc.logger.InfoContext(ctx, "judit: webhook for unknown tracking", "tracking_id", res.TrackingID)
		}
	}

	payload, ok := webhookPayloadKeys.Value(m)
	if !ok {
		payload = m
	}
	res.TimelineEvents = len(normalize.BuildTimeline(payload))
	requestID := webhookRequestKeys.String(m)
	for _, item := range lawsuitItems(payload) {
		content, err := json.Marshal(item)
		if err != nil {
			continue
		}
		_, created, err := svc.ImportPublication(ctx, content, res.TrackingID, requestID)
		switch {
		case err != nil:
			svc.logger.DebugContext(ctx, "judit: webhook item skipped", "delivery_id", res.DeliveryID, "error", err)
		case created:
			res.Publications++
		default:
			res.Duplicates++
		}
	}
	svc.logger.InfoContext(ctx, "judit: webhook ingested",
		"delivery_id", res.DeliveryID, "tracking_id", res.TrackingID,
		"verified", verified, "publications", res.Publications, "duplicates", res.Duplicates)
	return res, nil
}

// lawsuitItems returns the objects of payload that carry a process number:
// each item of a response list, or payload itself.
func lawsuitItems(payload any) []map[string]any {
	items := normalize.Items(payload)
	if items == nil {
		items = []any{payload}
	}
	var out []map[string]any
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		inner := m
		if rd, ok := m["response_data"].(map[string]any); ok {
			inner = rd
		}
		if normalize.ProcessNumberKeys.String(inner) != "" {
			out = append(out, inner)
		}
	}
	return out
}
