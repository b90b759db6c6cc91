package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const (
	shopifyConsumer   = "shopify-webhooks"
	maxWebhookPayload = 1 << 20
)

type deliveryGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, deliveryID string) (bool, error)
	Delete(ctx context.Context, consumer, deliveryID string) error
}

// ShopifyWebhook verifies the HMAC header, drops redeliveries and routes the topic.
// The delivery mark is removed when handling fails so Shopify's retry is processed.
func ShopifyWebhook(svc webhooks.Service, secret string, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !webhooks.VerifySignature(payload, secret, r.Header.Get("X-Shopify-Hmac-Sha256")) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		delivery := webhooks.Delivery{
			ID:         strings.TrimSpace(r.Header.Get("X-Shopify-Webhook-Id")),
			Topic:      r.Header.Get("X-Shopify-Topic"),
			ShopDomain: r.Header.Get("X-Shopify-Shop-Domain"),
			Payload:    payload,
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"webhook_id":    delivery.ID,
				"webhook_topic": delivery.Topic,
			})
			ctx = logg.WithShop(ctx, delivery.ShopDomain)
		}

		if guard != nil && delivery.ID != "" {
			already, err := guard.CheckAndMarkProcessed(ctx, shopifyConsumer, delivery.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if already {
				if logg != nil {
					logg.Info(ctx, "webhook.duplicate")
				}
				responses.WriteSuccess(w, map[string]any{"ok": true, "duplicate": true})
				return
			}
		}

		result, err := svc.Handle(ctx, delivery)
		if err != nil {
			if guard != nil && delivery.ID != "" {
				if delErr := guard.Delete(context.WithoutCancel(ctx), shopifyConsumer, delivery.ID); delErr != nil && logg != nil {
					logg.Error(ctx, "webhook.idempotency_release_failed", delErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"action": result.Action, "ignored": result.Ignored})
			logg.Info(ctx, "webhook.processed")
		}
		responses.WriteSuccess(w, map[string]any{"ok": true, "action": result.Action})
	}
}
