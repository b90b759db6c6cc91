package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/wishlist-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/wishlist-backend/api/controllers/webhooks"
	"github.com/angelmondragon/wishlist-backend/api/middleware"
	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	"github.com/angelmondragon/wishlist-backend/internal/moneyrules"
	"github.com/angelmondragon/wishlist-backend/internal/shops"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/internal/submit"
	"github.com/angelmondragon/wishlist-backend/internal/webhooks"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
)

// Dependencies are the services the HTTP surface is built from. Redis, DB and Metrics are
// optional; without Redis the submit rate limit and Idempotency-Key replay are disabled.
type Dependencies struct {
	DB           controllers.Pinger
	Redis        *redis.Client
	Metrics      http.Handler
	Resolver     identity.Resolver
	Customers    *identity.CustomerRepository
	Shops        shops.Service
	Wishlists    wishlist.Service
	Ledger       submissions.Ledger
	Submit       submit.Service
	Rules        moneyrules.Service
	Gateway      gateway.Gateway
	Webhooks     webhooks.Service
	WebhookGuard *idempotency.Manager
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Shopify.ExtensionOrigin),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	// nil *redis.Client must not reach the middlewares as a non-nil interface.
	var (
		idempotencyStore redis.IdempotencyStore
		rateStore        interface {
			IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
		}
	)
	if deps.Redis != nil {
		idempotencyStore, rateStore = deps.Redis, deps.Redis
	}
	var webhookGuard interface {
		CheckAndMarkProcessed(ctx context.Context, consumer, deliveryID string) (bool, error)
		Delete(ctx context.Context, consumer, deliveryID string) error
	}
	if deps.WebhookGuard != nil {
		webhookGuard = deps.WebhookGuard
	}

	submitLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("submit", cfg.Submission.RateLimitWindow, cfg.Submission.RateLimitPerUser),
		rateStore,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Post("/webhooks/shopify", webhookcontrollers.ShopifyWebhook(deps.Webhooks, cfg.Shopify.APISecret, webhookGuard, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/market-currency", controllers.MarketCurrency(deps.Shops, deps.Rules, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(identity.KindAdmin, deps.Resolver, logg))
			r.Use(middleware.Idempotency(idempotencyStore, cfg.Submission.IdempotencyKeyTTL, logg))

			r.Get("/submissions", controllers.AdminSubmissionList(deps.Ledger, logg))
			r.Route("/wishlists/{wishlistID}", func(r chi.Router) {
				r.Get("/", controllers.AdminWishlistGet(deps.Wishlists, logg))
				r.With(submitLimit).Post("/submit", controllers.AdminSubmitWishlist(deps.Wishlists, deps.Customers, deps.Submit, logg))
			})
			r.Get("/customers", controllers.AdminCustomerSearch(deps.Gateway, logg))
			r.Get("/customers/{customerID}/wishlists", controllers.AdminCustomerWishlists(deps.Wishlists, logg))
			r.Route("/market-currency-rules", func(r chi.Router) {
				r.Get("/", controllers.CurrencyRuleList(deps.Rules, logg))
				r.Post("/", controllers.CurrencyRuleUpsert(deps.Rules, logg))
				r.Put("/", controllers.CurrencyRuleUpsert(deps.Rules, logg))
				r.Delete("/", controllers.CurrencyRuleDelete(deps.Rules, logg))
			})
			r.Put("/settings/currency", controllers.ShopCurrencyUpdate(deps.Shops, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(identity.KindCustomer, deps.Resolver, logg))
			r.Use(middleware.Idempotency(idempotencyStore, cfg.Submission.IdempotencyKeyTTL, logg))

			r.Route("/wishlists", func(r chi.Router) {
				r.Get("/", controllers.WishlistList(deps.Wishlists, logg))
				r.Post("/", controllers.WishlistCreate(deps.Wishlists, logg))
				r.Route("/{wishlistID}", func(r chi.Router) {
					r.Get("/", controllers.WishlistGet(deps.Wishlists, logg))
					r.Patch("/", controllers.WishlistRename(deps.Wishlists, logg))
					r.Delete("/", controllers.WishlistArchive(deps.Wishlists, logg))
					r.Post("/items", controllers.WishlistAddItem(deps.Wishlists, logg))
					r.Patch("/items/{itemID}", controllers.WishlistUpdateItem(deps.Wishlists, logg))
					r.Delete("/items/{itemID}", controllers.WishlistRemoveItem(deps.Wishlists, logg))
					r.With(submitLimit).Post("/submit", controllers.SubmitWishlist(deps.Submit, logg))
				})
			})
			r.Get("/submissions", controllers.SubmissionList(deps.Ledger, logg))
			r.Post("/lookup", controllers.LookupVariants(deps.Gateway, logg))
			r.Post("/products/search", controllers.ProductSearch(deps.Gateway, logg))
		})
	})

	return r
}
