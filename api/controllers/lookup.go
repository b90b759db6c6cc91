package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/submit"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const maxLookupIDs = 250

type lookupPayload struct {
	ProductIDs  []string `json:"productIds" validate:"max=250"`
	VariantIDs  []string `json:"variantIds" validate:"max=250"`
	CountryCode string   `json:"countryCode"`
}

type variantLookup interface {
	LookupVariants(ctx context.Context, shop string, input gateway.LookupInput) (*gateway.LookupResult, error)
}

// LookupVariants prices products and variants for the buyer country with the shop's offline
// credential.
func LookupVariants(gw variantLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if gw == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order gateway unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var payload lookupPayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if len(payload.ProductIDs)+len(payload.VariantIDs) > maxLookupIDs {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many ids"))
			return
		}
		country, err := submit.NormalizeCountry(payload.CountryCode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := gw.LookupVariants(ctx, principal.Shop.ShopDomain, gateway.LookupInput{
			ProductIDs:  payload.ProductIDs,
			VariantIDs:  payload.VariantIDs,
			CountryCode: country,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var countryCode *string
		if country != "" {
			countryCode = &country
		}
		responses.WriteSuccess(w, map[string]any{
			"productMap":  result.ProductMap,
			"variantMap":  result.VariantMap,
			"countryCode": countryCode,
		})
	}
}

type productSearchPayload struct {
	Query string `json:"q" validate:"max=200"`
}

type productSearcher interface {
	SearchProducts(ctx context.Context, shop, query string) ([]gateway.ProductSearchHit, error)
}

// ProductSearch finds products by title or SKU for the customer's shop. Queries shorter than
// two characters return no products.
func ProductSearch(gw productSearcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if gw == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order gateway unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var payload productSearchPayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		products, err := gw.SearchProducts(ctx, principal.Shop.ShopDomain, payload.Query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

type shopFinder interface {
	Find(ctx context.Context, domain string) (*models.Shop, error)
}

type currencyLookup interface {
	Lookup(ctx context.Context, shopID uuid.UUID, country string) (string, error)
}

type marketCurrencyResponse struct {
	CountryCode string  `json:"countryCode"`
	Currency    *string `json:"currency"`
	Source      string  `json:"source"`
}

// MarketCurrency reports the currency a draft order for the country would request: the
// country rule, else the shop fallback. Unknown shops answer with no currency.
func MarketCurrency(shops shopFinder, rules currencyLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if shops == nil || rules == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "currency rules unavailable"))
			return
		}

		domain := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("shop")))
		if domain == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shop is required"))
			return
		}
		country, err := submit.NormalizeCountry(r.URL.Query().Get("country"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if country == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "country is required"))
			return
		}

		resp := marketCurrencyResponse{CountryCode: country, Source: "none"}
		shop, err := shops.Find(ctx, domain)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if shop == nil {
			responses.WriteSuccess(w, resp)
			return
		}

		currency, err := rules.Lookup(ctx, shop.ID, country)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		switch {
		case currency != "":
			resp.Currency, resp.Source = &currency, "rule"
		case shop.CurrencyCode != nil && *shop.CurrencyCode != "":
			resp.Currency, resp.Source = shop.CurrencyCode, "shop_default"
		}
		responses.WriteSuccess(w, resp)
	}
}
