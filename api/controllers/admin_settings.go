package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/moneyrules"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type currencyRulePayload struct {
	CountryCode string `json:"countryCode" validate:"required"`
	Currency    string `json:"currency" validate:"required"`
}

type deleteRulePayload struct {
	CountryCode string `json:"countryCode"`
}

type shopCurrencyPayload struct {
	Currency *string `json:"currency"`
}

type shopCurrencySetter interface {
	SetCurrency(ctx context.Context, id uuid.UUID, currency string) (*models.Shop, error)
}

func CurrencyRuleList(svc moneyrules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "currency rules unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		rules, err := svc.List(ctx, principal.Shop.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rules": rules})
	}
}

// CurrencyRuleUpsert serves both POST and PUT; an existing country rule is overwritten.
func CurrencyRuleUpsert(svc moneyrules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "currency rules unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var payload currencyRulePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rule, err := svc.Upsert(ctx, principal.Shop.ID, payload.CountryCode, payload.Currency)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rule": rule})
	}
}

// CurrencyRuleDelete takes the country from the body or the countryCode query parameter.
func CurrencyRuleDelete(svc moneyrules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "currency rules unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var payload deleteRulePayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if payload.CountryCode == "" {
			payload.CountryCode = r.URL.Query().Get("countryCode")
		}

		if err := svc.Delete(ctx, principal.Shop.ID, payload.CountryCode); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteOK(w)
	}
}

// ShopCurrencyUpdate sets the shop's fallback settlement currency; an empty value clears it.
func ShopCurrencyUpdate(svc shopCurrencySetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		var payload shopCurrencyPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		currency := ""
		if payload.Currency != nil {
			currency = *payload.Currency
		}

		shop, err := svc.SetCurrency(ctx, principal.Shop.ID, currency)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"shop": map[string]any{
			"shopDomain":   shop.ShopDomain,
			"currencyCode": shop.CurrencyCode,
		}})
	}
}
