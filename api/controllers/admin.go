package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/internal/submit"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const maxCustomerQueryLength = 200

type customerFinder interface {
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error)
}

type customerSearch interface {
	SearchCustomers(ctx context.Context, shop, query string) ([]gateway.CustomerSummary, error)
}

// AdminSubmissionList lists the shop's submissions, optionally narrowed to a wishlist or customer.
func AdminSubmissionList(svc submissions.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission ledger unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter := submissions.ListFilter{Params: params}
		if filter.WishlistID, err = validators.ParseOptionalUUIDQuery(r, "wishlistId"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if filter.CustomerID, err = validators.ParseOptionalUUIDQuery(r, "customerId"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListForShop(ctx, principal.Shop.ID, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, submissionsPage(page))
	}
}

// AdminSubmitWishlist runs a staff-initiated conversion on behalf of the wishlist's owner.
func AdminSubmitWishlist(wishlists wishlist.Service, customers customerFinder, svc submit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if wishlists == nil || customers == nil || svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload submitPayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := wishlists.GetForShop(ctx, principal.Shop.ID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		owner, err := customers.FindByID(ctx, principal.Shop.ID, list.CustomerID)
		if err != nil {
			if repo.NotFound(err) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Submit(ctx, submit.SubmitInput{
			WishlistID:  list.ID,
			Shop:        principal.Shop,
			Customer:    owner,
			Note:        strings.TrimSpace(payload.Note),
			CountryCode: payload.CountryCode,
			Source:      enums.SubmissionSourceAdmin,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSubmitResult(w, result)
	}
}

// AdminWishlistGet returns any active wishlist in the shop.
func AdminWishlistGet(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wishlist service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		found, err := svc.GetForShop(ctx, principal.Shop.ID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"wishlist": wishlist.ToDetail(found)})
	}
}

// AdminCustomerSearch proxies the Admin API customer search.
func AdminCustomerSearch(gw customerSearch, logg *logger.Logger) http.HandlerFunc {
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

		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if len(query) > maxCustomerQueryLength {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query too long"))
			return
		}

		found, err := gw.SearchCustomers(ctx, principal.Shop.ShopDomain, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if found == nil {
			found = []gateway.CustomerSummary{}
		}
		responses.WriteSuccess(w, map[string]any{"customers": found})
	}
}

// AdminCustomerWishlists lists a local customer's active wishlists.
func AdminCustomerWishlists(svc wishlist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wishlist service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		customerID, err := validators.ParseUUIDParam(r, "customerID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lists, err := svc.List(ctx, wishlist.Owner{ShopID: principal.Shop.ID, CustomerID: customerID})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"wishlists": lists})
	}
}
