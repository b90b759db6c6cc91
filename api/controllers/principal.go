package controllers

import (
	"net/http"

	"github.com/angelmondragon/wishlist-backend/api/middleware"
	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

func requirePrincipal(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*identity.Principal, bool) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil || principal.Shop == nil || principal.Customer == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	return principal, true
}

func ownerOf(principal *identity.Principal) wishlist.Owner {
	return wishlist.Owner{ShopID: principal.Shop.ID, CustomerID: principal.Customer.ID}
}
