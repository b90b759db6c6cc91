package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

// Auth verifies the bearer session token for the given surface and seeds the request context
// with the resolved principal. Any failure is a 401.
func Auth(kind identity.Kind, resolver identity.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if resolver == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity resolver unavailable"))
				return
			}

			var (
				principal *identity.Principal
				err       error
			)
			switch kind {
			case identity.KindAdmin:
				principal, err = resolver.ResolveAdmin(r.Context(), token)
			default:
				principal, err = resolver.ResolveCustomer(r.Context(), token)
			}
			if err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) && !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
					err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithShop(ctx, principal.Shop.ShopDomain)
				ctx = logg.WithCustomerID(ctx, principal.Customer.ID.String())
				ctx = logg.WithField(ctx, "actor_kind", string(principal.Kind))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
