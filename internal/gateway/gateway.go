package gateway

import (
	"context"
	"fmt"

	"github.com/angelmondragon/wishlist-backend/internal/credentials"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

// Operation names used for logging and metrics.
const (
	OpDraftOrderCreate = "draft_order_create"
	OpDraftOrderByTag  = "draft_order_by_tag"
	OpCustomerAddress  = "customer_address"
	OpCustomerProfile  = "customer_profile"
	OpCustomerSearch   = "customer_search"
	OpVariantLookup    = "variant_lookup"
	OpProductSearch    = "product_search"
)

const (
	outcomeOK              = "ok"
	outcomeUserErrors      = "user_errors"
	outcomeGraphQLErrors   = "graphql_errors"
	outcomeAuthError       = "auth_error"
	outcomeCredentialError = "credential_error"
	outcomeTransportError  = "transport_error"
)

// Gateway is the remote order surface the rest of the app depends on.
type Gateway interface {
	CreatePendingOrder(ctx context.Context, shop string, input PendingOrderInput) (CreateOutcome, error)
	FindByTag(ctx context.Context, shop, tag string) (string, error)
	FetchCustomerAddress(ctx context.Context, shop, customerGID string) (*MailingAddress, error)
	FetchCustomerProfile(ctx context.Context, shop, customerGID string) (*CustomerProfile, error)
	SearchCustomers(ctx context.Context, shop, query string) ([]CustomerSummary, error)
	LookupVariants(ctx context.Context, shop string, input LookupInput) (*LookupResult, error)
	SearchProducts(ctx context.Context, shop, query string) ([]ProductSearchHit, error)
}

type shopifyGateway struct {
	client  *shopify.Client
	creds   credentials.Provider
	metrics *metrics.SubmissionMetrics
	logg    *logger.Logger
}

// New builds the Shopify-backed gateway. Every call resolves the shop's offline credential
// through creds.
func New(client *shopify.Client, creds credentials.Provider, m *metrics.SubmissionMetrics, logg *logger.Logger) (Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("shopify client required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential provider required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &shopifyGateway{client: client, creds: creds, metrics: m, logg: logg}, nil
}

// execute runs one operation with the shop's offline token. Credential and auth failures
// are returned as typed errors; remaining GraphQL errors are left on the response.
func execute[T any](ctx context.Context, g *shopifyGateway, shop, op, query string, vars map[string]any) (*shopify.Response[T], error) {
	cred, err := g.creds.OfflineCredential(ctx, shop)
	if err != nil {
		g.metrics.IncGateway(op, outcomeCredentialError)
		return nil, err
	}

	resp, err := shopify.Post[T](ctx, g.client, shopify.Call{
		Shop:        shop,
		AccessToken: cred.AccessToken,
		Operation:   op,
		Query:       query,
		Variables:   vars,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeReauthRequired) {
			g.metrics.IncGateway(op, outcomeAuthError)
			return nil, reauthorize(shop, err)
		}
		g.metrics.IncGateway(op, outcomeTransportError)
		return nil, err
	}

	if len(resp.Errors) > 0 {
		if shopify.IsAuthError(nil, shopify.Errors{GQLErrors: resp.Errors}) {
			g.metrics.IncGateway(op, outcomeAuthError)
			return nil, reauthorize(shop, shopify.Errors{GQLErrors: resp.Errors}.Err())
		}
		g.metrics.IncGateway(op, outcomeGraphQLErrors)
		return resp, nil
	}
	return resp, nil
}

func reauthorize(shop string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeReauthRequired, cause, "shop must reauthorize the app").
		WithDetails(map[string]any{"shop": shop, "reauthorize": true})
}

// IsAbort reports whether err must stop a submission instead of being treated as a remote
// failure.
func IsAbort(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeReauthRequired) || pkgerrors.IsCode(err, pkgerrors.CodeMissingCredential)
}

func queryFailed(op string, errs []shopify.GraphQLError) error {
	e := shopify.Errors{GQLErrors: errs}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, e.Err(), fmt.Sprintf("shopify %s failed", op)).
		WithDetails(map[string]any{"errors": e.Record()})
}
