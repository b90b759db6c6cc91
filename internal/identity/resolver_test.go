package identity

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/shops"
	"github.com/angelmondragon/wishlist-backend/pkg/auth"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
)

var testShopifyConfig = config.ShopifyConfig{APIKey: "api-key", APISecret: "api-secret"}

type fakeProfiles struct {
	profile *gateway.CustomerProfile
	err     error
	calls   int
}

func (f *fakeProfiles) FetchCustomerProfile(context.Context, string, string) (*gateway.CustomerProfile, error) {
	f.calls++
	return f.profile, f.err
}

func newTestResolver(t *testing.T, profiles profileFetcher) (Resolver, *CustomerRepository) {
	t.Helper()
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "identity-test", Output: io.Discard})
	shopSvc, err := shops.NewService(shops.NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), logg), logg)
	require.NoError(t, err)
	customers := NewCustomerRepository(client.DB())
	r, err := NewResolver(testShopifyConfig, shopSvc, customers, profiles, logg)
	require.NoError(t, err)
	return r, customers
}

func mint(t *testing.T, cfg config.ShopifyConfig, subject string, issuedAt time.Time) string {
	t.Helper()
	token, err := auth.MintSessionToken(cfg, issuedAt, auth.SessionTokenPayload{
		Shop:    "demo.myshopify.com",
		Subject: subject,
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	return token
}

func strPtr(v string) *string { return &v }

func TestResolveCustomerUpsertsRows(t *testing.T) {
	profiles := &fakeProfiles{profile: &gateway.CustomerProfile{Email: strPtr("ada@example.com")}}
	r, _ := newTestResolver(t, profiles)
	ctx := context.Background()
	token := mint(t, testShopifyConfig, "gid://shopify/Customer/42", time.Now())

	first, err := r.ResolveCustomer(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, KindCustomer, first.Kind)
	assert.Equal(t, "demo.myshopify.com", first.Shop.ShopDomain)
	assert.Equal(t, "42", first.Customer.ShopifyCustomerID)
	assert.Equal(t, "gid://shopify/Customer/42", first.CustomerGID())
	require.NotNil(t, first.Customer.Email)
	assert.Equal(t, "ada@example.com", *first.Customer.Email)

	second, err := r.ResolveCustomer(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, first.Shop.ID, second.Shop.ID)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	// already enriched
	assert.Equal(t, 1, profiles.calls)
}

func TestResolveCustomerEnrichmentFailureIsIgnored(t *testing.T) {
	r, _ := newTestResolver(t, &fakeProfiles{err: errors.New("boom")})
	principal, err := r.ResolveCustomer(context.Background(), mint(t, testShopifyConfig, "gid://shopify/Customer/7", time.Now()))
	require.NoError(t, err)
	assert.Nil(t, principal.Customer.Email)
}

func TestResolveCustomerRejectsBadTokens(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	ctx := context.Background()

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": mint(t, config.ShopifyConfig{APIKey: "api-key", APISecret: "other"}, "gid://shopify/Customer/1", time.Now()),
		"wrong aud":    mint(t, config.ShopifyConfig{APIKey: "other", APISecret: "api-secret"}, "gid://shopify/Customer/1", time.Now()),
		"expired":      mint(t, testShopifyConfig, "gid://shopify/Customer/1", time.Now().Add(-time.Hour)),
		"staff sub":    mint(t, testShopifyConfig, "12345", time.Now()),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.ResolveCustomer(ctx, token)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)
		})
	}
}

func TestResolveAdminUsesStaffKey(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	ctx := context.Background()

	principal, err := r.ResolveAdmin(ctx, mint(t, testShopifyConfig, "12345", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, principal.Kind)
	assert.Equal(t, "12345", principal.Customer.ShopifyCustomerID)

	offline, err := r.ResolveAdmin(ctx, mint(t, testShopifyConfig, "", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "offline:demo.myshopify.com", offline.Customer.ShopifyCustomerID)
	assert.Equal(t, principal.Shop.ID, offline.Shop.ID)
}

func TestCustomerGID(t *testing.T) {
	assert.Equal(t, "gid://shopify/Customer/9", CustomerGID("9"))
	assert.Equal(t, "gid://shopify/Customer/9", CustomerGID("gid://shopify/Customer/9"))
}
