package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wishlist-backend/internal/credentials"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const testShop = "demo.myshopify.com"

type stubProvider struct {
	token string
	err   error
}

func (s stubProvider) OfflineCredential(_ context.Context, shop string) (credentials.Credential, error) {
	if s.err != nil {
		return credentials.Credential{}, s.err
	}
	return credentials.Credential{Shop: shop, AccessToken: s.token}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type fixture struct {
	gw       Gateway
	registry *prometheus.Registry

	mu       sync.Mutex
	requests []graphQLRequest
}

func (f *fixture) request(i int) graphQLRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func newFixture(t *testing.T, provider credentials.Provider, respond func(req graphQLRequest) (int, string)) *fixture {
	t.Helper()
	f := &fixture{registry: prometheus.NewRegistry()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		status, body := respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{ServiceName: "gateway-test", Output: io.Discard})
	client, err := shopify.NewClient(config.ShopifyConfig{APIVersion: "2025-10"}, logg, shopify.WithBaseURL(srv.URL))
	require.NoError(t, err)

	if provider == nil {
		provider = stubProvider{token: "shpat_test"}
	}
	gw, err := New(client, provider, metrics.NewSubmissionMetrics(f.registry), logg)
	require.NoError(t, err)
	f.gw = gw
	return f
}

func (f *fixture) gatewayCount(t *testing.T, op, outcome string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "wishlist_gateway_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func sampleInput() PendingOrderInput {
	return PendingOrderInput{
		CustomerGID:               "gid://shopify/Customer/7",
		LineItems:                 []LineItem{{VariantID: "gid://shopify/ProductVariant/1", Quantity: 2}},
		Note:                      "Wishlist: w (Gifts)",
		Tags:                      []string{"wl-sub:abc"},
		PresentmentCurrency:       "EUR",
		UseCustomerDefaultAddress: true,
	}
}

func TestCreatePendingOrderCreated(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://shopify/DraftOrder/9","name":"#D9","totalPriceSet":{"presentmentMoney":{"amount":"24.50","currencyCode":"EUR"}}},"userErrors":[]}}}`
	})

	out, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out.Kind)
	assert.Equal(t, "gid://shopify/DraftOrder/9", out.OrderID)
	assert.Equal(t, "#D9", out.OrderName)
	require.NotNil(t, out.Total)
	assert.Equal(t, "24.5", out.Total.Amount.String())
	assert.Equal(t, "EUR", out.Total.CurrencyCode)
	assert.True(t, out.Succeeded())

	input := f.request(0).Variables["input"].(map[string]any)
	assert.Equal(t, "EUR", input["presentmentCurrencyCode"])
	assert.Equal(t, true, input["useCustomerDefaultAddress"])
	assert.Equal(t, []any{"wl-sub:abc"}, input["tags"])
	assert.Equal(t, map[string]any{"customerId": "gid://shopify/Customer/7"}, input["purchasingEntity"])
	assert.Equal(t, float64(1), f.gatewayCount(t, OpDraftOrderCreate, outcomeOK))
}

func TestCreatePendingOrderWithWarnings(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://shopify/DraftOrder/9","name":"#D9"},"userErrors":[{"field":["lineItems","0"],"message":"Variant is out of stock"}]}}}`
	})

	out, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreatedWithWarnings, out.Kind)
	require.Len(t, out.Warnings.UserErrors, 1)
	assert.Nil(t, out.Total)
}

func TestCreatePendingOrderUserErrors(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrderCreate":{"draftOrder":null,"userErrors":[{"field":["presentmentCurrencyCode"],"message":"Currency EUR is not enabled"}]}}}`
	})

	out, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Contains(t, out.Errors.Text(), "not enabled")
	assert.Equal(t, float64(1), f.gatewayCount(t, OpDraftOrderCreate, outcomeUserErrors))
}

func TestCreatePendingOrderAmbiguous(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrderCreate":{"draftOrder":null,"userErrors":[]}}}`
	})

	out, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.True(t, out.Errors.Empty())
}

func TestCreatePendingOrderAuthFailureAborts(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusUnauthorized, `{"errors":"[API] Invalid API key or access token (unrecognized login or wrong password)"}`
	})

	_, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReauthRequired))
	assert.True(t, IsAbort(err))
	assert.Equal(t, float64(1), f.gatewayCount(t, OpDraftOrderCreate, outcomeAuthError))
}

func TestCreatePendingOrderAuthInGraphQLErrors(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"Invalid API key or access token"}]}`
	})

	_, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReauthRequired))
}

func TestCreatePendingOrderMissingCredential(t *testing.T) {
	provider := stubProvider{err: pkgerrors.New(pkgerrors.CodeMissingCredential, "missing offline access token for shop")}
	f := newFixture(t, provider, func(req graphQLRequest) (int, string) {
		t.Fatalf("no request expected")
		return 0, ""
	})

	_, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingCredential))
	assert.Equal(t, float64(1), f.gatewayCount(t, OpDraftOrderCreate, outcomeCredentialError))
}

func TestCreatePendingOrderServerErrorIsFailedOutcome(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusBadGateway, `upstream unavailable`
	})

	out, err := f.gw.CreatePendingOrder(context.Background(), testShop, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	require.Len(t, out.Errors.GQLErrors, 1)
	assert.Equal(t, "TRANSPORT_ERROR", out.Errors.GQLErrors[0].Extensions.Code)
}

func TestPendingOrderVariablesAddressPair(t *testing.T) {
	addr := &MailingAddress{Address1: "1 Main", City: "Paris", CountryCode: "FR"}
	in := PendingOrderInput{ShippingAddress: addr, UseCustomerDefaultAddress: true}

	input := in.variables()["input"].(map[string]any)
	assert.Equal(t, addr, input["shippingAddress"])
	assert.Equal(t, addr, input["billingAddress"])
	assert.NotContains(t, input, "useCustomerDefaultAddress")
	assert.NotContains(t, input, "presentmentCurrencyCode")
	assert.NotContains(t, input, "purchasingEntity")
}

func TestFindByTag(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrders":{"nodes":[{"id":"gid://shopify/DraftOrder/5","name":"#D5"}]}}}`
	})

	id, err := f.gw.FindByTag(context.Background(), testShop, "wl-sub:abc")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/DraftOrder/5", id)
	assert.Equal(t, "tag:'wl-sub:abc'", f.request(0).Variables["query"])
	assert.Contains(t, f.request(0).Query, "sortKey: UPDATED_AT")
}

func TestFindByTagNone(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrders":{"nodes":[]}}}`
	})

	id, err := f.gw.FindByTag(context.Background(), testShop, "wl-sub:abc")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFetchCustomerAddressPrefersDefault(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"customer":{
			"defaultAddress":{"address1":"1 Default St","city":"Lyon","countryCodeV2":"FR"},
			"addresses":[{"address1":"2 Other St","city":"Nice","countryCodeV2":"FR"}]}}}`
	})

	addr, err := f.gw.FetchCustomerAddress(context.Background(), testShop, "7")
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "1 Default St", addr.Address1)
	assert.Equal(t, "FR", addr.CountryCode)
	assert.Equal(t, "gid://shopify/Customer/7", f.request(0).Variables["id"])
}

func TestFetchCustomerAddressFallsBackToFirst(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"customer":{"defaultAddress":null,"addresses":[{"address1":"2 Other St","city":"Nice"}]}}}`
	})

	addr, err := f.gw.FetchCustomerAddress(context.Background(), testShop, "gid://shopify/Customer/7")
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "2 Other St", addr.Address1)
}

func TestFetchCustomerAddressSkipsPlaceholderCustomers(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		t.Fatalf("no request expected")
		return 0, ""
	})

	addr, err := f.gw.FetchCustomerAddress(context.Background(), testShop, "offline:"+testShop)
	require.NoError(t, err)
	assert.Nil(t, addr)
}

func TestSearchCustomers(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"customers":{"edges":[{"node":{"id":"gid://shopify/Customer/1","displayName":"Ada","email":"ada@example.com"}}]}}}`
	})

	out, err := f.gw.SearchCustomers(context.Background(), testShop, " ada ")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ada", out[0].DisplayName)
	assert.Equal(t, "ada", f.request(0).Variables["q"])
	assert.Contains(t, f.request(0).Query, "first: 20")
}

func TestSearchCustomersGraphQLError(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"Field 'customers' doesn't accept argument 'foo'"}]}`
	})

	_, err := f.gw.SearchCustomers(context.Background(), testShop, "ada")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, float64(1), f.gatewayCount(t, OpCustomerSearch, outcomeGraphQLErrors))
}

func TestSearchProducts(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"products":{"nodes":[
			{"id":"gid://shopify/Product/1","title":"Green Tea","featuredImage":{"url":"https://cdn.shopify.com/tea.png","altText":null},
			 "variants":{"nodes":[{"id":"gid://shopify/ProductVariant/11","title":"Tin","price":"12.50"}]}},
			{"id":"gid://shopify/Product/2","title":"Tea Cup","featuredImage":null,"variants":{"nodes":[]}}]}}}`
	})

	out, err := f.gw.SearchProducts(context.Background(), testShop, `  "tea*" `)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Green Tea", out[0].Title)
	require.NotNil(t, out[0].FeaturedImage)
	assert.Equal(t, "https://cdn.shopify.com/tea.png", out[0].FeaturedImage.URL)
	require.Len(t, out[0].Variants, 1)
	require.NotNil(t, out[0].Variants[0].Price)
	assert.Equal(t, "12.5", out[0].Variants[0].Price.String())
	assert.Nil(t, out[1].FeaturedImage)
	assert.NotNil(t, out[1].Variants)

	req := f.request(0)
	assert.Equal(t, "title:*tea* OR sku:*tea*", req.Variables["query"])
	assert.Contains(t, req.Query, "products(first: 20")
	assert.Equal(t, float64(1), f.gatewayCount(t, OpProductSearch, outcomeOK))
}

func TestSearchProductsShortQuerySkipsRemote(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		t.Errorf("short queries must not reach Shopify")
		return http.StatusOK, `{}`
	})

	for _, q := range []string{"", " ", "a", "*a*"} {
		out, err := f.gw.SearchProducts(context.Background(), testShop, q)
		require.NoError(t, err)
		assert.Empty(t, out, q)
		assert.NotNil(t, out, q)
	}
}

func TestSearchProductsGraphQLError(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"Throttled"}]}`
	})

	_, err := f.gw.SearchProducts(context.Background(), testShop, "tea")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, float64(1), f.gatewayCount(t, OpProductSearch, outcomeGraphQLErrors))
}

func TestSearchProductsMissingCredential(t *testing.T) {
	f := newFixture(t, stubProvider{err: pkgerrors.New(pkgerrors.CodeMissingCredential, "no offline session")}, func(req graphQLRequest) (int, string) {
		t.Errorf("unexpected remote call")
		return http.StatusOK, `{}`
	})

	_, err := f.gw.SearchProducts(context.Background(), testShop, "tea")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingCredential))
}

func TestLookupVariants(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{
			"products":[{"id":"gid://shopify/Product/1","title":"Tee","handle":"tee"},null],
			"variants":[{"id":"gid://shopify/ProductVariant/2","title":"M","sku":"TEE-M",
				"product":{"id":"gid://shopify/Product/1","title":"Tee","handle":"tee"},
				"contextualPricing":{"price":{"amount":"19.90","currencyCode":"EUR"},"compareAtPrice":null}}]}}`
	})

	out, err := f.gw.LookupVariants(context.Background(), testShop, LookupInput{
		ProductIDs:  []string{"1", "1", "bogus"},
		VariantIDs:  []string{"gid://shopify/ProductVariant/2"},
		CountryCode: "fr",
	})
	require.NoError(t, err)
	require.Contains(t, out.ProductMap, "gid://shopify/Product/1")
	variant := out.VariantMap["gid://shopify/ProductVariant/2"]
	require.NotNil(t, variant.Price)
	assert.Equal(t, "19.9", variant.Price.Amount.String())
	assert.Nil(t, variant.CompareAtPrice)

	vars := f.request(0).Variables
	assert.Equal(t, []any{"gid://shopify/Product/1"}, vars["productIds"])
	assert.Equal(t, "FR", vars["country"])
}

func TestLookupVariantsEmptyInputSkipsRemote(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		t.Fatalf("no request expected")
		return 0, ""
	})

	out, err := f.gw.LookupVariants(context.Background(), testShop, LookupInput{})
	require.NoError(t, err)
	assert.Empty(t, out.ProductMap)
	assert.Empty(t, out.VariantMap)
}

func TestMetricsRegistered(t *testing.T) {
	f := newFixture(t, nil, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data":{"draftOrders":{"nodes":[]}}}`
	})
	_, _ = f.gw.FindByTag(context.Background(), testShop, "wl-sub:x")
	count, err := testutil.GatherAndCount(f.registry, "wishlist_gateway_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, strings.HasPrefix(f.request(0).Query, "query DraftOrderByTag"))
}
