package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/api/middleware"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testPrincipal(kind identity.Kind) *identity.Principal {
	shop := &models.Shop{ID: uuid.New(), ShopDomain: "demo.myshopify.com"}
	return &identity.Principal{
		Kind:     kind,
		Shop:     shop,
		Customer: &models.Customer{ID: uuid.New(), ShopID: shop.ID, ShopifyCustomerID: "42"},
	}
}

// newRequest builds a request carrying the principal (when set) and chi URL params.
func newRequest(method, target, body string, principal *identity.Principal, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if principal != nil {
		ctx = middleware.WithPrincipal(ctx, principal)
	}
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal response: %v (%s)", err, resp.Body.String())
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &envelope)
	return envelope.Error.Code
}
