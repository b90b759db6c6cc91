package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/wishlist-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox/idempotency"
)

const testSecret = "shpss_test"

func TestShopifyWebhook_SuccessAndIdempotent(t *testing.T) {
	service := &fakeWebhookService{}
	guard := newGuard(t)
	handler := ShopifyWebhook(service, testSecret, guard, nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(`{"id":1}`, "delivery-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
	if service.last.Topic != "draft_orders/update" || service.last.ShopDomain != "demo.myshopify.com" {
		t.Fatalf("unexpected delivery %+v", service.last)
	}
}

func TestShopifyWebhook_InvalidSignature(t *testing.T) {
	service := &fakeWebhookService{}
	handler := ShopifyWebhook(service, testSecret, newGuard(t), nil)

	req := signedRequest(`{"id":1}`, "delivery-2")
	req.Header.Set("X-Shopify-Hmac-Sha256", webhooks.Sign([]byte(`{"id":2}`), testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestShopifyWebhook_FailureReleasesDelivery(t *testing.T) {
	service := &fakeWebhookService{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	handler := ShopifyWebhook(service, testSecret, newGuard(t), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(`{"id":1}`, "delivery-3"))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	service.err = nil
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(`{"id":1}`, "delivery-3"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to be processed, call count %d", service.calls)
	}
}

func TestShopifyWebhook_MissingSecret(t *testing.T) {
	handler := ShopifyWebhook(&fakeWebhookService{}, "", nil, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(`{}`, "delivery-4"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func signedRequest(body, deliveryID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", bytes.NewReader([]byte(body)))
	req.Header.Set("X-Shopify-Hmac-Sha256", webhooks.Sign([]byte(body), testSecret))
	req.Header.Set("X-Shopify-Topic", "draft_orders/update")
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	req.Header.Set("X-Shopify-Webhook-Id", deliveryID)
	return req
}

func newGuard(t *testing.T) *idempotency.Manager {
	t.Helper()
	manager, err := idempotency.NewManager(newInMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return manager
}

type fakeWebhookService struct {
	calls int
	last  webhooks.Delivery
	err   error
}

func (f *fakeWebhookService) Handle(_ context.Context, delivery webhooks.Delivery) (*webhooks.Result, error) {
	f.calls++
	f.last = delivery
	if f.err != nil {
		return nil, f.err
	}
	return &webhooks.Result{Topic: delivery.Topic, Action: "reconciled"}, nil
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: map[string]string{}}
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("wl:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if _, ok := s.data[key]; !ok {
			continue
		}
		delete(s.data, key)
	}
	return nil
}
