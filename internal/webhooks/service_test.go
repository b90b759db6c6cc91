package webhooks

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/internal/shops"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
)

type fixture struct {
	svc    Service
	ledger submissions.Ledger
	shops  shops.Service
	db     *gorm.DB
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	ledger, err := submissions.NewLedger(submissions.NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	shopSvc, err := shops.NewService(shops.NewRepository(client.DB()), client, emitter, logg)
	require.NoError(t, err)
	svc, err := NewService(shopSvc, ledger, logg)
	require.NoError(t, err)
	return fixture{svc: svc, ledger: ledger, shops: shopSvc, db: client.DB()}
}

func (f fixture) failedSubmission(t *testing.T, shopID uuid.UUID) *models.Submission {
	t.Helper()
	ctx := context.Background()
	row, err := f.ledger.Create(ctx, submissions.NewSubmission{
		ShopID:     shopID,
		WishlistID: uuid.New(),
		CustomerID: uuid.New(),
		Source:     enums.SubmissionSourceCustomer,
	})
	require.NoError(t, err)
	_, err = f.ledger.Resolve(ctx, submissions.Resolution{ShopID: shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusFailed})
	require.NoError(t, err)
	return row
}

func draftPayload(id any, note string) []byte {
	idJSON := fmt.Sprintf("%v", id)
	if s, ok := id.(string); ok {
		idJSON = fmt.Sprintf("%q", s)
	}
	return []byte(fmt.Sprintf(`{"id":%s,"note":%q}`, idJSON, note))
}

func TestDraftOrderWebhookReconciles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shop, err := f.shops.Ensure(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	sub := f.failedSubmission(t, shop.ID)

	note := "Wishlist: x (Gifts)\nSubmission ID: " + sub.ID.String() + "\nCountry: GB"
	res, err := f.svc.Handle(ctx, Delivery{
		ID:         "delivery-1",
		Topic:      "DRAFT_ORDERS_CREATE",
		ShopDomain: "demo.myshopify.com",
		Payload:    draftPayload(1234, note),
	})
	require.NoError(t, err)
	assert.Equal(t, "reconciled", res.Action)
	assert.Equal(t, TopicDraftOrderCreate, res.Topic)

	var row models.Submission
	require.NoError(t, f.db.First(&row, "id = ?", sub.ID).Error)
	assert.Equal(t, enums.SubmissionStatusCreated, row.Status)
	require.NotNil(t, row.RemoteOrderID)
	assert.Equal(t, "gid://shopify/DraftOrder/1234", *row.RemoteOrderID)

	again, err := f.svc.Handle(ctx, Delivery{Topic: "draft_orders/update", ShopDomain: "demo.myshopify.com", Payload: draftPayload("1234", note)})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", again.Action)
}

func TestDraftOrderWebhookIgnoresUnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shop, err := f.shops.Ensure(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	sub := f.failedSubmission(t, shop.ID)

	cases := map[string]Delivery{
		"no_submission_reference": {Topic: TopicDraftOrderCreate, ShopDomain: "demo.myshopify.com", Payload: draftPayload(1, "hello")},
		"unknown_submission":      {Topic: TopicDraftOrderCreate, ShopDomain: "demo.myshopify.com", Payload: draftPayload(1, "Submission ID: "+uuid.NewString())},
		"unknown_shop":            {Topic: TopicDraftOrderCreate, ShopDomain: "other.myshopify.com", Payload: draftPayload(1, "Submission ID: "+sub.ID.String())},
		"missing_draft_order_id":  {Topic: TopicDraftOrderCreate, ShopDomain: "demo.myshopify.com", Payload: draftPayload("abc", "Submission ID: "+sub.ID.String())},
	}
	for action, delivery := range cases {
		t.Run(action, func(t *testing.T) {
			res, err := f.svc.Handle(ctx, delivery)
			require.NoError(t, err)
			assert.True(t, res.Ignored)
			assert.Equal(t, action, res.Action)
		})
	}

	var row models.Submission
	require.NoError(t, f.db.First(&row, "id = ?", sub.ID).Error)
	assert.Equal(t, enums.SubmissionStatusFailed, row.Status)
}

func TestUninstallWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.shops.Ensure(ctx, "demo.myshopify.com")
	require.NoError(t, err)

	res, err := f.svc.Handle(ctx, Delivery{Topic: "APP_UNINSTALLED", ShopDomain: "demo.myshopify.com", Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "uninstalled", res.Action)
	assert.False(t, res.Ignored)

	shop, err := f.shops.Find(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, shop)

	again, err := f.svc.Handle(ctx, Delivery{Topic: TopicAppUninstalled, ShopDomain: "demo.myshopify.com", Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.True(t, again.Ignored)
}

func TestUnhandledTopicIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Handle(context.Background(), Delivery{Topic: "orders/create", Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestNormalizeTopic(t *testing.T) {
	assert.Equal(t, "draft_orders/create", NormalizeTopic("DRAFT_ORDERS_CREATE"))
	assert.Equal(t, "draft_orders/update", NormalizeTopic(" draft_orders/update "))
	assert.Equal(t, "app/uninstalled", NormalizeTopic("APP_UNINSTALLED"))
}

func TestSubmissionIDFromNote(t *testing.T) {
	id := uuid.New()
	note := "Admin manual conversion.\nsubmission id: " + id.String()
	got, ok := SubmissionIDFromNote(&note)
	require.True(t, ok)
	assert.Equal(t, id, got)

	compact := "Submission ID: " + fmt.Sprintf("%x", id[:])
	got, ok = SubmissionIDFromNote(&compact)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = SubmissionIDFromNote(nil)
	assert.False(t, ok)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":1}`)
	header := Sign(body, "secret")
	assert.True(t, VerifySignature(body, "secret", header))
	assert.False(t, VerifySignature(body, "other", header))
	assert.False(t, VerifySignature([]byte(`{"id":2}`), "secret", header))
	assert.False(t, VerifySignature(body, "secret", "not base64!"))
	assert.False(t, VerifySignature(body, "", header))
}
