package submissions

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
	"github.com/angelmondragon/wishlist-backend/pkg/pagination"
	"github.com/angelmondragon/wishlist-backend/pkg/types"
)

type fixture struct {
	ledger     Ledger
	db         *gorm.DB
	shopID     uuid.UUID
	wishlistID uuid.UUID
	customerID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "submissions-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	l, err := NewLedger(NewRepository(client.DB()), client, emitter)
	require.NoError(t, err)
	return fixture{
		ledger:     l,
		db:         client.DB(),
		shopID:     uuid.New(),
		wishlistID: uuid.New(),
		customerID: uuid.New(),
	}
}

func (f fixture) create(t *testing.T) *models.Submission {
	t.Helper()
	row, err := f.ledger.Create(context.Background(), NewSubmission{
		ShopID:            f.shopID,
		WishlistID:        f.wishlistID,
		CustomerID:        f.customerID,
		Source:            enums.SubmissionSourceCustomer,
		CountryCode:       "GB",
		RequestedCurrency: "GBP",
	})
	require.NoError(t, err)
	return row
}

func (f fixture) events(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestMarkerTag(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	tag := MarkerTag(id)
	assert.Equal(t, "wl-sub:0f8fad5bd9cb469fa16570867728950e", tag)
	assert.Len(t, tag, 39)
}

func TestCreateQueued(t *testing.T) {
	f := newFixture(t)
	row := f.create(t)

	assert.Equal(t, enums.SubmissionStatusQueued, row.Status)
	assert.Equal(t, MarkerTag(row.ID), row.MarkerTag)
	require.NotNil(t, row.CountryCode)
	assert.Equal(t, "GB", *row.CountryCode)
	assert.Nil(t, row.RemoteOrderID)
}

func TestCreateRejectsInvalidSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Create(context.Background(), NewSubmission{
		ShopID: f.shopID, WishlistID: f.wishlistID, CustomerID: f.customerID, Source: "robot",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestResolveWritesTerminalStatusAndEvent(t *testing.T) {
	f := newFixture(t)
	row := f.create(t)
	total := decimal.RequireFromString("42.50")

	resolved, err := f.ledger.Resolve(context.Background(), Resolution{
		ShopID:          f.shopID,
		SubmissionID:    row.ID,
		Status:          enums.SubmissionStatusCreatedWithWarnings,
		RemoteOrderID:   "gid://shopify/DraftOrder/1",
		RemoteOrderName: "#D1",
		AppliedCurrency: "GBP",
		Warnings: &types.RemoteErrors{
			UserErrors: []types.UserError{{Field: []string{"lineItems"}, Message: "Variant is out of stock"}},
		},
		TotalAmount:   &total,
		TotalCurrency: "GBP",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SubmissionStatusCreatedWithWarnings, resolved.Status)
	require.NotNil(t, resolved.RemoteOrderID)
	assert.Equal(t, "gid://shopify/DraftOrder/1", *resolved.RemoteOrderID)
	require.NotNil(t, resolved.Warnings)
	assert.Equal(t, "Variant is out of stock", resolved.Warnings.UserErrors[0].Message)
	assert.Nil(t, resolved.Errors)
	assert.True(t, resolved.TotalAmount.Valid)
	assert.True(t, resolved.TotalAmount.Decimal.Equal(total))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventSubmissionResolved, events[0].EventType)
	assert.Equal(t, row.ID, events[0].AggregateID)
	assert.True(t, strings.Contains(string(events[0].Payload), `"status":"created_with_warnings"`))
}

func TestResolveOnlyFromQueued(t *testing.T) {
	f := newFixture(t)
	row := f.create(t)
	ctx := context.Background()

	_, err := f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusFailed})
	require.NoError(t, err)

	_, err = f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusCreated})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusQueued})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.ledger.Resolve(ctx, Resolution{ShopID: uuid.New(), SubmissionID: row.ID, Status: enums.SubmissionStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	assert.Len(t, f.events(t), 1)
}

func TestLatestForAndCustomerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	latest, err := f.ledger.LatestFor(ctx, f.shopID, f.wishlistID, f.customerID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := f.create(t)
	require.NoError(t, f.db.Model(&models.Submission{}).Where("id = ?", first.ID).
		Update("created_at", time.Now().Add(-time.Minute)).Error)
	second := f.create(t)

	latest, err = f.ledger.LatestFor(ctx, f.shopID, f.wishlistID, f.customerID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	got, err := f.ledger.GetForCustomer(ctx, f.shopID, f.customerID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = f.ledger.GetForCustomer(ctx, f.shopID, uuid.New(), first.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	own, err := f.ledger.ListForCustomer(ctx, f.shopID, f.customerID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, own.Items, 2)
	assert.Equal(t, second.ID, own.Items[0].ID)
	assert.Empty(t, own.NextCursor)

	page, err := f.ledger.ListForCustomer(ctx, f.shopID, f.customerID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, second.ID, page.Items[0].ID)

	page, err = f.ledger.ListForCustomer(ctx, f.shopID, f.customerID, pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)
	assert.Empty(t, page.NextCursor)

	_, err = f.ledger.ListForCustomer(ctx, f.shopID, f.customerID, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListForShopFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t)

	other := f
	other.wishlistID = uuid.New()
	other.customerID = uuid.New()
	other.create(t)

	all, err := f.ledger.ListForShop(ctx, f.shopID, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	byWishlist, err := f.ledger.ListForShop(ctx, f.shopID, ListFilter{WishlistID: &other.wishlistID})
	require.NoError(t, err)
	require.Len(t, byWishlist.Items, 1)
	assert.Equal(t, other.customerID, byWishlist.Items[0].CustomerID)

	byCustomer, err := f.ledger.ListForShop(ctx, f.shopID, ListFilter{CustomerID: &f.customerID})
	require.NoError(t, err)
	assert.Len(t, byCustomer.Items, 1)

	none, err := f.ledger.ListForShop(ctx, uuid.New(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}

func TestAttachRemoteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes failed", func(t *testing.T) {
		f := newFixture(t)
		row := f.create(t)
		_, err := f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusFailed})
		require.NoError(t, err)

		res, err := f.ledger.AttachRemoteOrder(ctx, f.shopID, row.ID, "gid://shopify/DraftOrder/9")
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, enums.SubmissionStatusFailed, res.PreviousStatus)
		assert.Equal(t, enums.SubmissionStatusCreated, res.Submission.Status)
		assert.Equal(t, "gid://shopify/DraftOrder/9", *res.Submission.RemoteOrderID)

		events := f.events(t)
		require.Len(t, events, 2)
		assert.Equal(t, enums.EventSubmissionReconciled, events[1].EventType)
	})

	t.Run("keeps warnings status", func(t *testing.T) {
		f := newFixture(t)
		row := f.create(t)
		_, err := f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusCreatedWithWarnings, RemoteOrderID: "gid://shopify/DraftOrder/9"})
		require.NoError(t, err)

		res, err := f.ledger.AttachRemoteOrder(ctx, f.shopID, row.ID, "gid://shopify/DraftOrder/9")
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, enums.SubmissionStatusCreatedWithWarnings, res.Submission.Status)
	})

	t.Run("never overwrites a different remote id", func(t *testing.T) {
		f := newFixture(t)
		row := f.create(t)
		_, err := f.ledger.Resolve(ctx, Resolution{ShopID: f.shopID, SubmissionID: row.ID, Status: enums.SubmissionStatusCreated, RemoteOrderID: "gid://shopify/DraftOrder/1"})
		require.NoError(t, err)

		res, err := f.ledger.AttachRemoteOrder(ctx, f.shopID, row.ID, "gid://shopify/DraftOrder/2")
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, "gid://shopify/DraftOrder/1", *res.Submission.RemoteOrderID)
	})

	t.Run("missing submission", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.AttachRemoteOrder(ctx, f.shopID, uuid.New(), "gid://shopify/DraftOrder/2")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})
}

func TestAbandonQueuedFailsOnlyStaleRows(t *testing.T) {
	f := newFixture(t)
	stale := f.create(t)
	fresh := f.create(t)
	require.NoError(t, f.db.Model(&models.Submission{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)

	n, err := f.ledger.AbandonQueued(context.Background(), time.Now().Add(-15*time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var rows []models.Submission
	require.NoError(t, f.db.Find(&rows).Error)
	statuses := map[uuid.UUID]enums.SubmissionStatus{}
	for _, row := range rows {
		statuses[row.ID] = row.Status
		if row.ID == stale.ID {
			require.NotNil(t, row.Errors)
			assert.Equal(t, abandonedMessage, row.Errors.UserErrors[0].Message)
		}
	}
	assert.Equal(t, enums.SubmissionStatusFailed, statuses[stale.ID])
	assert.Equal(t, enums.SubmissionStatusQueued, statuses[fresh.ID])
	assert.Len(t, f.events(t), 1)
}

func TestToView(t *testing.T) {
	currency := "EUR"
	row := &models.Submission{
		ID:            uuid.New(),
		Status:        enums.SubmissionStatusCreated,
		TotalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
		TotalCurrency: &currency,
	}
	view := ToView(row)
	require.NotNil(t, view.Total)
	assert.Equal(t, "EUR", view.Total.CurrencyCode)
	assert.Nil(t, view.RemoteOrderID)
}
