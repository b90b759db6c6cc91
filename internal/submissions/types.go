package submissions

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	"github.com/angelmondragon/wishlist-backend/pkg/pagination"
	"github.com/angelmondragon/wishlist-backend/pkg/types"
)

const (
	markerTagPrefix = "wl-sub:"
	maxMarkerTagLen = 40
)

var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_:-]`)

// MarkerTag is the single tag attached to a submission's draft order so it can be found again
// when the create response was lost.
func MarkerTag(id uuid.UUID) string {
	tag := markerTagPrefix + strings.ReplaceAll(id.String(), "-", "")
	tag = tagUnsafe.ReplaceAllString(tag, "")
	if len(tag) > maxMarkerTagLen {
		tag = tag[:maxMarkerTagLen]
	}
	return tag
}

// NewSubmission describes a queued row.
type NewSubmission struct {
	ShopID            uuid.UUID
	WishlistID        uuid.UUID
	CustomerID        uuid.UUID
	Source            enums.SubmissionSource
	CountryCode       string
	RequestedCurrency string
	Note              string
}

// Resolution is the terminal write for a queued submission.
type Resolution struct {
	ShopID               uuid.UUID
	SubmissionID         uuid.UUID
	Status               enums.SubmissionStatus
	RemoteOrderID        string
	RemoteOrderName      string
	AppliedCurrency      string
	UsedFallbackCurrency bool
	RecoveredByTag       bool
	Warnings             *types.RemoteErrors
	Errors               *types.RemoteErrors
	TotalAmount          *decimal.Decimal
	TotalCurrency        string
	Note                 string
}

// ListFilter narrows listings. Results are newest first and cursor paginated.
type ListFilter struct {
	WishlistID *uuid.UUID
	CustomerID *uuid.UUID
	pagination.Params
}

// Money is an amount in a currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// View is the API representation of a submission.
type View struct {
	ID                   uuid.UUID              `json:"id"`
	WishlistID           uuid.UUID              `json:"wishlistId"`
	CustomerID           uuid.UUID              `json:"customerId"`
	Status               enums.SubmissionStatus `json:"status"`
	Source               enums.SubmissionSource `json:"source"`
	RemoteOrderID        *string                `json:"remoteOrderId"`
	RemoteOrderName      *string                `json:"remoteOrderName,omitempty"`
	CountryCode          *string                `json:"countryCode,omitempty"`
	RequestedCurrency    *string                `json:"requestedCurrency,omitempty"`
	AppliedCurrency      *string                `json:"appliedCurrency,omitempty"`
	UsedFallbackCurrency bool                   `json:"usedFallbackCurrency"`
	RecoveredByTag       bool                   `json:"recoveredByTag"`
	Warnings             *types.RemoteErrors    `json:"warnings,omitempty"`
	Errors               *types.RemoteErrors    `json:"errors,omitempty"`
	Total                *Money                 `json:"total,omitempty"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
}

// ToView maps a submission row to its API shape.
func ToView(row *models.Submission) View {
	view := View{
		ID:                   row.ID,
		WishlistID:           row.WishlistID,
		CustomerID:           row.CustomerID,
		Status:               row.Status,
		Source:               row.Source,
		RemoteOrderID:        row.RemoteOrderID,
		RemoteOrderName:      row.RemoteOrderName,
		CountryCode:          row.CountryCode,
		RequestedCurrency:    row.RequestedCurrency,
		AppliedCurrency:      row.AppliedCurrency,
		UsedFallbackCurrency: row.UsedFallbackCurrency,
		RecoveredByTag:       row.RecoveredByTag,
		Warnings:             row.Warnings,
		Errors:               row.Errors,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if row.TotalAmount.Valid && row.TotalCurrency != nil {
		view.Total = &Money{Amount: row.TotalAmount.Decimal, CurrencyCode: *row.TotalCurrency}
	}
	return view
}

// ToViews maps rows in order.
func ToViews(rows []models.Submission) []View {
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, ToView(&rows[i]))
	}
	return views
}

// ViewPage maps a page of rows.
func ViewPage(page pagination.Page[models.Submission]) pagination.Page[View] {
	return pagination.Page[View]{Items: ToViews(page.Items), NextCursor: page.NextCursor}
}

func cursorOf(row models.Submission) pagination.Cursor {
	return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
