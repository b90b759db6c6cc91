package wishlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

const (
	MaxNameLength = 80
	MinQuantity   = 1
	MaxQuantity   = 999
)

// Owner scopes every customer-facing wishlist call.
type Owner struct {
	ShopID     uuid.UUID
	CustomerID uuid.UUID
}

// AddItemInput is the merge payload for a variant. Empty metadata keeps the stored value.
type AddItemInput struct {
	ProductID    string
	VariantID    string
	Quantity     *int
	Title        *string
	VariantTitle *string
	SKU          *string
	ImageURL     *string
	Price        *decimal.Decimal
}

// SummaryDTO is the list row shape.
type SummaryDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ItemDTO struct {
	ID           uuid.UUID        `json:"id"`
	ProductID    string           `json:"productId"`
	VariantID    string           `json:"variantId"`
	Quantity     int              `json:"quantity"`
	Title        *string          `json:"title,omitempty"`
	VariantTitle *string          `json:"variantTitle,omitempty"`
	SKU          *string          `json:"sku,omitempty"`
	ImageURL     *string          `json:"imageUrl,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// DetailDTO is a wishlist with its items, newest first.
type DetailDTO struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	Name       string    `json:"name"`
	Items      []ItemDTO `json:"items"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ToItem maps one stored item.
func ToItem(item models.WishlistItem) ItemDTO {
	dto := ItemDTO{
		ID:           item.ID,
		ProductID:    item.ProductID,
		VariantID:    item.VariantID,
		Quantity:     item.Quantity,
		Title:        item.Title,
		VariantTitle: item.VariantTitle,
		SKU:          item.SKU,
		ImageURL:     item.ImageURL,
		CreatedAt:    item.CreatedAt,
	}
	if item.Price.Valid {
		price := item.Price.Decimal
		dto.Price = &price
	}
	return dto
}

// ToDetail maps a loaded wishlist row to its response shape.
func ToDetail(w *models.Wishlist) DetailDTO {
	items := make([]ItemDTO, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, ToItem(item))
	}
	return DetailDTO{
		ID:         w.ID,
		CustomerID: w.CustomerID,
		Name:       w.Name,
		Items:      items,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}
