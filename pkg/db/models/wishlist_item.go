package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WishlistItem references a Shopify product variant. One row per (wishlist, variant).
type WishlistItem struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	WishlistID   uuid.UUID           `gorm:"column:wishlist_id;type:uuid;not null;uniqueIndex:wishlist_items_wishlist_variant_key"`
	ProductID    string              `gorm:"column:product_id;not null"`
	VariantID    string              `gorm:"column:variant_id;not null;uniqueIndex:wishlist_items_wishlist_variant_key"`
	Quantity     int                 `gorm:"column:quantity;not null;default:1"`
	Title        *string             `gorm:"column:title"`
	VariantTitle *string             `gorm:"column:variant_title"`
	SKU          *string             `gorm:"column:sku"`
	ImageURL     *string             `gorm:"column:image_url"`
	Price        decimal.NullDecimal `gorm:"column:price;type:numeric(12,2)"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }

func (i *WishlistItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
