package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wishlist is owned by exactly one (shop, customer) pair. Archived wishlists are kept for audit.
type Wishlist struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ShopID     uuid.UUID      `gorm:"column:shop_id;type:uuid;not null;index:wishlists_shop_customer_idx"`
	CustomerID uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;index:wishlists_shop_customer_idx"`
	Name       string         `gorm:"column:name;size:80;not null"`
	IsArchived bool           `gorm:"column:is_archived;not null;default:false"`
	Items      []WishlistItem `gorm:"foreignKey:WishlistID"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wishlist) TableName() string { return "wishlists" }

func (w *Wishlist) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
