package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	"github.com/angelmondragon/wishlist-backend/pkg/types"
)

// Submission is one attempt to convert a wishlist into a Shopify draft order.
type Submission struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ShopID               uuid.UUID              `gorm:"column:shop_id;type:uuid;not null;index:submissions_lookup_idx,priority:1"`
	WishlistID           uuid.UUID              `gorm:"column:wishlist_id;type:uuid;not null;index:submissions_lookup_idx,priority:2"`
	CustomerID           uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index:submissions_lookup_idx,priority:3"`
	Status               enums.SubmissionStatus `gorm:"column:status;type:text;not null"`
	Source               enums.SubmissionSource `gorm:"column:source;type:text;not null"`
	RemoteOrderID        *string                `gorm:"column:remote_order_id"`
	RemoteOrderName      *string                `gorm:"column:remote_order_name"`
	MarkerTag            string                 `gorm:"column:marker_tag;not null"`
	CountryCode          *string                `gorm:"column:country_code;size:2"`
	RequestedCurrency    *string                `gorm:"column:requested_currency;size:3"`
	AppliedCurrency      *string                `gorm:"column:applied_currency;size:3"`
	UsedFallbackCurrency bool                   `gorm:"column:used_fallback_currency;not null;default:false"`
	RecoveredByTag       bool                   `gorm:"column:recovered_by_tag;not null;default:false"`
	Warnings             *types.RemoteErrors    `gorm:"column:warnings;type:jsonb"`
	Errors               *types.RemoteErrors    `gorm:"column:errors;type:jsonb"`
	TotalAmount          decimal.NullDecimal    `gorm:"column:total_amount;type:numeric(12,2)"`
	TotalCurrency        *string                `gorm:"column:total_currency;size:3"`
	Note                 *string                `gorm:"column:note"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime;index:submissions_lookup_idx,priority:4,sort:desc"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Submission) TableName() string { return "submissions" }

func (s *Submission) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
