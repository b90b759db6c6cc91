package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop is a store that installed the app. CurrencyCode is the fallback settlement currency.
type Shop struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopDomain   string    `gorm:"column:shop_domain;not null;uniqueIndex:shops_shop_domain_key"`
	CurrencyCode *string   `gorm:"column:currency_code;size:3"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Shop) TableName() string { return "shops" }

func (s *Shop) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
