package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MarketCurrencyRule maps a shop's buyer country to the presentment currency requested on draft orders.
type MarketCurrencyRule struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopID      uuid.UUID `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:market_currency_rules_shop_country_key"`
	CountryCode string    `gorm:"column:country_code;size:2;not null;uniqueIndex:market_currency_rules_shop_country_key"`
	Currency    string    `gorm:"column:currency;size:3;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MarketCurrencyRule) TableName() string { return "market_currency_rules" }

func (r *MarketCurrencyRule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
