package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer maps a Shopify customer (or an admin placeholder key) onto a local id.
type Customer struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopID            uuid.UUID `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:customers_shop_customer_key"`
	ShopifyCustomerID string    `gorm:"column:shopify_customer_id;not null;uniqueIndex:customers_shop_customer_key"`
	Email             *string   `gorm:"column:email"`
	FirstName         *string   `gorm:"column:first_name"`
	LastName          *string   `gorm:"column:last_name"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
