package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

// CustomerRepository maps Shopify customer ids onto local customer rows.
type CustomerRepository struct {
	repo.Base
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{Base: repo.NewBase(db)}
}

// Upsert returns the customer row for (shop, shopifyCustomerID), creating it when missing.
// Existing rows are left untouched.
func (r *CustomerRepository) Upsert(ctx context.Context, shopID uuid.UUID, shopifyCustomerID string) (*models.Customer, error) {
	row := &models.Customer{ShopID: shopID, ShopifyCustomerID: shopifyCustomerID}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "shopify_customer_id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.FindByShopifyID(ctx, shopID, shopifyCustomerID)
}

func (r *CustomerRepository) FindByShopifyID(ctx context.Context, shopID uuid.UUID, shopifyCustomerID string) (*models.Customer, error) {
	var row models.Customer
	err := r.DB(ctx).
		Where("shop_id = ? AND shopify_customer_id = ?", shopID, shopifyCustomerID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error) {
	var row models.Customer
	if err := r.DB(ctx).Where("shop_id = ? AND id = ?", shopID, id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateProfile writes contact fields. Nil values keep the stored column.
func (r *CustomerRepository) UpdateProfile(ctx context.Context, id uuid.UUID, firstName, lastName, email *string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if firstName != nil {
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		updates["last_name"] = *lastName
	}
	if email != nil {
		updates["email"] = *email
	}
	return r.DB(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates).Error
}
