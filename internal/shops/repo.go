package shops

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

// Repository persists shops and runs the uninstall cascade.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// Upsert returns the shop for domain, inserting it on first sight.
func (r *Repository) Upsert(ctx context.Context, domain string) (*models.Shop, error) {
	shop := models.Shop{ShopDomain: domain}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_domain"}},
			DoNothing: true,
		}).
		Create(&shop).Error
	if err != nil {
		return nil, err
	}
	return r.FindByDomain(ctx, domain)
}

func (r *Repository) FindByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.DB(ctx).Where("shop_domain = ?", domain).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.DB(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// SetCurrency overwrites the shop fallback currency. nil clears it.
func (r *Repository) SetCurrency(ctx context.Context, id uuid.UUID, currency *string) (int64, error) {
	res := r.DB(ctx).Model(&models.Shop{}).
		Where("id = ?", id).
		Update("currency_code", currency)
	return res.RowsAffected, res.Error
}

// DeleteShopData removes every row owned by shopID, children first.
func (r *Repository) DeleteShopData(ctx context.Context, shopID uuid.UUID) error {
	db := r.DB(ctx)
	wishlistIDs := db.Model(&models.Wishlist{}).Select("id").Where("shop_id = ?", shopID)
	steps := []func() error{
		func() error { return db.Where("shop_id = ?", shopID).Delete(&models.Submission{}).Error },
		func() error { return db.Where("wishlist_id IN (?)", wishlistIDs).Delete(&models.WishlistItem{}).Error },
		func() error { return db.Where("shop_id = ?", shopID).Delete(&models.Wishlist{}).Error },
		func() error { return db.Where("shop_id = ?", shopID).Delete(&models.MarketCurrencyRule{}).Error },
		func() error { return db.Where("shop_id = ?", shopID).Delete(&models.Customer{}).Error },
		func() error { return db.Where("id = ?", shopID).Delete(&models.Shop{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSessions removes every stored session for the shop domain.
func (r *Repository) DeleteSessions(ctx context.Context, domain string) (int64, error) {
	res := r.DB(ctx).Where("shop = ?", domain).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// NormalizeDomain lowercases and trims a shop domain.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
