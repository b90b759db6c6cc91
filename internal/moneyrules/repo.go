package moneyrules

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

// Repository persists market currency rules.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) List(ctx context.Context, shopID uuid.UUID) ([]models.MarketCurrencyRule, error) {
	var rules []models.MarketCurrencyRule
	err := r.DB(ctx).
		Where("shop_id = ?", shopID).
		Order("country_code ASC").
		Find(&rules).Error
	return rules, err
}

// Upsert overwrites the currency for (shop, country).
func (r *Repository) Upsert(ctx context.Context, rule *models.MarketCurrencyRule) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "country_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"currency", "updated_at"}),
		}).
		Create(rule).Error
}

func (r *Repository) Find(ctx context.Context, shopID uuid.UUID, country string) (*models.MarketCurrencyRule, error) {
	var rule models.MarketCurrencyRule
	err := r.DB(ctx).
		Where("shop_id = ? AND country_code = ?", shopID, country).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *Repository) Delete(ctx context.Context, shopID uuid.UUID, country string) (int64, error) {
	res := r.DB(ctx).
		Where("shop_id = ? AND country_code = ?", shopID, country).
		Delete(&models.MarketCurrencyRule{})
	return res.RowsAffected, res.Error
}
