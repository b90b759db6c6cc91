package wishlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

const activeNameConstraint = "wishlists_active_name_key"

// mergeQuantity adds the incoming quantity to the stored one, capped at MaxQuantity.
var mergeQuantity = gorm.Expr(
	"CASE WHEN wishlist_items.quantity + excluded.quantity > ? THEN ? ELSE wishlist_items.quantity + excluded.quantity END",
	MaxQuantity, MaxQuantity,
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListActive returns the owner's non-archived wishlists, most recently updated first.
func (r *Repository) ListActive(ctx context.Context, shopID, customerID uuid.UUID) ([]models.Wishlist, error) {
	var rows []models.Wishlist
	err := r.DB(ctx).
		Where("shop_id = ? AND customer_id = ? AND is_archived = ?", shopID, customerID, false).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

// CountItems returns item counts keyed by wishlist id.
func (r *Repository) CountItems(ctx context.Context, wishlistIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(wishlistIDs))
	if len(wishlistIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		WishlistID uuid.UUID
		Count      int
	}
	err := r.DB(ctx).Model(&models.WishlistItem{}).
		Select("wishlist_id, COUNT(*) AS count").
		Where("wishlist_id IN ?", wishlistIDs).
		Group("wishlist_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.WishlistID] = row.Count
	}
	return counts, nil
}

func (r *Repository) Create(ctx context.Context, wishlist *models.Wishlist) error {
	return r.DB(ctx).Create(wishlist).Error
}

// FindActive loads a non-archived wishlist owned by (shop, customer) with its items newest first.
func (r *Repository) FindActive(ctx context.Context, shopID, customerID, id uuid.UUID) (*models.Wishlist, error) {
	return r.findActive(ctx, "shop_id = ? AND customer_id = ? AND id = ?", shopID, customerID, id)
}

// FindActiveInShop is the staff variant of FindActive; it only scopes by shop.
func (r *Repository) FindActiveInShop(ctx context.Context, shopID, id uuid.UUID) (*models.Wishlist, error) {
	return r.findActive(ctx, "shop_id = ? AND id = ?", shopID, id)
}

func (r *Repository) findActive(ctx context.Context, where string, args ...any) (*models.Wishlist, error) {
	var row models.Wishlist
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		Where(where, args...).
		Where("is_archived = ?", false).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Rename(ctx context.Context, shopID, customerID, id uuid.UUID, name string) (int64, error) {
	res := r.DB(ctx).Model(&models.Wishlist{}).
		Where("shop_id = ? AND customer_id = ? AND id = ? AND is_archived = ?", shopID, customerID, id, false).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *Repository) Archive(ctx context.Context, shopID, customerID, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Model(&models.Wishlist{}).
		Where("shop_id = ? AND customer_id = ? AND id = ? AND is_archived = ?", shopID, customerID, id, false).
		Updates(map[string]any{"is_archived": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// Touch bumps updated_at so the wishlist sorts first.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Model(&models.Wishlist{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// MergeItem inserts the item or adds its quantity to the existing (wishlist, variant) row.
// Display metadata is only overwritten when the new value is present.
func (r *Repository) MergeItem(ctx context.Context, item *models.WishlistItem) (*models.WishlistItem, error) {
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "wishlist_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "quantity"}, Value: mergeQuantity},
				{Column: clause.Column{Name: "product_id"}, Value: gorm.Expr("excluded.product_id")},
				{Column: clause.Column{Name: "title"}, Value: gorm.Expr("COALESCE(excluded.title, wishlist_items.title)")},
				{Column: clause.Column{Name: "variant_title"}, Value: gorm.Expr("COALESCE(excluded.variant_title, wishlist_items.variant_title)")},
				{Column: clause.Column{Name: "sku"}, Value: gorm.Expr("COALESCE(excluded.sku, wishlist_items.sku)")},
				{Column: clause.Column{Name: "image_url"}, Value: gorm.Expr("COALESCE(excluded.image_url, wishlist_items.image_url)")},
				{Column: clause.Column{Name: "price"}, Value: gorm.Expr("COALESCE(excluded.price, wishlist_items.price)")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(item).Error
	if err != nil {
		return nil, err
	}
	var stored models.WishlistItem
	err = r.DB(ctx).
		Where("wishlist_id = ? AND variant_id = ?", item.WishlistID, item.VariantID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) FindItem(ctx context.Context, wishlistID, itemID uuid.UUID) (*models.WishlistItem, error) {
	var item models.WishlistItem
	if err := r.DB(ctx).Where("wishlist_id = ? AND id = ?", wishlistID, itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, wishlistID, itemID uuid.UUID, quantity int) (int64, error) {
	res := r.DB(ctx).Model(&models.WishlistItem{}).
		Where("wishlist_id = ? AND id = ?", wishlistID, itemID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteItem(ctx context.Context, wishlistID, itemID uuid.UUID) (int64, error) {
	res := r.DB(ctx).
		Where("wishlist_id = ? AND id = ?", wishlistID, itemID).
		Delete(&models.WishlistItem{})
	return res.RowsAffected, res.Error
}
