package submissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	"github.com/angelmondragon/wishlist-backend/pkg/pagination"
)

// Repository persists submission rows. Every query is scoped by shop.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, submission *models.Submission) error {
	return r.DB(ctx).Create(submission).Error
}

func (r *Repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Submission, error) {
	var row models.Submission
	if err := r.DB(ctx).Where("shop_id = ? AND id = ?", shopID, id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDForUpdate locks the row on Postgres for the rest of the transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Submission, error) {
	query := r.DB(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.Submission
	if err := query.Where("shop_id = ? AND id = ?", shopID, id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindForCustomer(ctx context.Context, shopID, customerID, id uuid.UUID) (*models.Submission, error) {
	var row models.Submission
	err := r.DB(ctx).
		Where("shop_id = ? AND customer_id = ? AND id = ?", shopID, customerID, id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Latest returns the newest submission for the wishlist and customer.
func (r *Repository) Latest(ctx context.Context, shopID, wishlistID, customerID uuid.UUID) (*models.Submission, error) {
	var row models.Submission
	err := r.DB(ctx).
		Where("shop_id = ? AND wishlist_id = ? AND customer_id = ?", shopID, wishlistID, customerID).
		Order("created_at DESC").
		Order("id DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateQueued applies updates only while the row is still queued.
func (r *Repository) UpdateQueued(ctx context.Context, shopID, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.DB(ctx).Model(&models.Submission{}).
		Where("shop_id = ? AND id = ? AND status = ?", shopID, id, enums.SubmissionStatusQueued).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) Update(ctx context.Context, shopID, id uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).Model(&models.Submission{}).
		Where("shop_id = ? AND id = ?", shopID, id).
		Updates(updates).Error
}

// List returns up to limit rows older than cursor, newest first.
func (r *Repository) List(ctx context.Context, shopID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Submission, error) {
	query := r.DB(ctx).Where("shop_id = ?", shopID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	if filter.WishlistID != nil {
		query = query.Where("wishlist_id = ?", *filter.WishlistID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	var rows []models.Submission
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListQueuedBefore returns queued rows created before cutoff across every shop, oldest first.
// Only maintenance jobs may read without a shop scope.
func (r *Repository) ListQueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Submission, error) {
	var rows []models.Submission
	err := r.DB(ctx).
		Where("status = ? AND created_at < ?", enums.SubmissionStatusQueued, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
