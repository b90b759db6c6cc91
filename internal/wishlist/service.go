package wishlist

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

// Service exposes wishlist and item management for a single owner, plus shop-scoped staff reads.
type Service interface {
	List(ctx context.Context, owner Owner) ([]SummaryDTO, error)
	Create(ctx context.Context, owner Owner, name string) (*models.Wishlist, error)
	Get(ctx context.Context, owner Owner, id uuid.UUID) (*models.Wishlist, error)
	Rename(ctx context.Context, owner Owner, id uuid.UUID, name string) (*models.Wishlist, error)
	Archive(ctx context.Context, owner Owner, id uuid.UUID) error
	AddItem(ctx context.Context, owner Owner, id uuid.UUID, input AddItemInput) (*models.WishlistItem, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, id, itemID uuid.UUID, quantity int) (*models.WishlistItem, error)
	RemoveItem(ctx context.Context, owner Owner, id, itemID uuid.UUID) error
	GetForShop(ctx context.Context, shopID, id uuid.UUID) (*models.Wishlist, error)
}

type service struct {
	repo *Repository
}

// NewService builds a wishlist service over the repository.
func NewService(repository *Repository) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("wishlist repository required")
	}
	return &service{repo: repository}, nil
}

func (s *service) List(ctx context.Context, owner Owner) ([]SummaryDTO, error) {
	rows, err := s.repo.ListActive(ctx, owner.ShopID, owner.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlists")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	counts, err := s.repo.CountItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count wishlist items")
	}
	out := make([]SummaryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, SummaryDTO{
			ID:        row.ID,
			Name:      row.Name,
			ItemCount: counts[row.ID],
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, owner Owner, name string) (*models.Wishlist, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	row := &models.Wishlist{ShopID: owner.ShopID, CustomerID: owner.CustomerID, Name: name}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, activeNameConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a wishlist with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wishlist")
	}
	row.Items = []models.WishlistItem{}
	return row, nil
}

func (s *service) Get(ctx context.Context, owner Owner, id uuid.UUID) (*models.Wishlist, error) {
	row, err := s.repo.FindActive(ctx, owner.ShopID, owner.CustomerID, id)
	if err != nil {
		return nil, notFoundOr(err, "load wishlist")
	}
	return row, nil
}

func (s *service) GetForShop(ctx context.Context, shopID, id uuid.UUID) (*models.Wishlist, error) {
	row, err := s.repo.FindActiveInShop(ctx, shopID, id)
	if err != nil {
		return nil, notFoundOr(err, "load wishlist")
	}
	return row, nil
}

func (s *service) Rename(ctx context.Context, owner Owner, id uuid.UUID, name string) (*models.Wishlist, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.Rename(ctx, owner.ShopID, owner.CustomerID, id, name)
	if err != nil {
		if db.IsUniqueViolation(err, activeNameConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a wishlist with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename wishlist")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	return s.Get(ctx, owner, id)
}

func (s *service) Archive(ctx context.Context, owner Owner, id uuid.UUID) error {
	affected, err := s.repo.Archive(ctx, owner.ShopID, owner.CustomerID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive wishlist")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
	}
	return nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, id uuid.UUID, input AddItemInput) (*models.WishlistItem, error) {
	productID := strings.TrimSpace(input.ProductID)
	variantID := strings.TrimSpace(input.VariantID)
	if productID == "" || variantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId and variantId are required")
	}
	quantity := MinQuantity
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.ownedWishlist(ctx, owner, id); err != nil {
		return nil, err
	}

	item := &models.WishlistItem{
		WishlistID:   id,
		ProductID:    productID,
		VariantID:    variantID,
		Quantity:     quantity,
		Title:        trimmed(input.Title),
		VariantTitle: trimmed(input.VariantTitle),
		SKU:          trimmed(input.SKU),
		ImageURL:     trimmed(input.ImageURL),
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		item.Price = decimal.NewNullDecimal(input.Price.Round(2))
	}

	stored, err := s.repo.MergeItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}
	if err := s.repo.Touch(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch wishlist")
	}
	return stored, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, id, itemID uuid.UUID, quantity int) (*models.WishlistItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.ownedWishlist(ctx, owner, id); err != nil {
		return nil, err
	}
	affected, err := s.repo.UpdateItemQuantity(ctx, id, itemID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wishlist item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
	}
	if err := s.repo.Touch(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch wishlist")
	}
	item, err := s.repo.FindItem(ctx, id, itemID)
	if err != nil {
		return nil, notFoundOr(err, "load wishlist item")
	}
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, id, itemID uuid.UUID) error {
	if _, err := s.ownedWishlist(ctx, owner, id); err != nil {
		return err
	}
	affected, err := s.repo.DeleteItem(ctx, id, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
	}
	return s.repo.Touch(ctx, id)
}

// ownedWishlist guards item mutations; item ids are never trusted without the owning wishlist.
func (s *service) ownedWishlist(ctx context.Context, owner Owner, id uuid.UUID) (*models.Wishlist, error) {
	row, err := s.repo.FindActive(ctx, owner.ShopID, owner.CustomerID, id)
	if err != nil {
		return nil, notFoundOr(err, "load wishlist")
	}
	return row, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	return name, nil
}

func validateQuantity(quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantity))
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func notFoundOr(err error, msg string) error {
	if repo.NotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "wishlist not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
