package shops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes shop rows, the fallback currency setting and the uninstall cascade.
type Service interface {
	Ensure(ctx context.Context, domain string) (*models.Shop, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	// Find returns nil when no row exists for domain.
	Find(ctx context.Context, domain string) (*models.Shop, error)
	SetCurrency(ctx context.Context, id uuid.UUID, currency string) (*models.Shop, error)
	Uninstall(ctx context.Context, domain string) (*UninstallResult, error)
}

// UninstallResult reports what the cascade removed.
type UninstallResult struct {
	ShopID          *uuid.UUID
	SessionsDeleted int64
}

type service struct {
	repo    *Repository
	tx      txRunner
	emitter eventEmitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(repository *Repository, tx txRunner, emitter eventEmitter, logg *logger.Logger) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repository, tx: tx, emitter: emitter, logg: logg, now: time.Now}, nil
}

func (s *service) Ensure(ctx context.Context, domain string) (*models.Shop, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}
	shop, err := s.repo.Upsert(ctx, domain)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert shop")
	}
	return shop, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	shop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repo.NotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return shop, nil
}

func (s *service) Find(ctx context.Context, domain string) (*models.Shop, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, nil
	}
	shop, err := s.repo.FindByDomain(ctx, domain)
	if err != nil {
		if repo.NotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return shop, nil
}

// SetCurrency stores the shop's fallback settlement currency. An empty value clears it.
func (s *service) SetCurrency(ctx context.Context, id uuid.UUID, currency string) (*models.Shop, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	var value *string
	if currency != "" {
		if !isAlpha(currency, 3) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code").
				WithDetails(map[string]any{"currency": currency})
		}
		value = &currency
	}
	affected, err := s.repo.SetCurrency(ctx, id, value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop currency")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	return s.Get(ctx, id)
}

// Uninstall deletes every row the shop owns in one transaction and queues shop_uninstalled.
// When the shop row is already gone only the stored sessions are removed.
func (s *service) Uninstall(ctx context.Context, domain string) (*UninstallResult, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}

	result := &UninstallResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		shop, err := txRepo.FindByDomain(ctx, domain)
		if err != nil && !repo.NotFound(err) {
			return err
		}
		if shop != nil {
			if err := txRepo.DeleteShopData(ctx, shop.ID); err != nil {
				return err
			}
			id := shop.ID
			result.ShopID = &id
		}
		deleted, err := txRepo.DeleteSessions(ctx, domain)
		if err != nil {
			return err
		}
		result.SessionsDeleted = deleted

		if shop == nil {
			return nil
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShopUninstalled,
			AggregateType: enums.AggregateShop,
			AggregateID:   shop.ID,
			Actor:         &outbox.ActorRef{ShopID: shop.ID, Source: "webhook"},
			Data: payloads.ShopUninstalledEvent{
				ShopID:      shop.ID,
				ShopDomain:  domain,
				UninstallAt: s.now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "uninstall shop")
	}

	logCtx := s.logg.WithFields(s.logg.WithShop(ctx, domain), map[string]any{
		"shop_found":       result.ShopID != nil,
		"sessions_deleted": result.SessionsDeleted,
	})
	s.logg.Info(logCtx, "shop data removed after uninstall")
	return result, nil
}

func isAlpha(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
