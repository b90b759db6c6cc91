package moneyrules

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

type rulesRepository interface {
	List(ctx context.Context, shopID uuid.UUID) ([]models.MarketCurrencyRule, error)
	Upsert(ctx context.Context, rule *models.MarketCurrencyRule) error
	Find(ctx context.Context, shopID uuid.UUID, country string) (*models.MarketCurrencyRule, error)
	Delete(ctx context.Context, shopID uuid.UUID, country string) (int64, error)
}

// Rule is the API shape of a market currency rule.
type Rule struct {
	CountryCode string `json:"countryCode"`
	Currency    string `json:"currency"`
}

// Service manages the per-country presentment currency a shop requests on draft orders.
type Service interface {
	List(ctx context.Context, shopID uuid.UUID) ([]Rule, error)
	Upsert(ctx context.Context, shopID uuid.UUID, country, currency string) (*Rule, error)
	Delete(ctx context.Context, shopID uuid.UUID, country string) error
	// Lookup returns the configured currency or "" when the country has no rule.
	Lookup(ctx context.Context, shopID uuid.UUID, country string) (string, error)
}

type service struct {
	repo rulesRepository
}

func NewService(repository rulesRepository) (Service, error) {
	if repository == nil {
		return nil, fmt.Errorf("money rules repository required")
	}
	return &service{repo: repository}, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID) ([]Rule, error) {
	rows, err := s.repo.List(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list currency rules")
	}
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, Rule{CountryCode: row.CountryCode, Currency: row.Currency})
	}
	return rules, nil
}

func (s *service) Upsert(ctx context.Context, shopID uuid.UUID, country, currency string) (*Rule, error) {
	country, err := normalizeCountry(country)
	if err != nil {
		return nil, err
	}
	currency, err = normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	row := &models.MarketCurrencyRule{ShopID: shopID, CountryCode: country, Currency: currency}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save currency rule")
	}
	return &Rule{CountryCode: country, Currency: currency}, nil
}

func (s *service) Delete(ctx context.Context, shopID uuid.UUID, country string) error {
	country, err := normalizeCountry(country)
	if err != nil {
		return err
	}
	affected, err := s.repo.Delete(ctx, shopID, country)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete currency rule")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "currency rule not found")
	}
	return nil
}

func (s *service) Lookup(ctx context.Context, shopID uuid.UUID, country string) (string, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return "", nil
	}
	if _, err := normalizeCountry(country); err != nil {
		return "", err
	}
	rule, err := s.repo.Find(ctx, shopID, country)
	if err != nil {
		if repo.NotFound(err) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup currency rule")
	}
	return rule.Currency, nil
}

func normalizeCountry(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !lettersOnly(value, 2) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "countryCode must be a 2-letter code").
			WithDetails(map[string]any{"countryCode": value})
	}
	return value, nil
}

func normalizeCurrency(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !lettersOnly(value, 3) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code").
			WithDetails(map[string]any{"currency": value})
	}
	return value, nil
}

func lettersOnly(value string, length int) bool {
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
