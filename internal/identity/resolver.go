// Package identity turns Shopify session tokens into local (shop, customer) principals.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/pkg/auth"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

// Kind distinguishes the two authenticated surfaces.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindAdmin    Kind = "admin"
)

const customerGIDPrefix = "gid://shopify/Customer/"

// Principal is the resolved caller. For admins Customer is the staff placeholder row.
type Principal struct {
	Kind     Kind
	Shop     *models.Shop
	Customer *models.Customer
}

// CustomerGID is the Shopify global id of a customer principal.
func (p *Principal) CustomerGID() string {
	if p == nil || p.Customer == nil {
		return ""
	}
	return CustomerGID(p.Customer.ShopifyCustomerID)
}

// CustomerGID builds a Shopify customer gid from a stored numeric id.
func CustomerGID(shopifyCustomerID string) string {
	if strings.HasPrefix(shopifyCustomerID, customerGIDPrefix) {
		return shopifyCustomerID
	}
	return customerGIDPrefix + shopifyCustomerID
}

type shopEnsurer interface {
	Ensure(ctx context.Context, domain string) (*models.Shop, error)
}

type profileFetcher interface {
	FetchCustomerProfile(ctx context.Context, shop, customerGID string) (*gateway.CustomerProfile, error)
}

// Resolver verifies session tokens and upserts the rows they name. Any failure is a 401.
type Resolver interface {
	ResolveCustomer(ctx context.Context, token string) (*Principal, error)
	ResolveAdmin(ctx context.Context, token string) (*Principal, error)
}

type resolver struct {
	cfg       config.ShopifyConfig
	shops     shopEnsurer
	customers *CustomerRepository
	profiles  profileFetcher
	logg      *logger.Logger
}

// NewResolver builds a resolver. profiles is optional; when set, customers with no contact
// data are enriched from the Admin API on first sight.
func NewResolver(cfg config.ShopifyConfig, shops shopEnsurer, customers *CustomerRepository, profiles profileFetcher, logg *logger.Logger) (Resolver, error) {
	if shops == nil {
		return nil, fmt.Errorf("shop service required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &resolver{cfg: cfg, shops: shops, customers: customers, profiles: profiles, logg: logg}, nil
}

func (r *resolver) ResolveCustomer(ctx context.Context, token string) (*Principal, error) {
	claims, err := auth.ParseSessionToken(r.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	customerID := claims.CustomerID()
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authenticated as customer")
	}

	shop, customer, err := r.upsert(ctx, claims.ShopDomain(), customerID)
	if err != nil {
		return nil, err
	}
	r.enrich(ctx, shop, customer)
	return &Principal{Kind: KindCustomer, Shop: shop, Customer: customer}, nil
}

func (r *resolver) ResolveAdmin(ctx context.Context, token string) (*Principal, error) {
	claims, err := auth.ParseSessionToken(r.cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	shopDomain := claims.ShopDomain()
	key := strings.TrimSpace(claims.Subject)
	if key == "" {
		key = "offline:" + shopDomain
	}

	shop, customer, err := r.upsert(ctx, shopDomain, key)
	if err != nil {
		return nil, err
	}
	return &Principal{Kind: KindAdmin, Shop: shop, Customer: customer}, nil
}

func (r *resolver) upsert(ctx context.Context, shopDomain, customerKey string) (*models.Shop, *models.Customer, error) {
	shop, err := r.shops.Ensure(ctx, shopDomain)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing shop in token")
		}
		return nil, nil, err
	}
	customer, err := r.customers.Upsert(ctx, shop.ID, customerKey)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert customer")
	}
	return shop, customer, nil
}

// enrich is best effort: failures are logged and the request proceeds.
func (r *resolver) enrich(ctx context.Context, shop *models.Shop, customer *models.Customer) {
	if r.profiles == nil {
		return
	}
	if customer.Email != nil || customer.FirstName != nil || customer.LastName != nil {
		return
	}
	profile, err := r.profiles.FetchCustomerProfile(ctx, shop.ShopDomain, CustomerGID(customer.ShopifyCustomerID))
	if err != nil {
		r.logg.Warn(ctx, "customer profile enrichment failed: "+err.Error())
		return
	}
	if profile == nil {
		return
	}
	if err := r.customers.UpdateProfile(ctx, customer.ID, profile.FirstName, profile.LastName, profile.Email); err != nil {
		r.logg.Warn(ctx, "customer profile update failed: "+err.Error())
		return
	}
	customer.FirstName = profile.FirstName
	customer.LastName = profile.LastName
	customer.Email = profile.Email
}
