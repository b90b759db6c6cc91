package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

// OutcomeKind is the three-way result of a draft order create.
type OutcomeKind string

const (
	OutcomeCreated             OutcomeKind = "created"
	OutcomeCreatedWithWarnings OutcomeKind = "created_with_warnings"
	OutcomeFailed              OutcomeKind = "failed"
)

// Money is an amount in a specific currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// CreateOutcome reports what happened to a draft order create. A Failed outcome with no
// errors is an ambiguous result: Shopify answered without an order or a reason.
type CreateOutcome struct {
	Kind      OutcomeKind
	OrderID   string
	OrderName string
	Total     *Money
	Warnings  shopify.Errors
	Errors    shopify.Errors
}

// Succeeded reports whether a draft order id came back.
func (o CreateOutcome) Succeeded() bool {
	return o.Kind == OutcomeCreated || o.Kind == OutcomeCreatedWithWarnings
}

// LineItem is one variant on a draft order.
type LineItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// MailingAddress matches Shopify's MailingAddressInput.
type MailingAddress struct {
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Company      string `json:"company,omitempty"`
	Address1     string `json:"address1,omitempty"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city,omitempty"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// PendingOrderInput is everything needed to create a draft order.
type PendingOrderInput struct {
	CustomerGID               string
	LineItems                 []LineItem
	Note                      string
	Tags                      []string
	PresentmentCurrency       string
	ShippingAddress           *MailingAddress
	BillingAddress            *MailingAddress
	UseCustomerDefaultAddress bool
}

// CustomerProfile is the contact data kept on the local customer row.
type CustomerProfile struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// CustomerSummary is one admin customer search hit.
type CustomerSummary struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email"`
}

// LookupInput selects products and variants to price for a buyer country.
type LookupInput struct {
	ProductIDs  []string
	VariantIDs  []string
	CountryCode string
}

// ProductSummary is the product shape returned by lookups.
type ProductSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// VariantSummary is a variant with its price resolved for the buyer country.
type VariantSummary struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	SKU            *string         `json:"sku"`
	Product        *ProductSummary `json:"product"`
	Price          *Money          `json:"price"`
	CompareAtPrice *Money          `json:"compareAtPrice"`
}

// LookupResult maps global ids to their summaries.
type LookupResult struct {
	ProductMap map[string]ProductSummary `json:"productMap"`
	VariantMap map[string]VariantSummary `json:"variantMap"`
}

// ProductImage is a product's featured image.
type ProductImage struct {
	URL     string  `json:"url"`
	AltText *string `json:"altText"`
}

// ProductSearchVariant is a variant listed under a product search hit. Price is in the shop
// currency.
type ProductSearchVariant struct {
	ID    string           `json:"id"`
	Title string           `json:"title"`
	Price *decimal.Decimal `json:"price"`
}

// ProductSearchHit is one product matched by title or SKU.
type ProductSearchHit struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	FeaturedImage *ProductImage          `json:"featuredImage"`
	Variants      []ProductSearchVariant `json:"variants"`
}
