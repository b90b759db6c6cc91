package gateway

import (
	"context"
	"strings"

	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const lookupQuery = `query Lookup($productIds: [ID!]!, $variantIds: [ID!]!, $country: CountryCode) {
  products: nodes(ids: $productIds) {
    ... on Product { id title handle }
  }
  variants: nodes(ids: $variantIds) {
    ... on ProductVariant {
      id
      title
      sku
      product { id title handle }
      contextualPricing(context: { country: $country }) {
        price { amount currencyCode }
        compareAtPrice { amount currencyCode }
      }
    }
  }
}`

type variantNode struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	SKU               *string         `json:"sku"`
	Product           *ProductSummary `json:"product"`
	ContextualPricing *struct {
		Price          *Money `json:"price"`
		CompareAtPrice *Money `json:"compareAtPrice"`
	} `json:"contextualPricing"`
}

type lookupData struct {
	Products []*ProductSummary `json:"products"`
	Variants []*variantNode    `json:"variants"`
}

// LookupVariants resolves products and variants by id, pricing variants for the buyer country.
// Ids that do not resolve are left out of the maps.
func (g *shopifyGateway) LookupVariants(ctx context.Context, shop string, input LookupInput) (*LookupResult, error) {
	out := &LookupResult{ProductMap: map[string]ProductSummary{}, VariantMap: map[string]VariantSummary{}}

	productIDs := normalizeIDs(input.ProductIDs, shopify.KindProduct)
	variantIDs := normalizeIDs(input.VariantIDs, shopify.KindProductVariant)
	if len(productIDs) == 0 && len(variantIDs) == 0 {
		return out, nil
	}

	var country any
	if cc := strings.ToUpper(strings.TrimSpace(input.CountryCode)); len(cc) == 2 {
		country = cc
	}

	resp, err := execute[lookupData](ctx, g, shop, OpVariantLookup, lookupQuery, map[string]any{
		"productIds": productIDs,
		"variantIds": variantIDs,
		"country":    country,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryFailed(OpVariantLookup, resp.Errors)
	}
	g.metrics.IncGateway(OpVariantLookup, outcomeOK)

	for _, p := range resp.Data.Products {
		if p != nil && p.ID != "" {
			out.ProductMap[p.ID] = *p
		}
	}
	for _, v := range resp.Data.Variants {
		if v == nil || v.ID == "" {
			continue
		}
		summary := VariantSummary{ID: v.ID, Title: v.Title, SKU: v.SKU, Product: v.Product}
		if v.ContextualPricing != nil {
			summary.Price = v.ContextualPricing.Price
			summary.CompareAtPrice = v.ContextualPricing.CompareAtPrice
		}
		out.VariantMap[v.ID] = summary
	}
	return out, nil
}

func normalizeIDs(ids []string, kind string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gid := shopify.NormalizeGID(id, kind)
		if gid == "" {
			continue
		}
		if _, ok := seen[gid]; ok {
			continue
		}
		seen[gid] = struct{}{}
		out = append(out, gid)
	}
	return out
}
