package gateway

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinProductSearchLength is the shortest query sent to Shopify; shorter ones match nothing.
const MinProductSearchLength = 2

const productSearchQuery = `query SearchProducts($query: String!) {
  products(first: 20, query: $query) {
    nodes {
      id
      title
      featuredImage { url altText }
      variants(first: 20) {
        nodes { id title price }
      }
    }
  }
}`

type productSearchData struct {
	Products struct {
		Nodes []struct {
			ID            string        `json:"id"`
			Title         string        `json:"title"`
			FeaturedImage *ProductImage `json:"featuredImage"`
			Variants      struct {
				Nodes []ProductSearchVariant `json:"nodes"`
			} `json:"variants"`
		} `json:"nodes"`
	} `json:"products"`
}

// SearchProducts matches products by title or SKU, returning at most 20 products with up to
// 20 variants each.
func (g *shopifyGateway) SearchProducts(ctx context.Context, shop, query string) ([]ProductSearchHit, error) {
	term := productSearchTerm(query)
	if utf8.RuneCountInString(term) < MinProductSearchLength {
		return []ProductSearchHit{}, nil
	}

	search := fmt.Sprintf("title:*%s* OR sku:*%s*", term, term)
	resp, err := execute[productSearchData](ctx, g, shop, OpProductSearch, productSearchQuery, map[string]any{"query": search})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryFailed(OpProductSearch, resp.Errors)
	}
	g.metrics.IncGateway(OpProductSearch, outcomeOK)

	out := make([]ProductSearchHit, 0, len(resp.Data.Products.Nodes))
	for _, node := range resp.Data.Products.Nodes {
		variants := node.Variants.Nodes
		if variants == nil {
			variants = []ProductSearchVariant{}
		}
		out = append(out, ProductSearchHit{
			ID:            node.ID,
			Title:         node.Title,
			FeaturedImage: node.FeaturedImage,
			Variants:      variants,
		})
	}
	return out, nil
}

// productSearchTerm drops characters that would break out of the wildcard term.
func productSearchTerm(query string) string {
	term := strings.Map(func(r rune) rune {
		switch r {
		case '*', '"', '\'', '\\', '(', ')', ':':
			return -1
		}
		return r
	}, query)
	return strings.Join(strings.Fields(term), " ")
}
