package gateway

import (
	"context"
	"fmt"

	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const draftOrderCreateMutation = `mutation DraftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      name
      totalPriceSet { presentmentMoney { amount currencyCode } }
    }
    userErrors { field message }
  }
}`

const draftOrderByTagQuery = `query DraftOrderByTag($query: String!) {
  draftOrders(first: 1, sortKey: UPDATED_AT, reverse: true, query: $query) {
    nodes { id name }
  }
}`

type draftOrderCreateData struct {
	DraftOrderCreate *struct {
		DraftOrder *struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			TotalPriceSet *struct {
				PresentmentMoney *Money `json:"presentmentMoney"`
			} `json:"totalPriceSet"`
		} `json:"draftOrder"`
		UserErrors []shopify.UserError `json:"userErrors"`
	} `json:"draftOrderCreate"`
}

type draftOrdersData struct {
	DraftOrders struct {
		Nodes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"draftOrders"`
}

func (in PendingOrderInput) variables() map[string]any {
	input := map[string]any{
		"lineItems": in.LineItems,
		"note":      in.Note,
		"tags":      in.Tags,
	}
	if in.CustomerGID != "" {
		input["purchasingEntity"] = map[string]any{"customerId": in.CustomerGID}
	}
	if in.PresentmentCurrency != "" {
		input["presentmentCurrencyCode"] = in.PresentmentCurrency
	}
	switch {
	case in.ShippingAddress != nil:
		input["shippingAddress"] = in.ShippingAddress
		billing := in.BillingAddress
		if billing == nil {
			billing = in.ShippingAddress
		}
		input["billingAddress"] = billing
	case in.UseCustomerDefaultAddress:
		input["useCustomerDefaultAddress"] = true
	}
	return map[string]any{"input": input}
}

// CreatePendingOrder creates a draft order. The returned error is set only when the call must
// abort (credential or auth failure); every other failure is reported as an OutcomeFailed
// outcome carrying the normalized errors.
func (g *shopifyGateway) CreatePendingOrder(ctx context.Context, shop string, input PendingOrderInput) (CreateOutcome, error) {
	resp, err := execute[draftOrderCreateData](ctx, g, shop, OpDraftOrderCreate, draftOrderCreateMutation, input.variables())
	if err != nil {
		if IsAbort(err) {
			return CreateOutcome{}, err
		}
		return CreateOutcome{
			Kind:   OutcomeFailed,
			Errors: shopify.Errors{GQLErrors: []shopify.GraphQLError{shopify.GQLErrorf("TRANSPORT_ERROR", "%s", err.Error())}},
		}, nil
	}

	errs := shopify.Errors{GQLErrors: resp.Errors}
	payload := resp.Data.DraftOrderCreate
	if payload == nil || payload.DraftOrder == nil || payload.DraftOrder.ID == "" {
		if payload != nil {
			errs.UserErrors = payload.UserErrors
		}
		if len(resp.Errors) == 0 {
			g.metrics.IncGateway(OpDraftOrderCreate, outcomeUserErrors)
		}
		return CreateOutcome{Kind: OutcomeFailed, Errors: errs}, nil
	}

	outcome := CreateOutcome{
		Kind:      OutcomeCreated,
		OrderID:   payload.DraftOrder.ID,
		OrderName: payload.DraftOrder.Name,
	}
	if payload.DraftOrder.TotalPriceSet != nil {
		outcome.Total = payload.DraftOrder.TotalPriceSet.PresentmentMoney
	}
	errs.UserErrors = payload.UserErrors
	if !errs.Empty() {
		outcome.Kind = OutcomeCreatedWithWarnings
		outcome.Warnings = errs
	}
	if len(resp.Errors) == 0 {
		g.metrics.IncGateway(OpDraftOrderCreate, outcomeOK)
	}
	return outcome, nil
}

// FindByTag returns the most recently updated draft order carrying tag, or "" when none does.
func (g *shopifyGateway) FindByTag(ctx context.Context, shop, tag string) (string, error) {
	if tag == "" {
		return "", nil
	}
	resp, err := execute[draftOrdersData](ctx, g, shop, OpDraftOrderByTag, draftOrderByTagQuery, map[string]any{
		"query": fmt.Sprintf("tag:'%s'", tag),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", queryFailed(OpDraftOrderByTag, resp.Errors)
	}
	g.metrics.IncGateway(OpDraftOrderByTag, outcomeOK)
	for _, node := range resp.Data.DraftOrders.Nodes {
		if node.ID != "" {
			return node.ID, nil
		}
	}
	return "", nil
}
