package gateway

import (
	"context"
	"strings"

	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const customerAddressQuery = `query CustomerAddress($id: ID!) {
  customer(id: $id) {
    defaultAddress { ...AddressFields }
    addresses(first: 5) { ...AddressFields }
  }
}

fragment AddressFields on MailingAddress {
  firstName
  lastName
  company
  address1
  address2
  city
  provinceCode
  countryCodeV2
  zip
  phone
}`

const customerProfileQuery = `query CustomerProfile($id: ID!) {
  customer(id: $id) { firstName lastName email }
}`

const customerSearchQuery = `query CustomerSearch($q: String!) {
  customers(first: 20, query: $q) {
    edges { node { id displayName email } }
  }
}`

type addressNode struct {
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Company       *string `json:"company"`
	Address1      *string `json:"address1"`
	Address2      *string `json:"address2"`
	City          *string `json:"city"`
	ProvinceCode  *string `json:"provinceCode"`
	CountryCodeV2 *string `json:"countryCodeV2"`
	Zip           *string `json:"zip"`
	Phone         *string `json:"phone"`
}

func (n *addressNode) toMailingAddress() *MailingAddress {
	if n == nil {
		return nil
	}
	return &MailingAddress{
		FirstName:    deref(n.FirstName),
		LastName:     deref(n.LastName),
		Company:      deref(n.Company),
		Address1:     deref(n.Address1),
		Address2:     deref(n.Address2),
		City:         deref(n.City),
		ProvinceCode: deref(n.ProvinceCode),
		CountryCode:  deref(n.CountryCodeV2),
		Zip:          deref(n.Zip),
		Phone:        deref(n.Phone),
	}
}

type customerAddressData struct {
	Customer *struct {
		DefaultAddress *addressNode   `json:"defaultAddress"`
		Addresses      []*addressNode `json:"addresses"`
	} `json:"customer"`
}

type customerProfileData struct {
	Customer *CustomerProfile `json:"customer"`
}

type customerSearchData struct {
	Customers struct {
		Edges []struct {
			Node CustomerSummary `json:"node"`
		} `json:"edges"`
	} `json:"customers"`
}

// FetchCustomerAddress returns the customer's default address, else their first saved
// address, else nil.
func (g *shopifyGateway) FetchCustomerAddress(ctx context.Context, shop, customerGID string) (*MailingAddress, error) {
	id := shopify.NormalizeGID(customerGID, shopify.KindCustomer)
	if id == "" {
		return nil, nil
	}
	resp, err := execute[customerAddressData](ctx, g, shop, OpCustomerAddress, customerAddressQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryFailed(OpCustomerAddress, resp.Errors)
	}
	g.metrics.IncGateway(OpCustomerAddress, outcomeOK)

	customer := resp.Data.Customer
	if customer == nil {
		return nil, nil
	}
	if customer.DefaultAddress != nil {
		return customer.DefaultAddress.toMailingAddress(), nil
	}
	for _, addr := range customer.Addresses {
		if addr != nil {
			return addr.toMailingAddress(), nil
		}
	}
	return nil, nil
}

// FetchCustomerProfile loads name and email for a customer.
func (g *shopifyGateway) FetchCustomerProfile(ctx context.Context, shop, customerGID string) (*CustomerProfile, error) {
	id := shopify.NormalizeGID(customerGID, shopify.KindCustomer)
	if id == "" {
		return nil, nil
	}
	resp, err := execute[customerProfileData](ctx, g, shop, OpCustomerProfile, customerProfileQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryFailed(OpCustomerProfile, resp.Errors)
	}
	g.metrics.IncGateway(OpCustomerProfile, outcomeOK)
	return resp.Data.Customer, nil
}

// SearchCustomers runs an admin customer search, returning at most 20 hits.
func (g *shopifyGateway) SearchCustomers(ctx context.Context, shop, query string) ([]CustomerSummary, error) {
	resp, err := execute[customerSearchData](ctx, g, shop, OpCustomerSearch, customerSearchQuery, map[string]any{"q": strings.TrimSpace(query)})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, queryFailed(OpCustomerSearch, resp.Errors)
	}
	g.metrics.IncGateway(OpCustomerSearch, outcomeOK)

	out := make([]CustomerSummary, 0, len(resp.Data.Customers.Edges))
	for _, edge := range resp.Data.Customers.Edges {
		out = append(out, edge.Node)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
