package auth

import (
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const customerGIDPrefix = "gid://shopify/Customer/"

// SessionTokenClaims are the claims Shopify puts in App Bridge and customer account
// session tokens.
type SessionTokenClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ShopDomain returns the shop host carried in dest, e.g. "demo.myshopify.com".
func (c *SessionTokenClaims) ShopDomain() string {
	return ShopFromDest(c.Dest)
}

// CustomerID returns the numeric Shopify customer id when sub is a customer GID.
func (c *SessionTokenClaims) CustomerID() string {
	if !strings.HasPrefix(c.Subject, customerGIDPrefix) {
		return ""
	}
	return strings.TrimPrefix(c.Subject, customerGIDPrefix)
}

// ShopFromDest extracts a bare host from a dest claim, tolerating values without a scheme.
func ShopFromDest(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if u, err := url.Parse(dest); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	dest = strings.TrimPrefix(strings.TrimPrefix(dest, "https://"), "http://")
	return strings.ToLower(strings.TrimSuffix(dest, "/"))
}
