package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// ParseSessionToken verifies a Shopify session token signed with the app secret and
// addressed to the app's API key.
func ParseSessionToken(cfg config.ShopifyConfig, tokenString string) (*SessionTokenClaims, error) {
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("shopify api secret is required")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("session token is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithLeeway(cfg.SessionTokenLeeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.APIKey != "" {
		opts = append(opts, jwt.WithAudience(cfg.APIKey))
	}

	claims := &SessionTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.APISecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	if claims.ShopDomain() == "" {
		return nil, fmt.Errorf("session token is missing dest")
	}
	return claims, nil
}

// SessionTokenPayload describes a token minted by MintSessionToken.
type SessionTokenPayload struct {
	Shop    string
	Subject string
	TTL     time.Duration
}

// MintSessionToken signs a token shaped like Shopify's. Used by local tooling and tests.
func MintSessionToken(cfg config.ShopifyConfig, now time.Time, payload SessionTokenPayload) (string, error) {
	if cfg.APISecret == "" {
		return "", fmt.Errorf("shopify api secret is required")
	}
	if payload.Shop == "" {
		return "", fmt.Errorf("shop is required")
	}
	ttl := payload.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	claims := SessionTokenClaims{
		Dest: "https://" + payload.Shop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + payload.Shop + "/admin",
			Subject:   payload.Subject,
			Audience:  jwt.ClaimStrings{cfg.APIKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.APISecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
