package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

// AccessTokenGrant is the OAuth response for an expiring offline token.
type AccessTokenGrant struct {
	AccessToken           string `json:"access_token"`
	Scope                 string `json:"scope"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// RefreshAccessToken exchanges a refresh token for a new offline access token. Shopify
// rotates the refresh token on every exchange.
func (c *Client) RefreshAccessToken(ctx context.Context, shop, refreshToken string) (*AccessTokenGrant, error) {
	if strings.TrimSpace(shop) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errShopRequired, "refresh access token")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeReauthRequired, "refresh token is missing")
	}

	form := url.Values{}
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop, "/admin/oauth/access_token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.log(ctx, "request", "refresh_access_token", map[string]any{"shop": shop})
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shopify refresh_access_token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read refresh response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		c.log(ctx, "error", "refresh_access_token", map[string]any{"shop": shop, "status": resp.StatusCode})
		// any rejected refresh means the merchant has to reopen the app
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeReauthRequired, httpErr, fmt.Sprintf("refresh failed (%d)", resp.StatusCode))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, httpErr, fmt.Sprintf("refresh failed (%d)", resp.StatusCode))
	}

	var grant AccessTokenGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode refresh response")
	}
	if grant.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "refresh response missing access_token")
	}
	c.log(ctx, "response", "refresh_access_token", map[string]any{"shop": shop, "expires_in": grant.ExpiresIn})
	return &grant, nil
}
