package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const (
	accessTokenHeader = "X-Shopify-Access-Token"
	maxErrorBody      = 4 << 10
)

var (
	errLoggerRequired  = errors.New("shopify logger is required")
	errShopRequired    = errors.New("shop domain is required")
	errTokenRequired   = errors.New("access token is required")
	errVersionRequired = errors.New("shopify api version is required")
)

// Client talks to the Shopify Admin GraphQL API and OAuth endpoints on behalf of any
// installed shop. It holds no per-shop state.
type Client struct {
	http       *http.Client
	apiVersion string
	apiKey     string
	apiSecret  string
	baseURL    string
	logger     *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL sends every request to baseURL instead of https://{shop}. Used against
// local fakes.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewClient builds a Client from the app configuration.
func NewClient(cfg config.ShopifyConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		return nil, errVersionRequired
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &Client{
		http:       &http.Client{Timeout: timeout},
		apiVersion: version,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		logger:     logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIVersion reports the Admin API version requests are pinned to.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// Call is one GraphQL operation against a shop.
type Call struct {
	Shop        string
	AccessToken string
	Operation   string
	Query       string
	Variables   map[string]any
}

// Response is the decoded GraphQL envelope. Data is the zero value when Shopify returned
// only top-level errors.
type Response[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Post executes call and decodes the "data" object into T. Non-2xx responses and transport
// failures return typed errors; top-level GraphQL errors are returned in Response.Errors.
func Post[T any](ctx context.Context, c *Client, call Call) (*Response[T], error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shopify client is not configured")
	}
	if strings.TrimSpace(call.Shop) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errShopRequired, "shopify request")
	}
	if strings.TrimSpace(call.AccessToken) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMissingCredential, errTokenRequired, "shopify request")
	}

	payload, err := json.Marshal(struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables,omitempty"`
	}{Query: call.Query, Variables: call.Variables})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode graphql request")
	}

	endpoint := c.endpoint(call.Shop, fmt.Sprintf("/admin/api/%s/graphql.json", c.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, call.AccessToken)

	started := time.Now()
	c.log(ctx, "request", call.Operation, map[string]any{"shop": call.Shop, "variables": call.Variables})

	resp, err := c.http.Do(req)
	if err != nil {
		c.log(ctx, "error", call.Operation, map[string]any{"shop": call.Shop, "error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("shopify %s request failed", call.Operation))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read shopify %s response", call.Operation))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
		c.log(ctx, "error", call.Operation, map[string]any{"shop": call.Shop, "status": resp.StatusCode, "error": httpErr.Error()})
		return nil, mapHTTPError(httpErr, call.Operation)
	}

	var out Response[T]
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode shopify %s response", call.Operation))
	}

	c.log(ctx, "response", call.Operation, map[string]any{
		"shop":        call.Shop,
		"status":      resp.StatusCode,
		"gql_errors":  len(out.Errors),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return &out, nil
}

func (c *Client) endpoint(shop, path string) string {
	if c.baseURL != "" {
		return c.baseURL + path
	}
	return "https://" + strings.TrimSpace(shop) + path
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("shopify %s failed", op))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("shopify %s", phase))
	}
}

var sensitiveKeys = []string{"token", "secret", "email", "phone", "address", "variables", "note"}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
