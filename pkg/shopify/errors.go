package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/types"
)

// GraphQLError is a top-level entry in a GraphQL response "errors" array.
type GraphQLError = types.GraphQLError

// UserError is a field-level validation error returned inside a 200 mutation payload.
type UserError = types.UserError

// Errors is the normalized failure shape shared by transport and mutation errors.
type Errors struct {
	GQLErrors  []GraphQLError `json:"gqlErrors"`
	UserErrors []UserError    `json:"userErrors"`
}

// Record converts e into its persisted form.
func (e Errors) Record() *types.RemoteErrors {
	if e.Empty() {
		return nil
	}
	rec := types.RemoteErrors(e)
	return &rec
}

// Empty reports whether nothing went wrong.
func (e Errors) Empty() bool {
	return len(e.GQLErrors) == 0 && len(e.UserErrors) == 0
}

// Merge appends other's entries to a copy of e.
func (e Errors) Merge(other Errors) Errors {
	out := Errors{
		GQLErrors:  append(append([]GraphQLError{}, e.GQLErrors...), other.GQLErrors...),
		UserErrors: append(append([]UserError{}, e.UserErrors...), other.UserErrors...),
	}
	return out
}

// Messages lists every message, graphql errors first.
func (e Errors) Messages() []string {
	msgs := make([]string, 0, len(e.GQLErrors)+len(e.UserErrors))
	for _, g := range e.GQLErrors {
		if g.Extensions.Code != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", g.Message, g.Extensions.Code))
			continue
		}
		msgs = append(msgs, g.Message)
	}
	for _, u := range e.UserErrors {
		if len(u.Field) > 0 {
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(u.Field, "."), u.Message))
			continue
		}
		msgs = append(msgs, u.Message)
	}
	return msgs
}

// Text joins every message for heuristic matching.
func (e Errors) Text() string {
	return strings.Join(e.Messages(), "; ")
}

// Err aggregates the messages into one error, or nil when empty.
func (e Errors) Err() error {
	var combined error
	for _, msg := range e.Messages() {
		combined = multierr.Append(combined, errors.New(msg))
	}
	return combined
}

// GQLErrorf builds a single synthetic graphql error entry.
func GQLErrorf(code, format string, args ...any) GraphQLError {
	g := GraphQLError{Message: fmt.Sprintf(format, args...)}
	g.Extensions.Code = code
	return g
}

// HTTPError captures a non-2xx response from Shopify.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("shopify responded %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func mapHTTPError(err *HTTPError, op string) error {
	code := domainCodeForStatus(err.StatusCode)
	if code != pkgerrors.CodeReauthRequired && LooksLikeAuthFailure(err.Body) {
		code = pkgerrors.CodeReauthRequired
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("shopify %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeReauthRequired
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeRemoteMutation
	default:
		return pkgerrors.CodeDependency
	}
}

var authFailureMarkers = []string{
	"invalid api key or access token",
	"unrecognized login or wrong password",
	"access token",
	"access denied",
	"unauthorized",
	"401",
}

// LooksLikeAuthFailure applies the message heuristics Shopify needs: an expired or revoked
// token is sometimes reported as a GraphQL error inside a 200 response.
func LooksLikeAuthFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err or errs indicate the shop's credential is no longer valid.
func IsAuthError(err error, errs Errors) bool {
	if pkgerrors.IsCode(err, pkgerrors.CodeReauthRequired) {
		return true
	}
	for _, g := range errs.GQLErrors {
		if strings.EqualFold(g.Extensions.Code, "ACCESS_DENIED") || strings.EqualFold(g.Extensions.Code, "UNAUTHORIZED") {
			return true
		}
		if LooksLikeAuthFailure(g.Message) {
			return true
		}
	}
	return false
}
