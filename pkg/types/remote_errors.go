package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GraphQLError is a top-level entry in a GraphQL response "errors" array.
type GraphQLError struct {
	Message    string             `json:"message"`
	Path       []any              `json:"path,omitempty"`
	Extensions GraphQLErrorDetail `json:"extensions,omitempty"`
}

// GraphQLErrorDetail carries the machine readable part of a GraphQL error.
type GraphQLErrorDetail struct {
	Code string `json:"code,omitempty"`
}

// UserError is a field-level validation error returned inside a mutation payload.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
}

// RemoteErrors is the persisted form of a remote failure or warning list.
type RemoteErrors struct {
	GQLErrors  []GraphQLError `json:"gqlErrors"`
	UserErrors []UserError    `json:"userErrors"`
}

// Empty reports whether no error of either kind is present.
func (r *RemoteErrors) Empty() bool {
	return r == nil || (len(r.GQLErrors) == 0 && len(r.UserErrors) == 0)
}

// Value stores the list as a JSON document.
func (r RemoteErrors) Value() (driver.Value, error) {
	if r.GQLErrors == nil {
		r.GQLErrors = []GraphQLError{}
	}
	if r.UserErrors == nil {
		r.UserErrors = []UserError{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan decodes a JSON document written by Value.
func (r *RemoteErrors) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*r = RemoteErrors{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("remote errors: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*r = RemoteErrors{}
		return nil
	}
	return json.Unmarshal(raw, r)
}
