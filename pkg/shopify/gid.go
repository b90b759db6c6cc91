package shopify

import (
	"fmt"
	"strconv"
	"strings"
)

const gidPrefix = "gid://shopify/"

// GID resource kinds used by the app.
const (
	KindCustomer       = "Customer"
	KindDraftOrder     = "DraftOrder"
	KindProduct        = "Product"
	KindProductVariant = "ProductVariant"
)

// NormalizeGID returns id as a global id of kind. Numeric ids are wrapped; existing gids
// are kept. Anything else yields "".
func NormalizeGID(id, kind string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, gidPrefix) {
		return id
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ""
	}
	return fmt.Sprintf("%s%s/%s", gidPrefix, kind, id)
}

// LegacyID returns the trailing numeric part of a gid, or id itself when it is not a gid.
func LegacyID(id string) string {
	if !strings.HasPrefix(id, gidPrefix) {
		return id
	}
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}
