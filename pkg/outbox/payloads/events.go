package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/pkg/enums"
)

// SubmissionResolvedEvent is emitted when a submission reaches a terminal status.
type SubmissionResolvedEvent struct {
	SubmissionID         uuid.UUID              `json:"submission_id"`
	ShopID               uuid.UUID              `json:"shop_id"`
	WishlistID           uuid.UUID              `json:"wishlist_id"`
	CustomerID           uuid.UUID              `json:"customer_id"`
	Status               enums.SubmissionStatus `json:"status"`
	Source               enums.SubmissionSource `json:"source"`
	RemoteOrderID        *string                `json:"remote_order_id,omitempty"`
	AppliedCurrency      *string                `json:"applied_currency,omitempty"`
	UsedFallbackCurrency bool                   `json:"used_fallback_currency"`
	RecoveredByTag       bool                   `json:"recovered_by_tag"`
	ResolvedAt           time.Time              `json:"resolved_at"`
}

// SubmissionReconciledEvent is emitted when a webhook attaches a remote order to a submission.
type SubmissionReconciledEvent struct {
	SubmissionID   uuid.UUID              `json:"submission_id"`
	ShopID         uuid.UUID              `json:"shop_id"`
	RemoteOrderID  string                 `json:"remote_order_id"`
	PreviousStatus enums.SubmissionStatus `json:"previous_status"`
	Status         enums.SubmissionStatus `json:"status"`
}

// ShopUninstalledEvent is emitted after the uninstall cascade removed a shop's data.
type ShopUninstalledEvent struct {
	ShopID      uuid.UUID `json:"shop_id"`
	ShopDomain  string    `json:"shop_domain"`
	UninstallAt time.Time `json:"uninstalled_at"`
}
