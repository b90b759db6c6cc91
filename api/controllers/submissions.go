package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/internal/submit"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/pagination"
)

type submitPayload struct {
	Note        string `json:"note" validate:"max=5000"`
	CountryCode string `json:"countryCode"`
}

type submissionRef struct {
	ID            string                 `json:"id"`
	Status        enums.SubmissionStatus `json:"status"`
	RemoteOrderID *string                `json:"remoteOrderId"`
}

func writeSubmitResult(w http.ResponseWriter, result *submit.Result) {
	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	row := result.Submission
	responses.WriteSuccessStatus(w, status, map[string]any{
		"submission": submissionRef{ID: row.ID.String(), Status: row.Status, RemoteOrderID: row.RemoteOrderID},
	})
}

// SubmitWishlist converts the caller's wishlist into a draft order. 201 for a new submission,
// 200 when a recent or in-flight one is returned instead.
func SubmitWishlist(svc submit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload submitPayload
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Submit(ctx, submit.SubmitInput{
			WishlistID:  id,
			Shop:        principal.Shop,
			Customer:    principal.Customer,
			Note:        strings.TrimSpace(payload.Note),
			CountryCode: payload.CountryCode,
			Source:      enums.SubmissionSourceCustomer,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSubmitResult(w, result)
	}
}

// SubmissionList returns the caller's own submissions, newest first.
func SubmissionList(svc submissions.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "submission ledger unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListForCustomer(ctx, principal.Shop.ID, principal.Customer.ID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, submissionsPage(page))
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

func submissionsPage(page pagination.Page[models.Submission]) map[string]any {
	views := submissions.ViewPage(page)
	body := map[string]any{"submissions": views.Items}
	if views.NextCursor != "" {
		body["nextCursor"] = views.NextCursor
	}
	return body
}
