// Package submit converts a wishlist into a Shopify draft order.
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const lockScope = "submission-in-flight"

type wishlistReader interface {
	Get(ctx context.Context, owner wishlist.Owner, id uuid.UUID) (*models.Wishlist, error)
}

type ledger interface {
	Create(ctx context.Context, input submissions.NewSubmission) (*models.Submission, error)
	Resolve(ctx context.Context, res submissions.Resolution) (*models.Submission, error)
	LatestFor(ctx context.Context, shopID, wishlistID, customerID uuid.UUID) (*models.Submission, error)
}

type currencyRules interface {
	Lookup(ctx context.Context, shopID uuid.UUID, country string) (string, error)
}

type orderGateway interface {
	CreatePendingOrder(ctx context.Context, shop string, input gateway.PendingOrderInput) (gateway.CreateOutcome, error)
	FindByTag(ctx context.Context, shop, tag string) (string, error)
	FetchCustomerAddress(ctx context.Context, shop, customerGID string) (*gateway.MailingAddress, error)
}

// SubmitInput names the wishlist and the (shop, customer) that owns it. Admin conversions pass
// the owning customer and SubmissionSourceAdmin.
type SubmitInput struct {
	WishlistID  uuid.UUID
	Shop        *models.Shop
	Customer    *models.Customer
	Note        string
	CountryCode string
	Source      enums.SubmissionSource
}

// Result is the submission the caller should report. Existing is set when a recent or
// in-flight submission was returned instead of starting a new one.
type Result struct {
	Submission *models.Submission
	Existing   bool
}

// Service runs the submission pipeline.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*Result, error)
}

// ServiceParams groups the orchestrator's collaborators. Locker and Metrics are optional.
type ServiceParams struct {
	Config    config.SubmissionConfig
	Wishlists wishlistReader
	Ledger    ledger
	Rules     currencyRules
	Gateway   orderGateway
	Locker    redis.Locker
	Metrics   *metrics.SubmissionMetrics
	Logger    *logger.Logger
}

type service struct {
	cfg       config.SubmissionConfig
	wishlists wishlistReader
	ledger    ledger
	rules     currencyRules
	gateway   orderGateway
	locker    redis.Locker
	metrics   *metrics.SubmissionMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Wishlists == nil:
		return nil, fmt.Errorf("wishlist service required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("submission ledger required")
	case params.Rules == nil:
		return nil, fmt.Errorf("money rules required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("order gateway required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cfg:       params.Config,
		wishlists: params.Wishlists,
		ledger:    params.Ledger,
		rules:     params.Rules,
		gateway:   params.Gateway,
		locker:    params.Locker,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// plan is the state of one submission once its ledger row exists.
type plan struct {
	source            enums.SubmissionSource
	shop              *models.Shop
	customerGID       string
	wishlist          *models.Wishlist
	submission        *models.Submission
	requestedCurrency string
	fallbackCurrency  string
	note              string
	tag               string
	attempted         []string
	resolved          bool
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*Result, error) {
	if input.Shop == nil || input.Customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop and customer are required")
	}
	source := input.Source
	if source == "" {
		source = enums.SubmissionSourceCustomer
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid submission source")
	}
	ctx = s.logg.WithShop(ctx, input.Shop.ShopDomain)
	ctx = s.logg.WithCustomerID(ctx, input.Customer.ID.String())

	wl, err := s.wishlists.Get(ctx, wishlist.Owner{ShopID: input.Shop.ID, CustomerID: input.Customer.ID}, input.WishlistID)
	if err != nil {
		return nil, err
	}
	if len(wl.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyWishlist, "wishlist is empty")
	}
	country, err := NormalizeCountry(input.CountryCode)
	if err != nil {
		return nil, err
	}

	release, existing, err := s.guard(ctx, input.Shop.ID, wl.ID, input.Customer.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	if existing != nil {
		return &Result{Submission: existing, Existing: true}, nil
	}

	requested, err := s.rules.Lookup(ctx, input.Shop.ID, country)
	if err != nil {
		return nil, err
	}
	fallback := ""
	if input.Shop.CurrencyCode != nil {
		fallback = strings.ToUpper(strings.TrimSpace(*input.Shop.CurrencyCode))
	}

	started := s.now()
	sub, err := s.ledger.Create(ctx, submissions.NewSubmission{
		ShopID:            input.Shop.ID,
		WishlistID:        wl.ID,
		CustomerID:        input.Customer.ID,
		Source:            source,
		CountryCode:       country,
		RequestedCurrency: requested,
		Note:              strings.TrimSpace(input.Note),
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithSubmissionID(ctx, sub.ID.String())

	p := &plan{
		source:            source,
		shop:              input.Shop,
		customerGID:       identity.CustomerGID(input.Customer.ShopifyCustomerID),
		wishlist:          wl,
		submission:        sub,
		requestedCurrency: requested,
		fallbackCurrency:  fallback,
		tag:               submissions.MarkerTag(sub.ID),
		note: buildNote(noteInput{
			Admin:             source == enums.SubmissionSourceAdmin,
			WishlistID:        wl.ID,
			WishlistName:      wl.Name,
			SubmissionID:      sub.ID,
			Country:           country,
			RequestedCurrency: requested,
			CustomerNote:      input.Note,
		}),
	}

	result, err := s.run(ctx, p)
	status := enums.SubmissionStatusFailed
	if result != nil && result.Submission != nil {
		status = result.Submission.Status
	}
	s.metrics.ObserveSubmission(source.String(), status.String(), s.now().Sub(started))
	return result, err
}

// guard takes the in-flight lock and applies the recent-submission window. The returned
// release func is always safe to call.
func (s *service) guard(ctx context.Context, shopID, wishlistID, customerID uuid.UUID) (func(), *models.Submission, error) {
	release := func() {}
	if s.locker != nil {
		key := s.locker.LockKey(lockScope, wishlistID.String(), customerID.String())
		token := uuid.NewString()
		acquired, err := s.locker.AcquireLock(ctx, key, token, s.cfg.InFlightLockTTL)
		switch {
		case err != nil:
			s.logg.Warn(ctx, "submission lock unavailable, using window check only: "+err.Error())
		case !acquired:
			latest, err := s.ledger.LatestFor(ctx, shopID, wishlistID, customerID)
			if err != nil {
				return release, nil, err
			}
			if !s.replayable(latest) {
				return release, nil, pkgerrors.New(pkgerrors.CodeConflict, "submission already in progress")
			}
			return release, latest, nil
		default:
			release = func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					s.logg.Warn(ctx, "release submission lock: "+err.Error())
				}
			}
		}
	}

	latest, err := s.ledger.LatestFor(ctx, shopID, wishlistID, customerID)
	if err != nil {
		release()
		return func() {}, nil, err
	}
	if s.replayable(latest) {
		return release, latest, nil
	}
	return release, nil, nil
}

// replayable reports whether latest is recent and live enough to stand in for a new submission.
func (s *service) replayable(latest *models.Submission) bool {
	if latest == nil || s.now().Sub(latest.CreatedAt) >= s.cfg.IdempotencyWindow {
		return false
	}
	return latest.Status == enums.SubmissionStatusQueued || latest.Status == enums.SubmissionStatusCreated
}

// run is the remote phase. Every exit, panics included, resolves the ledger row once.
func (s *service) run(ctx context.Context, p *plan) (result *Result, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.logg.Error(ctx, "submission pipeline panicked", fmt.Errorf("panic: %v", r))
		if !p.resolved {
			errs := shopify.Errors{GQLErrors: []shopify.GraphQLError{shopify.GQLErrorf("INTERNAL_ERROR", "submission pipeline panicked")}}
			if _, resolveErr := s.resolve(ctx, p, submissions.Resolution{Status: enums.SubmissionStatusFailed, Errors: errs.Record()}); resolveErr != nil {
				s.logg.Error(ctx, "resolve panicked submission", resolveErr)
			}
		}
		result = nil
		err = pkgerrors.New(pkgerrors.CodeInternal, "submission failed unexpectedly")
	}()

	address, err := s.gateway.FetchCustomerAddress(ctx, p.shop.ShopDomain, p.customerGID)
	if err != nil {
		if gateway.IsAbort(err) {
			return nil, s.abort(ctx, p, err)
		}
		s.logg.Warn(ctx, "customer address lookup failed, using default address: "+err.Error())
		address = nil
	}

	input := gateway.PendingOrderInput{
		CustomerGID:               p.customerGID,
		LineItems:                 lineItems(p.wishlist.Items),
		Note:                      p.note,
		Tags:                      []string{p.tag},
		PresentmentCurrency:       p.requestedCurrency,
		ShippingAddress:           address,
		BillingAddress:            address,
		UseCustomerDefaultAddress: address == nil,
	}

	first, err := s.attempt(ctx, p, input)
	if err != nil {
		return nil, s.abort(ctx, p, err)
	}
	if first.orderID != "" {
		return s.succeed(ctx, p, input, first, false)
	}
	failures := first.outcome.Errors

	if p.requestedCurrency != "" && currencyRejected(failures.Text()) {
		s.logg.Warn(ctx, fmt.Sprintf("presentment currency %s rejected, retrying with fallback", p.requestedCurrency))
		retry := input
		retry.PresentmentCurrency = p.fallbackCurrency
		retry.Note = withFallbackMarker(p.note, p.requestedCurrency, p.fallbackCurrency)
		second, err := s.attempt(ctx, p, retry)
		if err != nil {
			return nil, s.abort(ctx, p, err)
		}
		if second.orderID != "" {
			return s.succeed(ctx, p, retry, second, true)
		}
		failures = failures.Merge(second.outcome.Errors)
		return nil, s.fail(ctx, p, retry, failures, true)
	}
	return nil, s.fail(ctx, p, input, failures, false)
}

type attemptResult struct {
	outcome   gateway.CreateOutcome
	orderID   string
	recovered bool
}

// attempt creates the draft order and, when no id came back, looks for it by marker tag.
// The error is set only for abort conditions.
func (s *service) attempt(ctx context.Context, p *plan, input gateway.PendingOrderInput) (attemptResult, error) {
	p.attempted = append(p.attempted, currencyLabel(input.PresentmentCurrency))
	outcome, err := s.gateway.CreatePendingOrder(ctx, p.shop.ShopDomain, input)
	if err != nil {
		return attemptResult{}, err
	}
	if outcome.Succeeded() {
		return attemptResult{outcome: outcome, orderID: outcome.OrderID}, nil
	}
	if shopify.IsAuthError(nil, outcome.Errors) {
		return attemptResult{}, pkgerrors.Wrap(pkgerrors.CodeReauthRequired, outcome.Errors.Err(), "shop must reauthorize the app")
	}

	if outcome.Errors.Empty() {
		outcome.Errors = shopify.Errors{GQLErrors: []shopify.GraphQLError{
			shopify.GQLErrorf("ambiguous_result", "draft order create returned no order and no errors"),
		}}
	}

	found, err := s.gateway.FindByTag(ctx, p.shop.ShopDomain, p.tag)
	if err != nil {
		if gateway.IsAbort(err) {
			return attemptResult{}, err
		}
		s.logg.Warn(ctx, "draft order tag lookup failed: "+err.Error())
		return attemptResult{outcome: outcome}, nil
	}
	if found != "" {
		s.logg.Info(ctx, "draft order recovered by marker tag")
		return attemptResult{outcome: outcome, orderID: found, recovered: true}, nil
	}
	return attemptResult{outcome: outcome}, nil
}

func (s *service) succeed(ctx context.Context, p *plan, input gateway.PendingOrderInput, res attemptResult, usedFallback bool) (*Result, error) {
	resolution := submissions.Resolution{
		Status:               enums.SubmissionStatusCreated,
		RemoteOrderID:        res.orderID,
		AppliedCurrency:      input.PresentmentCurrency,
		UsedFallbackCurrency: usedFallback,
		Note:                 input.Note,
	}
	switch {
	case res.recovered:
		resolution.RecoveredByTag = true
		resolution.Warnings = res.outcome.Errors.Record()
	case res.outcome.Kind == gateway.OutcomeCreatedWithWarnings:
		resolution.Status = enums.SubmissionStatusCreatedWithWarnings
		resolution.Warnings = res.outcome.Warnings.Record()
	}
	if !res.recovered {
		resolution.RemoteOrderName = res.outcome.OrderName
		if total := res.outcome.Total; total != nil {
			amount := total.Amount
			resolution.TotalAmount = &amount
			resolution.TotalCurrency = total.CurrencyCode
			resolution.AppliedCurrency = total.CurrencyCode
		}
	}

	row, err := s.resolve(ctx, p, resolution)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "submission resolved: "+row.Status.String())
	return &Result{Submission: row}, nil
}

func (s *service) fail(ctx context.Context, p *plan, input gateway.PendingOrderInput, failures shopify.Errors, usedFallback bool) error {
	record := failures.Record()
	row, err := s.resolve(ctx, p, submissions.Resolution{
		Status:               enums.SubmissionStatusFailed,
		UsedFallbackCurrency: usedFallback,
		Errors:               record,
		Note:                 input.Note,
	})
	if err != nil {
		return err
	}
	s.logg.Warn(ctx, "draft order create failed: "+failures.Text())

	view := submissions.ToView(row)
	return pkgerrors.Wrap(pkgerrors.CodeRemoteMutation, failures.Err(), "draft order create failed").
		WithDetails(map[string]any{
			"submission": view,
			"errors":     record,
			"currency": map[string]any{
				"requested": p.requestedCurrency,
				"fallback":  p.fallbackCurrency,
				"attempted": p.attempted,
			},
		})
}

// abort marks the row failed and hands the typed credential or auth error back to the caller.
func (s *service) abort(ctx context.Context, p *plan, cause error) error {
	code := pkgerrors.CodeReauthRequired
	if typed := pkgerrors.As(cause); typed != nil {
		code = typed.Code()
	}
	errs := shopify.Errors{GQLErrors: []shopify.GraphQLError{shopify.GQLErrorf(string(code), "%s", cause.Error())}}
	if _, err := s.resolve(ctx, p, submissions.Resolution{Status: enums.SubmissionStatusFailed, Errors: errs.Record()}); err != nil {
		s.logg.Error(ctx, "resolve aborted submission", err)
	}
	if !gateway.IsAbort(cause) {
		return pkgerrors.Wrap(pkgerrors.CodeReauthRequired, cause, "shop must reauthorize the app")
	}
	return cause
}

func (s *service) resolve(ctx context.Context, p *plan, res submissions.Resolution) (*models.Submission, error) {
	res.ShopID = p.shop.ID
	res.SubmissionID = p.submission.ID
	p.resolved = true
	return s.ledger.Resolve(context.WithoutCancel(ctx), res)
}

func lineItems(items []models.WishlistItem) []gateway.LineItem {
	out := make([]gateway.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, gateway.LineItem{
			VariantID: shopify.NormalizeGID(item.VariantID, shopify.KindProductVariant),
			Quantity:  item.Quantity,
		})
	}
	return out
}

func currencyLabel(code string) string {
	if code == "" {
		return "shop_default"
	}
	return code
}
