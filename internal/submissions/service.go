package submissions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	"github.com/angelmondragon/wishlist-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/wishlist-backend/pkg/pagination"
	"github.com/angelmondragon/wishlist-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Ledger is the durable record of wishlist submissions.
type Ledger interface {
	Create(ctx context.Context, input NewSubmission) (*models.Submission, error)
	// Resolve moves a queued submission to its terminal status and queues submission_resolved
	// in the same transaction.
	Resolve(ctx context.Context, res Resolution) (*models.Submission, error)
	// LatestFor returns nil when the customer never submitted the wishlist.
	LatestFor(ctx context.Context, shopID, wishlistID, customerID uuid.UUID) (*models.Submission, error)
	GetForCustomer(ctx context.Context, shopID, customerID, id uuid.UUID) (*models.Submission, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, filter ListFilter) (pagination.Page[models.Submission], error)
	ListForCustomer(ctx context.Context, shopID, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.Submission], error)
	AttachRemoteOrder(ctx context.Context, shopID, id uuid.UUID, remoteOrderID string) (*AttachResult, error)
	// AbandonQueued fails rows left queued since before cutoff, e.g. by a crashed process.
	AbandonQueued(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// AttachResult reports how a webhook reconcile changed the row.
type AttachResult struct {
	Submission     *models.Submission
	PreviousStatus enums.SubmissionStatus
	Changed        bool
}

type ledger struct {
	repo    *Repository
	tx      txRunner
	emitter eventEmitter
	now     func() time.Time
}

func NewLedger(repository *Repository, tx txRunner, emitter eventEmitter) (Ledger, error) {
	if repository == nil {
		return nil, fmt.Errorf("submission repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &ledger{repo: repository, tx: tx, emitter: emitter, now: time.Now}, nil
}

func (l *ledger) Create(ctx context.Context, input NewSubmission) (*models.Submission, error) {
	if input.ShopID == uuid.Nil || input.WishlistID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop, wishlist and customer are required")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid submission source")
	}
	id := uuid.New()
	row := &models.Submission{
		ID:                id,
		ShopID:            input.ShopID,
		WishlistID:        input.WishlistID,
		CustomerID:        input.CustomerID,
		Status:            enums.SubmissionStatusQueued,
		Source:            input.Source,
		MarkerTag:         MarkerTag(id),
		CountryCode:       optional(input.CountryCode),
		RequestedCurrency: optional(input.RequestedCurrency),
		Note:              optional(input.Note),
	}
	if err := l.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create submission")
	}
	return row, nil
}

func (l *ledger) Resolve(ctx context.Context, res Resolution) (*models.Submission, error) {
	if !res.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution requires a terminal status").
			WithDetails(map[string]any{"status": res.Status})
	}

	updates := map[string]any{
		"status":                 res.Status,
		"used_fallback_currency": res.UsedFallbackCurrency,
		"recovered_by_tag":       res.RecoveredByTag,
		"warnings":               res.Warnings,
		"errors":                 res.Errors,
		"updated_at":             l.now().UTC(),
	}
	if v := optional(res.RemoteOrderID); v != nil {
		updates["remote_order_id"] = *v
	}
	if v := optional(res.RemoteOrderName); v != nil {
		updates["remote_order_name"] = *v
	}
	if v := optional(res.AppliedCurrency); v != nil {
		updates["applied_currency"] = *v
	}
	if res.TotalAmount != nil && res.TotalCurrency != "" {
		updates["total_amount"] = decimal.NewNullDecimal(res.TotalAmount.Round(2))
		updates["total_currency"] = res.TotalCurrency
	}
	if v := optional(res.Note); v != nil {
		updates["note"] = *v
	}

	var resolved *models.Submission
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := l.repo.WithTx(tx)
		affected, err := txRepo.UpdateQueued(ctx, res.ShopID, res.SubmissionID, updates)
		if err != nil {
			return err
		}
		row, err := txRepo.FindByID(ctx, res.ShopID, res.SubmissionID)
		if err != nil {
			if repo.NotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "submission not found")
			}
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "submission already resolved").
				WithDetails(map[string]any{"submissionId": row.ID, "status": row.Status})
		}
		resolved = row
		return l.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionResolved,
			AggregateType: enums.AggregateSubmission,
			AggregateID:   row.ID,
			Actor:         actorFor(row),
			Data: payloads.SubmissionResolvedEvent{
				SubmissionID:         row.ID,
				ShopID:               row.ShopID,
				WishlistID:           row.WishlistID,
				CustomerID:           row.CustomerID,
				Status:               row.Status,
				Source:               row.Source,
				RemoteOrderID:        row.RemoteOrderID,
				AppliedCurrency:      row.AppliedCurrency,
				UsedFallbackCurrency: row.UsedFallbackCurrency,
				RecoveredByTag:       row.RecoveredByTag,
				ResolvedAt:           row.UpdatedAt,
			},
		})
	})
	if err != nil {
		return nil, wrapDependency(err, "resolve submission")
	}
	return resolved, nil
}

func (l *ledger) LatestFor(ctx context.Context, shopID, wishlistID, customerID uuid.UUID) (*models.Submission, error) {
	row, err := l.repo.Latest(ctx, shopID, wishlistID, customerID)
	if err != nil {
		if repo.NotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest submission")
	}
	return row, nil
}

func (l *ledger) GetForCustomer(ctx context.Context, shopID, customerID, id uuid.UUID) (*models.Submission, error) {
	row, err := l.repo.FindForCustomer(ctx, shopID, customerID, id)
	if err != nil {
		if repo.NotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "submission not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load submission")
	}
	return row, nil
}

func (l *ledger) ListForShop(ctx context.Context, shopID uuid.UUID, filter ListFilter) (pagination.Page[models.Submission], error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return pagination.Page[models.Submission]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := l.repo.List(ctx, shopID, filter, cursor, pagination.LimitWithBuffer(filter.Limit))
	if err != nil {
		return pagination.Page[models.Submission]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list submissions")
	}
	return pagination.Trim(rows, filter.Limit, cursorOf), nil
}

func (l *ledger) ListForCustomer(ctx context.Context, shopID, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.Submission], error) {
	return l.ListForShop(ctx, shopID, ListFilter{CustomerID: &customerID, Params: params})
}

// AttachRemoteOrder records the draft order a webhook reported for the submission.
// queued and failed rows are promoted to created; a different remote id is never overwritten.
func (l *ledger) AttachRemoteOrder(ctx context.Context, shopID, id uuid.UUID, remoteOrderID string) (*AttachResult, error) {
	remote := optional(remoteOrderID)
	if remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote order id is required")
	}

	result := &AttachResult{}
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := l.repo.WithTx(tx)
		row, err := txRepo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			if repo.NotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "submission not found")
			}
			return err
		}
		result.Submission = row
		result.PreviousStatus = row.Status

		if row.RemoteOrderID != nil && *row.RemoteOrderID != *remote {
			return nil
		}
		updates := map[string]any{}
		if row.RemoteOrderID == nil {
			updates["remote_order_id"] = *remote
		}
		if row.Status == enums.SubmissionStatusQueued || row.Status == enums.SubmissionStatusFailed {
			updates["status"] = enums.SubmissionStatusCreated
		}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = l.now().UTC()
		if err := txRepo.Update(ctx, shopID, id, updates); err != nil {
			return err
		}
		updated, err := txRepo.FindByID(ctx, shopID, id)
		if err != nil {
			return err
		}
		result.Submission = updated
		result.Changed = true
		return l.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionReconciled,
			AggregateType: enums.AggregateSubmission,
			AggregateID:   updated.ID,
			Actor:         actorFor(updated),
			Data: payloads.SubmissionReconciledEvent{
				SubmissionID:   updated.ID,
				ShopID:         updated.ShopID,
				RemoteOrderID:  *remote,
				PreviousStatus: result.PreviousStatus,
				Status:         updated.Status,
			},
		})
	})
	if err != nil {
		return nil, wrapDependency(err, "attach remote order")
	}
	return result, nil
}

func actorFor(row *models.Submission) *outbox.ActorRef {
	customerID := row.CustomerID
	return &outbox.ActorRef{ShopID: row.ShopID, CustomerID: &customerID, Source: string(row.Source)}
}

const (
	defaultAbandonBatch = 100
	abandonedMessage    = "submission did not complete; please submit again"
)

func (l *ledger) AbandonQueued(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultAbandonBatch
	}
	rows, err := l.repo.ListQueuedBefore(ctx, cutoff.UTC(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list queued submissions")
	}
	abandoned := 0
	for _, row := range rows {
		_, err := l.Resolve(ctx, Resolution{
			ShopID:       row.ShopID,
			SubmissionID: row.ID,
			Status:       enums.SubmissionStatusFailed,
			Errors: &types.RemoteErrors{
				UserErrors: []types.UserError{{Message: abandonedMessage}},
			},
		})
		if err != nil {
			// resolved by its own request in the meantime
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return abandoned, err
		}
		abandoned++
	}
	return abandoned, nil
}

func wrapDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
