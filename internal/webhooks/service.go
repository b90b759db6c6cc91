// Package webhooks applies Shopify webhook deliveries to local state.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wishlist-backend/internal/shops"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const (
	TopicDraftOrderCreate = "draft_orders/create"
	TopicDraftOrderUpdate = "draft_orders/update"
	TopicAppUninstalled   = "app/uninstalled"
)

var submissionLine = regexp.MustCompile(`(?i)Submission ID:\s*([0-9a-f-]{32,36})`)

// Delivery is one verified webhook request.
type Delivery struct {
	ID         string
	Topic      string
	ShopDomain string
	Payload    []byte
}

// Result says what a delivery changed. Ignored deliveries are still acknowledged.
type Result struct {
	Topic   string `json:"topic"`
	Action  string `json:"action"`
	Ignored bool   `json:"ignored"`
}

type shopDirectory interface {
	Find(ctx context.Context, domain string) (*models.Shop, error)
	Uninstall(ctx context.Context, domain string) (*shops.UninstallResult, error)
}

type remoteOrderAttacher interface {
	AttachRemoteOrder(ctx context.Context, shopID, id uuid.UUID, remoteOrderID string) (*submissions.AttachResult, error)
}

// Service routes deliveries by topic.
type Service interface {
	Handle(ctx context.Context, delivery Delivery) (*Result, error)
}

type service struct {
	shops  shopDirectory
	ledger remoteOrderAttacher
	logg   *logger.Logger
}

func NewService(shopsSvc shopDirectory, ledger remoteOrderAttacher, logg *logger.Logger) (Service, error) {
	if shopsSvc == nil {
		return nil, fmt.Errorf("shop service required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("submission ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{shops: shopsSvc, ledger: ledger, logg: logg}, nil
}

func (s *service) Handle(ctx context.Context, delivery Delivery) (*Result, error) {
	topic := NormalizeTopic(delivery.Topic)
	ctx = s.logg.WithShop(ctx, shops.NormalizeDomain(delivery.ShopDomain))
	ctx = s.logg.WithField(ctx, "webhook_topic", topic)

	switch topic {
	case TopicDraftOrderCreate, TopicDraftOrderUpdate:
		return s.reconcileDraftOrder(ctx, topic, delivery)
	case TopicAppUninstalled:
		res, err := s.shops.Uninstall(ctx, delivery.ShopDomain)
		if err != nil {
			return nil, err
		}
		return &Result{Topic: topic, Action: "uninstalled", Ignored: res.ShopID == nil}, nil
	default:
		return &Result{Topic: topic, Action: "unhandled_topic", Ignored: true}, nil
	}
}

type draftOrderPayload struct {
	ID             json.RawMessage `json:"id"`
	AdminGraphQLID string          `json:"admin_graphql_api_id"`
	Note           *string         `json:"note"`
}

func (s *service) reconcileDraftOrder(ctx context.Context, topic string, delivery Delivery) (*Result, error) {
	ignored := func(action string) (*Result, error) {
		s.logg.Info(ctx, "draft order webhook ignored: "+action)
		return &Result{Topic: topic, Action: action, Ignored: true}, nil
	}

	var payload draftOrderPayload
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode draft order payload")
	}
	submissionID, ok := SubmissionIDFromNote(payload.Note)
	if !ok {
		return ignored("no_submission_reference")
	}
	remoteID := draftOrderGID(payload)
	if remoteID == "" {
		return ignored("missing_draft_order_id")
	}

	shop, err := s.shops.Find(ctx, delivery.ShopDomain)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return ignored("unknown_shop")
	}

	ctx = s.logg.WithSubmissionID(ctx, submissionID.String())
	res, err := s.ledger.AttachRemoteOrder(ctx, shop.ID, submissionID, remoteID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return ignored("unknown_submission")
		}
		return nil, err
	}
	if !res.Changed {
		return &Result{Topic: topic, Action: "unchanged"}, nil
	}
	s.logg.Info(ctx, fmt.Sprintf("submission reconciled from %s to %s", res.PreviousStatus, res.Submission.Status))
	return &Result{Topic: topic, Action: "reconciled"}, nil
}

// NormalizeTopic maps GraphQL enum topics (DRAFT_ORDERS_CREATE) onto REST topics
// (draft_orders/create).
func NormalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" || strings.Contains(topic, "/") {
		return topic
	}
	idx := strings.LastIndex(topic, "_")
	if idx <= 0 {
		return topic
	}
	return topic[:idx] + "/" + topic[idx+1:]
}

// SubmissionIDFromNote finds the "Submission ID: <id>" line written on every draft order.
func SubmissionIDFromNote(note *string) (uuid.UUID, bool) {
	if note == nil {
		return uuid.Nil, false
	}
	match := submissionLine.FindStringSubmatch(*note)
	if len(match) < 2 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(match[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func draftOrderGID(payload draftOrderPayload) string {
	if gid := strings.TrimSpace(payload.AdminGraphQLID); strings.HasPrefix(gid, "gid://") {
		return gid
	}
	raw := strings.TrimSpace(string(payload.ID))
	if raw == "" || raw == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	return shopify.NormalizeGID(raw, shopify.KindDraftOrder)
}
