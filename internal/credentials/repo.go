package credentials

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wishlist-backend/internal/repo"
	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
)

// Repository reads and rotates offline sessions.
type Repository struct {
	repo.Base
}

// NewRepository binds a session repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindOffline returns the shop's offline session, or nil when the shop has none.
// Online (per-user) sessions are never returned.
func (r *Repository) FindOffline(ctx context.Context, shop string) (*models.Session, error) {
	var session models.Session
	err := r.DB(ctx).
		Where("shop = ? AND is_online = ?", shop, false).
		Order("updated_at DESC").
		First(&session).Error
	if err != nil {
		if repo.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Rotation is a refreshed token pair, already sealed.
type Rotation struct {
	AccessToken           string
	ExpiresAt             *time.Time
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
}

// Rotate overwrites the session's tokens.
func (r *Repository) Rotate(ctx context.Context, sessionID string, rot Rotation) error {
	return r.DB(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"access_token":             rot.AccessToken,
			"expires_at":               rot.ExpiresAt,
			"refresh_token":            rot.RefreshToken,
			"refresh_token_expires_at": rot.RefreshTokenExpiresAt,
			"updated_at":               time.Now().UTC(),
		}).Error
}

// SaveOffline upserts the shop's offline session. The install flow owns this write; the
// service uses it for operator tooling and tests.
func (r *Repository) SaveOffline(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = models.OfflineSessionID(session.Shop)
	}
	session.IsOnline = false
	return r.DB(ctx).Save(session).Error
}
