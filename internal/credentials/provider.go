package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/wishlist-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/security"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

// RefreshSkew is how close to expiry a token may get before it is refreshed.
const RefreshSkew = 2 * time.Minute

// Credential is a usable Admin API token for one shop.
type Credential struct {
	Shop        string
	AccessToken string
	ExpiresAt   *time.Time
	Refreshed   bool
}

// Provider resolves the offline Admin API credential for a shop.
type Provider interface {
	OfflineCredential(ctx context.Context, shop string) (Credential, error)
}

type sessionStore interface {
	FindOffline(ctx context.Context, shop string) (*models.Session, error)
	Rotate(ctx context.Context, sessionID string, rot Rotation) error
}

type tokenRefresher interface {
	RefreshAccessToken(ctx context.Context, shop, refreshToken string) (*shopify.AccessTokenGrant, error)
}

type provider struct {
	sessions  sessionStore
	refresher tokenRefresher
	sealer    *security.TokenSealer
	logg      *logger.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewProvider builds the offline credential provider.
func NewProvider(sessions sessionStore, refresher tokenRefresher, sealer *security.TokenSealer, logg *logger.Logger) (Provider, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("token refresher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sealer == nil {
		sealer = &security.TokenSealer{}
	}
	return &provider{
		sessions:  sessions,
		refresher: refresher,
		sealer:    sealer,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *provider) OfflineCredential(ctx context.Context, shop string) (Credential, error) {
	shop = strings.TrimSpace(strings.ToLower(shop))
	ctx = p.logg.WithShop(ctx, shop)

	session, err := p.sessions.FindOffline(ctx, shop)
	if err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offline session")
	}
	if session == nil || strings.TrimSpace(session.AccessToken) == "" {
		return Credential{}, missingCredential(shop)
	}

	accessToken, err := p.sealer.Open(session.AccessToken)
	if err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeMissingCredential, err, "offline access token cannot be decrypted")
	}
	refreshToken, err := p.openOptional(session.RefreshToken)
	if err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeReauthRequired, err, "refresh token cannot be decrypted").
			WithDetails(map[string]any{"shop": shop})
	}

	now := p.now()
	current := Credential{Shop: shop, AccessToken: accessToken, ExpiresAt: session.ExpiresAt}

	if refreshToken == "" {
		if session.ExpiresAt != nil && !session.ExpiresAt.After(now) {
			return Credential{}, reauthRequired(shop, "offline access token expired")
		}
		return current, nil
	}
	if session.ExpiresAt != nil && session.ExpiresAt.Sub(now) > RefreshSkew {
		return current, nil
	}

	// concurrent callers share one refresh; the refresh token rotates on use. The shared call
	// must outlive whichever caller started it.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(shop, func() (any, error) {
		return p.refresh(refreshCtx, session, refreshToken)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (p *provider) refresh(ctx context.Context, session *models.Session, refreshToken string) (Credential, error) {
	shop := session.Shop
	if session.RefreshTokenExpiresAt != nil && !session.RefreshTokenExpiresAt.After(p.now()) {
		return Credential{}, reauthRequired(shop, "refresh token expired")
	}

	grant, err := p.refresher.RefreshAccessToken(ctx, shop, refreshToken)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "offline token refresh failed")
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeReauthRequired, err, "offline token refresh failed").
			WithDetails(map[string]any{"shop": shop})
	}

	now := p.now()
	rot := Rotation{}
	if rot.AccessToken, err = p.sealer.Seal(grant.AccessToken); err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal access token")
	}
	if grant.ExpiresIn > 0 {
		exp := now.Add(time.Duration(grant.ExpiresIn) * time.Second)
		rot.ExpiresAt = &exp
	}
	nextRefresh := grant.RefreshToken
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}
	sealedRefresh, err := p.sealer.Seal(nextRefresh)
	if err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal refresh token")
	}
	rot.RefreshToken = &sealedRefresh
	if grant.RefreshTokenExpiresIn > 0 {
		exp := now.Add(time.Duration(grant.RefreshTokenExpiresIn) * time.Second)
		rot.RefreshTokenExpiresAt = &exp
	} else {
		rot.RefreshTokenExpiresAt = session.RefreshTokenExpiresAt
	}

	if err := p.sessions.Rotate(ctx, session.ID, rot); err != nil {
		return Credential{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refreshed session")
	}
	p.logg.Info(ctx, "offline token refreshed")

	return Credential{Shop: shop, AccessToken: grant.AccessToken, ExpiresAt: rot.ExpiresAt, Refreshed: true}, nil
}

func (p *provider) openOptional(value *string) (string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", nil
	}
	return p.sealer.Open(*value)
}

func missingCredential(shop string) error {
	return pkgerrors.New(pkgerrors.CodeMissingCredential, "missing offline access token for shop").
		WithDetails(map[string]any{"shop": shop})
}

func reauthRequired(shop, reason string) error {
	return pkgerrors.New(pkgerrors.CodeReauthRequired, reason).
		WithDetails(map[string]any{"shop": shop, "reauthorize": true})
}
