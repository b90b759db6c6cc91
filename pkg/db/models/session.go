package models

import "time"

// Session stores Admin API credentials written by the install flow.
// AccessToken and RefreshToken are sealed at rest.
type Session struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	Shop                  string     `gorm:"column:shop;not null;index:sessions_shop_idx"`
	IsOnline              bool       `gorm:"column:is_online;not null;default:false"`
	Scope                 *string    `gorm:"column:scope"`
	AccessToken           string     `gorm:"column:access_token;not null"`
	ExpiresAt             *time.Time `gorm:"column:expires_at"`
	RefreshToken          *string    `gorm:"column:refresh_token"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refresh_token_expires_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Session) TableName() string { return "sessions" }

// OfflineSessionID is the id the install flow uses for a shop's offline session.
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}
