package model

import "time"

// 平文は返却時のみ。DBにはsha256のみ保存
type RefreshToken struct {
	ID        string     `gorm:"type:uuid;primaryKey"`
	UserID    int64      `gorm:"not null;index"`
	TokenHash string     `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	UsedAt    *time.Time `gorm:"index"`
	RevokedAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}
