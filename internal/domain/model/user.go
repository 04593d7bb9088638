package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	Username     string          `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string          `gorm:"type:varchar(254);not null"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	FirstName    string          `gorm:"type:varchar(150)"`
	LastName     string          `gorm:"type:varchar(150)"`
	PhoneNumber  string          `gorm:"type:varchar(20)"`
	Address      string          `gorm:"type:varchar(255)"`
	City         string          `gorm:"type:varchar(100)"`
	PostalCode   string          `gorm:"type:varchar(20)"`
	Country      string          `gorm:"type:varchar(100)"`
	Credits      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:100.00"`
	Role         Role            `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int             `gorm:"not null;default:0"`
	IsActive     bool            `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
