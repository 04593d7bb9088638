package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// stockは注文確定時にだけ減る
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID  int64           `gorm:"not null;index" json:"category"`
	Category    *Category       `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	IsAvailable bool            `gorm:"not null;default:true;index" json:"is_available"`
	CreatedAt   time.Time       `gorm:"column:date_added;not null;autoCreateTime;index" json:"date_added"`
	UpdatedAt   time.Time       `gorm:"column:date_updated;not null;autoUpdateTime" json:"date_updated"`
}
