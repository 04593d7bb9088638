package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 購入時点の価格スナップショット。商品削除後もquantity/priceは残る
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement"`
	OrderID             int64           `gorm:"not null;index"`
	ProductID           *int64          `gorm:"index"`
	Product             *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null"`
	Quantity            int64           `gorm:"not null"`
	PriceAtPurchase     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt           time.Time       `gorm:"column:date_added;not null;autoCreateTime"`
}

func (oi OrderItem) Cost() decimal.Decimal {
	return oi.PriceAtPurchase.Mul(decimal.NewFromInt(oi.Quantity))
}
