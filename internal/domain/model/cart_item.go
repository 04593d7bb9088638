package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// (cart, product)で1行。同じ商品は数量を足す
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CartID    int64     `gorm:"not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID int64     `gorm:"not null;uniqueIndex:ux_cart_items_cart_product"`
	Product   Product   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Quantity  int64     `gorm:"not null;check:chk_cart_items_quantity,quantity >= 1"`
	CreatedAt time.Time `gorm:"column:date_added;not null;autoCreateTime"`
}

func (ci CartItem) TotalPrice() decimal.Decimal {
	return ci.Product.Price.Mul(decimal.NewFromInt(ci.Quantity))
}
