package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 作成後に変わるのはis_completedとtransaction_idだけ
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"not null;index"`
	User          *User           `gorm:"foreignKey:UserID"`
	Address       string          `gorm:"type:varchar(255)"`
	City          string          `gorm:"type:varchar(100)"`
	PostalCode    string          `gorm:"type:varchar(20)"`
	Country       string          `gorm:"type:varchar(100)"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	IsCompleted   bool            `gorm:"not null;default:false"`
	TransactionID string          `gorm:"type:varchar(100)"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:date_ordered;not null;autoCreateTime;index"`
}

// 明細から合計を出し直す
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Cost())
	}
	return total
}
