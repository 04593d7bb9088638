package repository

import (
	"context"

	"ecstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	// 明細とユーザーをpreloadして返す
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 新しい順
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	MarkCompleted(ctx context.Context, orderID int64, transactionID string) error
	// 途中失敗時の後始末
	Delete(ctx context.Context, orderID int64) error
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
