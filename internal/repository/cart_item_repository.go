package repository

import (
	"context"

	"ecstore/internal/domain/model"
)

// Productはpreload済みで返す
type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	// 無ければquantity=1で仮作成する。createdは新規作成かどうか
	GetOrCreate(ctx context.Context, cartID int64, productID int64) (item model.CartItem, created bool, err error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}
