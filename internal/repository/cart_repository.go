package repository

import (
	"context"

	"ecstore/internal/domain/model"
)

type CartRepository interface {
	// 無ければ作る（user_idはunique）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 明細を全削除
	Clear(ctx context.Context, cartID int64) error
}
