package repository

import (
	"context"

	"ecstore/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	// trueなら販売中のみ
	AvailableOnly bool
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	// 注文明細の参照はNULLにしてから削除
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// 在庫の相対更新
type InventoryRepository interface {
	// stock >= qty のときだけ stock = stock - qty
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)
}
