package repository

import (
	"context"

	"ecstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	// usernameからユーザーを1件取得する。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// 管理者用の一覧
	List(ctx context.Context, limit int, offset int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error
	// 残高が足りるときだけ減らす
	DebitCreditsIfEnough(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
}
