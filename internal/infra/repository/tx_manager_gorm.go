package repository

import (
	"context"
	"fmt"
	"time"

	"ecstore/internal/logger"
	repo "ecstore/internal/repository"

	"gorm.io/gorm"
)

// 行ロック待ちの上限（在庫・カートの同時更新）
const defaultLockTimeout = 5 * time.Second

// tx付きのDBから作ったrepo一式
type txRepos struct {
	tx    *gorm.DB
	carts *CartGormRepository
}

func newTxRepos(tx *gorm.DB) *txRepos {
	return &txRepos{tx: tx, carts: NewCartGormRepository(tx)}
}

func (r *txRepos) Orders() repo.OrderRepository         { return NewOrderGormRepository(r.tx) }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return NewOrderItemGormRepository(r.tx) }
func (r *txRepos) Carts() repo.CartRepository           { return r.carts }
func (r *txRepos) CartItems() repo.CartItemRepository   { return r.carts }
func (r *txRepos) Inventory() repo.InventoryRepository  { return NewInventoryGormRepository(r.tx) }
func (r *txRepos) Products() repo.ProductRepository     { return NewProductGormRepository(r.tx) }
func (r *txRepos) Users() repo.UserRepository           { return NewUserGormRepository(r.tx) }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return NewAuditLogGormRepository(r.tx) }

type TxManagerGorm struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db, lockTimeout: defaultLockTimeout}
}

// fnがerrorを返したら全部rollback
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tm.lockTimeout > 0 {
			// SET LOCALはこのtxの中だけ有効
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tm.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock_timeout: %w", err)
			}
		}
		return fn(newTxRepos(tx))
	})
	if err != nil {
		logger.FromCtx(ctx).Debug().Err(err).Msg("transaction rolled back")
	}
	return err
}
