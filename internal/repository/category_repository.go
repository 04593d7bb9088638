package repository

import (
	"context"

	"ecstore/internal/domain/model"
)

type CategoryRepository interface {
	// name順
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id int64) (model.Category, error)
	FindBySlug(ctx context.Context, slug string) (model.Category, error)
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id int64) error
	// excludeIDは自分自身（更新時）
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
}
