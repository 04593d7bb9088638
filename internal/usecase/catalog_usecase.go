package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecstore/internal/domain/model"
	"ecstore/internal/logger"
	repo "ecstore/internal/repository"
	"ecstore/internal/slug"

	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	// 空のslugになったときの代わり
	fallbackCategorySlug = "category"
	fallbackProductSlug  = "product"
)

// decimal(10,2)に収まる上限
var maxPrice = decimal.New(1, 8)

type CatalogUsecase struct {
	categories repo.CategoryRepository
	products   repo.ProductRepository
	audit      repo.AuditLogRepository
	cache      ProductCache
	clock      Clock
}

// DI
func NewCatalogUsecase(
	categories repo.CategoryRepository,
	products repo.ProductRepository,
	audit repo.AuditLogRepository,
	cache ProductCache,
) *CatalogUsecase {
	return &CatalogUsecase{
		categories: categories,
		products:   products,
		audit:      audit,
		cache:      cache,
		clock:      realClock{},
	}
}

type CategoryOutput struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Parent        *int64    `json:"parent"`
	Subcategories []int64   `json:"subcategories"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// nilのフィールドは変更しない（PATCH）
type CategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
	ParentID    *int64
	// trueならparentをnullにする
	ClearParent bool
}

type ProductOutput struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int64           `json:"stock"`
	IsAvailable  bool            `json:"is_available"`
	Category     int64           `json:"category"`
	CategoryName string          `json:"category_name"`
	DateAdded    time.Time       `json:"date_added"`
	DateUpdated  time.Time       `json:"date_updated"`
}

type ProductInput struct {
	CategoryID  *int64
	Name        *string
	Slug        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int64
	IsAvailable *bool
}

// GET /products の入力
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ---- Category ----

func (u *CatalogUsecase) ListCategories(ctx context.Context) ([]CategoryOutput, error) {
	cats, err := u.categories.List(ctx)
	if err != nil {
		return []CategoryOutput{}, internalError()
	}
	outs := make([]CategoryOutput, 0, len(cats))
	for _, c := range cats {
		outs = append(outs, toCategoryOutput(c))
	}
	return outs, nil
}

func (u *CatalogUsecase) GetCategory(ctx context.Context, id int64) (CategoryOutput, error) {
	c, err := u.findCategory(ctx, id)
	if err != nil {
		return CategoryOutput{}, err
	}
	return toCategoryOutput(c), nil
}

func (u *CatalogUsecase) CreateCategory(ctx context.Context, actorID int64, in CategoryInput) (CategoryOutput, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return CategoryOutput{}, validationError("name: This field is required.")
	}

	c := model.Category{}
	if err := u.applyCategoryInput(ctx, &c, in); err != nil {
		return CategoryOutput{}, err
	}
	if err := u.categories.Create(ctx, &c); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return CategoryOutput{}, conflict("A category with this name or slug already exists.")
		}
		return CategoryOutput{}, internalError()
	}

	u.recordAudit(ctx, actorID, model.AuditActionCreate, model.AuditResourceCategory, c.ID, nil, c)
	return toCategoryOutput(c), nil
}

func (u *CatalogUsecase) UpdateCategory(ctx context.Context, actorID int64, id int64, in CategoryInput, partial bool) (CategoryOutput, error) {
	if !partial && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		return CategoryOutput{}, validationError("name: This field is required.")
	}

	c, err := u.findCategory(ctx, id)
	if err != nil {
		return CategoryOutput{}, err
	}
	before := c

	if err := u.applyCategoryInput(ctx, &c, in); err != nil {
		return CategoryOutput{}, err
	}
	if err := u.categories.Update(ctx, &c); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CategoryOutput{}, notFound()
		}
		if errors.Is(err, repo.ErrConflict) {
			return CategoryOutput{}, conflict("A category with this name or slug already exists.")
		}
		return CategoryOutput{}, internalError()
	}

	updated, err := u.findCategory(ctx, id)
	if err != nil {
		return CategoryOutput{}, err
	}
	u.recordAudit(ctx, actorID, model.AuditActionUpdate, model.AuditResourceCategory, id, before, updated)
	return toCategoryOutput(updated), nil
}

// サブカテゴリと商品も消える
func (u *CatalogUsecase) DeleteCategory(ctx context.Context, actorID int64, id int64) error {
	c, err := u.findCategory(ctx, id)
	if err != nil {
		return err
	}
	if err := u.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound()
		}
		return internalError()
	}
	u.recordAudit(ctx, actorID, model.AuditActionDelete, model.AuditResourceCategory, id, c, nil)
	return nil
}

func (u *CatalogUsecase) findCategory(ctx context.Context, id int64) (model.Category, error) {
	if id <= 0 {
		return model.Category{}, notFound()
	}
	c, err := u.categories.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Category{}, notFound()
	}
	if err != nil {
		return model.Category{}, internalError()
	}
	return c, nil
}

func (u *CatalogUsecase) applyCategoryInput(ctx context.Context, c *model.Category, in CategoryInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("name: This field may not be blank.")
		}
		if len(name) > 255 {
			return validationError("name: Ensure this field has no more than 255 characters.")
		}
		taken, err := u.categories.NameExists(ctx, name, c.ID)
		if err != nil {
			return internalError()
		}
		if taken {
			return validationError("name: category with this name already exists.")
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}

	switch {
	case in.ClearParent:
		c.ParentID = nil
	case in.ParentID != nil:
		if c.ID != 0 && *in.ParentID == c.ID {
			return validationError("parent: A category cannot be its own parent.")
		}
		if _, err := u.categories.FindByID(ctx, *in.ParentID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return validationError(fmt.Sprintf("parent: Invalid pk \"%d\" - object does not exist.", *in.ParentID))
			}
			return internalError()
		}
		pid := *in.ParentID
		c.ParentID = &pid
	}

	s, err := u.resolveSlug(ctx, in.Slug, c.Slug, c.Name, fallbackCategorySlug, c.ID, u.categories.SlugExists)
	if err != nil {
		return err
	}
	c.Slug = s
	return nil
}

// ---- Product ----

func (u *CatalogUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = defaultPageLimit
	}
	if in.Page < 1 {
		return ProductListOutput{}, validationError("page: Invalid page.")
	}
	if in.Limit < 1 || in.Limit > maxPageLimit {
		return ProductListOutput{}, validationError(fmt.Sprintf("limit: Ensure this value is between 1 and %d.", maxPageLimit))
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, validationError("q: Ensure this field has no more than 100 characters.")
	}

	empty := ProductListOutput{Items: []ProductOutput{}, Total: 0, Page: in.Page, Limit: in.Limit}

	q := repo.ProductListQuery{
		Page:          in.Page,
		Limit:         in.Limit,
		Q:             strings.TrimSpace(in.Q),
		AvailableOnly: true,
	}

	// category は id でも slug でもよい
	if c := strings.TrimSpace(in.Category); c != "" {
		if id, err := strconv.ParseInt(c, 10, 64); err == nil {
			q.CategoryID = &id
		} else {
			cat, err := u.categories.FindBySlug(ctx, c)
			if errors.Is(err, repo.ErrNotFound) {
				return empty, nil
			}
			if err != nil {
				return ProductListOutput{}, internalError()
			}
			q.CategoryID = &cat.ID
		}
	}

	items, total, err := u.products.List(ctx, q)
	if err != nil {
		return ProductListOutput{}, internalError()
	}

	outs := make([]ProductOutput, 0, len(items))
	for _, p := range items {
		outs = append(outs, toProductOutput(p))
	}
	return ProductListOutput{Items: outs, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

// GetProduct は販売停止中の商品も返す。キャッシュがあれば使う
func (u *CatalogUsecase) GetProduct(ctx context.Context, id int64) (ProductOutput, error) {
	if id <= 0 {
		return ProductOutput{}, notFound()
	}
	log := logger.FromCtx(ctx)

	if u.cache != nil {
		p, hit, err := u.cache.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("product_id", id).Msg("product cache get failed")
		} else if hit {
			return toProductOutput(p), nil
		}
	}

	p, err := u.products.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, notFound()
	}
	if err != nil {
		return ProductOutput{}, internalError()
	}

	if u.cache != nil {
		if err := u.cache.Set(ctx, p); err != nil {
			log.Warn().Err(err).Int64("product_id", id).Msg("product cache set failed")
		}
	}
	return toProductOutput(p), nil
}

func (u *CatalogUsecase) CreateProduct(ctx context.Context, actorID int64, in ProductInput) (ProductOutput, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return ProductOutput{}, validationError("name: This field is required.")
	}
	if in.CategoryID == nil {
		return ProductOutput{}, validationError("category: This field is required.")
	}
	if in.Price == nil {
		return ProductOutput{}, validationError("price: This field is required.")
	}

	p := model.Product{IsAvailable: true}
	if err := u.applyProductInput(ctx, &p, in); err != nil {
		return ProductOutput{}, err
	}
	if err := u.products.Create(ctx, &p); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return ProductOutput{}, conflict("A product with this slug already exists.")
		}
		return ProductOutput{}, internalError()
	}

	created, err := u.products.FindByID(ctx, p.ID)
	if err != nil {
		return ProductOutput{}, internalError()
	}
	u.recordAudit(ctx, actorID, model.AuditActionCreate, model.AuditResourceProduct, p.ID, nil, created)
	return toProductOutput(created), nil
}

func (u *CatalogUsecase) UpdateProduct(ctx context.Context, actorID int64, id int64, in ProductInput, partial bool) (ProductOutput, error) {
	if !partial {
		if in.Name == nil || in.CategoryID == nil || in.Price == nil {
			return ProductOutput{}, validationError("name, category and price are required.")
		}
	}

	p, err := u.findProduct(ctx, id)
	if err != nil {
		return ProductOutput{}, err
	}
	before := p

	if err := u.applyProductInput(ctx, &p, in); err != nil {
		return ProductOutput{}, err
	}
	if err := u.products.Update(ctx, &p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ProductOutput{}, notFound()
		}
		if errors.Is(err, repo.ErrConflict) {
			return ProductOutput{}, conflict("A product with this slug already exists.")
		}
		return ProductOutput{}, internalError()
	}
	u.invalidate(ctx, id)

	updated, err := u.findProduct(ctx, id)
	if err != nil {
		return ProductOutput{}, err
	}
	u.recordAudit(ctx, actorID, model.AuditActionUpdate, model.AuditResourceProduct, id, before, updated)
	return toProductOutput(updated), nil
}

// 注文明細は残る（productはnull）。カート明細は消える
func (u *CatalogUsecase) DeleteProduct(ctx context.Context, actorID int64, id int64) error {
	p, err := u.findProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := u.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound()
		}
		return internalError()
	}
	u.invalidate(ctx, id)
	u.recordAudit(ctx, actorID, model.AuditActionDelete, model.AuditResourceProduct, id, p, nil)
	return nil
}

func (u *CatalogUsecase) findProduct(ctx context.Context, id int64) (model.Product, error) {
	if id <= 0 {
		return model.Product{}, notFound()
	}
	p, err := u.products.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound()
	}
	if err != nil {
		return model.Product{}, internalError()
	}
	return p, nil
}

func (u *CatalogUsecase) applyProductInput(ctx context.Context, p *model.Product, in ProductInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return validationError("name: This field may not be blank.")
		}
		if len(name) > 255 {
			return validationError("name: Ensure this field has no more than 255 characters.")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return err
		}
		p.Price = *in.Price
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return validationError("stock: Ensure this value is greater than or equal to 0.")
		}
		p.Stock = *in.Stock
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	if in.CategoryID != nil {
		c, err := u.categories.FindByID(ctx, *in.CategoryID)
		if errors.Is(err, repo.ErrNotFound) {
			return validationError(fmt.Sprintf("category: Invalid pk \"%d\" - object does not exist.", *in.CategoryID))
		}
		if err != nil {
			return internalError()
		}
		p.CategoryID = c.ID
		p.Category = &c
	}

	s, err := u.resolveSlug(ctx, in.Slug, p.Slug, p.Name, fallbackProductSlug, p.ID, u.products.SlugExists)
	if err != nil {
		return err
	}
	p.Slug = s
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return validationError("price: Ensure this value is greater than or equal to 0.")
	}
	if !price.Equal(price.Round(2)) {
		return validationError("price: Ensure that there are no more than 2 decimal places.")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return validationError("price: Ensure that there are no more than 10 digits in total.")
	}
	return nil
}

// 指定slugは重複なら409。未指定で既存が無ければ名前から作る
func (u *CatalogUsecase) resolveSlug(
	ctx context.Context,
	requested *string,
	current string,
	name string,
	fallback string,
	selfID int64,
	exists func(ctx context.Context, slug string, excludeID int64) (bool, error),
) (string, error) {
	if requested != nil && strings.TrimSpace(*requested) != "" {
		s := slug.Slugify(*requested)
		if s == "" {
			return "", validationError("slug: Enter a valid slug.")
		}
		taken, err := exists(ctx, s, selfID)
		if err != nil {
			return "", internalError()
		}
		if taken {
			return "", conflict(fmt.Sprintf("slug: \"%s\" is already in use.", s))
		}
		return s, nil
	}
	if current != "" {
		return current, nil
	}

	base := slug.Slugify(name)
	if base == "" {
		base = fallback
	}
	s, err := slug.GenerateUnique(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return exists(ctx, candidate, selfID)
	})
	if err != nil {
		if errors.Is(err, slug.ErrExhausted) {
			return "", conflict("Could not generate a unique slug.")
		}
		return "", internalError()
	}
	return s, nil
}

func (u *CatalogUsecase) invalidate(ctx context.Context, ids ...int64) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Invalidate(ctx, ids...); err != nil {
		logger.FromCtx(ctx).Warn().Err(err).Ints64("product_ids", ids).Msg("product cache invalidate failed")
	}
}

// 監査ログの失敗で操作自体は失敗させない
func (u *CatalogUsecase) recordAudit(ctx context.Context, actorID int64, action model.AuditAction, rt model.AuditResourceType, id int64, before, after interface{}) {
	if u.audit == nil {
		return
	}
	entry := model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: rt,
		ResourceID:   id,
		BeforeJSON:   toAuditJSON(before),
		AfterJSON:    toAuditJSON(after),
		CreatedAt:    u.clock.Now(),
	}
	if err := u.audit.Create(ctx, entry); err != nil {
		logger.FromCtx(ctx).Warn().Err(err).Str("resource_type", string(rt)).Int64("resource_id", id).Msg("audit log write failed")
	}
}

func toAuditJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func toCategoryOutput(c model.Category) CategoryOutput {
	subs := make([]int64, 0, len(c.Subcategories))
	for _, s := range c.Subcategories {
		subs = append(subs, s.ID)
	}
	return CategoryOutput{
		ID:            c.ID,
		Name:          c.Name,
		Slug:          c.Slug,
		Description:   c.Description,
		Parent:        c.ParentID,
		Subcategories: subs,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toProductOutput(p model.Product) ProductOutput {
	out := ProductOutput{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		IsAvailable: p.IsAvailable,
		Category:    p.CategoryID,
		DateAdded:   p.CreatedAt,
		DateUpdated: p.UpdatedAt,
	}
	if p.Category != nil {
		out.CategoryName = p.Category.Name
	}
	return out
}
