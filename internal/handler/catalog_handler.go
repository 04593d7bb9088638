package handler

import (
	"net/http"

	"ecstore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /categories/ と /products/。書き込みは管理者だけ
type CatalogHandler struct {
	uc *usecase.CatalogUsecase
}

// DI
func NewCatalogHandler(uc *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

type categoryRequest struct {
	Name        *string       `json:"name"`
	Slug        *string       `json:"slug"`
	Description *string       `json:"description"`
	Parent      optionalInt64 `json:"parent"`
}

type productRequest struct {
	Category    *int64           `json:"category"`
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock"`
	IsAvailable *bool            `json:"is_available"`
}

func (r categoryRequest) toInput() usecase.CategoryInput {
	in := usecase.CategoryInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
	}
	if r.Parent.Set {
		if r.Parent.Value == nil {
			in.ClearParent = true
		} else {
			in.ParentID = r.Parent.Value
		}
	}
	return in
}

func (r productRequest) toInput() usecase.ProductInput {
	return usecase.ProductInput{
		CategoryID:  r.Category,
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		IsAvailable: r.IsAvailable,
	}
}

// readOnlyOrAdminはGETを素通しし、書き込みだけ管理者チェックする
func (h *CatalogHandler) RegisterRoutes(api *echo.Group, readOnlyOrAdmin echo.MiddlewareFunc) {
	cg := api.Group("/categories", readOnlyOrAdmin)
	cg.GET("/", h.listCategories)
	cg.POST("/", h.createCategory)
	cg.GET("/:id/", h.getCategory)
	cg.PUT("/:id/", h.updateCategory)
	cg.PATCH("/:id/", h.patchCategory)
	cg.DELETE("/:id/", h.deleteCategory)

	pg := api.Group("/products", readOnlyOrAdmin)
	pg.GET("/", h.listProducts)
	pg.POST("/", h.createProduct)
	pg.GET("/:id/", h.getProduct)
	pg.PUT("/:id/", h.updateProduct)
	pg.PATCH("/:id/", h.patchProduct)
	pg.DELETE("/:id/", h.deleteProduct)
}

// ---- categories ----

func (h *CatalogHandler) listCategories(c echo.Context) error {
	out, err := h.uc.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) getCategory(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) createCategory(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateCategory(c.Request().Context(), actorID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CatalogHandler) updateCategory(c echo.Context) error {
	return h.saveCategory(c, false)
}

func (h *CatalogHandler) patchCategory(c echo.Context) error {
	return h.saveCategory(c, true)
}

func (h *CatalogHandler) saveCategory(c echo.Context, partial bool) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateCategory(c.Request().Context(), actorID, id, req.toInput(), partial)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) deleteCategory(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.uc.DeleteCategory(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- products ----

func (h *CatalogHandler) listProducts(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) createProduct(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateProduct(c.Request().Context(), actorID, req.toInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CatalogHandler) updateProduct(c echo.Context) error {
	return h.saveProduct(c, false)
}

func (h *CatalogHandler) patchProduct(c echo.Context) error {
	return h.saveProduct(c, true)
}

func (h *CatalogHandler) saveProduct(c echo.Context, partial bool) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateProduct(c.Request().Context(), actorID, id, req.toInput(), partial)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) deleteProduct(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), actorID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
