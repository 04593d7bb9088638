package handler

import (
	"net/http"

	"ecstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cart/ と /cart-items/ のHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  *int64 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int64 `json:"quantity"`
}

func (h *CartHandler) RegisterRoutes(api *echo.Group, authed echo.MiddlewareFunc) {
	api.GET("/cart/", h.getCart, authed)

	g := api.Group("/cart-items", authed)
	g.GET("/", h.listItems)
	g.POST("/", h.addItem)
	g.GET("/:id/", h.getItem)
	g.PUT("/:id/", h.updateItem)
	g.PATCH("/:id/", h.updateItem)
	g.DELETE("/:id/", h.deleteItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) listItems(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	out, err := h.uc.ListItems(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) getItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	itemID, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetItem(c.Request().Context(), userID, itemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 新規なら201、既存に加算なら200
func (h *CartHandler) addItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req AddCartRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	//quantity省略時は1
	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	out, created, err := h.uc.AddItem(c.Request().Context(), userID, usecase.AddCartItemInput{
		ProductID: req.ProductID,
		Quantity:  qty,
	})
	if err != nil {
		return writeError(c, err)
	}

	if created {
		return c.JSON(http.StatusCreated, out)
	}
	return c.JSON(http.StatusOK, out)
}

// quantityが0以下なら削除して204
func (h *CartHandler) updateItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	itemID, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var req UpdateCartItemRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	if req.Quantity == nil {
		return badRequest(c, "quantity: This field is required.")
	}

	out, err := h.uc.UpdateItem(c.Request().Context(), userID, itemID, *req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}
	itemID, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.uc.DeleteItem(c.Request().Context(), userID, itemID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
