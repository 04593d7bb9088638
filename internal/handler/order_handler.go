package handler

import (
	"net/http"

	"ecstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderCreateRequest struct {
	Address       string `json:"address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	PaymentMethod string `json:"payment_method"`
}

func (h *OrderHandler) RegisterRoutes(api *echo.Group, authed, admin echo.MiddlewareFunc) {
	api.POST("/orders/create/", h.create, authed)
	api.GET("/orders/", h.list, authed)
	api.GET("/orders/:id/", h.detail, authed)
	api.POST("/orders/:id/recalculate/", h.recalculate, admin)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req OrderCreateRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	out, replayed, err := h.uc.CreateOrder(c.Request().Context(), userID, usecase.CreateOrderInput{
		Address:        req.Address,
		City:           req.City,
		PostalCode:     req.PostalCode,
		Country:        req.Country,
		PaymentMethod:  usecase.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	if replayed {
		return c.JSON(http.StatusOK, out)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	out, err := h.uc.ListOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetOrder(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) recalculate(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.RecalculateTotal(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
