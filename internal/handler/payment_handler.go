package handler

import (
	"net/http"

	"ecstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /payment/
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type paymentRequest struct {
	OrderID       *int64 `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

func (h *PaymentHandler) RegisterRoutes(api *echo.Group, authed echo.MiddlewareFunc) {
	g := api.Group("/payment", authed)
	g.POST("/create-intent/", h.createIntent)
	g.POST("/confirm-order/", h.confirmOrder)
}

func (h *PaymentHandler) createIntent(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req paymentRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	if req.OrderID == nil {
		return badRequest(c, "order_id: This field is required.")
	}

	out, err := h.uc.CreateIntent(c.Request().Context(), userID, *req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) confirmOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorizedJSON(c)
	}

	var req paymentRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	if req.OrderID == nil {
		return badRequest(c, "order_id: This field is required.")
	}

	out, err := h.uc.ConfirmOrder(c.Request().Context(), userID, usecase.ConfirmOrderInput{
		OrderID:       *req.OrderID,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
