package server

import "github.com/labstack/echo/v4"

// /api 配下（末尾スラッシュあり）
func RegisterRoutes(e *echo.Echo, h Handlers, g Guards) {
	api := e.Group("/api")

	h.Auth.RegisterRoutes(api)
	h.User.RegisterRoutes(api, g.Authed, g.Admin)
	h.Catalog.RegisterRoutes(api, g.AdminOrReadOnly)
	h.Cart.RegisterRoutes(api, g.Authed)
	h.Order.RegisterRoutes(api, g.Authed, g.Admin)
	h.Payment.RegisterRoutes(api, g.Authed)
	h.AuditLog.RegisterRoutes(api, g.Admin)
}
