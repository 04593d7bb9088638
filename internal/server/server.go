package server

import (
	"context"
	"net/http"
	"time"

	"ecstore/internal/handler"
	"ecstore/internal/metrics"
	"ecstore/internal/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Handlers はルート登録に使うハンドラ一式
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Catalog  *handler.CatalogHandler
	Cart     *handler.CartHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	AuditLog *handler.AuditLogHandler
}

// Guards は認可ミドルウェア
type Guards struct {
	Authed          echo.MiddlewareFunc
	Admin           echo.MiddlewareFunc
	AdminOrReadOnly echo.MiddlewareFunc
}

// DBの疎通確認
type Pinger func(ctx context.Context) error

func New(log zerolog.Logger, h Handlers, g Guards, ping Pinger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(metrics.Middleware())

	e.GET("/healthz", healthz(ping))
	RegisterRoutes(e, h, g)
	return e
}

func healthz(ping Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
