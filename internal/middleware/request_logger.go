package middleware

import (
	"time"

	"ecstore/internal/logger"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// request_id付きのloggerをcontextに入れ、終了時に1行出す
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			//echoのRequestIDが入れたID
			reqID := res.Header().Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = req.Header.Get(echo.HeaderXRequestID)
			}

			l := base.With().Str("request_id", reqID).Logger()
			c.SetRequest(req.WithContext(logger.WithCtx(req.Context(), l)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			ev := l.Info()
			if res.Status >= 500 {
				ev = l.Error().Err(err)
			} else if res.Status >= 400 {
				ev = l.Warn()
			}
			if userID, ok := c.Get(CtxUserIDKey).(int64); ok {
				ev = ev.Int64("user_id", userID)
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Msg("request")
			return nil
		}
	}
}
