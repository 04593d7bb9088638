package middleware

import (
	"net/http"

	"ecstore/internal/config"
	"ecstore/internal/domain/model"
	"ecstore/internal/repository"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがADMINかどうかを確認します。

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized", "unauthorized"))
			}

			//USERは拒否、ADMINだけ許可
			if role != string(model.RoleAdmin) {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden", "You do not have permission to perform this action."))
			}

			return next(c)
		}
	}
}

// 認証＋token_version確認
func Authenticated(cfg config.Config, userRepo repository.UserRepository) echo.MiddlewareFunc {
	jwtMW := AuthJWT(cfg)
	tvMW := TokenVersionGuard(userRepo)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMW(tvMW(next))
	}
}

// 管理者だけ
func AdminOnly(cfg config.Config, userRepo repository.UserRepository) echo.MiddlewareFunc {
	authMW := Authenticated(cfg, userRepo)
	adminMW := AdminRoleGuard()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return authMW(adminMW(next))
	}
}

// GET/HEAD/OPTIONSは誰でも。書き込みは管理者だけ
func AdminOrReadOnly(cfg config.Config, userRepo repository.UserRepository) echo.MiddlewareFunc {
	adminMW := AdminOnly(cfg, userRepo)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := adminMW(next)
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			default:
				return guarded(c)
			}
		}
	}
}
