package validator

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"ecstore/internal/repository"
	"ecstore/internal/usecase"
)

// usernameに使える文字（英数字と @.+-_）
var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type authValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// 会員登録の入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, in usecase.RegisterInput) error {
	// 必須チェック
	if in.Username == "" {
		return invalid("username: This field is required.")
	}
	if in.Password == "" {
		return invalid("password: This field is required.")
	}
	if in.Password2 == "" {
		return invalid("password2: This field is required.")
	}

	if len(in.Username) > 150 || !usernamePattern.MatchString(in.Username) {
		return invalid("username: Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	// email形式（空は許可）
	if in.Email != "" && !isEmailLike(in.Email) {
		return invalid("email: Enter a valid email address.")
	}

	// パスワード最低文字数
	if len(in.Password) < 8 {
		return invalid("password: This password is too short. It must contain at least 8 characters.")
	}
	if in.Password != in.Password2 {
		return invalid("password: Password fields didn't match.")
	}

	// username重複チェック（DBが必要）
	u, err := v.users.FindByUsername(ctx, in.Username)
	if err == nil && u != nil {
		return invalid("username: A user with that username already exists.")
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return usecase.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return nil
}

// トークン取得の入力を検証
func (v *authValidator) ValidateObtainToken(ctx context.Context, username string, password string) error {
	if strings.TrimSpace(username) == "" {
		return invalid("username: This field is required.")
	}
	if password == "" {
		return invalid("password: This field is required.")
	}
	return nil
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return invalid("refresh: This field is required.")
	}
	return nil
}

func invalid(msg string) error {
	return usecase.NewHTTPError(http.StatusBadRequest, msg)
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}
