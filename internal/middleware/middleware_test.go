package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ecstore/internal/config"
	"ecstore/internal/domain/model"
	"ecstore/internal/logger"
	"ecstore/internal/middleware"
	"ecstore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const secret = "test-secret"

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *model.User) error {
	panic("not used in middleware tests")
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	panic("not used in middleware tests")
}

func (m *MockUserRepo) List(ctx context.Context, limit int, offset int) ([]model.User, int64, error) {
	panic("not used in middleware tests")
}

func (m *MockUserRepo) Update(ctx context.Context, user *model.User) error {
	panic("not used in middleware tests")
}

func (m *MockUserRepo) IncrementTokenVersion(ctx context.Context, id int64) error {
	panic("not used in middleware tests")
}

func (m *MockUserRepo) DebitCreditsIfEnough(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	panic("not used in middleware tests")
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, sub int64, role string, tv int, exp time.Time, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(sub, 10),
		"role": role,
		"tv":   tv,
		"iat":  time.Now().Unix(),
		"exp":  exp.Unix(),
	}

	token := jwt.NewWithClaims(signingMethod, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func bearer(t *testing.T, sub int64, role string, tv int) string {
	return "Bearer " + mustMakeJWT(t, sub, role, tv, time.Now().Add(time.Hour), jwt.SigningMethodHS256)
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, mwOKResponse{
		UserID:       c.Get(middleware.CtxUserIDKey).(int64),
		Role:         c.Get(middleware.CtxUserRoleKey).(string),
		TokenVersion: c.Get(middleware.CtxTokenVersionKey).(int),
	})
}

// =====================
// AuthJWT
// =====================

// Authorizationなし => 401
func TestAuthJWT_NoHeader(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: secret}))

	rec := runRequest(t, e, http.MethodGet, "/protected", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeMWError(t, rec)
	assert.Equal(t, "unauthorized", body.Code)
	assert.Equal(t, "Authentication credentials were not provided.", body.Error)
}

func TestAuthJWT_NotBearer(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: secret}))

	rec := runRequest(t, e, http.MethodGet, "/protected", "Basic abc")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// HS256以外は拒否
func TestAuthJWT_RejectsOtherAlg(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: secret}))

	tok := mustMakeJWT(t, 1, "USER", 0, time.Now().Add(time.Hour), jwt.SigningMethodHS512)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+tok)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_Expired(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: secret}))

	tok := mustMakeJWT(t, 1, "USER", 0, time.Now().Add(-time.Minute), jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+tok)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Given token not valid for any token type", decodeMWError(t, rec).Error)
}

func TestAuthJWT_WrongSecret(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: "other-secret"}))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(t, 1, "USER", 0))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// 正常 => contextにuser_id/role/tvが入る
func TestAuthJWT_OK(t *testing.T) {
	e := echo.New()
	e.GET("/protected", whoami, middleware.AuthJWT(config.Config{JWTSecret: secret}))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(t, 42, "ADMIN", 3))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
	assert.Equal(t, 3, body.TokenVersion)
}

// =====================
// TokenVersionGuard
// =====================

// tv不一致 => 401（強制ログアウト済み）
func TestAuthenticated_TokenVersionMismatch(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, TokenVersion: 2, IsActive: true}, nil).Once()

	e := echo.New()
	e.GET("/protected", whoami, middleware.Authenticated(config.Config{JWTSecret: secret}, repo))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(t, 1, "USER", 1))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked.", decodeMWError(t, rec).Error)
}

func TestAuthenticated_InactiveUser(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, TokenVersion: 0, IsActive: false}, nil).Once()

	e := echo.New()
	e.GET("/protected", whoami, middleware.Authenticated(config.Config{JWTSecret: secret}, repo))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(t, 1, "USER", 0))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticated_OK(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, TokenVersion: 1, IsActive: true}, nil).Once()

	e := echo.New()
	e.GET("/protected", whoami, middleware.Authenticated(config.Config{JWTSecret: secret}, repo))

	rec := runRequest(t, e, http.MethodGet, "/protected", bearer(t, 1, "USER", 1))

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

// =====================
// AdminOnly / AdminOrReadOnly
// =====================

// USER => 403
func TestAdminOnly_UserForbidden(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, IsActive: true}, nil).Once()

	e := echo.New()
	e.GET("/admin", whoami, middleware.AdminOnly(config.Config{JWTSecret: secret}, repo))

	rec := runRequest(t, e, http.MethodGet, "/admin", bearer(t, 1, "USER", 0))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeMWError(t, rec).Code)
}

func TestAdminOnly_AdminAllowed(t *testing.T) {
	repo := &MockUserRepo{}
	repo.On("FindByID", mock.Anything, int64(9)).Return(&model.User{ID: 9, Role: model.RoleAdmin, IsActive: true}, nil).Once()

	e := echo.New()
	e.GET("/admin", whoami, middleware.AdminOnly(config.Config{JWTSecret: secret}, repo))

	rec := runRequest(t, e, http.MethodGet, "/admin", bearer(t, 9, "ADMIN", 0))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// GETは匿名でも通る。POSTは認証が要る
func TestAdminOrReadOnly(t *testing.T) {
	repo := &MockUserRepo{}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	e := echo.New()
	guard := middleware.AdminOrReadOnly(config.Config{JWTSecret: secret}, repo)
	e.GET("/products", ok, guard)
	e.POST("/products", ok, guard)

	rec := runRequest(t, e, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = runRequest(t, e, http.MethodPost, "/products", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	e := echo.New()
	e.Use(middleware.RequestLogger(base))
	e.GET("/ping", func(c echo.Context) error {
		// handler側でもctxのloggerが使える
		logger.FromCtx(c.Request().Context()).Info().Msg("inside")
		return c.String(http.StatusTeapot, "hi")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, out, `"message":"inside"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"route":"/ping"`)
}
