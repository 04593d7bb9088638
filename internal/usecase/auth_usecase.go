package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ecstore/internal/config"
	"ecstore/internal/domain/model"
	"ecstore/internal/logger"
	"ecstore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, in RegisterInput) error
	ValidateObtainToken(ctx context.Context, username string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
	FirstName string
	LastName  string
}

type UserOutput struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Country     string          `json:"country"`
	Credits     decimal.Decimal `json:"credits"`
}

type TokenPairOutput struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type UserListOutput struct {
	Items []UserOutput `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

type AuthUsecase struct {
	cfg       config.Config
	users     repository.UserRepository
	rtRepo    repository.RefreshTokenRepository
	validator AuthValidator
	clock     Clock
}

func NewAuthUsecase(
	cfg config.Config,
	users repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	validator AuthValidator,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		rtRepo:    rtRepo,
		validator: validator,
		clock:     realClock{},
	}
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (UserOutput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, in); err != nil {
		return UserOutput{}, err
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost())
	if err != nil {
		return UserOutput{}, internalError()
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(pwHash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Credits:      u.cfg.DefaultCredits,
		Role:         model.RoleUser,
		TokenVersion: 0,
		IsActive:     true,
	}

	if err := u.users.Create(ctx, user); err != nil {
		//同時登録でunique違反
		if errors.Is(err, repository.ErrConflict) {
			return UserOutput{}, validationError("username: A user with that username already exists.")
		}
		return UserOutput{}, internalError()
	}

	logger.FromCtx(ctx).Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return toUserOutput(user), nil
}

// ObtainToken はusername/passwordでaccessとrefreshを発行する
func (u *AuthUsecase) ObtainToken(ctx context.Context, username string, password string) (TokenPairOutput, error) {
	username = strings.TrimSpace(username)
	if err := u.validator.ValidateObtainToken(ctx, username, password); err != nil {
		return TokenPairOutput{}, err
	}

	user, err := u.users.FindByUsername(ctx, username)
	if err != nil || user == nil {
		return TokenPairOutput{}, noActiveAccount()
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return TokenPairOutput{}, noActiveAccount()
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPairOutput{}, noActiveAccount()
	}

	//last_login更新
	now := u.clock.Now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		logger.FromCtx(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("last_login update failed")
	}

	return u.issuePair(ctx, user)
}

// Refresh はrefresh tokenをローテーションする
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string) (TokenPairOutput, error) {
	//入力検証
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain); err != nil {
		return TokenPairOutput{}, err
	}

	//DB照合
	rt, err := u.rtRepo.FindByTokenHash(ctx, hashToken(refreshTokenPlain))
	if err != nil || rt == nil {
		return TokenPairOutput{}, invalidToken()
	}

	now := u.clock.Now()

	//期限切れ
	if rt.ExpiresAt.Before(now) {
		_ = u.rtRepo.DeleteByID(ctx, rt.ID)
		return TokenPairOutput{}, invalidToken()
	}

	//revoked
	if rt.RevokedAt != nil {
		return TokenPairOutput{}, invalidToken()
	}

	//used済みが来たら replay → 全失効＋access tokenも無効化
	if rt.UsedAt != nil {
		_ = u.rtRepo.RevokeAllByUserID(ctx, rt.UserID, now)
		_ = u.users.IncrementTokenVersion(ctx, rt.UserID)
		logger.FromCtx(ctx).Warn().Int64("user_id", rt.UserID).Msg("refresh token reuse detected")
		return TokenPairOutput{}, invalidToken()
	}

	//user取得
	user, err := u.users.FindByID(ctx, rt.UserID)
	if err != nil || user == nil || !user.IsActive {
		return TokenPairOutput{}, invalidToken()
	}

	//旧tokenをusedにする
	if err := u.rtRepo.MarkUsed(ctx, rt.ID, now); err != nil {
		_ = u.rtRepo.RevokeAllByUserID(ctx, rt.UserID, now)
		return TokenPairOutput{}, invalidToken()
	}

	return u.issuePair(ctx, user)
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserOutput, error) {
	if userID <= 0 {
		return UserOutput{}, unauthorized()
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return UserOutput{}, unauthorized()
	}
	return toUserOutput(user), nil
}

// 管理者用
func (u *AuthUsecase) GetUser(ctx context.Context, userID int64) (UserOutput, error) {
	if userID <= 0 {
		return UserOutput{}, notFound()
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserOutput{}, notFound()
	}
	if err != nil {
		return UserOutput{}, internalError()
	}
	return toUserOutput(user), nil
}

// 管理者用
func (u *AuthUsecase) ListUsers(ctx context.Context, page int, limit int) (UserListOutput, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	if page < 1 {
		return UserListOutput{}, validationError("page: Invalid page.")
	}
	if limit < 1 || limit > maxPageLimit {
		return UserListOutput{}, validationError("limit: Ensure this value is between 1 and 100.")
	}

	users, total, err := u.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return UserListOutput{}, internalError()
	}
	items := make([]UserOutput, 0, len(users))
	for i := range users {
		items = append(items, toUserOutput(&users[i]))
	}
	return UserListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (u *AuthUsecase) issuePair(ctx context.Context, user *model.User) (TokenPairOutput, error) {
	access, err := u.issueAccessToken(user)
	if err != nil {
		return TokenPairOutput{}, internalError()
	}

	//refresh token発行（DBにはhash保存）
	refreshPlain, refreshHash, err := newRandomTokenAndHash()
	if err != nil {
		return TokenPairOutput{}, internalError()
	}

	rt := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: refreshHash,
		ExpiresAt: u.clock.Now().Add(u.cfg.RefreshTokenTTL),
	}
	if err := u.rtRepo.Create(ctx, rt); err != nil {
		return TokenPairOutput{}, internalError()
	}

	return TokenPairOutput{Access: access, Refresh: refreshPlain}, nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User) (string, error) {
	now := u.clock.Now()

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(u.cfg.AccessTokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(u.cfg.JWTSecret))
}

func (u *AuthUsecase) bcryptCost() int {
	if u.cfg.BcryptCost <= 0 {
		return bcrypt.DefaultCost
	}
	return u.cfg.BcryptCost
}

func noActiveAccount() error {
	return newError(ErrUnauthorized, http.StatusUnauthorized, "No active account found with the given credentials")
}

func invalidToken() error {
	return newError(ErrUnauthorized, http.StatusUnauthorized, "Token is invalid or expired")
}

// refresh token生成（平文 + DB保存hash）
func newRandomTokenAndHash() (plain string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}

	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, hashToken(plain), nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func toUserOutput(u *model.User) UserOutput {
	return UserOutput{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		City:        u.City,
		Country:     u.Country,
		Credits:     u.Credits,
	}
}

// 管理者が他人のトークンを無効化する
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return notFound()
	}
	if _, err := u.users.FindByID(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound()
		}
		return internalError()
	}
	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		return internalError()
	}
	if err := u.rtRepo.RevokeAllByUserID(ctx, targetUserID, u.clock.Now()); err != nil {
		return internalError()
	}
	return nil
}
