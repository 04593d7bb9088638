package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret       string        // JWT署名シークレット
	AccessTokenTTL  time.Duration // 60分
	RefreshTokenTTL time.Duration // 7日
	BcryptCost      int

	RedisAddr       string // 空ならキャッシュ/冪等キーは無効
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	RabbitMQURL      string // 空ならイベント送信しない
	RabbitMQExchange string

	MetricsAddr string // 空ならmetricsサーバーを立てない

	LogLevel string
	LogFile  string

	PaymentCurrency string
	DefaultCredits  decimal.Decimal
}

func (c Config) IsDev() bool {
	return c.GoEnv == "" || c.GoEnv == "dev"
}

// Loadは環境変数（+ 任意のCONFIG_FILE）から読む
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	credits, err := decimal.NewFromString(v.GetString("DEFAULT_CREDITS"))
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_CREDITS must be decimal: %w", err)
	}

	cfg := Config{
		Port:  v.GetString("PORT"),
		GoEnv: v.GetString("GO_ENV"),

		DatabaseURL:      v.GetString("DATABASE_URL"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		JWTSecret: v.GetString("JWT_SECRET"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),

		MetricsAddr: v.GetString("METRICS_ADDR"),

		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFile:  v.GetString("LOG_FILE"),

		PaymentCurrency: strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
		DefaultCredits:  credits,
	}

	if cfg.PostgresPort, err = mustAtoi(v, "POSTGRES_PORT"); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = mustAtoi(v, "REDIS_DB"); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = mustAtoi(v, "BCRYPT_COST"); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = mustDuration(v, "ACCESS_TOKEN_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = mustDuration(v, "REFRESH_TOKEN_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.ProductCacheTTL, err = mustDuration(v, "PRODUCT_CACHE_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = mustDuration(v, "IDEMPOTENCY_TTL"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

//必須チェック
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDB == "") {
		return errors.New("DATABASE_URL or POSTGRES_HOST/POSTGRES_USER/POSTGRES_DB is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.DefaultCredits.IsNegative() {
		return errors.New("DEFAULT_CREDITS must not be negative")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "ecstore")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("ACCESS_TOKEN_TTL", "60m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("BCRYPT_COST", "12")
	v.SetDefault("REDIS_DB", "0")
	v.SetDefault("PRODUCT_CACHE_TTL", "5m")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("RABBITMQ_EXCHANGE", "store.events")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "./logs/app.log")
	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("DEFAULT_CREDITS", "100.00")
}

func mustAtoi(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func mustDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
