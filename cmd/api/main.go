package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecstore/internal/config"
	"ecstore/internal/handler"
	"ecstore/internal/infra/cache"
	"ecstore/internal/infra/db"
	"ecstore/internal/infra/payment"
	"ecstore/internal/infra/queue"
	infraRepo "ecstore/internal/infra/repository"
	"ecstore/internal/logger"
	"ecstore/internal/metrics"
	"ecstore/internal/middleware"
	"ecstore/internal/server"
	"ecstore/internal/usecase"
	"ecstore/internal/validator"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	//.envは無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.IsDev(),
		Service: "ecstore-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("db handle failed")
	}
	defer sqlDB.Close()

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Redis（任意）
	orderOpts := usecase.OrderOptions{Metrics: metrics.NewCheckoutRecorder()}
	var productCache usecase.ProductCache
	rdb, err := cache.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	if rdb != nil {
		defer rdb.Close()
		productCache = cache.NewRedisProductCache(rdb, cfg.ProductCacheTTL)
		orderOpts.Cache = productCache
		orderOpts.Idempotency = cache.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis enabled")
	}

	//RabbitMQ（任意）
	var events usecase.OrderEventPublisher
	if cfg.RabbitMQURL != "" {
		pub, err := queue.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq connect failed")
		}
		defer pub.Close()
		events = pub
		orderOpts.Events = pub
		log.Info().Str("exchange", cfg.RabbitMQExchange).Msg("rabbitmq enabled")
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, validator.NewAuthValidator(userRepo))
	catalogUC := usecase.NewCatalogUsecase(categoryRepo, productRepo, auditRepo, productCache)
	cartUC := usecase.NewCartUsecase(txm)
	orderUC := usecase.NewOrderUsecase(txm, orderOpts)
	paymentUC := usecase.NewPaymentUsecase(txm, payment.NewMockGateway(), events, orderOpts.Metrics, cfg.PaymentCurrency)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	e := server.New(log, server.Handlers{
		Auth:     handler.NewAuthHandler(authUC),
		User:     handler.NewUserHandler(authUC),
		Catalog:  handler.NewCatalogHandler(catalogUC),
		Cart:     handler.NewCartHandler(cartUC),
		Order:    handler.NewOrderHandler(orderUC),
		Payment:  handler.NewPaymentHandler(paymentUC),
		AuditLog: handler.NewAuditLogHandler(auditUC),
	}, server.Guards{
		Authed:          middleware.Authenticated(cfg, userRepo),
		Admin:           middleware.AdminOnly(cfg, userRepo),
		AdminOrReadOnly: middleware.AdminOrReadOnly(cfg, userRepo),
	}, sqlDB.PingContext)

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}

	//Server起動（API + metrics）
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("api server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	//シグナルかどちらかの失敗で停止
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("api shutdown failed")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("metrics shutdown failed")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
