package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"cartengine/internal/config"
	"cartengine/internal/domain/model"
	"cartengine/internal/handler"
	"cartengine/internal/infra/cache"
	"cartengine/internal/infra/db"
	"cartengine/internal/infra/memory"
	"cartengine/internal/infra/messaging"
	infraRepo "cartengine/internal/infra/repository"
	"cartengine/internal/infra/token"
	"cartengine/internal/observability"
	repo "cartengine/internal/repository"
	"cartengine/internal/server"
	"cartengine/internal/usecase"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	checks := map[string]handler.Pinger{}

	//ストア（postgres or memory）
	var tx repo.TransactionManager
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		seedDemoProducts(store)
		tx = store
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		if err := db.Migrate(gormDB); err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		checks["postgres"] = handler.PingFunc(sqlDB.PingContext)
		tx = infraRepo.NewTxManagerGorm(gormDB)
	}

	//カート表示キャッシュ（REDIS_ADDRが無ければなし）
	var cartCache usecase.CartViewCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		cartCache = cache.NewRedisCartCache(rdb, cfg.CartCacheTTL)
	}

	//usecaseに渡す部品
	//Clockはnilでシステム時刻
	idGen := &uuidGenerator{}
	guestTokens := token.NewGuestJWT(cfg.GuestTokenSecret, cfg.GuestTokenTTL)

	//Usecase生成
	identity := usecase.NewIdentityResolver(guestTokens, idGen, nil)
	cartUC := usecase.NewCartUsecase(tx, cartCache, nil, logger.Named("cart"))
	mergeUC := usecase.NewMergeUsecase(tx, cartCache, logger.Named("merge"))
	checkoutUC := usecase.NewCheckoutUsecase(tx, cartCache, idGen, nil, logger.Named("checkout"))

	//Handler生成
	srv := server.New(cfg, server.Handlers{
		Cart:     handler.NewCartHandler(cartUC, mergeUC, identity, cfg.IsProd()),
		Checkout: handler.NewCheckoutHandler(checkoutUC),
		Health:   handler.NewHealthHandler(checks),
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	})

	//アウトボックス→Kafka（KAFKA_BROKERSが無ければ溜めるだけ）
	if len(cfg.KafkaBrokers) > 0 {
		writer := messaging.NewKafkaWriter(cfg.KafkaOrderTopic, cfg.KafkaBrokers...)
		relay := messaging.NewOutboxRelay(tx, writer, cfg.OutboxPollInterval, logger.Named("outbox"))
		g.Go(func() error {
			relay.Run(gctx)
			return writer.Close()
		})
	} else {
		logger.Info("KAFKA_BROKERS not set; outbox relay disabled")
	}

	return g.Wait()
}

// memoryドライバ用の見本カタログ
func seedDemoProducts(store *memory.Store) {
	for _, p := range []model.Product{
		{Name: "Green Tea", Description: "100g leaf", Price: 1200, Stock: 50, IsActive: true},
		{Name: "Ceramic Mug", Description: "350ml", Price: 2800, Stock: 10, IsActive: true},
		{Name: "Tea Strainer", Description: "stainless", Price: 900, Stock: 3, IsActive: true},
	} {
		store.SeedProduct(p)
	}
}
