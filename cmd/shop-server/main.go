package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/api"
	"github.com/MorseWayne/cloth_shop/internal/cache"
	"github.com/MorseWayne/cloth_shop/internal/config"
	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/limiter"
	"github.com/MorseWayne/cloth_shop/internal/logger"
	"github.com/MorseWayne/cloth_shop/internal/mq"
	"github.com/MorseWayne/cloth_shop/internal/observability"
	"github.com/MorseWayne/cloth_shop/internal/repo"
	"github.com/MorseWayne/cloth_shop/internal/router"
	"github.com/MorseWayne/cloth_shop/internal/service"
	"github.com/MorseWayne/cloth_shop/internal/storage"
)

// app 持有需要在退出时释放的资源
type app struct {
	cfg       *config.Config
	lg        *zap.Logger
	db        *database.DB
	cache     cache.Cache
	redis     *cache.RedisCache
	publisher mq.Publisher
	shutdown  observability.ShutdownFunc
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 在 HTTP 服务器启动前完成迁移，保证处理请求时表结构已就绪
	if cfg.Migrations.AutoMigrate {
		lg.Info("running migrations", zap.String("path", cfg.Migrations.Dir))
		if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	return db, nil
}

// initCache 初始化缓存实例；Redis 连接失败时回退到内存缓存
func initCache(cfg *config.Config, lg *zap.Logger) (cache.Cache, *cache.RedisCache) {
	if !cfg.Cache.Enabled && !cfg.Limiter.Enabled {
		lg.Info("cache disabled")
		return cache.NewNullCache(), nil
	}

	var redisCache *cache.RedisCache
	if cfg.Cache.Type == "redis" || cfg.Limiter.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		rc, err := cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Warn("failed to connect to Redis", zap.String("addr", addr), zap.Error(err))
		} else {
			redisCache = rc
		}
	}

	switch {
	case !cfg.Cache.Enabled:
		lg.Info("cache disabled")
		return cache.NewNullCache(), redisCache
	case cfg.Cache.Type == "redis" && redisCache != nil:
		lg.Info("cache enabled", zap.String("type", "redis"), zap.Duration("ttl", cfg.Cache.TTL))
		return redisCache, redisCache
	case cfg.Cache.Type == "redis":
		lg.Warn("falling back to memory cache")
	}
	lg.Info("cache enabled", zap.String("type", "memory"), zap.Duration("ttl", cfg.Cache.TTL))
	return cache.NewMemoryCache(), redisCache
}

// initLimiter 下单限流器，需要 Redis
func initLimiter(cfg *config.Config, redisCache *cache.RedisCache, lg *zap.Logger) limiter.Limiter {
	if !cfg.Limiter.Enabled {
		return nil
	}
	if redisCache == nil {
		lg.Warn("checkout limiter disabled: redis unavailable")
		return nil
	}
	l, err := limiter.NewTokenBucketLimiter(redisCache.Client(), &limiter.Config{
		Rate:      cfg.Limiter.Rate,
		Burst:     cfg.Limiter.Burst,
		Window:    cfg.Limiter.Window,
		KeyPrefix: cfg.App.Name + ":limiter",
	})
	if err != nil {
		lg.Warn("checkout limiter disabled", zap.Error(err))
		return nil
	}
	lg.Info("checkout limiter enabled",
		zap.Int64("rate", cfg.Limiter.Rate),
		zap.Int64("burst", cfg.Limiter.Burst),
		zap.Duration("window", cfg.Limiter.Window),
	)
	return l
}

// initDependencies 初始化依赖注入链：仓储 -> 服务 -> API处理器
func initDependencies(ctx context.Context, a *app) (*router.Dependencies, error) {
	cfg, lg, db := a.cfg, a.lg, a.db

	txm := database.NewTxManager(db.DB, database.DefaultTxOptions(), lg)

	userRepo := repo.NewUserRepository(db.DB)
	productRepo := repo.NewProductRepository(db.DB)
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(productRepo, a.cache, cfg.Cache.TTL, lg)
	}
	variantRepo := repo.NewVariantRepository(db.DB)
	logRepo := repo.NewInventoryLogRepository(db.DB)
	logQuery := repo.NewInventoryLogQuery(db.Replica)
	cartRepo := repo.NewCartRepository(db.DB)
	orderRepo := repo.NewOrderRepository(db.DB)

	publisher, err := mq.New(ctx, cfg.MQ, lg)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	a.publisher = publisher

	slips, err := storage.NewLocalSlipStore(cfg.Storage.SlipDir, lg)
	if err != nil {
		return nil, fmt.Errorf("init slip storage: %w", err)
	}

	jwtService := service.NewJWTService(cfg, lg)
	userService := service.NewUserService(userRepo, lg)
	productService := service.NewProductService(productRepo, lg)
	inventoryService := service.NewInventoryService(txm, variantRepo, logRepo, logQuery, productRepo, lg)
	cartService := service.NewCartService(txm, cartRepo, productRepo, lg)
	orderService := service.NewOrderService(service.OrderDeps{
		TxManager:      txm,
		Orders:         orderRepo,
		Carts:          cartRepo,
		Products:       productRepo,
		Users:          userRepo,
		Variants:       variantRepo,
		InventoryLogs:  logRepo,
		Publisher:      publisher,
		SlipStore:      slips,
		Logger:         lg,
		StrictCheckout: cfg.Inventory.StrictCheckout,
	})

	checks := map[string]router.HealthCheck{"database": db.PingContext}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}

	return &router.Dependencies{
		UserHandler:      api.NewUserHandler(userService, jwtService, lg),
		ProductHandler:   api.NewProductHandler(productService, inventoryService, lg),
		InventoryHandler: api.NewInventoryHandler(inventoryService, lg),
		CartHandler:      api.NewCartHandler(cartService, lg),
		OrderHandler:     api.NewOrderHandler(orderService, lg),
		JWTService:       jwtService,
		CheckoutLimiter:  initLimiter(cfg, a.redis, lg),
		HealthChecks:     checks,
	}, nil
}

// close 按依赖的逆序释放资源
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.lg.Error("failed to close publisher", zap.Error(err))
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.redis != nil && cache.Cache(a.redis) != a.cache {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.lg.Error("failed to close database connection", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.lg.Warn("tracer shutdown error", zap.Error(err))
		}
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(ctx context.Context, cfg *config.Config, handler http.Handler, lg *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		lg.Info("server starting", zap.String("addr", addr))
		serverErrCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		lg.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	lg.Info("server exited")
	return nil
}

func run() error {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, lg: lg}
	defer a.close()

	if a.shutdown, err = observability.SetupTracing(ctx, cfg, lg); err != nil {
		return err
	}
	if a.db, err = initDatabase(cfg, lg); err != nil {
		return err
	}
	a.cache, a.redis = initCache(cfg, lg)

	deps, err := initDependencies(ctx, a)
	if err != nil {
		return err
	}

	handler := router.New().Setup(cfg, deps, lg)
	return startServer(ctx, cfg, handler, lg)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("shop-server: %v", err)
	}
}
