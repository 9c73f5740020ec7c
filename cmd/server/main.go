package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/handler"
	"github.com/GoPolymarket/levergate/internal/keeper"
	"github.com/GoPolymarket/levergate/internal/manager"
	"github.com/GoPolymarket/levergate/internal/market"
	"github.com/GoPolymarket/levergate/internal/middleware"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/GoPolymarket/levergate/internal/position"
	"github.com/GoPolymarket/levergate/internal/repository"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.InitWithOptions(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	strategy, err := cfg.StrategySettings()
	if err != nil {
		log.Fatalf("Invalid strategy config: %v", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Fatalf("Invalid settings config: %v", err)
	}
	exchanges, err := cfg.ExchangeSettings()
	if err != nil {
		log.Fatalf("Invalid exchanges config: %v", err)
	}

	// 3. Initialize Persistence
	// Redis > Postgres > Memory for engine state; Postgres for the event log
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back", "error", err)
			redisClient = nil
		}
	}

	var db *sqlx.DB
	if cfg.Database.DSN != "" {
		db, err = repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
		} else {
			logger.Error("⚠️ Failed to connect to DB, events will be file-only", "error", err)
			db = nil
		}
	}

	var store service.StateStore
	switch {
	case redisClient != nil:
		store = repository.NewRedisStateStore(redisClient, cfg.Redis.StateKey)
	case db != nil:
		store = repository.NewPostgresStateStore(db, cfg.Redis.StateKey)
	default:
		logger.Warn("No state backend configured, engine state is in-memory only")
		store = service.NewMemoryStateStore()
	}

	var eventRepo service.EventRepo
	var pgEvents *repository.PostgresEventRepo
	if db != nil {
		pgEvents = repository.NewPostgresEventRepo(db)
		eventRepo = pgEvents
	}

	eventSvc, err := service.NewEventService(service.EventOptions{
		Dir:        cfg.Events.Dir,
		BufferSize: cfg.Events.BufferSize,
		MaxSizeMB:  cfg.Events.MaxSizeMB,
		MaxBackups: cfg.Events.MaxBackups,
	}, eventRepo)
	if err != nil {
		log.Fatalf("Failed to initialize event service: %v", err)
	}

	// 4. Market Data
	var oracle market.Oracle
	var feed market.Provider
	switch cfg.Oracle.Mode {
	case "websocket":
		if cfg.Oracle.WSURL == "" {
			log.Fatalf("oracle.ws_url is required in websocket mode")
		}
		feed = market.NewPriceFeed(cfg.Oracle.WSURL, time.Duration(cfg.Oracle.MaxStaleSec)*time.Second)
		feed.Subscribe([]string{strategy.CollateralFeed, strategy.BorrowFeed})
		feed.Start()
		oracle = feed
	default:
		prices, err := cfg.OraclePrices(strategy.CollateralFeed, strategy.BorrowFeed)
		if err != nil {
			log.Fatalf("Invalid oracle prices: %v", err)
		}
		oracle = market.NewStaticOracle(prices)
	}

	// 5. Venues
	if !cfg.Paper.Enabled {
		log.Fatalf("No lending integration configured: set paper.enabled=true")
	}
	mover, reader, err := paperVenues(cfg, strategy, oracle)
	if err != nil {
		log.Fatalf("Failed to initialize paper venues: %v", err)
	}

	// 6. Core Services
	registry, err := service.NewCallerRegistry(cfg.Access)
	if err != nil {
		log.Fatalf("Invalid access config: %v", err)
	}

	bounty, err := config.ParseDecimal("paper.bounty_balance", cfg.Paper.BountyBalance)
	if err != nil {
		log.Fatalf("Invalid bounty balance: %v", err)
	}

	deps := service.EngineDeps{
		Reader: reader,
		Mover:  mover,
		Access: registry,
		Vault:  service.NewMemoryBountyVault(bounty),
		Store:  store,
		Events: eventSvc,
	}
	if cfg.Chain.RPCURL != "" {
		deps.Guard = service.NewEOAGuard(
			cfg.Chain.RPCURL,
			time.Duration(cfg.Chain.CodeCacheSeconds)*time.Second,
			time.Duration(cfg.Chain.TimeoutMs)*time.Millisecond,
			cfg.Chain.Retries,
		)
	}

	engine, err := service.NewEngine(context.Background(), strategy, settings, exchanges, deps)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	var nonceStore manager.NonceStore
	if redisClient != nil {
		nonceStore = repository.NewRedisNonceStore(redisClient, time.Duration(cfg.Redis.NonceTTLSeconds)*time.Second)
	}
	nonces := manager.NewNonceManager(nonceStore)

	// 7. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(logger.Component("audit")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "levergate"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.CallerAuth(cfg.Auth, nonces))
	v1.Use(middleware.RateLimitMiddleware(registry))
	handler.Register(v1, handler.Handlers{
		Strategy: handler.NewStrategyHandler(engine),
		Settings: handler.NewSettingsHandler(engine),
		Admin:    handler.NewAdminHandler(engine),
		Events:   handler.NewEventHandler(eventSvc),
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 8. Background Workers
	// 后台任务必须在事件服务关闭前退出
	var workers sync.WaitGroup
	if cfg.Keeper.Enabled {
		if !common.IsHexAddress(cfg.Keeper.Address) {
			log.Fatalf("keeper.address must be a hex address")
		}
		runner := keeper.NewRunner(engine, common.HexToAddress(cfg.Keeper.Address), cfg.Keeper.Interval)
		workers.Add(1)
		go func() {
			defer workers.Done()
			runner.Run(ctx)
		}()
	}

	if pgEvents != nil && cfg.Database.EventRetentionDays > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			pruneEvents(ctx, pgEvents, time.Duration(cfg.Database.EventRetentionDays)*24*time.Hour)
		}()
	}

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 Levergate started", "port", cfg.Server.Port, "exchanges", engine.GetState().EnabledExchanges)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	workers.Wait()
	if feed != nil {
		feed.Stop()
	}
	eventSvc.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}

	logger.Info("Server exiting")
}

// paperVenues builds the in-memory lending market and exchange, seeded with the
// configured collateral and no debt.
func paperVenues(cfg *config.Config, strategy model.StrategySettings, oracle service.PriceOracle) (service.CollateralMover, *service.PositionReader, error) {
	collateral, err := config.ParseDecimal("paper.collateral_balance", cfg.Paper.CollateralBalance)
	if err != nil {
		return nil, nil, err
	}
	supply, err := config.ParseDecimal("paper.total_supply", cfg.Paper.TotalSupply)
	if err != nil {
		return nil, nil, err
	}
	factor, err := config.ParseDecimal("paper.collateral_factor", cfg.Paper.CollateralFactor)
	if err != nil {
		return nil, nil, err
	}

	wallet := position.NewPaperWallet()
	lending := position.NewPaperLending(strategy, oracle, wallet, factor)
	if err := lending.Seed(collateral, decimal.Zero); err != nil {
		return nil, nil, err
	}
	exchange := position.NewPaperExchange(strategy, oracle, wallet, decimal.Zero)
	token := position.NewPaperToken(supply)

	return position.NewModule(strategy, lending, exchange),
		service.NewPositionReader(strategy, oracle, lending, token),
		nil
}

func pruneEvents(ctx context.Context, repo *repository.PostgresEventRepo, retention time.Duration) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		if err := repo.Cleanup(ctx, retention); err != nil {
			logger.Error("Event cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
