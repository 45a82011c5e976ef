package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon_hub/docs"
	"coupon_hub/internal/pkg/archive"
	"coupon_hub/internal/pkg/config"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/internal/pkg/push"
	"coupon_hub/internal/pkg/registry"
	"coupon_hub/internal/pkg/worker"
	"coupon_hub/pkg/cache"
	"coupon_hub/pkg/database"
	"coupon_hub/pkg/logger"
	"coupon_hub/pkg/metrics"

	// 模块在 init 中自注册
	_ "coupon_hub/internal/domain/announcement"
	_ "coupon_hub/internal/domain/campaign"
	_ "coupon_hub/internal/domain/common"
	_ "coupon_hub/internal/domain/coupon"
	_ "coupon_hub/internal/domain/user"

	"github.com/NYTimes/gziphandler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// @title Coupon Hub API
// @version 1.0
// @description Campaign, coupon and announcement management.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger 尚未初始化
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	config.GlobalConfig = *cfg

	log, err := logger.Init(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDatabase(cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var cacheSvc cache.CacheService
	if rdb != nil {
		defer rdb.Close()
		cacheSvc = cache.NewRedisCache(rdb, "coupon_hub")
	}

	verifier, err := identity.NewJWTVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	notifier, err := push.New(cfg.Push)
	if err != nil {
		return err
	}
	notifyPool := worker.NewWorkerPool(notifier, log, cfg.Push.Workers, cfg.Push.QueueSize)
	notifyPool.Start()

	collector := metrics.GetGlobalCollector()
	collector.RegisterDBStats(prometheus.DefaultRegisterer, sqlDB, cfg.Database.DBName)

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	stopCleanup := startLimiterCleanup(limiter, log)
	defer stopCleanup()

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.MetricsMiddleware(collector),
		middleware.RateLimitMiddleware(limiter),
		buildCORSMiddleware(cfg.Server.CORSOrigins),
	)
	docs.SwaggerInfo.BasePath = "/"

	moduleCtx := &registry.ModuleContext{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Router:   router,
		Logger:   log,
		Tx:       database.NewTxManager(db),
		Cache:    cacheSvc,
		Verifier: verifier,
		Archiver: archiver,
		Notifier: notifyPool,
		Metrics:  collector,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      gziphandler.GzipHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()
	log.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown server failed", zap.Error(err))
		return err
	}
	if err := notifyPool.Stop(shutdownCtx); err != nil {
		log.Warn("notification pool did not drain", zap.Error(err))
	}
	log.Info("server exited properly")
	return nil
}

func buildCORSMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Type", middleware.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	return cors.New(corsCfg)
}

// startLimiterCleanup 定期清理长时间未访问的 IP
func startLimiterCleanup(limiter *middleware.IPRateLimiter, log *zap.Logger) func() {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					log.Debug("rate limiter cleanup", zap.Int("removed", n))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
