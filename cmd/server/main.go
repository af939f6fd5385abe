package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/room-reservation/internal/config"
	"github.com/iliyamo/room-reservation/internal/database"
	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/lock"
	"github.com/iliyamo/room-reservation/internal/logger"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/router"
	"github.com/iliyamo/room-reservation/internal/service"
	"github.com/iliyamo/room-reservation/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	pc, err := config.LoadPolicyConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		zl.Info("schema migrated")
	}

	var rdb *redis.Client
	if c, err := config.NewRedisClient(); err != nil {
		zl.Warn("redis unavailable; rate limiting and scan lock disabled", zap.Error(err))
	} else {
		rdb = c
		defer rdb.Close()
	}

	opts := []service.Option{service.WithLogger(zl.Named("engine"))}
	if cfg.RabbitURL != "" {
		opts = append(opts, service.WithNotifier(service.NewQueuePublisher(cfg.RabbitURL, zl)))
	} else {
		zl.Warn("RABBITMQ_URL not set; violation notices will not be sent")
	}
	if rdb != nil && !pc.RedisLockDisabled {
		opts = append(opts, service.WithScanLock(lock.NewRedisLock(rdb, pc.LockKey, pc.LockTTL)))
	}
	engine := service.NewEngine(storage.NewMySQL(db, pc.Location, zl), service.Policy{
		GracePeriod:         pc.GracePeriod,
		RescheduleLead:      pc.RescheduleLead,
		ViolationLookback:   pc.ViolationLookback,
		BlockDuration:       pc.BlockDuration,
		SuspensionDuration:  pc.SuspensionDuration,
		SuspensionThreshold: pc.SuspensionThreshold,
		Location:            pc.Location,
	}, opts...)

	if cfg.NotifyConsumer && cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitURL, "logs", zl); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}
	if pc.LifecycleTick > 0 {
		go runTicker(ctx, engine, pc.LifecycleTick, zl)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(zl.Named("http")))

	router.RegisterRoutes(e, db)
	router.RegisterReservations(e,
		handler.NewReservationHandler(engine, pc.Location),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
		middleware.LifecycleTrigger(ctx, engine, pc.TriggerInterval, zl),
	)
	router.RegisterLifecycle(e, handler.NewLifecycleHandler(engine, cfg.TriggerToken), cfg.JWTSecret)

	addr := ":" + cfg.Port
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", pc.Location.String()))

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// runTicker drives the lifecycle scan from inside the process.
func runTicker(ctx context.Context, engine *service.Engine, every time.Duration, zl *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := engine.RunLifecycle(ctx)
			if err != nil {
				zl.Warn("scheduled lifecycle scan failed", zap.Error(err))
				continue
			}
			if res.Completed > 0 || res.Forfeited > 0 {
				zl.Info("scheduled lifecycle scan",
					zap.Int("completed", res.Completed),
					zap.Int("forfeited", res.Forfeited))
			}
		}
	}
}
