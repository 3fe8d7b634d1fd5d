package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/config"
	"github.com/Gopher0727/bytehub/internal/api"
	"github.com/Gopher0727/bytehub/internal/db"
	"github.com/Gopher0727/bytehub/internal/events"
	"github.com/Gopher0727/bytehub/internal/handler"
	"github.com/Gopher0727/bytehub/internal/pkg/kafka"
	"github.com/Gopher0727/bytehub/internal/pkg/redis"
	"github.com/Gopher0727/bytehub/internal/repository"
	"github.com/Gopher0727/bytehub/internal/service"
	"github.com/Gopher0727/bytehub/internal/utils"
	"github.com/Gopher0727/bytehub/middleware/jwt"
	logger "github.com/Gopher0727/bytehub/middleware/log"
	"github.com/Gopher0727/bytehub/utils/idgen"
	"github.com/Gopher0727/bytehub/utils/ratelimit"
)

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is not configured")
	}

	// 初始化 PostgreSQL
	gdb, err := db.InitPostgres(&cfg.Postgres, cfg.Logging.Level)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	store := repository.NewStore(gdb)

	ids, err := idgen.New(cfg.Snowflake.Node)
	if err != nil {
		return fmt.Errorf("failed to init id generator: %w", err)
	}

	// Redis backs the status cache and the rate limiter; both degrade without it
	var (
		limiter       ratelimit.Limiter
		membershipOpt []service.MembershipOption
	)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, running without status cache and rate limits", zap.Error(err))
	} else {
		defer redisClient.Close()
		limiter = ratelimit.NewWindowLimiter(redisClient.GetClient(), log.Logger, true)
		ttl := time.Duration(cfg.Membership.StatusCacheTTLSeconds) * time.Second
		membershipOpt = append(membershipOpt, service.WithStatusCache(redis.NewStatusCache(redisClient, ttl)))
	}

	// 初始化协程池
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, log)
	pool.Start()
	defer pool.Stop()

	tiers := service.NewTierService(store.Tiers, ids, cfg.Membership)
	boosts := service.NewBoostService(store, ids)

	publisher, shutdownEvents, err := setupEvents(ctx, cfg, pool, boosts, log)
	if err != nil {
		return err
	}
	defer shutdownEvents()

	memberships := service.NewMembershipService(store, tiers, publisher, ids, cfg.Membership, log, membershipOpt...)
	servers := service.NewServerService(store, ids)
	panels := service.NewPanelService(store, memberships, ids)

	if _, err := tiers.EnsureDefaultTier(ctx); err != nil {
		return fmt.Errorf("failed to ensure default tier: %w", err)
	}

	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	mw := api.NewMiddlewareManager(tokenManager, limiter, log, &cfg.RateLimit)
	router := api.NewRouter(cfg.Server.Mode, mw, api.Handlers{
		Membership: handler.NewMembershipHandler(memberships, log),
		Tier:       handler.NewTierHandler(tiers, log),
		Boost:      handler.NewBoostHandler(boosts, log),
		Server:     handler.NewServerHandler(servers, log),
		Panel:      handler.NewPanelHandler(panels, log),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// setupEvents wires membership.granted delivery through Kafka when brokers
// are configured and through the worker pool otherwise.
func setupEvents(
	ctx context.Context,
	cfg *config.Config,
	pool *utils.WorkerPool,
	granter events.BoostGranter,
	log *logger.Logger,
) (events.Publisher, func(), error) {
	if !cfg.Kafka.Enabled() {
		log.Info("kafka not configured, dispatching events in-process")
		return events.NewLocalPublisher(pool, granter, log), func() {}, nil
	}

	producer, err := kafka.NewProducer(&cfg.Kafka)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init kafka producer: %w", err)
	}

	consumer, err := kafka.NewConsumer(
		&cfg.Kafka,
		[]string{cfg.Kafka.Topics.Membership},
		events.NewMembershipGrantedHandler(granter, log),
		log,
	)
	if err != nil {
		_ = producer.Close()
		return nil, nil, fmt.Errorf("failed to init kafka consumer: %w", err)
	}
	if err := consumer.Start(ctx); err != nil {
		_ = producer.Close()
		return nil, nil, fmt.Errorf("failed to start kafka consumer: %w", err)
	}

	shutdown := func() {
		if err := consumer.Stop(); err != nil {
			log.Error("kafka consumer stop failed", zap.Error(err))
		}
		if err := producer.Close(); err != nil {
			log.Error("kafka producer close failed", zap.Error(err))
		}
	}
	publisher := events.NewKafkaPublisher(producer, cfg.Kafka.Topics.Membership, cfg.Kafka.Producer.MaxRetries)
	return publisher, shutdown, nil
}
