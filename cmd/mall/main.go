package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	cartapp "github.com/wyfcoding/onlinemall/internal/cart/application"
	cartdomain "github.com/wyfcoding/onlinemall/internal/cart/domain"
	cartmysql "github.com/wyfcoding/onlinemall/internal/cart/infrastructure/persistence/mysql"
	carthttp "github.com/wyfcoding/onlinemall/internal/cart/interfaces/http"
	catalogapp "github.com/wyfcoding/onlinemall/internal/catalog/application"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
	catalogmsg "github.com/wyfcoding/onlinemall/internal/catalog/infrastructure/messaging"
	catalogmysql "github.com/wyfcoding/onlinemall/internal/catalog/infrastructure/persistence/mysql"
	catalogredis "github.com/wyfcoding/onlinemall/internal/catalog/infrastructure/persistence/redis"
	cataloghttp "github.com/wyfcoding/onlinemall/internal/catalog/interfaces/http"
	orderapp "github.com/wyfcoding/onlinemall/internal/order/application"
	orderdomain "github.com/wyfcoding/onlinemall/internal/order/domain"
	ordermsg "github.com/wyfcoding/onlinemall/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/onlinemall/internal/order/infrastructure/persistence/mysql"
	orderconsumer "github.com/wyfcoding/onlinemall/internal/order/interfaces/consumer"
	orderhttp "github.com/wyfcoding/onlinemall/internal/order/interfaces/http"
	"github.com/wyfcoding/onlinemall/pkg/cache"
	"github.com/wyfcoding/onlinemall/pkg/config"
	"github.com/wyfcoding/onlinemall/pkg/db"
	"github.com/wyfcoding/onlinemall/pkg/logger"
	"github.com/wyfcoding/onlinemall/pkg/metrics"
	"github.com/wyfcoding/onlinemall/pkg/middleware"
	"github.com/wyfcoding/onlinemall/pkg/mq"
	"github.com/wyfcoding/onlinemall/pkg/outbox"
	"github.com/wyfcoding/onlinemall/pkg/ratelimit"
	"github.com/wyfcoding/onlinemall/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/mall/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	log := logger.Get()
	slog.SetDefault(log)

	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		slog.Error("failed to register metrics", "error", err)
	}

	// 4. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}, m)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	outboxMgr := outbox.NewManager(database.DB, log)
	if cfg.Environment == "dev" {
		if err := database.DB.AutoMigrate(
			&catalogdomain.Product{}, &catalogdomain.Category{},
			&cartdomain.CartItem{},
			&orderdomain.Order{}, &orderdomain.OrderItem{},
			&outbox.Message{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka & Outbox
	kafkaProducer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		slog.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.SendRaw(ctx, topic, key, payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	// 7. 仓储
	productRepo := catalogmysql.NewProductRepository(database.DB)
	categoryRepo := catalogmysql.NewCategoryRepository(database.DB)
	productCache := catalogredis.NewProductCache(redisCache.GetClient())
	cartRepo := cartmysql.NewCartRepository(database.DB)
	orderRepo := ordermysql.NewOrderRepository(database.DB)

	catalogPublisher := catalogmsg.NewOutboxPublisher(outboxMgr)
	orderPublisher := ordermsg.NewOutboxPublisher(outboxMgr)

	// 8. 应用服务
	idgen := utils.NewSnowflakeID(1)

	catalogCmd := catalogapp.NewCatalogCommandService(productRepo, categoryRepo, productCache, catalogPublisher, log)
	catalogQuery := catalogapp.NewCatalogQueryService(productRepo, categoryRepo, productCache, log)
	cartCmd := cartapp.NewCartCommandService(cartRepo, productRepo, catalogPublisher, log)
	cartQuery := cartapp.NewCartQueryService(cartRepo, productRepo, log)
	orderCmd := orderapp.NewOrderCommandService(orderRepo, cartRepo, productRepo, orderPublisher, idgen, m, log)
	orderQuery := orderapp.NewOrderQueryService(orderRepo, log)

	// 9. HTTP
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware())
	r.Use(middleware.GinMetricsMiddleware(m))
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	root := r.Group("")
	cataloghttp.NewCatalogHandler(catalogCmd, catalogQuery).RegisterRoutes(root)
	carthttp.NewCartHandler(cartCmd, cartQuery).RegisterRoutes(root)
	orderhttp.NewOrderHandler(orderCmd, orderQuery).RegisterRoutes(root)

	// 10. 订单事件消费
	notifier := orderconsumer.NewNotificationHandler(log)
	topics := []string{
		orderdomain.TopicOrderCreated,
		orderdomain.TopicOrderPaid,
		orderdomain.TopicOrderCancelled,
		orderdomain.TopicOrderShipped,
		orderdomain.TopicOrderCompleted,
	}
	consumers := make([]*mq.KafkaConsumer, 0, len(topics))
	for _, topic := range topics {
		consumer, err := mq.NewConsumer(mq.KafkaConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			SessionTimeout: cfg.Kafka.SessionTimeout,
		}, topic)
		if err != nil {
			slog.Error("failed to create kafka consumer", "topic", topic, "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		consumers = append(consumers, consumer)
	}

	// 11. 启动
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		notifier.Run(ctx, consumers)
		<-ctx.Done()
		return nil
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			slog.Info("metrics server starting", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			return metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
