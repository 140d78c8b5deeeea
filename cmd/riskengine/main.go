package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/httpclient"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/wyfcoding/portfoliorisk/internal/simulation/application"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/infrastructure/client"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/infrastructure/messaging"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/infrastructure/persistence/mysql"
	simhttp "github.com/wyfcoding/portfoliorisk/internal/simulation/interfaces/http"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/riskengine/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config failed: %v", err))
	}

	// 2. Logger
	logger := logging.NewLogger("portfoliorisk", "main", viper.GetString("log.level"))
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	m := metrics.NewMetrics("portfoliorisk")

	// 4. Database
	dsn := viper.GetString("database.source")
	db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}
	if err := db.AutoMigrate(&mysql.SimulationRunModel{}, &messaging.OutboxMessage{}); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 5. Infrastructure
	runRepo := mysql.NewSimulationRunRepository(db)

	cacheTTL := viper.GetDuration("marketdata.cache_ttl")
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	localCache, err := cache.NewBigCache(cacheTTL, 256, logger)
	if err != nil {
		panic(fmt.Sprintf("init local cache failed: %v", err))
	}

	httpClient := httpclient.NewClient(httpclient.Config{
		ServiceName: "portfoliorisk",
		Timeout:     30 * time.Second,
	}, logger, m)
	marketData := client.NewMarketDataClient(viper.GetString("marketdata.base_url"), httpClient, localCache, cacheTTL)

	// 事件发布统一走 Outbox 落库；配置了 Kafka 时由后台中继转发到消息队列。
	var publisher domain.EventPublisher = messaging.NewOutboxEventPublisher(db)
	var relay *messaging.OutboxRelay
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		producer := kafka.NewProducer(&config.KafkaConfig{
			Brokers: brokers,
			Topic:   viper.GetString("kafka.topic"),
		}, logger, m)
		defer producer.Close()
		kafkaPublisher := messaging.NewKafkaEventPublisher(producer)
		relay = messaging.NewOutboxRelay(db, kafkaPublisher, 100, 5*time.Second)
	}

	// 6. Application
	appService := application.NewSimulationService(marketData, runRepo, publisher, m)

	// 7. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	handler := simhttp.NewSimulationHandler(appService)
	handler.RegisterRoutes(&r.RouterGroup)

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) {
			if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "READY"})
		})
	}
	r.GET("/metrics", gin.WrapH(m.Handler()))
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	// 8. Start
	g, ctx := errgroup.WithContext(context.Background())

	httpPort := viper.GetString("server.http_port")
	if httpPort == "" {
		httpPort = "8093"
	}
	server := &http.Server{Addr: fmt.Sprintf(":%s", httpPort), Handler: r}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	// 9. Graceful Shutdown
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
