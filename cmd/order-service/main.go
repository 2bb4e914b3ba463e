// cmd/order-service/main.go
package main

import (
	"context"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/redis"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/infrastructure"
	"bazaar/internal/service/order/infrastructure/adapter"
	"bazaar/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)

			// 持久化
			db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to connect to mysql")
			}
			orderRepo := infrastructure.NewGormOrderRepository(db)
			if err := orderRepo.AutoMigrate(); err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to migrate order schema")
			}

			// 回调暂存
			redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to connect to redis")
			}
			pendingEvents := adapter.NewPendingEventRedisAdapter(redisClient)

			// 通知
			notificationWriter := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic)
			notifier := adapter.NewNotificationKafkaAdapter(notificationWriter)

			// 出站 HTTP
			httpClient := httpclient.NewClient(tracer)
			gateway := adapter.NewMonnifyHTTPAdapter(httpClient, adapter.MonnifyConfig{
				BaseURL:      cfg.Monnify.BaseURL,
				APIKey:       cfg.Monnify.APIKey,
				SecretKey:    cfg.Monnify.SecretKey,
				ContractCode: cfg.Monnify.ContractCode,
				CurrencyCode: cfg.Monnify.CurrencyCode,
			})
			users := adapter.NewUserHTTPAdapter(httpClient, cfg.Services.UserServiceURL)

			// 应用服务与回调处理器
			orderService := application.NewOrderApplicationService(orderRepo, tracer, gateway, notifier, pendingEvents)
			webhookProcessor := application.NewPaymentWebhookProcessor(cfg.Monnify.SecretKey, orderService, pendingEvents, tracer)

			handler := interfaces.NewOrderHandler(orderService, webhookProcessor, users)
			handler.RegisterRoutes(appCtx.Mux)

			shutdownHooks = append(shutdownHooks, func(ctx context.Context) {
				if err := notifier.Close(); err != nil {
					logger.Logger().Error().Err(err).Msg("failed to close notification writer")
				}
				if err := redisClient.Close(); err != nil {
					logger.Logger().Error().Err(err).Msg("failed to close redis client")
				}
			})
		},
		OnShutdown: func(ctx context.Context) {
			for _, hook := range shutdownHooks {
				hook(ctx)
			}
		},
	})
}

var shutdownHooks []func(context.Context)
