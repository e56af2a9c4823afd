package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	httpadapter "applicationservice/src/adapters/http"
	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/helper/env"
	"applicationservice/src/infra/kafka"
	"applicationservice/src/infra/postgres"
	"applicationservice/src/infra/redis"
	"applicationservice/src/repositories"
	"applicationservice/src/services/applications"
	"applicationservice/src/services/events"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting Application API with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newReadWriteClient,
			newRedisClient,
			newKafkaClient,
			newExistenceGateway,
			newApplicationWriteRepository,
			newApplicationQueryRepository,
			newEnvelopePublisher,
			newApplicationService,
			newServer,
		),

		// Invocations
		fx.Invoke(registerServerHooks),
	)

	app.Run()
}

func newLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newReadWriteClient(lc fx.Lifecycle) (*postgres.ReadWriteClient, error) {
	client, err := postgres.NewReadWriteClient(postgres.Config{
		ReadHost:       env.MustGetString("DB_READ_HOST"),
		WriteHost:      env.MustGetString("DB_WRITE_HOST"),
		ReadPort:       env.GetString("DB_READ_PORT", "5432"),
		WritePort:      env.GetString("DB_WRITE_PORT", "5432"),
		DBName:         env.MustGetString("DB_NAME"),
		User:           env.MustGetString("DB_USER"),
		Password:       env.MustGetString("DB_PASSWORD"),
		MaxConnections: env.GetInt("DB_MAX_POOL_CONNECTIONS", 25),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

func newRedisClient(lc fx.Lifecycle, logger *slog.Logger) *redis.RedisClient {
	redisHosts := env.MustGetString("REDIS_HOSTS")
	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTLSeconds := env.GetInt("REDIS_DEFAULT_TTL_SECONDS", 120)
	redisDefaultTTL := time.Duration(redisDefaultTTLSeconds) * time.Second

	client := redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL)
	lc.Append(fx.Hook{
		// without Redis, existence checks go straight to the owning services
		OnStart: func(ctx context.Context) error {
			if err := client.HealthCheck(ctx); err != nil {
				logger.Warn("Redis unreachable at startup", "error", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// newKafkaClient is publish-only: no group id, so no consumer group is created.
func newKafkaClient(lc fx.Lifecycle, logger *slog.Logger) (*kafka.KafkaClient, error) {
	client, err := kafka.NewKafkaClient(logger, kafka.Config{
		Brokers:  env.GetStringSlice("KAFKA_BROKERS"),
		ClientID: env.GetString("KAFKA_CLIENT_ID", "application-api"),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Flushing Kafka producer...")
			return client.Close()
		},
	})
	return client, nil
}

func newExistenceGateway(logger *slog.Logger, redisClient *redis.RedisClient) remote.Checker {
	gateway := remote.NewExistenceGateway(logger, remote.GatewayConfig{
		BaseURLs: map[domain.EntityKind]string{
			domain.KindUser:    env.MustGetString("USER_SERVICE_URL"),
			domain.KindProduct: env.MustGetString("PRODUCT_SERVICE_URL"),
			domain.KindFile:    env.MustGetString("FILE_SERVICE_URL"),
			domain.KindTag:     env.MustGetString("TAG_SERVICE_URL"),
		},
		Timeout:          env.GetDuration("EXISTENCE_TIMEOUT", 2*time.Second),
		BreakerThreshold: env.GetInt("EXISTENCE_BREAKER_THRESHOLD", 5),
		BreakerReset:     env.GetDuration("EXISTENCE_BREAKER_RESET", 10*time.Second),
	})

	cacheTTL := time.Duration(env.GetInt("EXISTENCE_CACHE_TTL_SECONDS", 30)) * time.Second
	if cacheTTL <= 0 {
		return gateway
	}
	return remote.NewCachedExistenceGateway(logger, gateway, redisClient, cacheTTL)
}

func newApplicationWriteRepository(readWriteClient *postgres.ReadWriteClient) *repositories.ApplicationWriteRepository {
	return repositories.NewApplicationWriteRepository(readWriteClient.GetWritePool())
}

func newApplicationQueryRepository(readWriteClient *postgres.ReadWriteClient) *repositories.ApplicationQueryRepository {
	return repositories.NewApplicationQueryRepository(readWriteClient.GetReadPool())
}

func newEnvelopePublisher(logger *slog.Logger, kafkaClient *kafka.KafkaClient) *events.EnvelopePublisher {
	topics := events.DefaultTopics()
	topics[domain.EventTagCreateRequest] = env.GetString("KAFKA_TAG_CREATE_TOPIC", string(domain.EventTagCreateRequest))
	topics[domain.EventTagAttachRequest] = env.GetString("KAFKA_TAG_ATTACH_TOPIC", string(domain.EventTagAttachRequest))
	topics[domain.EventFileAttachRequest] = env.GetString("KAFKA_FILE_ATTACH_TOPIC", string(domain.EventFileAttachRequest))

	return events.NewEnvelopePublisher(logger, kafkaClient, topics)
}

func newApplicationService(
	logger *slog.Logger,
	gateway remote.Checker,
	writeRepository *repositories.ApplicationWriteRepository,
	queryRepository *repositories.ApplicationQueryRepository,
	publisher *events.EnvelopePublisher,
) *applications.ApplicationService {
	return applications.NewApplicationService(logger, gateway, writeRepository, queryRepository, publisher)
}

func newServer(logger *slog.Logger, applicationService *applications.ApplicationService) *httpadapter.Server {
	port := env.GetInt("SERVER_PORT", 8888)
	return httpadapter.NewServer(logger, port, applicationService)
}

// registerServerHooks registers lifecycle hooks for the HTTP server
func registerServerHooks(lc fx.Lifecycle, logger *slog.Logger, srv *httpadapter.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", "error", err)
				return err
			}
			logger.Info("Server exited gracefully")
			return nil
		},
	})
}
