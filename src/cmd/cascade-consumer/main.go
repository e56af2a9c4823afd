package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"applicationservice/src/adapters/kafka/consumers"
	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/helper/env"
	"applicationservice/src/infra/kafka"
	"applicationservice/src/infra/postgres"
	"applicationservice/src/infra/redis"
	"applicationservice/src/repositories"
	"applicationservice/src/services/cascade"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting Cascade Deletion Consumer with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newReadWriteClient,
			newRedisClient,
			newKafkaClient,
			newApplicationWriteRepository,
			newProcessedEventRepository,
			newCascadeService,
			newCascadeDeletionConsumer,
		),

		// Invocations
		fx.Invoke(startConsumer),
	)

	app.Run()

	log.Println("Cascade deletion consumer shutdown complete")
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

// The consumer only writes, but the read pool is kept so both binaries share the same DB_* settings.
func newReadWriteClient(lc fx.Lifecycle) (*postgres.ReadWriteClient, error) {
	client, err := postgres.NewReadWriteClient(postgres.Config{
		ReadHost:       env.GetString("DB_READ_HOST", env.MustGetString("DB_WRITE_HOST")),
		WriteHost:      env.MustGetString("DB_WRITE_HOST"),
		ReadPort:       env.GetString("DB_READ_PORT", "5432"),
		WritePort:      env.GetString("DB_WRITE_PORT", "5432"),
		DBName:         env.MustGetString("DB_NAME"),
		User:           env.MustGetString("DB_USER"),
		Password:       env.MustGetString("DB_PASSWORD"),
		MaxConnections: env.GetInt("DB_MAX_POOL_CONNECTIONS", 10),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

func newRedisClient(lc fx.Lifecycle, logger *slog.Logger) *redis.RedisClient {
	redisHosts := env.MustGetString("REDIS_HOSTS")
	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 10)
	redisDefaultTTLSeconds := env.GetInt("REDIS_DEFAULT_TTL_SECONDS", 120)
	redisDefaultTTL := time.Duration(redisDefaultTTLSeconds) * time.Second

	client := redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL)
	lc.Append(fx.Hook{
		// without Redis, deduplication falls back to idempotent deletes
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

func newKafkaClient(logger *slog.Logger) (*kafka.KafkaClient, error) {
	return kafka.NewKafkaClient(logger, kafka.Config{
		Brokers:      env.GetStringSlice("KAFKA_BROKERS"),
		GroupID:      env.MustGetString("KAFKA_CASCADE_CONSUMER_GROUP_ID"),
		ClientID:     env.GetString("KAFKA_CLIENT_ID", "application-cascade-consumer"),
		RetryInitial: env.GetDuration("KAFKA_RETRY_INITIAL", 200*time.Millisecond),
		RetryMax:     env.GetDuration("KAFKA_RETRY_MAX", 30*time.Second),
	})
}

func newApplicationWriteRepository(readWriteClient *postgres.ReadWriteClient) *repositories.ApplicationWriteRepository {
	return repositories.NewApplicationWriteRepository(readWriteClient.GetWritePool())
}

func newProcessedEventRepository(redisClient *redis.RedisClient) *repositories.ProcessedEventRepository {
	ttl := time.Duration(env.GetInt("EVENT_DEDUP_TTL_HOURS", 24)) * time.Hour
	return repositories.NewProcessedEventRepository(redisClient, "cascade-deletion", ttl)
}

func newCascadeService(
	logger *slog.Logger,
	writeRepository *repositories.ApplicationWriteRepository,
	redisClient *redis.RedisClient,
) *cascade.CascadeService {
	// o cache de existência vive no mesmo Redis da API
	return cascade.NewCascadeService(logger, writeRepository, remote.NewExistenceCacheInvalidator(redisClient))
}

func newCascadeDeletionConsumer(
	logger *slog.Logger,
	cascadeService *cascade.CascadeService,
	processedEvents *repositories.ProcessedEventRepository,
) *consumers.CascadeDeletionConsumer {
	return consumers.NewCascadeDeletionConsumer(logger, cascadeService, processedEvents)
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	cascadeConsumer *consumers.CascadeDeletionConsumer,
) {
	consumeCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topics := []string{
				env.GetString("KAFKA_USER_DELETED_TOPIC", string(domain.EventUserDeleted)),
				env.GetString("KAFKA_PRODUCT_DELETED_TOPIC", string(domain.EventProductDeleted)),
			}

			// Start consumer in background
			go func() {
				defer close(done)
				if err := cascadeConsumer.Start(consumeCtx, kafkaClient, topics); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Kafka client...")
			cancel()

			// in-flight deletions finish before the group leaves
			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn("Consumer did not stop in time")
			}

			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
