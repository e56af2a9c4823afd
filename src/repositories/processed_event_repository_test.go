package repositories_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"applicationservice/src/helper/env"
	"applicationservice/src/infra/redis"
	"applicationservice/src/repositories"

	"github.com/google/uuid"
)

var _ = Describe("ProcessedEventRepository", func() {
	var (
		ctx         context.Context
		redisClient *redis.RedisClient
		repository  *repositories.ProcessedEventRepository
	)

	redisAddrs := env.GetString("TEST_REDIS_HOSTS", "")

	BeforeEach(func() {
		if redisAddrs == "" {
			Skip("TEST_REDIS_HOSTS not set")
		}

		ctx = context.Background()
		redisClient = redis.NewRedisClient(redisAddrs, env.GetInt("TEST_REDIS_POOL_SIZE", 10), time.Minute).WithPrefix("test:processed:")
		repository = repositories.NewProcessedEventRepository(redisClient, "cascade-deletion", time.Minute)

		Expect(redisClient.FlushByPrefix(ctx)).To(Succeed())
	})

	It("remembers an event after it is marked", func() {
		eventID := uuid.New()

		processed, err := repository.IsProcessed(ctx, eventID)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(BeFalse())

		marked, err := repository.MarkProcessed(ctx, eventID)
		Expect(err).NotTo(HaveOccurred())
		Expect(marked).To(BeTrue())

		processed, err = repository.IsProcessed(ctx, eventID)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(BeTrue())
	})

	It("reports false when the event was already marked", func() {
		eventID := uuid.New()
		_, err := repository.MarkProcessed(ctx, eventID)
		Expect(err).NotTo(HaveOccurred())

		marked, err := repository.MarkProcessed(ctx, eventID)

		Expect(err).NotTo(HaveOccurred())
		Expect(marked).To(BeFalse())
	})

	It("keeps consumers apart", func() {
		eventID := uuid.New()
		other := repositories.NewProcessedEventRepository(redisClient, "another-consumer", time.Minute)
		_, err := repository.MarkProcessed(ctx, eventID)
		Expect(err).NotTo(HaveOccurred())

		processed, err := other.IsProcessed(ctx, eventID)

		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(BeFalse())
	})
})
