//go:build datagen_kafka_deletions
// +build datagen_kafka_deletions

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"applicationservice/src/domain"
	"applicationservice/src/helper/env"
	"applicationservice/src/infra/kafka"
	"applicationservice/src/infra/postgres"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// subjectPool holds the ids the generator announces as deleted. With -from-db the
// ids come from existing applications, so the cascade actually removes rows.
type subjectPool struct {
	users    []uuid.UUID
	products []uuid.UUID
}

func (p subjectPool) pick(eventType domain.EventType) uuid.UUID {
	ids := p.users
	if eventType == domain.EventProductDeleted {
		ids = p.products
	}
	if len(ids) == 0 {
		return uuid.MustParse(faker.UUIDHyphenated())
	}
	return ids[rand.Intn(len(ids))]
}

func loadSubjects(ctx context.Context, limit int) (subjectPool, error) {
	db, err := postgres.NewPostgresClient(
		env.MustGetString("DB_READ_HOST"),
		env.GetString("DB_READ_PORT", "5432"),
		env.MustGetString("DB_NAME"),
		env.MustGetString("DB_USER"),
		env.MustGetString("DB_PASSWORD"),
		2,
	)
	if err != nil {
		return subjectPool{}, err
	}
	defer db.Close()

	users, err := distinctIDs(ctx, db, "user_id", limit)
	if err != nil {
		return subjectPool{}, err
	}
	products, err := distinctIDs(ctx, db, "product_id", limit)
	if err != nil {
		return subjectPool{}, err
	}

	return subjectPool{users: users, products: products}, nil
}

func distinctIDs(ctx context.Context, db *pgxpool.Pool, column string, limit int) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, "SELECT DISTINCT "+column+" FROM applications LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// generateMessage monta um envelope de deleção; uma fração sai malformada de propósito.
func generateMessage(pool subjectPool, malformedRate float64) kafka.Message {
	eventType := domain.EventUserDeleted
	if rand.Intn(2) == 0 {
		eventType = domain.EventProductDeleted
	}

	if rand.Float64() < malformedRate {
		return kafka.Message{
			Key:   faker.UUIDHyphenated(),
			Value: []byte(`{"event_type":"` + string(eventType) + `","note":"` + faker.Sentence() + `"}`),
		}
	}

	envelope := domain.NewEnvelope(eventType, pool.pick(eventType), uuid.MustParse(faker.UUIDHyphenated()), nil)
	value, err := json.Marshal(envelope)
	if err != nil {
		log.Fatalf("Failed to marshal envelope: %v", err)
	}

	return kafka.Message{
		Key:   envelope.Key(),
		Value: value,
		Headers: map[string]string{
			"event_type": string(envelope.EventType),
			"event_id":   envelope.EventID.String(),
		},
	}
}

func main() {
	totalMessages := flag.Int("count", 1000, "Total number of messages to generate. Use -1 for infinite.")
	userTopic := flag.String("user-topic", string(domain.EventUserDeleted), "Topic for user.deleted")
	productTopic := flag.String("product-topic", string(domain.EventProductDeleted), "Topic for product.deleted")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated) (required)")
	fromDB := flag.Bool("from-db", false, "Pick subjects from existing applications")
	duplicateRate := flag.Float64("duplicate-rate", 0.1, "Fraction of messages sent twice")
	malformedRate := flag.Float64("malformed-rate", 0.02, "Fraction of malformed messages")
	delayMs := flag.Int("delay-ms", 10, "Delay in milliseconds between messages")
	flag.Parse()

	if *brokers == "" {
		log.Fatal("The 'brokers' flag is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping...")
		cancel()
	}()

	var pool subjectPool
	if *fromDB {
		var err error
		if pool, err = loadSubjects(ctx, 10000); err != nil {
			log.Fatalf("Failed to load subjects: %v", err)
		}
		log.Printf("Loaded %d users and %d products", len(pool.users), len(pool.products))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	kafkaClient, err := kafka.NewKafkaClient(logger, kafka.Config{
		Brokers:  strings.Split(*brokers, ","),
		ClientID: "application-datagen",
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}
	defer kafkaClient.Close()

	topicFor := func(msg kafka.Message) string {
		if msg.Headers["event_type"] == string(domain.EventProductDeleted) {
			return *productTopic
		}
		return *userTopic
	}

	sent := 0
	startTime := time.Now()

	for *totalMessages == -1 || sent < *totalMessages {
		select {
		case <-ctx.Done():
			log.Println("Shutdown requested, stopping message generation")
			return
		default:
		}

		msg := generateMessage(pool, *malformedRate)
		msg.Topic = topicFor(msg)

		copies := 1
		if rand.Float64() < *duplicateRate {
			copies = 2
		}
		for i := 0; i < copies; i++ {
			if err := kafkaClient.Publish(ctx, msg); err != nil {
				log.Printf("Failed to publish: %v", err)
			}
		}
		sent++

		if sent%500 == 0 {
			rate := float64(sent) / time.Since(startTime).Seconds()
			log.Printf("Sent %d messages (%.1f msg/sec)", sent, rate)
		}

		if *delayMs > 0 {
			time.Sleep(time.Duration(*delayMs) * time.Millisecond)
		}
	}

	log.Printf("Completed! Sent %d messages in %v", sent, time.Since(startTime).Round(time.Millisecond))
}
