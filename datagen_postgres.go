//go:build datagen_postgres
// +build datagen_postgres

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"applicationservice/src/domain/entities"
	"applicationservice/src/helper/env"
	"applicationservice/src/infra/postgres"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DataBundle is one application with the history that led to its status.
type DataBundle struct {
	Application entities.Application
	History     []entities.StatusHistory
}

// Caminhos de status plausíveis; o último elemento é o status atual.
var statusPaths = [][]entities.ApplicationStatus{
	{entities.StatusSubmitted},
	{entities.StatusSubmitted, entities.StatusUnderReview},
	{entities.StatusSubmitted, entities.StatusUnderReview, entities.StatusApproved},
	{entities.StatusSubmitted, entities.StatusUnderReview, entities.StatusRejected},
	{entities.StatusSubmitted, entities.StatusCancelled},
}

func newSQLClient() (*pgxpool.Pool, error) {
	dbHost := env.MustGetString("DB_WRITE_HOST")
	dbPort := env.GetString("DB_WRITE_PORT", "5432")
	dbname := env.MustGetString("DB_NAME")
	dbUser := env.MustGetString("DB_USER")
	dbPassword := env.MustGetString("DB_PASSWORD")
	return postgres.NewPostgresClient(dbHost, dbPort, dbname, dbUser, dbPassword, 32)
}

func main() {
	numApplications := flag.Int("applications", 10000, "Number of applications to create. Use -1 for infinite.")
	numUsers := flag.Int("users", 2000, "Size of the user pool")
	numProducts := flag.Int("products", 200, "Size of the product pool")
	bulkSize := flag.Int("bulk-size", 500, "Rows per COPY")
	numConsumers := flag.Int("consumers", 8, "Concurrent writers")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := newSQLClient()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	users := fakeIDs(*numUsers)
	products := fakeIDs(*numProducts)

	dataChan := make(chan DataBundle, (*bulkSize)*(*numConsumers))

	var wg sync.WaitGroup
	var totalProcessed, totalErrors int64
	startTime := time.Now()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				processed := atomic.LoadInt64(&totalProcessed)
				rate := float64(processed) / time.Since(startTime).Seconds()
				fmt.Printf("Processed: %d | Errors: %d | Rate: %.1f/s\n", processed, atomic.LoadInt64(&totalErrors), rate)
			}
		}
	}()

	for i := 0; i < *numConsumers; i++ {
		wg.Add(1)
		go consumer(ctx, &wg, db, dataChan, *bulkSize, i+1, &totalProcessed, &totalErrors)
	}

	wg.Add(1)
	go producer(ctx, &wg, dataChan, *numApplications, users, products)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received, stopping...")
		cancel()
	}()

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("\nSeeding finished: %d applications, %d failed batches in %v\n",
		atomic.LoadInt64(&totalProcessed), atomic.LoadInt64(&totalErrors), elapsed.Round(time.Second))
}

func fakeIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.MustParse(faker.UUIDHyphenated())
	}
	return ids
}

func producer(ctx context.Context, wg *sync.WaitGroup, dataChan chan<- DataBundle, numApplications int, users, products []uuid.UUID) {
	defer wg.Done()
	defer close(dataChan)

	// só um pedido aberto por (user, product), como o índice exige
	open := make(map[[2]uuid.UUID]bool)

	for count := 0; numApplications == -1 || count < numApplications; {
		bundle := generateFakeApplication(users[rand.Intn(len(users))], products[rand.Intn(len(products))])
		pair := [2]uuid.UUID{bundle.Application.UserID, bundle.Application.ProductID}
		if !bundle.Application.Status.IsTerminal() {
			if open[pair] {
				continue
			}
			open[pair] = true
		}

		select {
		case dataChan <- bundle:
			count++
		case <-ctx.Done():
			fmt.Println("Producer stopping.")
			return
		}
	}
}

func generateFakeApplication(userID, productID uuid.UUID) DataBundle {
	path := statusPaths[rand.Intn(len(statusPaths))]
	// created_at repete de propósito: a paginação precisa desempatar por id
	createdAt := time.Now().UTC().Add(-time.Duration(rand.Intn(90*24)) * time.Hour).Truncate(time.Second)

	var comment *string
	if rand.Intn(3) > 0 {
		text := faker.Sentence()
		comment = &text
	}

	app := entities.Application{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Status:    path[len(path)-1],
		Comment:   comment,
		Files:     fakeIDs(rand.Intn(4)),
		Tags:      fakeIDs(rand.Intn(3)),
		Version:   int64(len(path)),
		CreatedAt: createdAt,
	}
	entities.SortIDs(app.Files)
	entities.SortIDs(app.Tags)

	history := make([]entities.StatusHistory, 0, len(path))
	at := createdAt
	for i, status := range path {
		h := entities.StatusHistory{
			ID:            uuid.New(),
			ApplicationID: app.ID,
			ToStatus:      status,
			ActorID:       userID,
			CreatedAt:     at,
		}
		if i > 0 {
			from := path[i-1]
			h.FromStatus = &from
			if status != entities.StatusCancelled {
				h.ActorID = uuid.MustParse(faker.UUIDHyphenated())
			}
		}
		history = append(history, h)
		at = at.Add(time.Duration(1+rand.Intn(72)) * time.Hour)
	}

	app.UpdatedAt = history[len(history)-1].CreatedAt
	if app.Status.IsTerminal() {
		decided := app.UpdatedAt
		app.DecidedAt = &decided
	}

	return DataBundle{Application: app, History: history}
}

func consumer(ctx context.Context, wg *sync.WaitGroup, db *pgxpool.Pool, dataChan <-chan DataBundle, bulkSize, consumerID int, totalProcessed, totalErrors *int64) {
	defer wg.Done()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	bundles := make([]DataBundle, 0, bulkSize)

	flush := func(reason string) {
		if len(bundles) == 0 {
			return
		}
		if err := bulkInsert(ctx, db, bundles); err != nil {
			log.Printf("Consumer %d: ERROR on %s flush: %v", consumerID, reason, err)
			atomic.AddInt64(totalErrors, 1)
		} else {
			atomic.AddInt64(totalProcessed, int64(len(bundles)))
		}
		bundles = make([]DataBundle, 0, bulkSize)
	}

	for {
		select {
		case b, ok := <-dataChan:
			if !ok {
				flush("final")
				return
			}
			bundles = append(bundles, b)
			if len(bundles) >= bulkSize {
				flush("bulk")
			}
		case <-ticker.C:
			flush("ticker")
		case <-ctx.Done():
			return
		}
	}
}

func bulkInsert(ctx context.Context, db *pgxpool.Pool, bundles []DataBundle) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return postgres.WithTx(ctx, db, postgres.ReadWrite, func(tx pgx.Tx) error {
		appRows := make([][]any, 0, len(bundles))
		var historyRows [][]any

		for _, b := range bundles {
			a := b.Application
			appRows = append(appRows, []any{
				a.ID, a.UserID, a.ProductID, string(a.Status), postgres.NewNullString(a.Comment),
				a.Files, a.Tags, a.Version, a.CreatedAt, a.UpdatedAt, postgres.NewNullTime(a.DecidedAt),
			})

			for _, h := range b.History {
				var from *string
				if h.FromStatus != nil {
					s := string(*h.FromStatus)
					from = &s
				}
				historyRows = append(historyRows, []any{
					h.ID, h.ApplicationID, postgres.NewNullString(from), string(h.ToStatus), h.ActorID, h.CreatedAt,
				})
			}
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"applications"},
			[]string{"id", "user_id", "product_id", "status", "comment", "files", "tags", "version", "created_at", "updated_at", "decided_at"},
			pgx.CopyFromRows(appRows),
		); err != nil {
			return fmt.Errorf("copy applications: %w", err)
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"application_status_history"},
			[]string{"id", "application_id", "from_status", "to_status", "actor_id", "created_at"},
			pgx.CopyFromRows(historyRows),
		); err != nil {
			return fmt.Errorf("copy status history: %w", err)
		}

		return nil
	})
}
