package test_seeder

import (
	"context"
	"fmt"

	"applicationservice/src/domain/entities"
)

// InsertApplication inserts an application with its initial history row, bypassing the repositories
func (ts TestSeeder) InsertApplication(ctx context.Context, app entities.Application) {
	query := `
		INSERT INTO applications (id, user_id, product_id, status, comment, files, tags, version, created_at, updated_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := ts.pool.Exec(ctx, query,
		app.ID,
		app.UserID,
		app.ProductID,
		app.Status,
		app.Comment,
		app.Files,
		app.Tags,
		app.Version,
		app.CreatedAt,
		app.UpdatedAt,
		app.DecidedAt,
	)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertApplication failed: %v", err))
	}

	_, err = ts.pool.Exec(ctx, `
		INSERT INTO application_status_history (id, application_id, to_status, actor_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		app.ID, app.Status, app.UserID, app.CreatedAt,
	)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertApplication history failed: %v", err))
	}
}
