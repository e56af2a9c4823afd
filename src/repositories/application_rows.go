package repositories

import (
	"context"
	"fmt"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/infra/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const applicationColumns = `
	id,
	user_id,
	product_id,
	status,
	comment,
	files,
	tags,
	version,
	created_at,
	updated_at,
	decided_at`

func scanApplication(row pgx.Row) (entities.Application, error) {
	var app entities.Application

	err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.ProductID,
		&app.Status,
		&app.Comment,
		&app.Files,
		&app.Tags,
		&app.Version,
		&app.CreatedAt,
		&app.UpdatedAt,
		&app.DecidedAt,
	)
	if app.Files == nil {
		app.Files = []uuid.UUID{}
	}
	if app.Tags == nil {
		app.Tags = []uuid.UUID{}
	}

	return app, err
}

func getApplicationByID(ctx context.Context, db postgres.DBTX, id uuid.UUID) (*entities.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := scanApplication(db.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load application %s: %w", id, err)
	}

	return &app, nil
}
