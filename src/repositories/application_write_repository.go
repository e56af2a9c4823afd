package repositories

import (
	"context"
	"fmt"
	"time"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/infra/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationWriteRepository runs every mutation against the primary.
type ApplicationWriteRepository struct {
	writePool *pgxpool.Pool
}

func NewApplicationWriteRepository(writePool *pgxpool.Pool) *ApplicationWriteRepository {
	return &ApplicationWriteRepository{writePool: writePool}
}

// GetByID reads from the primary so read-modify-write cycles see the latest version.
func (r *ApplicationWriteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error) {
	app, err := getApplicationByID(ctx, r.writePool, id)
	if err != nil {
		return nil, fmt.Errorf("ApplicationWriteRepository.GetByID - %w", err)
	}
	return app, nil
}

// Insert persists the application and its first history row in one transaction.
func (r *ApplicationWriteRepository) Insert(ctx context.Context, app *entities.Application, history entities.StatusHistory) error {
	err := postgres.WithTx(ctx, r.writePool, postgres.ReadWrite, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO applications
				(id, user_id, product_id, status, comment, files, tags, version, created_at, updated_at, decided_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			app.ID,
			app.UserID,
			app.ProductID,
			app.Status,
			postgres.NewNullString(app.Comment),
			app.Files,
			app.Tags,
			app.Version,
			app.CreatedAt,
			app.UpdatedAt,
			postgres.NewNullTime(app.DecidedAt),
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("open application already exists for user %s and product %s: %w", app.UserID, app.ProductID, domain.ErrConflict)
			}
			return fmt.Errorf("failed to insert application: %w", err)
		}

		return insertHistory(ctx, tx, history)
	})
	if err != nil {
		return fmt.Errorf("ApplicationWriteRepository.Insert - %w", err)
	}

	return nil
}

// UpdateReferences stores the files/tags sets when the row still carries app.Version.
// On success app.Version is bumped; a stale version returns domain.ErrVersionMismatch.
func (r *ApplicationWriteRepository) UpdateReferences(ctx context.Context, app *entities.Application) error {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tag, err := r.writePool.Exec(ctx, `
		UPDATE applications
		SET files = $2, tags = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $5`,
		app.ID, app.Files, app.Tags, now, app.Version,
	)
	if err != nil {
		return fmt.Errorf("ApplicationWriteRepository.UpdateReferences - failed to update application %s: %w", app.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, r.writePool, app.ID, "UpdateReferences")
	}

	app.Version++
	app.UpdatedAt = now
	return nil
}

// UpdateStatus moves the status and appends the history row atomically, under the same version check.
func (r *ApplicationWriteRepository) UpdateStatus(ctx context.Context, app *entities.Application, history entities.StatusHistory) error {
	now := history.CreatedAt

	err := postgres.WithTx(ctx, r.writePool, postgres.ReadWrite, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE applications
			SET status = $2, decided_at = $3, version = version + 1, updated_at = $4
			WHERE id = $1 AND version = $5`,
			app.ID, app.Status, postgres.NewNullTime(app.DecidedAt), now, app.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update status of application %s: %w", app.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return r.staleOrMissing(ctx, tx, app.ID, "UpdateStatus")
		}

		return insertHistory(ctx, tx, history)
	})
	if err != nil {
		return fmt.Errorf("ApplicationWriteRepository.UpdateStatus - %w", err)
	}

	app.Version++
	app.UpdatedAt = now
	return nil
}

// Delete removes one application and its history. Returns how many applications were deleted.
func (r *ApplicationWriteRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	deleted, err := r.deleteWhere(ctx, "id", id)
	if err != nil {
		return 0, fmt.Errorf("ApplicationWriteRepository.Delete - %w", err)
	}
	return deleted, nil
}

// DeleteByUserID is the cascading delete for user.deleted. Zero rows is success.
func (r *ApplicationWriteRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	deleted, err := r.deleteWhere(ctx, "user_id", userID)
	if err != nil {
		return 0, fmt.Errorf("ApplicationWriteRepository.DeleteByUserID - %w", err)
	}
	return deleted, nil
}

// DeleteByProductID is the cascading delete for product.deleted. Zero rows is success.
func (r *ApplicationWriteRepository) DeleteByProductID(ctx context.Context, productID uuid.UUID) (int64, error) {
	deleted, err := r.deleteWhere(ctx, "product_id", productID)
	if err != nil {
		return 0, fmt.Errorf("ApplicationWriteRepository.DeleteByProductID - %w", err)
	}
	return deleted, nil
}

// deleteWhere apaga histórico e aplicações na mesma transação. column is one of
// the fixed identifiers above, never user input. The rows are locked before the
// history goes, so a concurrent UpdateStatus either commits its history first or
// finds the application gone.
func (r *ApplicationWriteRepository) deleteWhere(ctx context.Context, column string, value uuid.UUID) (int64, error) {
	var deleted int64

	err := postgres.WithTx(ctx, r.writePool, postgres.ReadWrite, func(tx pgx.Tx) error {
		lockQuery := fmt.Sprintf(`SELECT id FROM applications WHERE %s = $1 ORDER BY id FOR UPDATE`, column)
		rows, err := tx.Query(ctx, lockQuery, value)
		if err != nil {
			return fmt.Errorf("failed to lock applications by %s: %w", column, err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("failed to lock applications by %s: %w", column, err)
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM application_status_history WHERE application_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("failed to delete status history by %s: %w", column, err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM applications WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("failed to delete applications by %s: %w", column, err)
		}

		deleted = tag.RowsAffected()
		return nil
	})

	return deleted, err
}

func (r *ApplicationWriteRepository) staleOrMissing(ctx context.Context, db postgres.DBTX, id uuid.UUID, op string) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s - failed to check application %s: %w", op, id, err)
	}
	if !exists {
		return fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("application %s: %w", id, domain.ErrVersionMismatch)
}

func insertHistory(ctx context.Context, db postgres.DBTX, history entities.StatusHistory) error {
	var fromStatus *string
	if history.FromStatus != nil {
		from := string(*history.FromStatus)
		fromStatus = &from
	}

	_, err := db.Exec(ctx, `
		INSERT INTO application_status_history
			(id, application_id, from_status, to_status, actor_id, reason, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)`,
		history.ID,
		history.ApplicationID,
		postgres.NewNullString(fromStatus),
		history.ToStatus,
		history.ActorID,
		postgres.NewNullString(history.Reason),
		history.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}
