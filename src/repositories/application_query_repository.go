package repositories

import (
	"context"
	"fmt"
	"strings"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/infra/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ApplicationQueryRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationQueryRepository(pool *pgxpool.Pool) *ApplicationQueryRepository {
	return &ApplicationQueryRepository{pool: pool}
}

func (r *ApplicationQueryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error) {
	app, err := getApplicationByID(ctx, r.pool, id)
	if err != nil {
		return nil, fmt.Errorf("ApplicationQueryRepository.GetByID - %w", err)
	}
	return app, nil
}

// Page returns up to limit applications strictly after cursor in
// (created_at DESC, id DESC) order. A nil cursor starts from the newest row.
func (r *ApplicationQueryRepository) Page(
	ctx context.Context,
	filter domain.ApplicationFilter,
	cursor *domain.CursorToken,
	limit int,
) ([]entities.Application, error) {
	var (
		conditions []string
		args       []any
	)

	if cursor != nil {
		args = append(args, cursor.LastSeenTimestamp, cursor.LastSeenID)
		// row comparison keeps the predicate sargable on (created_at DESC, id DESC)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, applicationColumns, where, len(args))

	var page []entities.Application

	err := postgres.WithTx(ctx, r.pool, postgres.ReadOnly, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("page query failed: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			app, err := scanApplication(rows)
			if err != nil {
				return fmt.Errorf("failed to scan application: %w", err)
			}
			page = append(page, app)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationQueryRepository.Page - %w", err)
	}

	return page, nil
}

func (r *ApplicationQueryRepository) ListHistory(ctx context.Context, applicationID uuid.UUID) ([]entities.StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, application_id, from_status, to_status, actor_id, reason, created_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ApplicationQueryRepository.ListHistory - query failed: %w", err)
	}
	defer rows.Close()

	var history []entities.StatusHistory
	for rows.Next() {
		var h entities.StatusHistory
		if err := rows.Scan(&h.ID, &h.ApplicationID, &h.FromStatus, &h.ToStatus, &h.ActorID, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("ApplicationQueryRepository.ListHistory - failed to scan row: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ApplicationQueryRepository.ListHistory - error iterating rows: %w", err)
	}

	return history, nil
}
