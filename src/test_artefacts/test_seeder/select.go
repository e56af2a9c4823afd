package test_seeder

import (
	"context"

	"github.com/google/uuid"
)

func (ts TestSeeder) CountApplicationsByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := ts.pool.QueryRow(ctx, `SELECT count(*) FROM applications WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (ts TestSeeder) CountApplicationsByProductID(ctx context.Context, productID uuid.UUID) (int, error) {
	var count int
	err := ts.pool.QueryRow(ctx, `SELECT count(*) FROM applications WHERE product_id = $1`, productID).Scan(&count)
	return count, err
}

// CountHistoryByApplicationID counts history rows, including orphans left by a broken delete
func (ts TestSeeder) CountHistoryByApplicationID(ctx context.Context, applicationID uuid.UUID) (int, error) {
	var count int
	err := ts.pool.QueryRow(ctx, `SELECT count(*) FROM application_status_history WHERE application_id = $1`, applicationID).Scan(&count)
	return count, err
}
