package repository

import (
	"context"

	"github.com/spec-kit/parts-support/internal/domain"
)

type adminLogRepository struct {
	db querier
}

func (r *adminLogRepository) Create(ctx context.Context, entry *domain.AdminLog) error {
	const query = `
        INSERT INTO admin_logs (id, admin_id, action, target_user_id, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.AdminID,
		entry.Action,
		entry.TargetUserID,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *adminLogRepository) ListByTarget(ctx context.Context, userID string) ([]domain.AdminLog, error) {
	const query = `
        SELECT id, admin_id, action, target_user_id, details, created_at
        FROM admin_logs WHERE target_user_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminLog
	for rows.Next() {
		var entry domain.AdminLog
		if err := rows.Scan(
			&entry.ID,
			&entry.AdminID,
			&entry.Action,
			&entry.TargetUserID,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
