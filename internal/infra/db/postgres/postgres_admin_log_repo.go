package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var _ repository.AdminLogRepository = (*PostgresAdminLogRepo)(nil)

type PostgresAdminLogRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAdminLogRepo(pool *pgxpool.Pool) *PostgresAdminLogRepo {
	return &PostgresAdminLogRepo{pool: pool}
}

func (r *PostgresAdminLogRepo) Save(ctx context.Context, tx repository.Tx, l *model.AdminLog) error {
	const q = `
INSERT INTO admin_logs (id, actor_id, action, target_id, details, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6);`
	details := string(l.Details)
	if details == "" {
		details = "{}"
	}
	if _, err := execSQL(ctx, r.pool, tx, q, l.ID, l.ActorID, l.Action, l.TargetID, details, l.CreatedAt); err != nil {
		return fmt.Errorf("save admin log: %w", err)
	}
	return nil
}

func (r *PostgresAdminLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AdminLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, actor_id, action, target_id, details::text, created_at
  FROM admin_logs
 ORDER BY created_at DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin logs: %w", err)
	}
	defer rows.Close()
	var out []*model.AdminLog
	for rows.Next() {
		var (
			l       model.AdminLog
			details string
		)
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.TargetID, &details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin log: %w", err)
		}
		l.Details = []byte(details)
		out = append(out, &l)
	}
	return out, rows.Err()
}
