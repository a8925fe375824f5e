package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var _ repository.PromptRepository = (*PostgresPromptRepo)(nil)

type PostgresPromptRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPromptRepo(pool *pgxpool.Pool) *PostgresPromptRepo {
	return &PostgresPromptRepo{pool: pool}
}

func (r *PostgresPromptRepo) GetCurrent(ctx context.Context, tx repository.Tx, key string) (*model.PromptSetting, error) {
	return r.get(ctx, tx, `SELECT value, updated_at FROM prompt_settings WHERE key = $1;`, key)
}

func (r *PostgresPromptRepo) GetCurrentForUpdate(ctx context.Context, tx repository.Tx, key string) (*model.PromptSetting, error) {
	return r.get(ctx, tx, `SELECT value, updated_at FROM prompt_settings WHERE key = $1 FOR UPDATE;`, key)
}

func (r *PostgresPromptRepo) get(ctx context.Context, tx repository.Tx, q, key string) (*model.PromptSetting, error) {
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	var s model.PromptSetting
	if err := row.Scan(&s.Value, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &s, nil
}

func (r *PostgresPromptRepo) SaveCurrent(ctx context.Context, tx repository.Tx, key string, s *model.PromptSetting) error {
	const q = `
INSERT INTO prompt_settings (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_at = EXCLUDED.updated_at;`
	if _, err := execSQL(ctx, r.pool, tx, q, key, s.Value, s.UpdatedAt); err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}
	return nil
}

func (r *PostgresPromptRepo) ListHistory(ctx context.Context, tx repository.Tx, key string, limit int) ([]model.PromptVersion, error) {
	if limit <= 0 {
		limit = model.PromptHistoryCap
	}
	const q = `
SELECT prompt_text, superseded_at
  FROM prompt_history
 WHERE key = $1
 ORDER BY superseded_at DESC, id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list prompt history: %w", err)
	}
	defer rows.Close()
	var out []model.PromptVersion
	for rows.Next() {
		var v model.PromptVersion
		if err := rows.Scan(&v.PromptText, &v.SupersededAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresPromptRepo) PushHistory(ctx context.Context, tx repository.Tx, key string, v model.PromptVersion) error {
	const q = `INSERT INTO prompt_history (key, prompt_text, superseded_at) VALUES ($1, $2, $3);`
	if _, err := execSQL(ctx, r.pool, tx, q, key, v.PromptText, v.SupersededAt); err != nil {
		return fmt.Errorf("push prompt history: %w", err)
	}
	return nil
}

func (r *PostgresPromptRepo) TrimHistory(ctx context.Context, tx repository.Tx, key string, keep int) error {
	const q = `
DELETE FROM prompt_history
 WHERE key = $1
   AND id NOT IN (
     SELECT id FROM prompt_history
      WHERE key = $1
      ORDER BY superseded_at DESC, id DESC
      LIMIT $2
   );`
	if _, err := execSQL(ctx, r.pool, tx, q, key, keep); err != nil {
		return fmt.Errorf("trim prompt history: %w", err)
	}
	return nil
}
