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

var _ repository.WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)

type PostgresWebhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresWebhookEventRepo(pool *pgxpool.Pool) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{pool: pool}
}

func (r *PostgresWebhookEventRepo) Upsert(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) error {
	const q = `
INSERT INTO webhook_events (external_event_id, event_type, status, error_message, raw_payload, received_at, processed_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
ON CONFLICT (external_event_id) DO UPDATE SET
  event_type = EXCLUDED.event_type,
  status = EXCLUDED.status,
  error_message = EXCLUDED.error_message,
  processed_at = EXCLUDED.processed_at;`
	payload := string(rec.RawPayload)
	if payload == "" {
		payload = "{}"
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ExternalEventID, rec.EventType, string(rec.Status), rec.ErrorMessage, payload, rec.ReceivedAt, rec.ProcessedAt)
	if err != nil {
		return fmt.Errorf("upsert webhook event: %w", err)
	}
	return nil
}

const webhookColumns = `external_event_id, event_type, status, error_message, raw_payload::text, received_at, processed_at`

func (r *PostgresWebhookEventRepo) FindByID(ctx context.Context, tx repository.Tx, eventID string) (*model.WebhookEventRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+webhookColumns+` FROM webhook_events WHERE external_event_id = $1;`, eventID)
	if err != nil {
		return nil, err
	}
	rec, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find webhook event: %w", err)
	}
	return rec, nil
}

func (r *PostgresWebhookEventRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.WebhookEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+webhookColumns+` FROM webhook_events ORDER BY received_at DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()
	var out []*model.WebhookEventRecord
	for rows.Next() {
		rec, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanWebhookEvent(row pgx.Row) (*model.WebhookEventRecord, error) {
	var (
		rec     model.WebhookEventRecord
		status  string
		payload string
	)
	if err := row.Scan(&rec.ExternalEventID, &rec.EventType, &status, &rec.ErrorMessage, &payload,
		&rec.ReceivedAt, &rec.ProcessedAt); err != nil {
		return nil, err
	}
	rec.Status = model.WebhookEventStatus(status)
	rec.RawPayload = []byte(payload)
	return &rec, nil
}
