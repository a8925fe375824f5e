package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/security"
)

// ChatSessionRepo persists sessions and their messages. When an encryption
// service is configured, message content is stored encrypted at rest.
var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

type ChatSessionRepo struct {
	pool          *pgxpool.Pool
	encryptionSvc *security.EncryptionService
}

func NewPostgresChatSessionRepo(pool *pgxpool.Pool, encryptionSvc *security.EncryptionService) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, encryptionSvc: encryptionSvc}
}

const sessionColumns = `id, owner_id, title, created_at, updated_at`

func (r *ChatSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, owner_id, title, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5);`
	if _, err := execSQL(ctx, r.pool, tx, q, s.ID, s.OwnerID, s.Title, s.CreatedAt, s.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	var s model.ChatSession
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

func (r *ChatSessionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE owner_id = $1 ORDER BY updated_at DESC, id DESC`
	args := []interface{}{ownerID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) Touch(ctx context.Context, tx repository.Tx, id string, title string, at time.Time) error {
	const q = `
UPDATE chat_sessions
   SET updated_at = $2,
       title = COALESCE(title, NULLIF($3, ''))
 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at, title)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM chat_sessions WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) DeleteByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM chat_sessions WHERE owner_id = $1;`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions by owner: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChatSessionRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	return countRows(ctx, r.pool, tx, `SELECT COUNT(*) FROM chat_sessions;`)
}

func (r *ChatSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	payload := m.Content
	encFlag := false
	if r.encryptionSvc != nil {
		enc, err := r.encryptionSvc.Encrypt(m.Content, m.SessionID)
		if err != nil {
			return fmt.Errorf("encrypt msg: %w", err)
		}
		payload, encFlag = enc, true
	}
	const q = `
INSERT INTO chat_messages (id, session_id, owner_id, role, content, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.SessionID, m.OwnerID, string(m.Role), payload, encFlag, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) RecentMessages(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		return r.ListMessages(ctx, tx, sessionID)
	}
	const q = `
SELECT id, session_id, owner_id, role, content, encrypted, created_at
  FROM chat_messages
 WHERE session_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`
	msgs, err := r.scanMessages(ctx, tx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string) ([]*model.ChatMessage, error) {
	const q = `
SELECT id, session_id, owner_id, role, content, encrypted, created_at
  FROM chat_messages
 WHERE session_id = $1
 ORDER BY created_at ASC, id ASC;`
	return r.scanMessages(ctx, tx, q, sessionID)
}

func (r *ChatSessionRepo) scanMessages(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.ChatMessage, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatMessage
	for rows.Next() {
		var (
			m    model.ChatMessage
			role string
			enc  bool
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.OwnerID, &role, &m.Content, &enc, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.MessageRole(role)
		if enc {
			if r.encryptionSvc == nil {
				return nil, fmt.Errorf("message %s is encrypted but no key is configured", m.ID)
			}
			pt, err := r.encryptionSvc.Decrypt(m.Content, m.SessionID)
			if err != nil {
				return nil, fmt.Errorf("decrypt msg: %w", err)
			}
			m.Content = pt
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) DeleteMessages(ctx context.Context, tx repository.Tx, sessionID string) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM chat_messages WHERE session_id = $1;`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChatSessionRepo) DeleteMessagesByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM chat_messages WHERE owner_id = $1;`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete messages by owner: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChatSessionRepo) CountMessages(ctx context.Context, tx repository.Tx) (int, error) {
	return countRows(ctx, r.pool, tx, `SELECT COUNT(*) FROM chat_messages;`)
}

func (r *ChatSessionRepo) MessagesPerDay(ctx context.Context, tx repository.Tx, role model.MessageRole, since time.Time) ([]model.DailyPoint, error) {
	const q = `
SELECT date_trunc('day', created_at) AS day, COUNT(*)
  FROM chat_messages
 WHERE role = $1 AND created_at >= $2
 GROUP BY day
 ORDER BY day;`
	return dailyPoints(ctx, r.pool, tx, q, string(role), since)
}

func countRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (int, error) {
	row, err := pickRow(ctx, pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
