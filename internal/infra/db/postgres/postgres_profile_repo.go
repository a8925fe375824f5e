package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*PostgresProfileRepo)(nil)

type PostgresProfileRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileRepo(pool *pgxpool.Pool) *PostgresProfileRepo {
	return &PostgresProfileRepo{pool: pool}
}

const profileColumns = `
id, email, full_name, document_id, phone, birth_date, active_plan, subscription_status,
external_customer_ref, external_subscription_ref, is_blocked, created_at, updated_at`

func (r *PostgresProfileRepo) Create(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	const q = `
INSERT INTO profiles (id, email, full_name, document_id, phone, birth_date, active_plan, subscription_status,
                      external_customer_ref, external_subscription_ref, is_blocked, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	var status *string
	if p.SubscriptionStatus != nil {
		s := string(*p.SubscriptionStatus)
		status = &s
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Email, p.FullName, p.DocumentID, p.Phone, p.BirthDate, p.ActivePlan, status,
		p.ExternalCustomerRef, p.ExternalSubscriptionRef, p.IsBlocked, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	return r.findOne(ctx, tx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1;`, id)
}

func (r *PostgresProfileRepo) FindByCustomerRef(ctx context.Context, tx repository.Tx, ref string) (*model.Profile, error) {
	return r.findOne(ctx, tx, `SELECT `+profileColumns+` FROM profiles WHERE external_customer_ref = $1;`, ref)
}

func (r *PostgresProfileRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.Profile, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

// buildPatch renders the SET clause for the fields present in patch. Arguments
// start at $2; $1 is reserved for the WHERE key.
func buildPatch(patch model.ProfilePatch, now time.Time) (string, []interface{}) {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 10)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
	}
	if patch.ActivePlan != nil {
		add("active_plan", *patch.ActivePlan)
	}
	if patch.SubscriptionStatus != nil {
		add("subscription_status", nullIfEmpty(string(*patch.SubscriptionStatus)))
	}
	if patch.ExternalCustomerRef != nil {
		add("external_customer_ref", nullIfEmpty(*patch.ExternalCustomerRef))
	}
	if patch.ExternalSubscriptionRef != nil {
		add("external_subscription_ref", nullIfEmpty(*patch.ExternalSubscriptionRef))
	}
	if patch.IsBlocked != nil {
		add("is_blocked", *patch.IsBlocked)
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.DocumentID != nil {
		add("document_id", *patch.DocumentID)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.BirthDate != nil {
		add("birth_date", *patch.BirthDate)
	}
	add("updated_at", now)
	return strings.Join(sets, ", "), args
}

func (r *PostgresProfileRepo) UpdateByID(ctx context.Context, tx repository.Tx, id string, patch model.ProfilePatch) error {
	if patch.IsEmpty() {
		return domain.ErrNoChanges
	}
	set, args := buildPatch(patch, time.Now())
	q := `UPDATE profiles SET ` + set + ` WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, append([]interface{}{id}, args...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresProfileRepo) UpdateByCustomerRef(ctx context.Context, tx repository.Tx, ref string, patch model.ProfilePatch) (int64, error) {
	if patch.IsEmpty() {
		return 0, domain.ErrNoChanges
	}
	set, args := buildPatch(patch, time.Now())
	q := `UPDATE profiles SET ` + set + ` WHERE external_customer_ref = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, append([]interface{}{ref}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("update profile by customer: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresProfileRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM profiles WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresProfileRepo) List(ctx context.Context, tx repository.Tx, f model.ProfileFilter) ([]*model.Profile, error) {
	where := []string{"TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf(
			"(email ILIKE %[1]s OR full_name ILIKE %[1]s OR document_id ILIKE %[1]s OR phone ILIKE %[1]s)", p))
	}
	if f.Plan != "" {
		where = append(where, "active_plan = "+arg(f.Plan))
	}
	switch {
	case f.BlockedOnly:
		where = append(where, "is_blocked")
	case f.Status != "":
		where = append(where, "subscription_status = "+arg(string(f.Status)), "NOT is_blocked")
	}

	q := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	var out []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresProfileRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	return countRows(ctx, r.pool, tx, `SELECT COUNT(*) FROM profiles;`)
}

func (r *PostgresProfileRepo) CountWithStatus(ctx context.Context, tx repository.Tx, statuses ...model.SubscriptionStatus) (int, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	return countRows(ctx, r.pool, tx, `SELECT COUNT(*) FROM profiles WHERE subscription_status = ANY($1);`, ss)
}

func (r *PostgresProfileRepo) CountByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT active_plan, COUNT(*) FROM profiles GROUP BY active_plan;`)
	if err != nil {
		return nil, fmt.Errorf("count by plan: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, err
		}
		out[plan] = n
	}
	return out, rows.Err()
}

func (r *PostgresProfileRepo) SignupsPerDay(ctx context.Context, tx repository.Tx, since time.Time) ([]model.DailyPoint, error) {
	const q = `
SELECT date_trunc('day', created_at) AS day, COUNT(*)
  FROM profiles
 WHERE created_at >= $1
 GROUP BY day
 ORDER BY day;`
	return dailyPoints(ctx, r.pool, tx, q, since)
}

func dailyPoints(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) ([]model.DailyPoint, error) {
	rows, err := queryRows(ctx, pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()
	var out []model.DailyPoint
	for rows.Next() {
		var p model.DailyPoint
		if err := rows.Scan(&p.Day, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p      model.Profile
		status *string
	)
	if err := row.Scan(
		&p.ID, &p.Email, &p.FullName, &p.DocumentID, &p.Phone, &p.BirthDate, &p.ActivePlan, &status,
		&p.ExternalCustomerRef, &p.ExternalSubscriptionRef, &p.IsBlocked, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if status != nil {
		s := model.SubscriptionStatus(*status)
		p.SubscriptionStatus = &s
	}
	return &p, nil
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
