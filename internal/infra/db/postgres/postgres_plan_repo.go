package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

// prices travel as text so decimal values round-trip without float conversion
const planColumns = `
id, name, description, price_monthly::text, price_yearly::text,
external_price_ref, external_price_ref_yearly, features, is_active, sort_order,
created_at, updated_at`

func (r *PostgresPlanRepo) Create(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, description, price_monthly, price_yearly, external_price_ref,
                   external_price_ref_yearly, features, is_active, sort_order, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Description, p.PriceMonthly.String(), decimalOrNil(p.PriceYearly),
		p.ExternalPriceRef, p.ExternalPriceRefYearly, featuresOrEmpty(p.Features), p.IsActive, p.SortOrder,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

func (r *PostgresPlanRepo) Update(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
UPDATE plans SET
  name = $2,
  description = $3,
  price_monthly = $4::numeric,
  price_yearly = $5::numeric,
  external_price_ref = $6,
  external_price_ref_yearly = $7,
  features = $8,
  is_active = $9,
  sort_order = $10,
  updated_at = $11
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Description, p.PriceMonthly.String(), decimalOrNil(p.PriceYearly),
		p.ExternalPriceRef, p.ExternalPriceRefYearly, featuresOrEmpty(p.Features), p.IsActive, p.SortOrder,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) FindByPriceRef(ctx context.Context, tx repository.Tx, ref string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + `
  FROM plans
 WHERE external_price_ref = $1 OR external_price_ref_yearly = $1
 ORDER BY is_active DESC, updated_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find plan by price ref: %w", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) List(ctx context.Context, tx repository.Tx, includeInactive bool) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + `
  FROM plans
 WHERE $1 OR is_active
 ORDER BY sort_order ASC, updated_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p            model.Plan
		priceMonthly string
		priceYearly  sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &priceMonthly, &priceYearly,
		&p.ExternalPriceRef, &p.ExternalPriceRefYearly, &p.Features, &p.IsActive, &p.SortOrder,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m, err := decimal.NewFromString(priceMonthly)
	if err != nil {
		return nil, fmt.Errorf("parse price_monthly: %w", err)
	}
	p.PriceMonthly = m
	if priceYearly.Valid {
		y, err := decimal.NewFromString(priceYearly.String)
		if err != nil {
			return nil, fmt.Errorf("parse price_yearly: %w", err)
		}
		p.PriceYearly = &y
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}

func decimalOrNil(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func featuresOrEmpty(f []string) []string {
	if f == nil {
		return []string{}
	}
	return f
}
