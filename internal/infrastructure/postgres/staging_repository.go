package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// DB is the subset of *pgxpool.Pool used by the repositories
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// StagingRepository stores staged parents in the staged_products table
type StagingRepository struct {
	db DB
}

// NewStagingRepository creates a Postgres-backed staging repository
func NewStagingRepository(db DB) *StagingRepository {
	return &StagingRepository{db: db}
}

const listStagedSQL = `
SELECT parent_id, sku, title, category, brand, stock, price, image,
       status, error, variants, created_at, updated_at
FROM staged_products
WHERE shop = $1
ORDER BY updated_at DESC, parent_id
`

const upsertStagedSQL = `
INSERT INTO staged_products (
    shop, parent_id, sku, title, category, brand, stock, price, image,
    status, error, variants, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)
ON CONFLICT (shop, parent_id) DO UPDATE SET
    sku = EXCLUDED.sku,
    title = EXCLUDED.title,
    category = EXCLUDED.category,
    brand = EXCLUDED.brand,
    stock = EXCLUDED.stock,
    price = EXCLUDED.price,
    image = EXCLUDED.image,
    status = EXCLUDED.status,
    error = EXCLUDED.error,
    variants = EXCLUDED.variants,
    updated_at = EXCLUDED.updated_at
`

const deleteStagedSQL = `DELETE FROM staged_products WHERE shop = $1 AND parent_id = ANY($2)`

// List returns all staged parents for store
func (r *StagingRepository) List(ctx context.Context, store string) ([]domain.StagingParent, error) {
	rows, err := r.db.Query(ctx, listStagedSQL, store)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parents := make([]domain.StagingParent, 0)
	for rows.Next() {
		var (
			p        domain.StagingParent
			status   string
			variants []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.SKU,
			&p.Title,
			&p.Category,
			&p.Brand,
			&p.Stock,
			&p.Price,
			&p.Image,
			&status,
			&p.Error,
			&variants,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Status = domain.StagingStatus(status)
		if p.Variants, err = decodeVariants(variants); err != nil {
			return nil, fmt.Errorf("staged product %s: %w", p.ID, err)
		}
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

// Upsert writes every parent in one batch, replacing existing records
func (r *StagingRepository) Upsert(ctx context.Context, store string, parents []domain.StagingParent) (int, error) {
	if len(parents) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range parents {
		variants, err := encodeVariants(p.Variants)
		if err != nil {
			return 0, fmt.Errorf("staged product %s: %w", p.ID, err)
		}
		created, updated := p.CreatedAt, p.UpdatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if updated.IsZero() {
			updated = created
		}
		batch.Queue(upsertStagedSQL,
			store, p.ID, p.SKU, p.Title, p.Category, p.Brand, p.Stock, p.Price, p.Image,
			string(p.Status), p.Error, variants, created, updated)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range parents {
		if _, err := results.Exec(); err != nil {
			return 0, err
		}
	}
	return len(parents), nil
}

// Delete removes parents by id and returns how many rows were deleted
func (r *StagingRepository) Delete(ctx context.Context, store string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, deleteStagedSQL, store, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func encodeVariants(variants []domain.StagingVariant) (string, error) {
	if variants == nil {
		variants = []domain.StagingVariant{}
	}
	b, err := json.Marshal(variants)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeVariants(raw []byte) ([]domain.StagingVariant, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []domain.StagingVariant{}, nil
	}
	var variants []domain.StagingVariant
	if err := json.Unmarshal(raw, &variants); err != nil {
		return nil, fmt.Errorf("invalid variants json: %w", err)
	}
	if variants == nil {
		variants = []domain.StagingVariant{}
	}
	return variants, nil
}
