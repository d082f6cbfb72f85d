package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CredentialRepository reads per-store storefront access tokens
type CredentialRepository struct {
	db DB
}

// NewCredentialRepository creates a Postgres-backed credential source
func NewCredentialRepository(db DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Name identifies this source in logs
func (r *CredentialRepository) Name() string {
	return "postgres"
}

// Token returns the persisted token for store, or "" when none is stored
func (r *CredentialRepository) Token(ctx context.Context, store string) (string, error) {
	var token string
	err := r.db.QueryRow(ctx,
		`SELECT access_token FROM store_credentials WHERE shop = $1`, store,
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// ListStores returns every store with a persisted credential
func (r *CredentialRepository) ListStores(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT shop FROM store_credentials ORDER BY shop`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]string, 0)
	for rows.Next() {
		var shop string
		if err := rows.Scan(&shop); err != nil {
			return nil, err
		}
		stores = append(stores, shop)
	}
	return stores, rows.Err()
}
