package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque encoded payloads so any backend can hold them.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SnapshotProvider fetches the POS/ERP catalog snapshot
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context, req SnapshotRequest) (*CatalogSnapshot, error)
}

// VariantScanner walks the storefront catalog for one store
type VariantScanner interface {
	Scan(ctx context.Context, store string, forceRefresh bool) (*ScanResult, error)
}

// StoreDirectory lists the stores this deployment can reconcile against
type StoreDirectory interface {
	ListStores(ctx context.Context) ([]string, error)
}

// CredentialSource yields an access token for a store, or "" when it has none
type CredentialSource interface {
	Name() string
	Token(ctx context.Context, store string) (string, error)
}

// StagingRepository persists staged parents keyed by (store, parent id)
type StagingRepository interface {
	List(ctx context.Context, store string) ([]StagingParent, error)
	Upsert(ctx context.Context, store string, parents []StagingParent) (int, error)
	Delete(ctx context.Context, store string, ids []string) (int, error)
}
