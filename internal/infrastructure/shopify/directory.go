package shopify

import (
	"context"

	"go.uber.org/zap"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Directory lists configured stores followed by stores with persisted
// credentials. A nil persisted source is allowed.
type Directory struct {
	configured []string
	persisted  domain.StoreDirectory
	logger     *zap.Logger
}

// NewDirectory creates a store directory
func NewDirectory(configured []string, persisted domain.StoreDirectory, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{configured: configured, persisted: persisted, logger: logger}
}

// ListStores returns the normalized, de-duplicated union of known stores.
// A failing persisted source degrades to the configured stores.
func (d *Directory) ListStores(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	stores := make([]string, 0, len(d.configured))
	add := func(names []string) {
		for _, name := range names {
			s := domain.CleanStore(name)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			stores = append(stores, s)
		}
	}

	add(d.configured)
	if d.persisted != nil {
		names, err := d.persisted.ListStores(ctx)
		if err != nil {
			d.logger.Warn("failed to list persisted stores", zap.Error(err))
		} else {
			add(names)
		}
	}
	return stores, nil
}
