package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

// Warnings surfaced when staged data is served from process memory
const (
	warnStagingNotConfigured = "Staging database is not configured; staged products are kept in memory and will be lost on restart."
	warnStagingDegraded      = "Staging database unavailable during %s; staged products are kept in memory and will be lost on restart."
)

// stagingBackend is one entry of the persistence chain
type stagingBackend struct {
	name    string
	repo    domain.StagingRepository
	durable bool
}

// StagingServiceConfig holds the staging backends
type StagingServiceConfig struct {
	// Durable is the preferred backend; nil means not configured
	Durable domain.StagingRepository
	// Fallback serves every request the durable backend cannot
	Fallback domain.StagingRepository
	Logger   *zap.Logger
}

// StagingService tracks which parents are staged for push, per store.
// Every operation degrades to the fallback with a warning instead of failing.
type StagingService struct {
	backends []stagingBackend
	logger   *zap.Logger
	now      func() time.Time
}

// NewStagingService creates a staging service over the configured chain
func NewStagingService(config StagingServiceConfig) *StagingService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var backends []stagingBackend
	if config.Durable != nil {
		backends = append(backends, stagingBackend{name: "postgres", repo: config.Durable, durable: true})
	}
	if config.Fallback != nil {
		backends = append(backends, stagingBackend{name: "memory", repo: config.Fallback})
	}

	return &StagingService{
		backends: backends,
		logger:   logger,
		now:      time.Now,
	}
}

// run tries each backend in order until one succeeds. The returned warning
// is non-empty whenever a non-durable backend answered.
func (s *StagingService) run(ctx context.Context, op, store string, fn func(domain.StagingRepository) error) (string, error) {
	var lastErr error
	warning := warnStagingNotConfigured

	for _, b := range s.backends {
		err := fn(b.repo)
		if err == nil {
			if b.durable {
				return "", nil
			}
			return warning, nil
		}

		lastErr = err
		if b.durable {
			warning = fmt.Sprintf(warnStagingDegraded, op)
		}
		s.logger.Warn("staging backend failed",
			zap.String("backend", b.name),
			zap.String("op", op),
			zap.String("store", store),
			zap.Error(err))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no staging backend configured")
	}
	return warning, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, lastErr)
}

// List returns all staged parents for store with status and stock re-derived
func (s *StagingService) List(ctx context.Context, store string) ([]domain.StagingParent, string, error) {
	store = domain.NormalizeStore(store)

	var parents []domain.StagingParent
	warning, err := s.run(ctx, "list", store, func(repo domain.StagingRepository) error {
		var err error
		parents, err = repo.List(ctx, store)
		return err
	})
	if err != nil {
		return nil, warning, err
	}

	for i := range parents {
		parents[i].Derive()
	}
	return parents, warning, nil
}

// ListIDs returns the ids staged for store as a membership set
func (s *StagingService) ListIDs(ctx context.Context, store string) (StagedSet, string, error) {
	parents, warning, err := s.List(ctx, store)
	if err != nil {
		return StagedSet{}, warning, err
	}

	ids := make([]string, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, p.ID)
	}
	return NewStagedSet(ids), warning, nil
}

// Upsert replaces each parent record in full; parents without id or sku are dropped.
// Ids are stored lowercased so membership checks are case-insensitive.
func (s *StagingService) Upsert(ctx context.Context, store string, parents []domain.StagingParent) (int, string, error) {
	store = domain.NormalizeStore(store)

	now := s.now().UTC()
	valid := make([]domain.StagingParent, 0, len(parents))
	for _, p := range parents {
		p.ID = normalizeLower(p.ID)
		p.SKU = normalizeText(p.SKU)
		if p.ID == "" || p.SKU == "" {
			continue
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		p.Variants = append([]domain.StagingVariant(nil), p.Variants...)
		p.Derive()
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return 0, "", nil
	}

	var count int
	warning, err := s.run(ctx, "upsert", store, func(repo domain.StagingRepository) error {
		var err error
		count, err = repo.Upsert(ctx, store, valid)
		return err
	})
	return count, warning, err
}

// Remove deletes parents by id and returns how many existed
func (s *StagingService) Remove(ctx context.Context, store string, ids []string) (int, string, error) {
	store = domain.NormalizeStore(store)

	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return 0, "", nil
	}

	var count int
	warning, err := s.run(ctx, "delete", store, func(repo domain.StagingRepository) error {
		var err error
		count, err = repo.Delete(ctx, store, ids)
		return err
	})
	return count, warning, err
}

// UpdateStatus rewrites every variant status of the given parents.
// ERROR attaches a review placeholder message, other statuses clear it.
func (s *StagingService) UpdateStatus(ctx context.Context, store string, ids []string, status domain.StagingStatus) (int, string, error) {
	if _, err := domain.ParseStagingStatus(string(status)); err != nil {
		return 0, "", err
	}

	wanted := NewStagedSet(ids)
	if len(wanted) == 0 {
		return 0, "", nil
	}

	parents, listWarning, err := s.List(ctx, store)
	if err != nil {
		return 0, listWarning, err
	}

	updated := make([]domain.StagingParent, 0, len(wanted))
	for _, p := range parents {
		if !wanted.Has(p.ID) {
			continue
		}
		variants := make([]domain.StagingVariant, len(p.Variants))
		for i, v := range p.Variants {
			v.Status = status
			v.Error = ""
			if status == domain.StatusError {
				v.Error = domain.ReviewErrorMessage
			}
			variants[i] = v
		}
		p.Variants = variants
		updated = append(updated, p)
	}

	count, upsertWarning, err := s.Upsert(ctx, store, updated)
	return count, joinWarnings(listWarning, upsertWarning), err
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = normalizeLower(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// joinWarnings concatenates distinct non-empty warnings
func joinWarnings(warnings ...string) string {
	return strings.Join(collectWarnings(warnings...), " ")
}

func collectWarnings(warnings ...string) []string {
	seen := make(map[string]bool, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
