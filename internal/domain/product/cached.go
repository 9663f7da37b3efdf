package product

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Cache stores products by identifier. Products are immutable, so entries
// never need invalidation.
type Cache interface {
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	SetMany(ctx context.Context, products []Product) error
}

// CachedRepository serves GetByIDs through a read-through Cache and
// delegates everything else to the wrapped Repository. Cache failures are
// logged and fall back to the Repository.
type CachedRepository struct {
	Repository
	cache Cache
}

var _ Repository = (*CachedRepository)(nil)

// NewCachedRepository wraps repo with cache.
func NewCachedRepository(repo Repository, cache Cache) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: cache}
}

// GetByIDs returns cached products and loads the rest from the Repository.
func (r *CachedRepository) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	lg := zctx.From(ctx)

	hits, err := r.cache.GetMany(ctx, ids)
	if err != nil {
		lg.Warn("Product cache read failed", zap.Error(err))
		hits = nil
	}

	seen := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := hits[id]; !ok {
			missing = append(missing, id)
		}
	}

	out := make([]Product, 0, len(seen))
	for _, p := range hits {
		out = append(out, p)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := r.Repository.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		if err := r.cache.SetMany(ctx, fetched); err != nil {
			lg.Warn("Product cache write failed", zap.Error(err))
		}
	}

	return append(out, fetched...), nil
}
