package form

import (
	"context"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/trezcool/fomu/core"
)

// Source serves option lists for select fields. entity names the academia
// entity ("colleges", "sections", ...); params carries the parent selections
// keyed by their payload names.
type Source interface {
	FetchOptions(ctx context.Context, entity string, params map[string]string) ([]Option, error)
}

// CachedSource decorates a Source with an expiring cache so that repeated
// fetches for the same entity and parent selections hit upstream once per
// window. Failures are not cached.
type CachedSource struct {
	src   Source
	cache *gocache.Cache
}

var _ Source = (*CachedSource)(nil)

func NewCachedSource(src Source, conf *core.Config) *CachedSource {
	return &CachedSource{
		src:   src,
		cache: gocache.New(conf.Options.TTL, conf.Options.CleanupInterval),
	}
}

func (cs *CachedSource) FetchOptions(ctx context.Context, entity string, params map[string]string) ([]Option, error) {
	key := cacheKey(entity, params)
	if cached, ok := cs.cache.Get(key); ok {
		return cached.([]Option), nil
	}
	opts, err := cs.src.FetchOptions(ctx, entity, params)
	if err != nil {
		return nil, err
	}
	cs.cache.Set(key, opts, gocache.DefaultExpiration)
	return opts, nil
}

func cacheKey(entity string, params map[string]string) string {
	if len(params) == 0 {
		return entity
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entity)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
