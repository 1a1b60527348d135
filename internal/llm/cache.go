package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// CachedProvider wraps an LLMProvider with an in-memory LRU cache keyed on
// the document text and requested field set. Re-analysis of an unchanged
// claim hits the cache instead of the upstream model, which also keeps
// repeated runs deterministic.
type CachedProvider struct {
	inner domain.LLMProvider
	cache *lru.Cache[string, map[string]string]
	log   *logrus.Logger
}

// NewCachedProvider wraps inner with a cache of the given size.
func NewCachedProvider(inner domain.LLMProvider, size int, logger *logrus.Logger) (*CachedProvider, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, map[string]string](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{
		inner: inner,
		cache: cache,
		log:   logger,
	}, nil
}

// Name returns the wrapped provider's identifier.
func (c *CachedProvider) Name() string {
	return c.inner.Name()
}

// ExtractFields returns cached results when available, otherwise delegates.
// Errors are never cached.
func (c *CachedProvider) ExtractFields(ctx context.Context, text string, fields []string) (map[string]string, error) {
	key := cacheKey(text, fields)
	if values, ok := c.cache.Get(key); ok {
		c.log.WithField("provider", c.inner.Name()).Debug("LLM cache hit")
		return values, nil
	}

	values, err := c.inner.ExtractFields(ctx, text, fields)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, values)
	return values, nil
}

func cacheKey(text string, fields []string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
