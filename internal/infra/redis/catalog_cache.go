package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"daily-reflection-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches catalog content from a backing store (e.g., Postgres).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogCache keeps the catalog JSON in Redis and falls back to a loader on
// cache miss. Stored as: SET {namespace}:catalog {json} EX {ttl}
type CatalogCache struct {
	client    *redis.Client
	loader    CatalogLoader
	namespace string
	ttl       time.Duration
	sf        singleflight.Group
	rnd       *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, namespace string, ttl time.Duration) *CatalogCache {
	if namespace == "" {
		namespace = "reflect"
	}
	return &CatalogCache{
		client:    client,
		loader:    loader,
		namespace: namespace,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := c.fromCache(ctx); ok {
		return catalog, nil
	}

	result, err, _ := c.sf.Do(c.key(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := c.fromCache(ctx); ok {
			return catalog, nil
		}

		catalog, err := c.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		if data, err := json.Marshal(catalog); err == nil {
			_ = c.client.Set(ctx, c.key(), data, c.ttlWithJitter()).Err()
		}
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (c *CatalogCache) fromCache(ctx context.Context) (domain.Catalog, bool) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Catalog{}, false
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return domain.Catalog{}, false
	}
	return catalog, true
}

func (c *CatalogCache) key() string {
	return c.namespace + ":catalog"
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
