// Package catalog resolves GTINs against the product master data, caching
// lookups and seeding the store from TOML files.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

const (
	DefaultTTL = 10 * time.Minute

	cacheKeyPrefix = "product:"
)

// CachedCatalog fronts a ProductStore with a Cache. Cache failures are logged
// and fall through to the store.
type CachedCatalog struct {
	store ports.ProductStore
	cache ports.Cache
	ttl   time.Duration
}

var _ ports.ProductStore = (*CachedCatalog)(nil)

func NewCachedCatalog(store ports.ProductStore, cache ports.Cache, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedCatalog{store: store, cache: cache, ttl: ttl}
}

func (c *CachedCatalog) ResolveProduct(ctx context.Context, gtin string) (ports.ProductRef, bool, error) {
	if ctx == nil {
		return ports.ProductRef{}, false, errors.New("context is required")
	}
	if c.store == nil {
		return ports.ProductRef{}, false, errors.New("product store is required")
	}

	gtin = strings.TrimSpace(gtin)
	if gtin == "" {
		return ports.ProductRef{}, false, nil
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "catalog"), slog.String("gtin", gtin))

	if c.cache != nil {
		raw, found, err := c.cache.Get(ctx, cacheKeyPrefix+gtin)
		if err != nil {
			logging.Warn(logCtx, "product cache read failed", slog.Any("err", errs.Loggable(err)))
		} else if found {
			var ref ports.ProductRef
			if err := json.Unmarshal([]byte(raw), &ref); err == nil {
				return ref, true, nil
			}
		}
	}

	ref, found, err := c.store.ResolveProduct(ctx, gtin)
	if err != nil || !found {
		return ref, found, err
	}

	if c.cache != nil {
		raw, err := json.Marshal(ref)
		if err == nil {
			err = c.cache.Set(ctx, cacheKeyPrefix+gtin, string(raw), c.ttl)
		}
		if err != nil {
			logging.Warn(logCtx, "product cache write failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return ref, true, nil
}

// UpsertProducts writes through to the store and drops cached entries for
// every written GTIN.
func (c *CachedCatalog) UpsertProducts(ctx context.Context, products []ports.ProductRef) (int, error) {
	if c.store == nil {
		return 0, errors.New("product store is required")
	}
	n, err := c.store.UpsertProducts(ctx, products)
	if err != nil {
		return 0, err
	}
	if c.cache != nil {
		for _, p := range products {
			if err := c.cache.Delete(ctx, cacheKeyPrefix+strings.TrimSpace(p.GTIN)); err != nil {
				logging.Warn(ctx, "product cache invalidate failed", slog.String("gtin", p.GTIN), slog.Any("err", errs.Loggable(err)))
			}
		}
	}
	return n, nil
}
