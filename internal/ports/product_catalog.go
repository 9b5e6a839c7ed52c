package ports

import (
	"context"
	"time"
)

// ProductRef is the catalog entry a GTIN resolves to.
type ProductRef struct {
	ID   uint64 `json:"id"`
	GTIN string `json:"gtin"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// ProductCatalog is the master-data lookup consulted by imports.
type ProductCatalog interface {
	ResolveProduct(ctx context.Context, gtin string) (ProductRef, bool, error)
}

// ProductStore seeds the catalog.
type ProductStore interface {
	ProductCatalog
	UpsertProducts(ctx context.Context, products []ProductRef) (int, error)
}

// Cache holds resolved catalog entries keyed by GTIN. A zero ttl keeps an
// entry until it is overwritten or deleted; found is false for missing and
// expired keys.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
