package tracker

import (
	"fmt"
	"sync"
)

// Catalog lazily computes and caches the audit-eligible field set per record
// type. The set is computed on first encounter of a type and is immutable
// afterwards; the cache lives for the process lifetime.
type Catalog struct {
	provider Provider
	types    sync.Map // type key -> []Field
}

func NewCatalog(provider Provider) *Catalog {
	return &Catalog{provider: provider}
}

// FieldsFor returns the audit-eligible fields of record's type, building the
// set on first call. Concurrent first calls for the same type may compute
// redundantly; LoadOrStore publishes a single winning set, so every caller
// observes the same fully-built slice and never a partial one. A provider
// failure is returned to the caller and leaves no cache entry behind.
func (c *Catalog) FieldsFor(record interface{}) ([]Field, error) {
	key := c.provider.TypeOf(record)
	if cached, ok := c.types.Load(key); ok {
		return cached.([]Field), nil
	}

	fields, err := c.provider.FieldsOf(record)
	if err != nil {
		return nil, fmt.Errorf("failed to build field catalog for %s: %w", key, err)
	}

	actual, _ := c.types.LoadOrStore(key, fields)
	return actual.([]Field), nil
}
