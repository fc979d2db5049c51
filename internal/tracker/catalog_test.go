package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider wraps ReflectProvider and counts FieldsOf invocations.
type countingProvider struct {
	ReflectProvider
	calls atomic.Int64
	err   error
}

func (p *countingProvider) FieldsOf(record interface{}) ([]Field, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.ReflectProvider.FieldsOf(record)
}

func fieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func TestCatalogCachesPerType(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{}
	catalog := NewCatalog(provider)

	first, err := catalog.FieldsFor(&account{})
	require.NoError(t, err)
	second, err := catalog.FieldsFor(&account{})
	require.NoError(t, err)

	assert.Equal(t, fieldNames(first), fieldNames(second))
	assert.Equal(t, int64(1), provider.calls.Load(), "second lookup must hit the cache")
}

func TestCatalogStabilityUnderConcurrentFirstBuild(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{}
	catalog := NewCatalog(provider)

	const callers = 64
	results := make([][]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fields, err := catalog.FieldsFor(&account{})
			if err != nil {
				t.Error(err)
				return
			}
			results[n] = fieldNames(fields)
		}(i)
	}
	wg.Wait()

	want := results[0]
	require.NotEmpty(t, want)
	for _, got := range results {
		assert.Equal(t, want, got, "every caller must observe the same fully-built set")
	}

	// Redundant concurrent builds are fine, but once one is published the
	// cache must serve all later lookups.
	published := provider.calls.Load()
	_, err := catalog.FieldsFor(&account{})
	require.NoError(t, err)
	assert.Equal(t, published, provider.calls.Load())
}

func TestCatalogFailureLeavesNoPartialEntry(t *testing.T) {
	t.Parallel()

	buildErr := errors.New("metadata unavailable")
	provider := &countingProvider{err: buildErr}
	catalog := NewCatalog(provider)

	_, err := catalog.FieldsFor(&account{})
	require.ErrorIs(t, err, buildErr)

	// The failed build is not cached: a retry after the provider recovers
	// succeeds.
	provider.err = nil
	fields, err := catalog.FieldsFor(&account{})
	require.NoError(t, err)
	assert.NotEmpty(t, fields)
}

func TestCatalogDistinguishesTypes(t *testing.T) {
	t.Parallel()

	type order struct {
		ID     string `audit:"id,identity"`
		Status string `audit:"status"`
	}

	provider := &countingProvider{}
	catalog := NewCatalog(provider)

	accountFields, err := catalog.FieldsFor(&account{})
	require.NoError(t, err)
	orderFields, err := catalog.FieldsFor(&order{})
	require.NoError(t, err)

	assert.NotEqual(t, fieldNames(accountFields), fieldNames(orderFields))
	assert.Equal(t, []string{"status"}, fieldNames(orderFields))
}
