package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/estatedesk/platform/go/cache"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

// countingRepository serves records from memory and counts Get calls.
type countingRepository struct {
	Repository
	records map[uuid.UUID]persistence.Property
	gets    int
}

func (r *countingRepository) Get(_ context.Context, id uuid.UUID) (persistence.Property, error) {
	r.gets++
	record, ok := r.records[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	return record, nil
}

func (r *countingRepository) Update(_ context.Context, id uuid.UUID, params persistence.PropertyParams) (persistence.Property, error) {
	record, ok := r.records[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	record.Title = params.Title
	r.records[id] = record
	return record, nil
}

func (r *countingRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.records[id]; !ok {
		return persistence.ErrPropertyNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *countingRepository) UpdateSlug(_ context.Context, id uuid.UUID, value string) error {
	record, ok := r.records[id]
	if !ok {
		return persistence.ErrPropertyNotFound
	}
	record.Slug = value
	r.records[id] = record
	return nil
}

func newCachedRepository(t *testing.T) (Repository, *countingRepository, uuid.UUID) {
	t.Helper()

	server := miniredis.RunT(t)
	client, err := cache.Open(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	inner := &countingRepository{records: map[uuid.UUID]persistence.Property{
		id: {PropertyID: id, Title: "Cozy Flat", Slug: "cozy-flat", Currency: "INR"},
	}}

	records := cache.NewReadThrough[persistence.Property](
		cache.NewRedis[persistence.Property](client, "properties", time.Minute),
		time.Minute,
	)

	return NewCachedRepository(inner, records), inner, id
}

func TestCachedRepositoryServesRepeatReadsFromCache(t *testing.T) {
	t.Parallel()

	repository, inner, id := newCachedRepository(t)
	ctx := context.Background()

	first, err := repository.Get(ctx, id)
	require.NoError(t, err)
	second, err := repository.Get(ctx, id)
	require.NoError(t, err)

	require.Equal(t, 1, inner.gets)
	require.Equal(t, first.Title, second.Title)
	require.Equal(t, id, second.PropertyID)
}

func TestCachedRepositoryInvalidatesOnWrite(t *testing.T) {
	t.Parallel()

	repository, inner, id := newCachedRepository(t)
	ctx := context.Background()

	_, err := repository.Get(ctx, id)
	require.NoError(t, err)

	_, err = repository.Update(ctx, id, persistence.PropertyParams{Title: "Cozy Flat Renovated"})
	require.NoError(t, err)

	record, err := repository.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Cozy Flat Renovated", record.Title)
	require.Equal(t, 2, inner.gets)

	require.NoError(t, repository.UpdateSlug(ctx, id, "cozy-flat-renovated"))
	record, err = repository.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "cozy-flat-renovated", record.Slug)

	require.NoError(t, repository.Delete(ctx, id))
	_, err = repository.Get(ctx, id)
	require.ErrorIs(t, err, persistence.ErrPropertyNotFound)
}

func TestCachedRepositoryDoesNotCacheMisses(t *testing.T) {
	t.Parallel()

	repository, inner, _ := newCachedRepository(t)
	missing := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := repository.Get(context.Background(), missing)
		require.ErrorIs(t, err, persistence.ErrPropertyNotFound)
	}
	require.Equal(t, 2, inner.gets)
}

func TestNewCachedRepositoryPanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	records := cache.NewReadThrough[persistence.Property](cache.Noop[persistence.Property]{}, time.Minute)

	require.Panics(t, func() { NewCachedRepository(nil, records) })
	require.Panics(t, func() { NewCachedRepository(&countingRepository{}, nil) })
}
