package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenGate-Global/estatedesk/platform/go/cache"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the properties service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreatePropertyParams) (persistence.Property, error)
	List(ctx context.Context, params persistence.ListPropertiesParams) (persistence.ListPropertiesResult, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Property, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.PropertyParams) (persistence.Property, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListSlugMismatches(ctx context.Context, after uuid.UUID, limit int) ([]persistence.SlugMismatch, uuid.UUID, error)
	UpdateSlug(ctx context.Context, id uuid.UUID, value string) error
}

type postgresRepository struct {
	store *persistence.PropertyStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.PropertyStore) Repository {
	if store == nil {
		panic("property store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreatePropertyParams) (persistence.Property, error) {
	return r.store.CreateProperty(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListPropertiesParams) (persistence.ListPropertiesResult, error) {
	return r.store.ListProperties(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.store.GetProperty(ctx, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.PropertyParams) (persistence.Property, error) {
	return r.store.UpdateProperty(ctx, id, params)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteProperty(ctx, id)
}

func (r *postgresRepository) ListSlugMismatches(ctx context.Context, after uuid.UUID, limit int) ([]persistence.SlugMismatch, uuid.UUID, error) {
	return r.store.ListSlugMismatches(ctx, after, limit)
}

func (r *postgresRepository) UpdateSlug(ctx context.Context, id uuid.UUID, value string) error {
	return r.store.UpdatePropertySlug(ctx, id, value)
}

// cachedRepository serves Get through a read-through cache keyed by property id and drops the
// entry after every successful write to that id.
type cachedRepository struct {
	Repository
	records *cache.ReadThrough[persistence.Property]
}

// NewCachedRepository wraps next with a read-through cache for single-record lookups.
func NewCachedRepository(next Repository, records *cache.ReadThrough[persistence.Property]) Repository {
	if next == nil {
		panic("property repository is required")
	}
	if records == nil {
		panic("property cache is required")
	}
	return &cachedRepository{Repository: next, records: records}
}

func (r *cachedRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	record, _, err := r.records.GetOrLoad(ctx, id.String(), func(ctx context.Context) (persistence.Property, error) {
		return r.Repository.Get(ctx, id)
	})
	return record, err
}

func (r *cachedRepository) Update(ctx context.Context, id uuid.UUID, params persistence.PropertyParams) (persistence.Property, error) {
	record, err := r.Repository.Update(ctx, id, params)
	if err != nil {
		return persistence.Property{}, err
	}
	r.invalidate(ctx, id)
	return record, nil
}

func (r *cachedRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedRepository) UpdateSlug(ctx context.Context, id uuid.UUID, value string) error {
	if err := r.Repository.UpdateSlug(ctx, id, value); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// invalidate ignores backend errors; stale entries still expire with the cache TTL.
func (r *cachedRepository) invalidate(ctx context.Context, id uuid.UUID) {
	_ = r.records.Invalidate(ctx, id.String())
}
