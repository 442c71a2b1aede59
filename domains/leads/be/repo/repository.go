package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the leads service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateLeadParams) (persistence.Lead, error)
	List(ctx context.Context, params persistence.ListLeadsParams) (persistence.ListLeadsResult, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.LeadParams) (persistence.Lead, error)
	SetAssignment(ctx context.Context, id uuid.UUID, assignedTo string) (persistence.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.LeadStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.LeadStore) Repository {
	if store == nil {
		panic("lead store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateLeadParams) (persistence.Lead, error) {
	return r.store.CreateLead(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListLeadsParams) (persistence.ListLeadsResult, error) {
	return r.store.ListLeads(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Lead, error) {
	return r.store.GetLead(ctx, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.LeadParams) (persistence.Lead, error) {
	return r.store.UpdateLead(ctx, id, params)
}

func (r *postgresRepository) SetAssignment(ctx context.Context, id uuid.UUID, assignedTo string) (persistence.Lead, error) {
	return r.store.SetLeadAssignment(ctx, id, assignedTo)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteLead(ctx, id)
}
