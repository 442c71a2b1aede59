package persistence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStoresAgainstPostgres(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping store integration test in short mode")
	}

	pool := mustTestPool(t)
	ctx := context.Background()

	// schema is idempotent
	require.NoError(t, ApplySchema(ctx, pool))

	properties, err := NewPropertyStore(pool)
	require.NoError(t, err)
	leads, err := NewLeadStore(pool)
	require.NoError(t, err)

	price := 12500000.0
	bedrooms := int32(3)
	propertyID := uuid.New()

	t.Run("property lifecycle", func(t *testing.T) {
		created, err := properties.CreateProperty(ctx, CreatePropertyParams{
			PropertyID: propertyID,
			CreatedBy:  "agent-1",
			PropertyParams: PropertyParams{
				Title:        "3BHK Luxury Apartment in Bandra, Mumbai",
				Price:        &price,
				Currency:     "INR",
				City:         "Mumbai",
				Locality:     "Bandra West",
				PropertyType: "apartment",
				Bedrooms:     &bedrooms,
				Status:       "available",
				Attributes:   json.RawMessage(`{"parking":true}`),
			},
		})
		require.NoError(t, err)
		require.Equal(t, "3bhk-luxury-apartment-in-bandra-mumbai", created.Slug)
		require.Equal(t, &price, created.Price)
		require.Nil(t, created.Bathrooms)
		require.JSONEq(t, `{"parking":true}`, string(created.Attributes))

		_, err = properties.CreateProperty(ctx, CreatePropertyParams{
			PropertyID:     propertyID,
			PropertyParams: PropertyParams{Title: "Dup", Currency: "INR", PropertyType: "other", Status: "available"},
		})
		require.ErrorIs(t, err, ErrPropertyConflict)

		city := "mumbai"
		listed, err := properties.ListProperties(ctx, ListPropertiesParams{City: &city})
		require.NoError(t, err)
		require.Equal(t, 1, listed.TotalItems)

		updated, err := properties.UpdateProperty(ctx, propertyID, PropertyParams{
			Title:        "Sea Facing 3BHK",
			Price:        &price,
			Currency:     "INR",
			City:         "Mumbai",
			PropertyType: "apartment",
			Status:       "under_offer",
		})
		require.NoError(t, err)
		require.Equal(t, "sea-facing-3bhk", updated.Slug)
		require.JSONEq(t, `{}`, string(updated.Attributes))

		_, err = properties.GetProperty(ctx, uuid.New())
		require.ErrorIs(t, err, ErrPropertyNotFound)
	})

	t.Run("slug backfill", func(t *testing.T) {
		require.NoError(t, properties.UpdatePropertySlug(ctx, propertyID, "stale"))

		mismatches, next, err := properties.ListSlugMismatches(ctx, uuid.Nil, 50)
		require.NoError(t, err)
		require.Equal(t, uuid.Nil, next)
		require.Len(t, mismatches, 1)
		require.Equal(t, "stale", mismatches[0].Stored)
		require.Equal(t, "sea-facing-3bhk", mismatches[0].Expected)

		require.NoError(t, properties.UpdatePropertySlug(ctx, propertyID, mismatches[0].Expected))
		mismatches, _, err = properties.ListSlugMismatches(ctx, uuid.Nil, 50)
		require.NoError(t, err)
		require.Empty(t, mismatches)
	})

	t.Run("lead lifecycle and assignment", func(t *testing.T) {
		leadID := uuid.New()
		created, err := leads.CreateLead(ctx, CreateLeadParams{
			LeadID: leadID,
			LeadParams: LeadParams{
				FullName:   "Asha Rao",
				Email:      "asha@example.com",
				Status:     "new",
				PropertyID: &propertyID,
			},
		})
		require.NoError(t, err)
		require.NotNil(t, created.IsAssigned)
		require.False(t, *created.IsAssigned)

		assigned, err := leads.SetLeadAssignment(ctx, leadID, "agent-7")
		require.NoError(t, err)
		require.True(t, *assigned.IsAssigned)
		require.Equal(t, "agent-7", assigned.AssignedTo)

		yes := true
		listed, err := leads.ListLeads(ctx, ListLeadsParams{Assigned: &yes})
		require.NoError(t, err)
		require.Equal(t, 1, listed.TotalItems)

		unknown := uuid.New()
		_, err = leads.CreateLead(ctx, CreateLeadParams{
			LeadID:     uuid.New(),
			LeadParams: LeadParams{FullName: "Ghost", Phone: "+919999999999", Status: "new", PropertyID: &unknown},
		})
		require.ErrorIs(t, err, ErrLeadPropertyMissing)

		require.NoError(t, leads.DeleteLead(ctx, leadID))
		require.ErrorIs(t, leads.DeleteLead(ctx, leadID), ErrLeadNotFound)
	})

	t.Run("assignment normalization", func(t *testing.T) {
		_, err := pool.Exec(ctx, `
            INSERT INTO leads (lead_id, full_name, phone, is_assigned, assigned_to) VALUES
                ($1, 'Legacy Unassigned', '+911111111111', NULL, ''),
                ($2, 'Legacy Assigned', '+912222222222', NULL, 'agent-2'),
                ($3, 'Drifted', '+913333333333', FALSE, 'agent-3'),
                ($4, 'Consistent', '+914444444444', TRUE, 'agent-4')
        `, uuid.New(), uuid.New(), uuid.New(), uuid.New())
		require.NoError(t, err)

		report, err := leads.LeadAssignmentReport(ctx)
		require.NoError(t, err)
		require.Equal(t, AssignmentReport{Total: 4, True: 1, False: 1, Null: 2, Mismatched: 1}, report)
		require.Equal(t, 3, report.Pending())

		pending, err := leads.NormalizeLeadAssignment(ctx, true)
		require.NoError(t, err)
		require.EqualValues(t, 3, pending)

		changed, err := leads.NormalizeLeadAssignment(ctx, false)
		require.NoError(t, err)
		require.EqualValues(t, 3, changed)

		report, err = leads.LeadAssignmentReport(ctx)
		require.NoError(t, err)
		require.Equal(t, AssignmentReport{Total: 4, True: 3, False: 1}, report)
	})

	t.Run("deleting a property detaches its leads", func(t *testing.T) {
		leadID := uuid.New()
		_, err := leads.CreateLead(ctx, CreateLeadParams{
			LeadID:     leadID,
			LeadParams: LeadParams{FullName: "Vikram", Email: "v@example.com", Status: "contacted", PropertyID: &propertyID},
		})
		require.NoError(t, err)

		require.NoError(t, properties.DeleteProperty(ctx, propertyID))
		lead, err := leads.GetLead(ctx, leadID)
		require.NoError(t, err)
		require.Nil(t, lead.PropertyID)
	})
}
