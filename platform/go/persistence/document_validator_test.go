package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentValidatorValidate(t *testing.T) {
	t.Parallel()

	validator := NewDocumentValidator()
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    DocumentKind
		payload string
		fields  []string
	}{
		{
			name:    "valid lead with email",
			kind:    DocumentLead,
			payload: `{"fullName":"Asha Rao","email":"asha@example.com","status":"new"}`,
		},
		{
			name:    "valid lead with phone only",
			kind:    DocumentLead,
			payload: `{"fullName":"Asha Rao","phone":"+91 98200 12345","status":"qualified","budget":0}`,
		},
		{
			name:    "lead without contact",
			kind:    DocumentLead,
			payload: `{"fullName":"Asha Rao","status":"new"}`,
			fields:  []string{"payload"},
		},
		{
			name:    "lead with bad email and status",
			kind:    DocumentLead,
			payload: `{"fullName":"Asha Rao","email":"not-an-email","status":"maybe"}`,
			fields:  []string{"email", "status"},
		},
		{
			name:    "lead with unknown property id format",
			kind:    DocumentLead,
			payload: `{"fullName":"Asha","email":"a@example.com","status":"new","propertyId":"nope"}`,
			fields:  []string{"propertyId"},
		},
		{
			name:    "valid property",
			kind:    DocumentProperty,
			payload: `{"title":"Cozy Flat","currency":"INR","propertyType":"apartment","status":"available","bedrooms":2}`,
		},
		{
			name:    "property with negative price and lowercase currency",
			kind:    DocumentProperty,
			payload: `{"title":"Cozy Flat","currency":"inr","propertyType":"apartment","status":"available","price":-1}`,
			fields:  []string{"currency", "price"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validator.Validate(ctx, tc.kind, []byte(tc.payload))
			if len(tc.fields) == 0 {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			fields, ok := ValidationFields(err)
			require.True(t, ok)
			for _, field := range tc.fields {
				require.Contains(t, fields, field)
				require.NotEmpty(t, fields[field])
			}
		})
	}
}

func TestDocumentValidatorRejectsBadInput(t *testing.T) {
	t.Parallel()

	validator := NewDocumentValidator()
	ctx := context.Background()

	require.Error(t, validator.Validate(ctx, DocumentLead, nil))
	require.ErrorContains(t, validator.Validate(ctx, DocumentKind("tenant"), []byte(`{}`)), "unknown document kind")

	err := validator.Validate(ctx, DocumentLead, []byte(`{`))
	require.ErrorContains(t, err, "decode payload")
	_, ok := ValidationFields(err)
	require.False(t, ok)
}

func TestValidationFieldsIgnoresOtherErrors(t *testing.T) {
	t.Parallel()

	fields, ok := ValidationFields(errors.New("boom"))
	require.False(t, ok)
	require.Nil(t, fields)
}
