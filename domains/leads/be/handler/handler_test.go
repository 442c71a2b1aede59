package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zenGate-Global/estatedesk/domains/leads/be/service"
	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

type mockService struct {
	createFn   func(ctx context.Context, input service.CreateInput) (service.Lead, error)
	listFn     func(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	getFn      func(ctx context.Context, id uuid.UUID) (service.Lead, error)
	updateFn   func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Lead, error)
	deleteFn   func(ctx context.Context, id uuid.UUID) error
	assignFn   func(ctx context.Context, id uuid.UUID, assignedTo string) (service.Lead, error)
	unassignFn func(ctx context.Context, id uuid.UUID) (service.Lead, error)
	importFn   func(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error)
}

func (m *mockService) Create(ctx context.Context, input service.CreateInput) (service.Lead, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, opts)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (service.Lead, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) Update(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Lead, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, input)
}

func (m *mockService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func (m *mockService) Assign(ctx context.Context, id uuid.UUID, assignedTo string) (service.Lead, error) {
	if m.assignFn == nil {
		panic("assignFn not configured")
	}
	return m.assignFn(ctx, id, assignedTo)
}

func (m *mockService) Unassign(ctx context.Context, id uuid.UUID) (service.Lead, error) {
	if m.unassignFn == nil {
		panic("unassignFn not configured")
	}
	return m.unassignFn(ctx, id)
}

func (m *mockService) Import(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error) {
	if m.importFn == nil {
		panic("importFn not configured")
	}
	return m.importFn(ctx, rows)
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()

	r := chi.NewRouter()
	New(svc, zaptest.NewLogger(t)).Register(r)
	return r
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.Details {
	t.Helper()

	require.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	var details problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	return details
}

func TestLeadsListSuccess(t *testing.T) {
	t.Parallel()

	leadID := uuid.New()
	propertyID := uuid.New()
	now := time.Now().UTC()

	svc := &mockService{}
	svc.listFn = func(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
		require.Equal(t, 2, opts.Page)
		require.Equal(t, 10, opts.PageSize)
		require.Equal(t, "-createdAt", *opts.Sort)
		require.Equal(t, "new", *opts.Status)
		require.False(t, *opts.Assigned)
		require.Equal(t, propertyID, *opts.PropertyID)
		require.Equal(t, "rao", *opts.Search)

		return service.ListResult{
			Leads:      []service.Lead{{ID: leadID, FullName: "Asha Rao", Status: "new", CreatedAt: now, UpdatedAt: now}},
			Page:       2,
			PageSize:   10,
			TotalItems: 11,
			TotalPages: 2,
		}, nil
	}

	target := "/api/v1/leads?page=2&pageSize=10&sort=-createdAt&status=new&assigned=false&q=rao&propertyId=" + propertyID.String()
	rec := serve(t, newRouter(t, svc), http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body leadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, leadID, body.Items[0].ID)
	require.Equal(t, 2, body.TotalPages)
}

func TestLeadsListBadQuery(t *testing.T) {
	t.Parallel()

	rec := serve(t, newRouter(t, &mockService{}), http.MethodGet, "/api/v1/leads?assigned=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, problem.TypeBadRequest, decodeProblem(t, rec).Type)
}

func TestLeadsCreateMissingBody(t *testing.T) {
	t.Parallel()

	rec := serve(t, newRouter(t, &mockService{}), http.MethodPost, "/api/v1/leads", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadsCreateValidationError(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.createFn = func(ctx context.Context, input service.CreateInput) (service.Lead, error) {
		return service.Lead{}, &service.ValidationError{Fields: service.FieldErrors{"email": {"email or phone is required"}}}
	}

	rec := serve(t, newRouter(t, svc), http.MethodPost, "/api/v1/leads", `{"fullName":"Asha Rao"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	details := decodeProblem(t, rec)
	require.Equal(t, problem.TypeValidation, details.Type)
	require.Equal(t, []string{"email or phone is required"}, details.Errors["email"])
}

func TestLeadsCreateSuccess(t *testing.T) {
	t.Parallel()

	leadID := uuid.New()
	svc := &mockService{}
	svc.createFn = func(ctx context.Context, input service.CreateInput) (service.Lead, error) {
		require.Equal(t, "Asha Rao", input.FullName)
		require.Equal(t, 1500000.0, *input.Budget)
		require.JSONEq(t, `{"bhk":3}`, string(input.Attributes))

		return service.Lead{ID: leadID, FullName: input.FullName, Status: "new", AssignedTo: "agent-7", IsAssigned: true}, nil
	}

	rec := serve(t, newRouter(t, svc), http.MethodPost, "/api/v1/leads",
		`{"fullName":"Asha Rao","email":"asha@example.com","budget":1500000,"assignedTo":"agent-7","attributes":{"bhk":3}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/leads/"+leadID.String(), rec.Header().Get("Location"))

	var body leadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, leadID, body.ID)
	require.True(t, body.IsAssigned)
}

func TestLeadsCreateRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	rec := serve(t, newRouter(t, &mockService{}), http.MethodPost, "/api/v1/leads", `{"fullName":"Asha","isAssigned":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadsGetInvalidID(t *testing.T) {
	t.Parallel()

	rec := serve(t, newRouter(t, &mockService{}), http.MethodGet, "/api/v1/leads/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeProblem(t, rec).Errors, "leadId")
}

func TestLeadsGetNotFoundLogsAtInfo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	svc := &mockService{
		getFn: func(ctx context.Context, id uuid.UUID) (service.Lead, error) {
			return service.Lead{}, service.ErrNotFound
		},
	}

	r := chi.NewRouter()
	New(svc, zap.New(core)).Register(r)

	rec := serve(t, r, http.MethodGet, "/api/v1/leads/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, problem.TypeNotFound, decodeProblem(t, rec).Type)

	entries := logs.FilterMessage("leads resource not found").All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, string(getOperation), entries[0].ContextMap()["operation"])
}

func TestLeadsUpdateAndDelete(t *testing.T) {
	t.Parallel()

	leadID := uuid.New()
	svc := &mockService{
		updateFn: func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Lead, error) {
			require.Equal(t, leadID, id)
			require.Equal(t, "contacted", *input.Status)
			require.Nil(t, input.FullName)
			return service.Lead{ID: id, Status: "contacted"}, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			require.Equal(t, leadID, id)
			return nil
		},
	}
	router := newRouter(t, svc)

	rec := serve(t, router, http.MethodPatch, "/api/v1/leads/"+leadID.String(), `{"status":"contacted"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodDelete, "/api/v1/leads/"+leadID.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLeadsAssignAndUnassign(t *testing.T) {
	t.Parallel()

	leadID := uuid.New()
	svc := &mockService{
		assignFn: func(ctx context.Context, id uuid.UUID, assignedTo string) (service.Lead, error) {
			require.Equal(t, "agent-7", assignedTo)
			return service.Lead{ID: id, AssignedTo: assignedTo, IsAssigned: true}, nil
		},
		unassignFn: func(ctx context.Context, id uuid.UUID) (service.Lead, error) {
			return service.Lead{ID: id}, nil
		},
	}
	router := newRouter(t, svc)

	rec := serve(t, router, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/assign", `{"assignedTo":"agent-7"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body leadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.IsAssigned)

	rec = serve(t, router, http.MethodPost, "/api/v1/leads/"+leadID.String()+"/unassign", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = leadResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.IsAssigned)
	require.Empty(t, body.AssignedTo)
}

func TestLeadsImport(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		importFn: func(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error) {
			require.Len(t, rows, 2)
			require.Equal(t, "Asha Rao", rows[0].Get("fullName"))
			return csvtemplate.ImportResult{
				Imported: 1,
				Failed:   []csvtemplate.RowFailure{{Row: 3, Errors: map[string][]string{"email": {"email or phone is required"}}}},
			}, nil
		},
	}
	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/import", strings.NewReader("fullName,email\nAsha Rao,asha@example.com\nVikram,\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"imported":1,"failed":[{"row":3,"errors":{"email":["email or phone is required"]}}]}`, rec.Body.String())
}

func TestLeadsImportUnknownColumn(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/import", strings.NewReader("fullName,nickname\nAsha,A\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	newRouter(t, &mockService{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeProblem(t, rec).Detail, "nickname")
}
