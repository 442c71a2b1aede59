package middleware

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
	"github.com/zenGate-Global/estatedesk/platform/go/requesttrace"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "wildcard", origins: []string{"*"}, method: http.MethodGet, origin: "https://crm.example.com", wantStatus: 200, wantAllow: "*"},
		{name: "empty list allows any", method: http.MethodGet, wantStatus: 200, wantAllow: "*"},
		{name: "listed origin echoed", origins: []string{"https://crm.example.com/"}, method: http.MethodGet, origin: "https://CRM.example.com", wantStatus: 200, wantAllow: "https://CRM.example.com"},
		{name: "unlisted origin", origins: []string{"https://crm.example.com"}, method: http.MethodGet, origin: "https://evil.example.com", wantStatus: 200},
		{name: "preflight", origins: []string{"*"}, method: http.MethodOptions, wantStatus: http.StatusNoContent, wantAllow: "*"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tc.method, "/api/v1/leads", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tc.origins)(ok).ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, tc.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	return "e30." + base64.RawURLEncoding.EncodeToString(raw) + "."
}

func TestRequestTrace(t *testing.T) {
	t.Parallel()

	newRouter := func(check func(*testing.T, requesttrace.AuditInfo)) http.Handler {
		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(platformauth.JWT(platformauth.UnsignedTokenVerifier(), nil))
		r.Use(RequestTrace)
		r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
			audit, ok := requesttrace.FromContext(req.Context())
			require.True(t, ok)
			require.NotEmpty(t, audit.RequestID)
			check(t, audit)
			w.WriteHeader(http.StatusOK)
		})
		return r
	}

	t.Run("authenticated", func(t *testing.T) {
		t.Parallel()

		router := newRouter(func(t *testing.T, audit requesttrace.AuditInfo) {
			require.Equal(t, requesttrace.ActorKindUser, audit.ActorKind)
			require.Equal(t, "agent-123", audit.Actor())
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+unsignedToken(t, map[string]any{"uid": "agent-123"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()

		router := newRouter(func(t *testing.T, audit requesttrace.AuditInfo) {
			require.Equal(t, requesttrace.ActorKindAnonymous, audit.ActorKind)
			require.Empty(t, audit.UserID)
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("credentials without id", func(t *testing.T) {
		t.Parallel()

		handler := RequestTrace(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		}))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

const validatorTestSpec = `
openapi: 3.0.3
info: {title: test, version: "1"}
components:
  securitySchemes:
    bearerAuth: {type: http, scheme: bearer}
security:
  - bearerAuth: []
paths:
  /api/v1/items:
    get:
      parameters:
        - {name: page, in: query, schema: {type: integer, minimum: 1}}
      responses:
        "200": {description: ok}
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [title]
              properties:
                title: {type: string, minLength: 1}
      responses:
        "201": {description: created}
  /api/v1/items/import:
    post:
      requestBody:
        required: true
        content:
          text/csv:
            schema: {type: string}
      responses:
        "200": {description: ok}
`

func TestSpecValidator(t *testing.T) {
	t.Parallel()

	spec, err := openapi3.NewLoader().LoadFromData([]byte(validatorTestSpec))
	require.NoError(t, err)
	require.NoError(t, spec.Validate(t.Context()))

	var gotBody string
	r := chi.NewRouter()
	r.Use(SpecValidator(spec))
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Get("/api/v1/items", ok)
	r.Post("/api/v1/items", ok)
	r.Post("/api/v1/items/import", func(w http.ResponseWriter, req *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, req.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		bearer      bool
		want        int
	}{
		{name: "valid list", method: http.MethodGet, target: "/api/v1/items?page=2", bearer: true, want: 200},
		{name: "missing bearer", method: http.MethodGet, target: "/api/v1/items", want: 401},
		{name: "bad query", method: http.MethodGet, target: "/api/v1/items?page=0", bearer: true, want: 400},
		{name: "bad body", method: http.MethodPost, target: "/api/v1/items", contentType: "application/json", body: `{"title":""}`, bearer: true, want: 400},
		{name: "valid body", method: http.MethodPost, target: "/api/v1/items", contentType: "application/json", body: `{"title":"x"}`, bearer: true, want: 200},
		{name: "csv body", method: http.MethodPost, target: "/api/v1/items/import", contentType: "text/csv", body: "title\nx\n", bearer: true, want: 200},
		{name: "unknown route", method: http.MethodGet, target: "/api/v1/nope", bearer: true, want: 404},
	}

	for _, tc := range tests {
		var body *strings.Reader
		if tc.body != "" {
			body = strings.NewReader(tc.body)
		} else {
			body = strings.NewReader("")
		}
		req := httptest.NewRequest(tc.method, tc.target, body)
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		if tc.bearer {
			req.Header.Set("Authorization", "Bearer token")
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code, tc.name)
		if tc.want >= 400 {
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), tc.name)
		}
	}

	require.Equal(t, "title\nx\n", gotBody)
}
