package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultCredentialExtractor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		claims  map[string]any
		want    *UserCredentials
		wantErr bool
	}{
		{
			name: "firebase uid wins over sub",
			claims: map[string]any{
				"uid":            "agent-1",
				"sub":            "ignored",
				"email":          "agent@example.com",
				"email_verified": true,
				"isAdmin":        true,
			},
			want: &UserCredentials{ID: "agent-1", Email: "agent@example.com", EmailVerified: true, IsAdmin: true},
		},
		{
			name:   "sub fallback",
			claims: map[string]any{"sub": "agent-2", "isAdmin": "yes"},
			want:   &UserCredentials{ID: "agent-2"},
		},
		{
			name:    "no subject",
			claims:  map[string]any{"email": "a@example.com"},
			wantErr: true,
		},
		{
			name:    "nil claims",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := DefaultCredentialExtractor(tc.claims)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	name := "Priya"
	require.Equal(t, "Priya", (&UserCredentials{ID: "1", Email: "p@example.com", Name: &name}).DisplayName())
	require.Equal(t, "p@example.com", (&UserCredentials{ID: "1", Email: "p@example.com"}).DisplayName())
	require.Equal(t, "1", (&UserCredentials{ID: "1"}).DisplayName())
}

func TestExtractJWTToken(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		header string
		token  string
		found  bool
	}{
		{header: "", found: false},
		{header: "Basic abc", found: false},
		{header: "Bearer abc.def", token: "abc.def", found: true},
		{header: "bearer   abc ", token: "abc", found: true},
	}

	for _, tc := range testCases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		token, found := ExtractJWTToken(r)
		require.Equal(t, tc.found, found, tc.header)
		require.Equal(t, tc.token, token, tc.header)
	}
}

func TestUnsignedTokenVerifier(t *testing.T) {
	t.Parallel()

	verify := UnsignedTokenVerifier()
	encode := func(payload string) string {
		return "e30." + base64.RawURLEncoding.EncodeToString([]byte(payload))
	}

	claims, err := verify(context.Background(), encode(`{"sub":"agent-1"}`))
	require.NoError(t, err)
	require.Equal(t, "agent-1", claims["sub"])

	future := time.Now().Add(time.Hour).Unix()
	_, err = verify(context.Background(), encode(`{"sub":"a","exp":`+itoa(future)+`}`))
	require.NoError(t, err)

	_, err = verify(context.Background(), encode(`{"sub":"a","exp":1}`))
	require.ErrorContains(t, err, "expired")

	_, err = verify(context.Background(), "not-a-jwt")
	require.Error(t, err)

	_, err = verify(context.Background(), "e30.!!!")
	require.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	t.Parallel()

	verify := func(_ context.Context, token string) (map[string]any, error) {
		switch token {
		case "good":
			return map[string]any{"uid": "agent-9"}, nil
		case "nosub":
			return map[string]any{}, nil
		default:
			return nil, errors.New("bad signature")
		}
	}

	var seen *UserCredentials
	handler := JWT(verify, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	testCases := []struct {
		name   string
		header string
		status int
		userID string
	}{
		{name: "anonymous passes through", status: http.StatusNoContent},
		{name: "valid token", header: "Bearer good", status: http.StatusNoContent, userID: "agent-9"},
		{name: "invalid token", header: "Bearer forged", status: http.StatusUnauthorized},
		{name: "claims without subject", header: "Bearer nosub", status: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		require.Equal(t, tc.status, rec.Code, tc.name)
		if tc.userID == "" {
			require.Nil(t, seen, tc.name)
			continue
		}
		require.NotNil(t, seen, tc.name)
		require.Equal(t, tc.userID, seen.ID, tc.name)
	}
}

func TestJWTRequiresVerifier(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { JWT(nil, nil) })
	require.Panics(t, func() { FirebaseTokenVerifier(nil) })
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
