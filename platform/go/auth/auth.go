package auth

import (
	"context"
	"errors"
	"net/http"

	"firebase.google.com/go/v4/auth"

	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

type ctxKey string

const ctxUserCredentials ctxKey = "ESTATEDESK_USER_CREDENTIALS"

// UserCredentials is the authenticated agent behind a request.
type UserCredentials struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          *string
	IsAdmin       bool
}

// DisplayName returns the name claim, falling back to the email and then the id.
func (c *UserCredentials) DisplayName() string {
	switch {
	case c.Name != nil && *c.Name != "":
		return *c.Name
	case c.Email != "":
		return c.Email
	default:
		return c.ID
	}
}

// WithUser stores credentials on the context.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// UserFromContext returns the credentials placed by JWT, if any.
func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	u, ok := ctx.Value(ctxUserCredentials).(*UserCredentials)
	return u, ok && u != nil
}

// VerifyFunc validates the incoming JWT and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]any, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]any) (*UserCredentials, error)

// JWT verifies bearer tokens and stores the resulting credentials on the context.
// Requests without a token pass through untouched; routes that need one are
// enforced by the OpenAPI validator. An invalid token is rejected with 401.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractJWTToken(r)
			if !found || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				problem.Unauthorized(w, "invalid bearer token")
				return
			}

			creds, err := extract(claims)
			if err != nil {
				problem.Unauthorized(w, "invalid token claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), creds)))
		})
	}
}

// DefaultCredentialExtractor converts Firebase-style claims into UserCredentials.
func DefaultCredentialExtractor(claims map[string]any) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := firstStringClaim(claims, "uid", "user_id", "sub")
	if id == "" {
		return nil, errors.New("token carries no subject")
	}

	return &UserCredentials{
		ID:            id,
		Email:         stringClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Name:          optionalStringClaim(claims, "name"),
		IsAdmin:       boolClaim(claims, "isAdmin"),
	}, nil
}

func boolClaim(claims map[string]any, key string) bool {
	v, ok := claims[key].(bool)
	return ok && v
}

func stringClaim(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	return v
}

func optionalStringClaim(claims map[string]any, key string) *string {
	if v := stringClaim(claims, key); v != "" {
		return &v
	}
	return nil
}

func firstStringClaim(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

// FirebaseTokenVerifier returns a VerifyFunc that validates ID tokens via Firebase Auth.
func FirebaseTokenVerifier(fbAuth *auth.Client) VerifyFunc {
	if fbAuth == nil {
		panic("auth.FirebaseTokenVerifier: firebase auth client must not be nil")
	}

	return func(ctx context.Context, token string) (map[string]any, error) {
		t, err := fbAuth.VerifyIDToken(ctx, token)
		if err != nil {
			return nil, err
		}

		claims := make(map[string]any, len(t.Claims)+2)
		for k, v := range t.Claims {
			claims[k] = v
		}
		claims["uid"] = t.UID
		claims["sub"] = t.Subject

		return claims, nil
	}
}

// UnsignedTokenVerifier decodes JWT payloads without checking signatures. Local development only.
func UnsignedTokenVerifier() VerifyFunc {
	return func(_ context.Context, token string) (map[string]any, error) {
		return parseUnsignedJWTClaims(token)
	}
}
