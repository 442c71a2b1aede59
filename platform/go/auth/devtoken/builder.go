// Package devtoken mints unsigned Firebase-shaped ID tokens for AUTH_PROVIDER=dev.
package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Params captures the claims of a local agent token. No environment is read so the
// builder stays deterministic for tooling and tests.
type Params struct {
	ProjectID     string        // aud and iss; defaults to "estatedesk-local"
	UserID        string        // user_id/sub (required)
	Email         string        // email claim (required)
	Name          string        // display name shown on the dashboard
	EmailVerified bool          // email_verified claim
	IsAdmin       bool          // isAdmin custom claim
	ExpiresIn     time.Duration // default 1h
}

// Build returns a JWT string with alg "none" and an empty signature segment.
func Build(p Params, now time.Time) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("user id is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", errors.New("email is required")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	projectID := strings.TrimSpace(p.ProjectID)
	if projectID == "" {
		projectID = "estatedesk-local"
	}

	expiresIn := p.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}

	payload := map[string]any{
		"iss":            fmt.Sprintf("https://securetoken.google.com/%s", projectID),
		"aud":            projectID,
		"auth_time":      now.Unix(),
		"user_id":        p.UserID,
		"sub":            p.UserID,
		"iat":            now.Unix(),
		"exp":            now.Add(expiresIn).Unix(),
		"email":          p.Email,
		"email_verified": p.EmailVerified,
		"isAdmin":        p.IsAdmin,
		"firebase": map[string]any{
			"identities":       map[string]any{"email": []string{p.Email}},
			"sign_in_provider": "password",
		},
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		payload["name"] = name
	}

	headerSegment, err := encodeSegment(map[string]any{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}

	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return headerSegment + "." + payloadSegment + ".", nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
