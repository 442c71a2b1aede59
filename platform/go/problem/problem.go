// Package problem renders RFC 7807 application/problem+json responses.
package problem

import (
	"encoding/json"
	"net/http"
)

const ContentType = "application/problem+json"

const (
	TypeValidation   = "https://estatedesk.app/problems/validation-error"
	TypeNotFound     = "https://estatedesk.app/problems/not-found"
	TypeConflict     = "https://estatedesk.app/problems/conflict"
	TypeUnauthorized = "https://estatedesk.app/problems/unauthorized"
	TypeBadRequest   = "https://estatedesk.app/problems/bad-request"
	TypeInternal     = "https://estatedesk.app/problems/internal-error"
)

// Details is the problem document body. Errors maps field names to messages.
type Details struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// New builds a Details value, copying fieldErrors so callers may keep mutating theirs.
func New(status int, title, detail, problemType string, fieldErrors map[string][]string) Details {
	p := Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}

	if len(fieldErrors) > 0 {
		p.Errors = make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			p.Errors[field] = append([]string(nil), messages...)
		}
	}

	return p
}

// Write sends p with its status code.
func Write(w http.ResponseWriter, p Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// Unauthorized writes a 401 problem with a bearer challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
	Write(w, New(http.StatusUnauthorized, "Unauthorized", detail, TypeUnauthorized, nil))
}
