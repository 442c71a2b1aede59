// Package httpx holds the small request/response helpers shared by domain handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// MaxJSONBody caps JSON request bodies.
const MaxJSONBody = 1 << 20

// ErrEmptyBody is returned by DecodeJSON when the request carries no body.
var ErrEmptyBody = errors.New("request body is required")

// ListQuery carries the paging knobs shared by every list endpoint.
type ListQuery struct {
	Page     int
	PageSize int
	Sort     *string
}

// QueryParam binds an optional form-style query parameter into dest, which must be a pointer
// (typically to a pointer so absence stays nil).
func QueryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("query parameter %s: %w", name, err)
	}
	return nil
}

// BindListQuery reads page, pageSize and sort. Range checks are left to the services.
func BindListQuery(r *http.Request) (ListQuery, error) {
	var (
		page     *int
		pageSize *int
		q        ListQuery
	)

	if err := QueryParam(r, "page", &page); err != nil {
		return ListQuery{}, err
	}
	if err := QueryParam(r, "pageSize", &pageSize); err != nil {
		return ListQuery{}, err
	}
	if err := QueryParam(r, "sort", &q.Sort); err != nil {
		return ListQuery{}, err
	}

	if page != nil {
		q.Page = *page
	}
	if pageSize != nil {
		q.PageSize = *pageSize
	}

	return q, nil
}

// DecodeJSON decodes a size-limited JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode json body: %w", err)
	}

	return nil
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TotalPages returns the page count for totalItems split into pageSize pages.
func TotalPages(totalItems, pageSize int) int {
	if totalItems <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}
