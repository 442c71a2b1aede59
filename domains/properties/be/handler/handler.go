package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/estatedesk/domains/properties/be/service"
	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	"github.com/zenGate-Global/estatedesk/platform/go/httpx"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

// maxImportBytes caps CSV uploads.
const maxImportBytes = 5 << 20

type operation string

const (
	createOperation  operation = "propertiesCreate"
	listOperation    operation = "propertiesList"
	getOperation     operation = "propertiesGet"
	updateOperation  operation = "propertiesUpdate"
	deleteOperation  operation = "propertiesDelete"
	importOperation  operation = "propertiesImport"
	resolveOperation operation = "propertyPage"
)

// Handler wires the properties service to the HTTP contract in contracts/properties.yaml and
// to the public property URLs.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("properties service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Register mounts the property API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/properties", func(r chi.Router) {
		r.Get("/", h.PropertiesList)
		r.Post("/", h.PropertiesCreate)
		r.Post("/import", h.PropertiesImport)
		r.Route("/{propertyId}", func(r chi.Router) {
			r.Get("/", h.PropertiesGet)
			r.Patch("/", h.PropertiesUpdate)
			r.Delete("/", h.PropertiesDelete)
		})
	})
}

// RegisterPublic mounts the public property page route on r.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/property/{slug}/{propertyId}", h.PropertyPage)
}

type propertyResponse struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	URL          string          `json:"url"`
	Description  string          `json:"description,omitempty"`
	Price        *float64        `json:"price,omitempty"`
	Currency     string          `json:"currency"`
	City         string          `json:"city,omitempty"`
	Locality     string          `json:"locality,omitempty"`
	PropertyType string          `json:"propertyType"`
	Bedrooms     *int32          `json:"bedrooms,omitempty"`
	Bathrooms    *int32          `json:"bathrooms,omitempty"`
	AreaSqft     *float64        `json:"areaSqft,omitempty"`
	Status       string          `json:"status"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type propertyListResponse struct {
	Items      []propertyResponse `json:"items"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalItems int                `json:"totalItems"`
	TotalPages int                `json:"totalPages"`
}

type createPropertyRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        *float64        `json:"price"`
	Currency     string          `json:"currency"`
	City         string          `json:"city"`
	Locality     string          `json:"locality"`
	PropertyType string          `json:"propertyType"`
	Bedrooms     *int32          `json:"bedrooms"`
	Bathrooms    *int32          `json:"bathrooms"`
	AreaSqft     *float64        `json:"areaSqft"`
	Status       string          `json:"status"`
	Attributes   json.RawMessage `json:"attributes"`
}

type updatePropertyRequest struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	Price        *float64        `json:"price"`
	Currency     *string         `json:"currency"`
	City         *string         `json:"city"`
	Locality     *string         `json:"locality"`
	PropertyType *string         `json:"propertyType"`
	Bedrooms     *int32          `json:"bedrooms"`
	Bathrooms    *int32          `json:"bathrooms"`
	AreaSqft     *float64        `json:"areaSqft"`
	Status       *string         `json:"status"`
	Attributes   json.RawMessage `json:"attributes"`
}

func (h *Handler) PropertiesList(w http.ResponseWriter, r *http.Request) {
	opts, err := buildListOptions(r)
	if err != nil {
		h.writeBadRequest(w, r, err, listOperation)
		return
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	items := make([]propertyResponse, 0, len(result.Properties))
	for _, property := range result.Properties {
		items = append(items, toAPIProperty(property))
	}

	httpx.WriteJSON(w, http.StatusOK, propertyListResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) PropertiesCreate(w http.ResponseWriter, r *http.Request) {
	var body createPropertyRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.writeBadRequest(w, r, err, createOperation)
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		Title:        body.Title,
		Description:  body.Description,
		Price:        body.Price,
		Currency:     body.Currency,
		City:         body.City,
		Locality:     body.Locality,
		PropertyType: body.PropertyType,
		Bedrooms:     body.Bedrooms,
		Bathrooms:    body.Bathrooms,
		AreaSqft:     body.AreaSqft,
		Status:       body.Status,
		Attributes:   body.Attributes,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/properties/%s", created.ID.String()))
	httpx.WriteJSON(w, http.StatusCreated, toAPIProperty(created))
}

func (h *Handler) PropertiesImport(w http.ResponseWriter, r *http.Request) {
	rows, err := csvtemplate.ParseRows(http.MaxBytesReader(w, r.Body, maxImportBytes), csvtemplate.Properties)
	if err != nil {
		h.writeBadRequest(w, r, err, importOperation)
		return
	}

	result, err := h.svc.Import(r.Context(), rows)
	if err != nil {
		h.writeError(w, r, err, importOperation)
		return
	}

	h.loggerFrom(r.Context()).Info("properties imported",
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failed)),
	)
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) PropertiesGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.propertyID(w, r, getOperation)
	if !ok {
		return
	}

	property, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPIProperty(property))
}

func (h *Handler) PropertiesUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.propertyID(w, r, updateOperation)
	if !ok {
		return
	}

	var body updatePropertyRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.writeBadRequest(w, r, err, updateOperation)
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		Title:        body.Title,
		Description:  body.Description,
		Price:        body.Price,
		Currency:     body.Currency,
		City:         body.City,
		Locality:     body.Locality,
		PropertyType: body.PropertyType,
		Bedrooms:     body.Bedrooms,
		Bathrooms:    body.Bathrooms,
		AreaSqft:     body.AreaSqft,
		Status:       body.Status,
		Attributes:   body.Attributes,
	})
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPIProperty(updated))
}

func (h *Handler) PropertiesDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.propertyID(w, r, deleteOperation)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PropertyPage serves a public property URL. Non-canonical slugs are permanently redirected to
// the canonical URL.
func (h *Handler) PropertyPage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "propertyId"))
	if err != nil {
		h.writeError(w, r, service.ErrNotFound, resolveOperation)
		return
	}

	property, canonical, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "slug"), id)
	if err != nil {
		h.writeError(w, r, err, resolveOperation)
		return
	}

	if !canonical {
		// http.Redirect would clean "/property//<id>" into a path this router cannot match.
		w.Header().Set("Location", property.URL)
		w.WriteHeader(http.StatusMovedPermanently)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPIProperty(property))
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	query, err := httpx.BindListQuery(r)
	if err != nil {
		return service.ListOptions{}, err
	}

	opts := service.ListOptions{
		Page:     query.Page,
		PageSize: query.PageSize,
		Sort:     query.Sort,
	}

	params := []struct {
		name string
		dest any
	}{
		{"city", &opts.City},
		{"status", &opts.Status},
		{"propertyType", &opts.PropertyType},
		{"minPrice", &opts.MinPrice},
		{"maxPrice", &opts.MaxPrice},
		{"q", &opts.Search},
	}
	for _, p := range params {
		if err := httpx.QueryParam(r, p.name, p.dest); err != nil {
			return service.ListOptions{}, err
		}
	}

	return opts, nil
}

func toAPIProperty(property service.Property) propertyResponse {
	return propertyResponse{
		ID:           property.ID,
		Title:        property.Title,
		Slug:         property.Slug,
		URL:          property.URL,
		Description:  property.Description,
		Price:        property.Price,
		Currency:     property.Currency,
		City:         property.City,
		Locality:     property.Locality,
		PropertyType: property.PropertyType,
		Bedrooms:     property.Bedrooms,
		Bathrooms:    property.Bathrooms,
		AreaSqft:     property.AreaSqft,
		Status:       property.Status,
		Attributes:   property.Attributes,
		CreatedBy:    property.CreatedBy,
		CreatedAt:    property.CreatedAt,
		UpdatedAt:    property.UpdatedAt,
	}
}

func (h *Handler) propertyID(w http.ResponseWriter, r *http.Request, op operation) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "propertyId"))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{"propertyId": {"propertyId must be a UUID"}}}, op)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, r *http.Request, err error, op operation) {
	h.loggerFrom(r.Context()).Warn("properties request rejected",
		zap.String("operation", string(op)),
		zap.Int("status", http.StatusBadRequest),
		zap.Error(err),
	)
	problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request", err.Error(), problem.TypeBadRequest, nil))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	problem.Write(w, h.problemForError(r.Context(), err, op))
}

func (h *Handler) problemForError(ctx context.Context, err error, op operation) problem.Details {
	status, title, detail, problemType, fields := h.classifyError(err)

	logger := h.loggerFrom(ctx)
	fieldsForLog := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", status),
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("properties operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("properties resource not found", append(fieldsForLog, zap.Error(err))...)
	default:
		logger.Warn("properties request rejected", append(fieldsForLog, zap.Error(err))...)
	}

	return problem.New(status, title, detail, problemType, fields)
}

func (h *Handler) classifyError(err error) (status int, title, detail, problemType string, fieldErrors service.FieldErrors) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			"Validation failed",
			"one or more fields are invalid",
			problem.TypeValidation,
			validationErr.Fields
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			"Resource not found",
			"property not found",
			problem.TypeNotFound,
			nil
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			"Conflict",
			"property conflict",
			problem.TypeConflict,
			nil
	default:
		return http.StatusInternalServerError,
			"Internal server error",
			"an unexpected error occurred",
			problem.TypeInternal,
			nil
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	return platformlogging.FromContextOr(ctx, h.logger)
}
