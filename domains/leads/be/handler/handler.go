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

	"github.com/zenGate-Global/estatedesk/domains/leads/be/service"
	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	"github.com/zenGate-Global/estatedesk/platform/go/httpx"
	platformlogging "github.com/zenGate-Global/estatedesk/platform/go/logging"
	"github.com/zenGate-Global/estatedesk/platform/go/problem"
)

// maxImportBytes caps CSV uploads.
const maxImportBytes = 5 << 20

type operation string

const (
	createOperation   operation = "leadsCreate"
	listOperation     operation = "leadsList"
	getOperation      operation = "leadsGet"
	updateOperation   operation = "leadsUpdate"
	deleteOperation   operation = "leadsDelete"
	assignOperation   operation = "leadsAssign"
	unassignOperation operation = "leadsUnassign"
	importOperation   operation = "leadsImport"
)

// Handler wires the leads service to the HTTP contract in contracts/leads.yaml.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("leads service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Register mounts the lead routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/leads", func(r chi.Router) {
		r.Get("/", h.LeadsList)
		r.Post("/", h.LeadsCreate)
		r.Post("/import", h.LeadsImport)
		r.Route("/{leadId}", func(r chi.Router) {
			r.Get("/", h.LeadsGet)
			r.Patch("/", h.LeadsUpdate)
			r.Delete("/", h.LeadsDelete)
			r.Post("/assign", h.LeadsAssign)
			r.Post("/unassign", h.LeadsUnassign)
		})
	})
}

type leadResponse struct {
	ID         uuid.UUID       `json:"id"`
	FullName   string          `json:"fullName"`
	Email      string          `json:"email,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Source     string          `json:"source,omitempty"`
	Status     string          `json:"status"`
	Budget     *float64        `json:"budget,omitempty"`
	PropertyID *uuid.UUID      `json:"propertyId,omitempty"`
	IsAssigned bool            `json:"isAssigned"`
	AssignedTo string          `json:"assignedTo,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type leadListResponse struct {
	Items      []leadResponse `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalItems int            `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
}

type createLeadRequest struct {
	FullName   string          `json:"fullName"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Source     string          `json:"source"`
	Status     string          `json:"status"`
	Budget     *float64        `json:"budget"`
	PropertyID *uuid.UUID      `json:"propertyId"`
	AssignedTo string          `json:"assignedTo"`
	Notes      string          `json:"notes"`
	Attributes json.RawMessage `json:"attributes"`
}

type updateLeadRequest struct {
	FullName   *string         `json:"fullName"`
	Email      *string         `json:"email"`
	Phone      *string         `json:"phone"`
	Source     *string         `json:"source"`
	Status     *string         `json:"status"`
	Budget     *float64        `json:"budget"`
	PropertyID *uuid.UUID      `json:"propertyId"`
	Notes      *string         `json:"notes"`
	Attributes json.RawMessage `json:"attributes"`
}

type assignLeadRequest struct {
	AssignedTo string `json:"assignedTo"`
}

func (h *Handler) LeadsList(w http.ResponseWriter, r *http.Request) {
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

	items := make([]leadResponse, 0, len(result.Leads))
	for _, lead := range result.Leads {
		items = append(items, toAPILead(lead))
	}

	httpx.WriteJSON(w, http.StatusOK, leadListResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) LeadsCreate(w http.ResponseWriter, r *http.Request) {
	var body createLeadRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.writeBadRequest(w, r, err, createOperation)
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		FullName:   body.FullName,
		Email:      body.Email,
		Phone:      body.Phone,
		Source:     body.Source,
		Status:     body.Status,
		Budget:     body.Budget,
		PropertyID: body.PropertyID,
		AssignedTo: body.AssignedTo,
		Notes:      body.Notes,
		Attributes: body.Attributes,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/leads/%s", created.ID.String()))
	httpx.WriteJSON(w, http.StatusCreated, toAPILead(created))
}

func (h *Handler) LeadsImport(w http.ResponseWriter, r *http.Request) {
	rows, err := csvtemplate.ParseRows(http.MaxBytesReader(w, r.Body, maxImportBytes), csvtemplate.Leads)
	if err != nil {
		h.writeBadRequest(w, r, err, importOperation)
		return
	}

	result, err := h.svc.Import(r.Context(), rows)
	if err != nil {
		h.writeError(w, r, err, importOperation)
		return
	}

	h.loggerFrom(r.Context()).Info("leads imported",
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failed)),
	)
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) LeadsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r, getOperation)
	if !ok {
		return
	}

	lead, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, getOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPILead(lead))
}

func (h *Handler) LeadsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r, updateOperation)
	if !ok {
		return
	}

	var body updateLeadRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.writeBadRequest(w, r, err, updateOperation)
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		FullName:   body.FullName,
		Email:      body.Email,
		Phone:      body.Phone,
		Source:     body.Source,
		Status:     body.Status,
		Budget:     body.Budget,
		PropertyID: body.PropertyID,
		Notes:      body.Notes,
		Attributes: body.Attributes,
	})
	if err != nil {
		h.writeError(w, r, err, updateOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPILead(updated))
}

func (h *Handler) LeadsDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r, deleteOperation)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LeadsAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r, assignOperation)
	if !ok {
		return
	}

	var body assignLeadRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.writeBadRequest(w, r, err, assignOperation)
		return
	}

	lead, err := h.svc.Assign(r.Context(), id, body.AssignedTo)
	if err != nil {
		h.writeError(w, r, err, assignOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPILead(lead))
}

func (h *Handler) LeadsUnassign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.leadID(w, r, unassignOperation)
	if !ok {
		return
	}

	lead, err := h.svc.Unassign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, unassignOperation)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAPILead(lead))
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

	if err := httpx.QueryParam(r, "status", &opts.Status); err != nil {
		return service.ListOptions{}, err
	}
	if err := httpx.QueryParam(r, "assigned", &opts.Assigned); err != nil {
		return service.ListOptions{}, err
	}
	if err := httpx.QueryParam(r, "propertyId", &opts.PropertyID); err != nil {
		return service.ListOptions{}, err
	}
	if err := httpx.QueryParam(r, "q", &opts.Search); err != nil {
		return service.ListOptions{}, err
	}

	return opts, nil
}

func toAPILead(lead service.Lead) leadResponse {
	return leadResponse{
		ID:         lead.ID,
		FullName:   lead.FullName,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Source:     lead.Source,
		Status:     lead.Status,
		Budget:     lead.Budget,
		PropertyID: lead.PropertyID,
		IsAssigned: lead.IsAssigned,
		AssignedTo: lead.AssignedTo,
		Notes:      lead.Notes,
		Attributes: lead.Attributes,
		CreatedBy:  lead.CreatedBy,
		CreatedAt:  lead.CreatedAt,
		UpdatedAt:  lead.UpdatedAt,
	}
}

func (h *Handler) leadID(w http.ResponseWriter, r *http.Request, op operation) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "leadId"))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{"leadId": {"leadId must be a UUID"}}}, op)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, r *http.Request, err error, op operation) {
	h.loggerFrom(r.Context()).Warn("leads request rejected",
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
		logger.Error("leads operation failed", append(fieldsForLog, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("leads resource not found", append(fieldsForLog, zap.Error(err))...)
	default:
		logger.Warn("leads request rejected", append(fieldsForLog, zap.Error(err))...)
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
			"lead not found",
			problem.TypeNotFound,
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
