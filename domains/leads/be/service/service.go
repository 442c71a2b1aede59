package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/estatedesk/domains/leads/be/repo"
	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
	"github.com/zenGate-Global/estatedesk/platform/go/requesttrace"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("lead not found")
)

// StatusNew is applied when a lead is created without a status.
const StatusNew = "new"

var leadStatuses = map[string]struct{}{
	StatusNew:   {},
	"contacted": {},
	"qualified": {},
	"lost":      {},
	"won":       {},
}

// DocumentValidator checks a lead document against its JSON Schema.
type DocumentValidator interface {
	Validate(ctx context.Context, kind persistence.DocumentKind, payload []byte) error
}

// Lead represents the domain view of a lead record.
type Lead struct {
	ID         uuid.UUID
	FullName   string
	Email      string
	Phone      string
	Source     string
	Status     string
	Budget     *float64
	PropertyID *uuid.UUID
	IsAssigned bool
	AssignedTo string
	Notes      string
	Attributes json.RawMessage
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Page       int
	PageSize   int
	Sort       *string
	Status     *string
	Assigned   *bool
	PropertyID *uuid.UUID
	Search     *string
}

// ListResult wraps a page of leads with pagination metadata.
type ListResult struct {
	Leads      []Lead
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// CreateInput represents the payload required to create a new lead.
type CreateInput struct {
	FullName   string
	Email      string
	Phone      string
	Source     string
	Status     string
	Budget     *float64
	PropertyID *uuid.UUID
	AssignedTo string
	Notes      string
	Attributes json.RawMessage
}

// UpdateInput carries the fields to change; nil leaves the stored value untouched.
// Assignment is changed through Assign and Unassign only.
type UpdateInput struct {
	FullName   *string
	Email      *string
	Phone      *string
	Source     *string
	Status     *string
	Budget     *float64
	PropertyID *uuid.UUID
	Notes      *string
	Attributes json.RawMessage
}

// Service defines the business operations for the leads domain.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Lead, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (Lead, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Assign(ctx context.Context, id uuid.UUID, assignedTo string) (Lead, error)
	Unassign(ctx context.Context, id uuid.UUID) (Lead, error)
	Import(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error)
}

type service struct {
	repo      repo.Repository
	validator DocumentValidator
}

// New constructs a leads Service instance backed by the provided repository.
func New(r repo.Repository, validator DocumentValidator) Service {
	if r == nil {
		panic("leads repository is required")
	}
	if validator == nil {
		panic("document validator is required")
	}
	return &service{repo: r, validator: validator}
}

func (s *service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	sortValue, sortErr := sanitizeSort(opts.Sort)
	if sortErr != nil {
		return ListResult{}, sortErr
	}

	repoParams := persistence.ListLeadsParams{
		Page:       page,
		PageSize:   pageSize,
		Sort:       sortValue,
		Assigned:   opts.Assigned,
		PropertyID: opts.PropertyID,
	}

	if opts.Status != nil && strings.TrimSpace(*opts.Status) != "" {
		status := strings.TrimSpace(*opts.Status)
		if _, ok := leadStatuses[status]; !ok {
			return ListResult{}, newValidationError(map[string]string{"status": fmt.Sprintf("unsupported status %q", status)})
		}
		repoParams.Status = &status
	}
	if opts.Search != nil && strings.TrimSpace(*opts.Search) != "" {
		search := strings.TrimSpace(*opts.Search)
		repoParams.Search = &search
	}

	result, err := s.repo.List(ctx, repoParams)
	if err != nil {
		return ListResult{}, mapPersistenceError(err)
	}

	leads := make([]Lead, 0, len(result.Leads))
	for _, record := range result.Leads {
		leads = append(leads, mapLead(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Leads:      leads,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Lead, error) {
	params := persistence.LeadParams{
		FullName:   input.FullName,
		Email:      input.Email,
		Phone:      input.Phone,
		Source:     input.Source,
		Status:     input.Status,
		Budget:     input.Budget,
		PropertyID: input.PropertyID,
		AssignedTo: input.AssignedTo,
		Notes:      input.Notes,
		Attributes: input.Attributes,
	}
	normalizeParams(&params)
	if params.Status == "" {
		params.Status = StatusNew
	}

	if err := s.validate(ctx, params); err != nil {
		return Lead{}, err
	}

	record, err := s.repo.Create(ctx, persistence.CreateLeadParams{
		LeadID:     uuid.New(),
		CreatedBy:  requesttrace.FromContextOrAnonymous(ctx).Actor(),
		LeadParams: params,
	})
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	return mapLead(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Lead, error) {
	if id == uuid.Nil {
		return Lead{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	return mapLead(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Lead, error) {
	if id == uuid.Nil {
		return Lead{}, ErrNotFound
	}
	if input.isEmpty() {
		return Lead{}, newValidationError(map[string]string{"payload": "at least one field must be provided"})
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	params := mergeUpdate(current, input)
	normalizeParams(&params)

	if err := s.validate(ctx, params); err != nil {
		return Lead{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	return mapLead(record), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPersistenceError(err)
	}

	return nil
}

func (s *service) Assign(ctx context.Context, id uuid.UUID, assignedTo string) (Lead, error) {
	if id == uuid.Nil {
		return Lead{}, ErrNotFound
	}

	assignee := strings.TrimSpace(assignedTo)
	if assignee == "" {
		return Lead{}, newValidationError(map[string]string{"assignedTo": "assignedTo is required"})
	}

	record, err := s.repo.SetAssignment(ctx, id, assignee)
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	return mapLead(record), nil
}

func (s *service) Unassign(ctx context.Context, id uuid.UUID) (Lead, error) {
	if id == uuid.Nil {
		return Lead{}, ErrNotFound
	}

	record, err := s.repo.SetAssignment(ctx, id, "")
	if err != nil {
		return Lead{}, mapPersistenceError(err)
	}

	return mapLead(record), nil
}

// Import creates one lead per row. Rows that fail validation are reported and skipped; any
// other failure aborts the import and returns the rows imported so far.
func (s *service) Import(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error) {
	result := csvtemplate.ImportResult{Failed: []csvtemplate.RowFailure{}}

	for _, row := range rows {
		input, fieldErrors := createInputFromRow(row)
		if len(fieldErrors) > 0 {
			result.Fail(row.Line, fieldErrors)
			continue
		}

		_, err := s.Create(ctx, input)
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			result.Fail(row.Line, validationErr.Fields)
		case err != nil:
			return result, fmt.Errorf("import row %d: %w", row.Line, err)
		default:
			result.Imported++
		}
	}

	return result, nil
}

func createInputFromRow(row csvtemplate.Row) (CreateInput, FieldErrors) {
	fieldErrors := FieldErrors{}
	input := CreateInput{
		FullName:   row.Get("fullName"),
		Email:      row.Get("email"),
		Phone:      row.Get("phone"),
		Source:     row.Get("source"),
		Status:     row.Get("status"),
		AssignedTo: row.Get("assignedTo"),
		Notes:      row.Get("notes"),
	}

	if raw := row.Get("budget"); raw != "" {
		budget, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fieldErrors.add("budget", "budget must be a number")
		} else {
			input.Budget = &budget
		}
	}

	if raw := row.Get("propertyId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fieldErrors.add("propertyId", "propertyId must be a UUID")
		} else {
			input.PropertyID = &id
		}
	}

	return input, fieldErrors
}

func (s *service) validate(ctx context.Context, params persistence.LeadParams) error {
	fieldErrors := FieldErrors{}

	if params.FullName == "" {
		fieldErrors.add("fullName", "fullName is required")
	}
	if params.Email == "" && params.Phone == "" {
		fieldErrors.add("email", "email or phone is required")
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	payload, err := json.Marshal(leadDocument(params))
	if err != nil {
		return fmt.Errorf("encode lead document: %w", err)
	}

	if err := s.validator.Validate(ctx, persistence.DocumentLead, payload); err != nil {
		if fields, ok := persistence.ValidationFields(err); ok {
			return &ValidationError{Fields: fields}
		}
		return err
	}

	return nil
}

// leadDocument is the JSON view checked by the lead schema. Empty strings are absent fields.
func leadDocument(p persistence.LeadParams) map[string]any {
	doc := map[string]any{
		"fullName": p.FullName,
		"status":   p.Status,
	}

	optional := map[string]string{
		"email":      p.Email,
		"phone":      p.Phone,
		"source":     p.Source,
		"assignedTo": p.AssignedTo,
		"notes":      p.Notes,
	}
	for key, value := range optional {
		if value != "" {
			doc[key] = value
		}
	}

	if p.Budget != nil {
		doc["budget"] = *p.Budget
	}
	if p.PropertyID != nil {
		doc["propertyId"] = p.PropertyID.String()
	}
	if len(p.Attributes) > 0 {
		doc["attributes"] = p.Attributes
	}

	return doc
}

func normalizeParams(p *persistence.LeadParams) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Source = strings.TrimSpace(p.Source)
	p.Status = strings.TrimSpace(p.Status)
	p.AssignedTo = strings.TrimSpace(p.AssignedTo)
	p.Notes = strings.TrimSpace(p.Notes)
}

func mergeUpdate(current persistence.Lead, input UpdateInput) persistence.LeadParams {
	params := persistence.LeadParams{
		FullName:   current.FullName,
		Email:      current.Email,
		Phone:      current.Phone,
		Source:     current.Source,
		Status:     current.Status,
		Budget:     current.Budget,
		PropertyID: current.PropertyID,
		AssignedTo: current.AssignedTo,
		Notes:      current.Notes,
		Attributes: current.Attributes,
	}

	if input.FullName != nil {
		params.FullName = *input.FullName
	}
	if input.Email != nil {
		params.Email = *input.Email
	}
	if input.Phone != nil {
		params.Phone = *input.Phone
	}
	if input.Source != nil {
		params.Source = *input.Source
	}
	if input.Status != nil {
		params.Status = *input.Status
	}
	if input.Budget != nil {
		params.Budget = input.Budget
	}
	if input.PropertyID != nil {
		params.PropertyID = input.PropertyID
	}
	if input.Notes != nil {
		params.Notes = *input.Notes
	}
	if input.Attributes != nil {
		params.Attributes = input.Attributes
	}

	return params
}

func (in UpdateInput) isEmpty() bool {
	return in.FullName == nil && in.Email == nil && in.Phone == nil && in.Source == nil &&
		in.Status == nil && in.Budget == nil && in.PropertyID == nil && in.Notes == nil &&
		in.Attributes == nil
}

func sanitizeSort(sort *string) (*string, error) {
	if sort == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*sort)
	if trimmed == "" {
		return nil, nil
	}

	allowed := map[string]struct{}{
		"fullName":  {},
		"status":    {},
		"budget":    {},
		"createdAt": {},
		"updatedAt": {},
	}

	for _, raw := range strings.Split(trimmed, ",") {
		field := strings.TrimPrefix(strings.TrimSpace(raw), "-")
		if field == "" {
			continue
		}
		if _, ok := allowed[field]; !ok {
			return nil, newValidationError(map[string]string{"sort": fmt.Sprintf("unsupported sort field %q", field)})
		}
	}

	return &trimmed, nil
}

func mapLead(record persistence.Lead) Lead {
	isAssigned := record.AssignedTo != ""
	if record.IsAssigned != nil {
		isAssigned = *record.IsAssigned
	}

	return Lead{
		ID:         record.LeadID,
		FullName:   record.FullName,
		Email:      record.Email,
		Phone:      record.Phone,
		Source:     record.Source,
		Status:     record.Status,
		Budget:     record.Budget,
		PropertyID: record.PropertyID,
		IsAssigned: isAssigned,
		AssignedTo: record.AssignedTo,
		Notes:      record.Notes,
		Attributes: record.Attributes,
		CreatedBy:  record.CreatedBy,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrLeadNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrLeadPropertyMissing):
		return newValidationError(map[string]string{"propertyId": "property does not exist"})
	case errors.Is(err, persistence.ErrUnsupportedSort):
		return newValidationError(map[string]string{"sort": err.Error()})
	default:
		return err
	}
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
