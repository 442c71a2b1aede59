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

	"github.com/zenGate-Global/estatedesk/domains/properties/be/repo"
	"github.com/zenGate-Global/estatedesk/platform/go/csvtemplate"
	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
	"github.com/zenGate-Global/estatedesk/platform/go/requesttrace"
	"github.com/zenGate-Global/estatedesk/platform/go/slug"
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
	ErrNotFound = errors.New("property not found")
	ErrConflict = errors.New("property conflict")
)

// Defaults applied on create.
const (
	DefaultCurrency     = "INR"
	DefaultPropertyType = "other"
	DefaultStatus       = "available"
)

// backfillBatchSize is the number of rows scanned per BackfillSlugs round trip.
const backfillBatchSize = 500

var (
	propertyTypes    = map[string]struct{}{"apartment": {}, "villa": {}, "plot": {}, "commercial": {}, DefaultPropertyType: {}}
	propertyStatuses = map[string]struct{}{DefaultStatus: {}, "under_offer": {}, "sold": {}, "rented": {}}
)

// DocumentValidator checks a property document against its JSON Schema.
type DocumentValidator interface {
	Validate(ctx context.Context, kind persistence.DocumentKind, payload []byte) error
}

// Property represents the domain view of a property record. URL is always derived from the
// title and identifier.
type Property struct {
	ID           uuid.UUID
	Title        string
	Slug         string
	URL          string
	Description  string
	Price        *float64
	Currency     string
	City         string
	Locality     string
	PropertyType string
	Bedrooms     *int32
	Bathrooms    *int32
	AreaSqft     *float64
	Status       string
	Attributes   json.RawMessage
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Page         int
	PageSize     int
	Sort         *string
	City         *string
	Status       *string
	PropertyType *string
	MinPrice     *float64
	MaxPrice     *float64
	Search       *string
}

// ListResult wraps a page of properties with pagination metadata.
type ListResult struct {
	Properties []Property
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// CreateInput represents the payload required to create a new property.
type CreateInput struct {
	Title        string
	Description  string
	Price        *float64
	Currency     string
	City         string
	Locality     string
	PropertyType string
	Bedrooms     *int32
	Bathrooms    *int32
	AreaSqft     *float64
	Status       string
	Attributes   json.RawMessage
}

// UpdateInput carries the fields to change; nil leaves the stored value untouched.
type UpdateInput struct {
	Title        *string
	Description  *string
	Price        *float64
	Currency     *string
	City         *string
	Locality     *string
	PropertyType *string
	Bedrooms     *int32
	Bathrooms    *int32
	AreaSqft     *float64
	Status       *string
	Attributes   json.RawMessage
}

// BackfillReport summarizes a slug backfill run.
type BackfillReport struct {
	Mismatches []persistence.SlugMismatch
	Updated    int
}

// Service defines the business operations for the properties domain.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Property, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (Property, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Property, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Resolve loads the property behind a public URL and reports whether requestedSlug is the
	// canonical slug for its current title.
	Resolve(ctx context.Context, requestedSlug string, id uuid.UUID) (Property, bool, error)
	Import(ctx context.Context, rows []csvtemplate.Row) (csvtemplate.ImportResult, error)
	BackfillSlugs(ctx context.Context, dryRun bool) (BackfillReport, error)
}

type service struct {
	repo      repo.Repository
	validator DocumentValidator
}

// New constructs a properties Service instance backed by the provided repository.
func New(r repo.Repository, validator DocumentValidator) Service {
	if r == nil {
		panic("properties repository is required")
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

	fieldErrors := FieldErrors{}
	repoParams := persistence.ListPropertiesParams{
		Page:     page,
		PageSize: pageSize,
		Sort:     sortValue,
		City:     trimmedOrNil(opts.City),
		Search:   trimmedOrNil(opts.Search),
		MinPrice: opts.MinPrice,
		MaxPrice: opts.MaxPrice,
	}

	if status := trimmedOrNil(opts.Status); status != nil {
		if _, ok := propertyStatuses[*status]; !ok {
			fieldErrors.add("status", fmt.Sprintf("unsupported status %q", *status))
		}
		repoParams.Status = status
	}
	if propertyType := trimmedOrNil(opts.PropertyType); propertyType != nil {
		if _, ok := propertyTypes[*propertyType]; !ok {
			fieldErrors.add("propertyType", fmt.Sprintf("unsupported propertyType %q", *propertyType))
		}
		repoParams.PropertyType = propertyType
	}
	if opts.MinPrice != nil && opts.MaxPrice != nil && *opts.MinPrice > *opts.MaxPrice {
		fieldErrors.add("minPrice", "minPrice cannot exceed maxPrice")
	}

	if len(fieldErrors) > 0 {
		return ListResult{}, &ValidationError{Fields: fieldErrors}
	}

	result, err := s.repo.List(ctx, repoParams)
	if err != nil {
		return ListResult{}, mapPersistenceError(err)
	}

	properties := make([]Property, 0, len(result.Properties))
	for _, record := range result.Properties {
		properties = append(properties, mapProperty(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Properties: properties,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Property, error) {
	params := persistence.PropertyParams{
		Title:        input.Title,
		Description:  input.Description,
		Price:        input.Price,
		Currency:     input.Currency,
		City:         input.City,
		Locality:     input.Locality,
		PropertyType: input.PropertyType,
		Bedrooms:     input.Bedrooms,
		Bathrooms:    input.Bathrooms,
		AreaSqft:     input.AreaSqft,
		Status:       input.Status,
		Attributes:   input.Attributes,
	}
	normalizeParams(&params)
	if params.Currency == "" {
		params.Currency = DefaultCurrency
	}
	if params.PropertyType == "" {
		params.PropertyType = DefaultPropertyType
	}
	if params.Status == "" {
		params.Status = DefaultStatus
	}

	if err := s.validate(ctx, params); err != nil {
		return Property{}, err
	}

	record, err := s.repo.Create(ctx, persistence.CreatePropertyParams{
		PropertyID:     uuid.New(),
		CreatedBy:      requesttrace.FromContextOrAnonymous(ctx).Actor(),
		PropertyParams: params,
	})
	if err != nil {
		return Property{}, mapPersistenceError(err)
	}

	return mapProperty(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (Property, error) {
	if id == uuid.Nil {
		return Property{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Property{}, mapPersistenceError(err)
	}

	return mapProperty(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Property, error) {
	if id == uuid.Nil {
		return Property{}, ErrNotFound
	}
	if input.isEmpty() {
		return Property{}, newValidationError(map[string]string{"payload": "at least one field must be provided"})
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Property{}, mapPersistenceError(err)
	}

	params := mergeUpdate(current, input)
	normalizeParams(&params)

	if err := s.validate(ctx, params); err != nil {
		return Property{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return Property{}, mapPersistenceError(err)
	}

	return mapProperty(record), nil
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

func (s *service) Resolve(ctx context.Context, requestedSlug string, id uuid.UUID) (Property, bool, error) {
	property, err := s.Get(ctx, id)
	if err != nil {
		return Property{}, false, err
	}

	return property, requestedSlug == slug.Generate(property.Title), nil
}

// Import creates one property per row. Rows that fail validation are reported and skipped; any
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

// BackfillSlugs rewrites cached slugs that no longer match slug.Generate(title). With dryRun
// the mismatches are reported without writing.
func (s *service) BackfillSlugs(ctx context.Context, dryRun bool) (BackfillReport, error) {
	var (
		report BackfillReport
		cursor = uuid.Nil
	)

	for {
		mismatches, next, err := s.repo.ListSlugMismatches(ctx, cursor, backfillBatchSize)
		if err != nil {
			return report, fmt.Errorf("list slug mismatches: %w", err)
		}

		for _, mismatch := range mismatches {
			report.Mismatches = append(report.Mismatches, mismatch)
			if dryRun {
				continue
			}
			if err := s.repo.UpdateSlug(ctx, mismatch.PropertyID, mismatch.Expected); err != nil {
				if errors.Is(err, persistence.ErrPropertyNotFound) {
					continue
				}
				return report, fmt.Errorf("update slug for %s: %w", mismatch.PropertyID, err)
			}
			report.Updated++
		}

		if next == uuid.Nil {
			return report, nil
		}
		cursor = next
	}
}

func createInputFromRow(row csvtemplate.Row) (CreateInput, FieldErrors) {
	fieldErrors := FieldErrors{}
	input := CreateInput{
		Title:        row.Get("title"),
		Description:  row.Get("description"),
		Currency:     row.Get("currency"),
		City:         row.Get("city"),
		Locality:     row.Get("locality"),
		PropertyType: row.Get("propertyType"),
		Status:       row.Get("status"),
	}

	input.Price = parseFloatCell(row, "price", fieldErrors)
	input.AreaSqft = parseFloatCell(row, "areaSqft", fieldErrors)
	input.Bedrooms = parseIntCell(row, "bedrooms", fieldErrors)
	input.Bathrooms = parseIntCell(row, "bathrooms", fieldErrors)

	return input, fieldErrors
}

func parseFloatCell(row csvtemplate.Row, column string, fieldErrors FieldErrors) *float64 {
	raw := row.Get(column)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fieldErrors.add(column, column+" must be a number")
		return nil
	}
	return &v
}

func parseIntCell(row csvtemplate.Row, column string, fieldErrors FieldErrors) *int32 {
	raw := row.Get(column)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		fieldErrors.add(column, column+" must be a whole number")
		return nil
	}
	n := int32(v)
	return &n
}

func (s *service) validate(ctx context.Context, params persistence.PropertyParams) error {
	if params.Title == "" {
		return newValidationError(map[string]string{"title": "title is required"})
	}

	payload, err := json.Marshal(propertyDocument(params))
	if err != nil {
		return fmt.Errorf("encode property document: %w", err)
	}

	if err := s.validator.Validate(ctx, persistence.DocumentProperty, payload); err != nil {
		if fields, ok := persistence.ValidationFields(err); ok {
			return &ValidationError{Fields: fields}
		}
		return err
	}

	return nil
}

// propertyDocument is the JSON view checked by the property schema. Empty strings are absent fields.
func propertyDocument(p persistence.PropertyParams) map[string]any {
	doc := map[string]any{
		"title":        p.Title,
		"currency":     p.Currency,
		"propertyType": p.PropertyType,
		"status":       p.Status,
	}

	if p.Description != "" {
		doc["description"] = p.Description
	}
	if p.City != "" {
		doc["city"] = p.City
	}
	if p.Locality != "" {
		doc["locality"] = p.Locality
	}
	if p.Price != nil {
		doc["price"] = *p.Price
	}
	if p.Bedrooms != nil {
		doc["bedrooms"] = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		doc["bathrooms"] = *p.Bathrooms
	}
	if p.AreaSqft != nil {
		doc["areaSqft"] = *p.AreaSqft
	}
	if len(p.Attributes) > 0 {
		doc["attributes"] = p.Attributes
	}

	return doc
}

func normalizeParams(p *persistence.PropertyParams) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.City = strings.TrimSpace(p.City)
	p.Locality = strings.TrimSpace(p.Locality)
	p.PropertyType = strings.TrimSpace(p.PropertyType)
	p.Status = strings.TrimSpace(p.Status)
}

func mergeUpdate(current persistence.Property, input UpdateInput) persistence.PropertyParams {
	params := persistence.PropertyParams{
		Title:        current.Title,
		Description:  current.Description,
		Price:        current.Price,
		Currency:     current.Currency,
		City:         current.City,
		Locality:     current.Locality,
		PropertyType: current.PropertyType,
		Bedrooms:     current.Bedrooms,
		Bathrooms:    current.Bathrooms,
		AreaSqft:     current.AreaSqft,
		Status:       current.Status,
		Attributes:   current.Attributes,
	}

	if input.Title != nil {
		params.Title = *input.Title
	}
	if input.Description != nil {
		params.Description = *input.Description
	}
	if input.Price != nil {
		params.Price = input.Price
	}
	if input.Currency != nil {
		params.Currency = *input.Currency
	}
	if input.City != nil {
		params.City = *input.City
	}
	if input.Locality != nil {
		params.Locality = *input.Locality
	}
	if input.PropertyType != nil {
		params.PropertyType = *input.PropertyType
	}
	if input.Bedrooms != nil {
		params.Bedrooms = input.Bedrooms
	}
	if input.Bathrooms != nil {
		params.Bathrooms = input.Bathrooms
	}
	if input.AreaSqft != nil {
		params.AreaSqft = input.AreaSqft
	}
	if input.Status != nil {
		params.Status = *input.Status
	}
	if input.Attributes != nil {
		params.Attributes = input.Attributes
	}

	return params
}

func (in UpdateInput) isEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Price == nil && in.Currency == nil &&
		in.City == nil && in.Locality == nil && in.PropertyType == nil && in.Bedrooms == nil &&
		in.Bathrooms == nil && in.AreaSqft == nil && in.Status == nil && in.Attributes == nil
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
		"title":     {},
		"price":     {},
		"city":      {},
		"areaSqft":  {},
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

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapProperty(record persistence.Property) Property {
	return Property{
		ID:    record.PropertyID,
		Title: record.Title,
		Slug:  record.Slug,
		URL: slug.PropertyURL(&slug.PropertyRef{
			Identifier: record.PropertyID.String(),
			Title:      record.Title,
		}),
		Description:  record.Description,
		Price:        record.Price,
		Currency:     record.Currency,
		City:         record.City,
		Locality:     record.Locality,
		PropertyType: record.PropertyType,
		Bedrooms:     record.Bedrooms,
		Bathrooms:    record.Bathrooms,
		AreaSqft:     record.AreaSqft,
		Status:       record.Status,
		Attributes:   record.Attributes,
		CreatedBy:    record.CreatedBy,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPropertyNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrPropertyConflict):
		return ErrConflict
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
