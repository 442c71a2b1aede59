package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenGate-Global/estatedesk/platform/go/slug"
)

const PropertiesTable = "properties"

const propertyColumns = `property_id, title, slug, description, price, currency, city, locality,
        property_type, bedrooms, bathrooms, area_sqft, status, attributes, created_by, created_at, updated_at`

// Property represents a row in the properties table. Slug caches slug.Generate(Title).
type Property struct {
	PropertyID   uuid.UUID       `db:"property_id" json:"propertyId"`
	Title        string          `db:"title" json:"title"`
	Slug         string          `db:"slug" json:"slug"`
	Description  string          `db:"description" json:"description"`
	Price        *float64        `db:"price" json:"price,omitempty"`
	Currency     string          `db:"currency" json:"currency"`
	City         string          `db:"city" json:"city"`
	Locality     string          `db:"locality" json:"locality"`
	PropertyType string          `db:"property_type" json:"propertyType"`
	Bedrooms     *int32          `db:"bedrooms" json:"bedrooms,omitempty"`
	Bathrooms    *int32          `db:"bathrooms" json:"bathrooms,omitempty"`
	AreaSqft     *float64        `db:"area_sqft" json:"areaSqft,omitempty"`
	Status       string          `db:"status" json:"status"`
	Attributes   json.RawMessage `db:"attributes" json:"attributes"`
	CreatedBy    string          `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrPropertyNotFound indicates a missing property record.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrPropertyConflict indicates a duplicated property identifier.
	ErrPropertyConflict = errors.New("property conflict")
)

// PropertyStore exposes persistence helpers for the properties table.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore returns a store bound to the given pool. The table is created by ApplySchema.
func NewPropertyStore(pool *pgxpool.Pool) (*PropertyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &PropertyStore{pool: pool}, nil
}

// PropertyParams carries every writable property column. The slug column is derived from Title.
type PropertyParams struct {
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

// CreatePropertyParams captures the fields required to insert a new property.
type CreatePropertyParams struct {
	PropertyID uuid.UUID
	CreatedBy  string
	PropertyParams
}

// ListPropertiesParams captures filters and pagination for ListProperties.
type ListPropertiesParams struct {
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

// ListPropertiesResult includes the rows and the total count for pagination metadata.
type ListPropertiesResult struct {
	Properties []Property
	TotalItems int
}

// CreateProperty inserts a new property and returns the persisted record.
func (s *PropertyStore) CreateProperty(ctx context.Context, params CreatePropertyParams) (Property, error) {
	if params.PropertyID == uuid.Nil {
		return Property{}, errors.New("property id is required")
	}

	p := params.PropertyParams
	title := strings.TrimSpace(p.Title)
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (property_id, title, slug, description, price, currency, city, locality,
            property_type, bedrooms, bathrooms, area_sqft, status, attributes, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING %s
    `, PropertiesTable, propertyColumns),
		params.PropertyID,
		title,
		slug.Generate(title),
		p.Description,
		p.Price,
		p.Currency,
		strings.TrimSpace(p.City),
		strings.TrimSpace(p.Locality),
		p.PropertyType,
		p.Bedrooms,
		p.Bathrooms,
		p.AreaSqft,
		p.Status,
		attributesOrEmpty(p.Attributes),
		params.CreatedBy,
	)

	property, err := scanProperty(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Property{}, ErrPropertyConflict
		}
		return Property{}, err
	}

	return property, nil
}

// ListProperties returns properties matching the filters with pagination applied.
func (s *PropertyStore) ListProperties(ctx context.Context, params ListPropertiesParams) (ListPropertiesResult, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	whereParts := []string{"1=1"}
	var args []any

	if params.City != nil && strings.TrimSpace(*params.City) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(*params.City)))
		whereParts = append(whereParts, fmt.Sprintf("lower(city) = $%d", len(args)))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		args = append(args, strings.TrimSpace(*params.Status))
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.PropertyType != nil && strings.TrimSpace(*params.PropertyType) != "" {
		args = append(args, strings.TrimSpace(*params.PropertyType))
		whereParts = append(whereParts, fmt.Sprintf("property_type = $%d", len(args)))
	}
	if params.MinPrice != nil {
		args = append(args, *params.MinPrice)
		whereParts = append(whereParts, fmt.Sprintf("price >= $%d", len(args)))
	}
	if params.MaxPrice != nil {
		args = append(args, *params.MaxPrice)
		whereParts = append(whereParts, fmt.Sprintf("price <= $%d", len(args)))
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, likePattern(strings.TrimSpace(*params.Search)))
		n := len(args)
		whereParts = append(whereParts, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(locality) LIKE $%d OR LOWER(description) LIKE $%d)", n, n, n))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	orderSQL, err := buildOrderBy(params.Sort, map[string]string{
		"title":     "title",
		"price":     "price",
		"city":      "city",
		"areaSqft":  "area_sqft",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}, "ORDER BY created_at DESC")
	if err != nil {
		return ListPropertiesResult{}, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", PropertiesTable, whereSQL)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListPropertiesResult{}, fmt.Errorf("count properties: %w", err)
	}

	result := ListPropertiesResult{Properties: []Property{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, params.PageSize, (params.Page-1)*params.PageSize)

	query := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE %s
        %s
        LIMIT $%d OFFSET $%d
    `, propertyColumns, PropertiesTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

	rows, err := s.pool.Query(ctx, query, dataArgs...)
	if err != nil {
		return ListPropertiesResult{}, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		property, scanErr := scanProperty(rows)
		if scanErr != nil {
			return ListPropertiesResult{}, fmt.Errorf("scan property: %w", scanErr)
		}
		result.Properties = append(result.Properties, property)
	}

	if err = rows.Err(); err != nil {
		return ListPropertiesResult{}, fmt.Errorf("iterate properties: %w", err)
	}

	return result, nil
}

// GetProperty returns a single property by identifier.
func (s *PropertyStore) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s
        FROM %s WHERE property_id = $1
    `, propertyColumns, PropertiesTable), id)

	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, err
	}

	return property, nil
}

// UpdateProperty replaces every writable column, recomputing the cached slug from the title.
func (s *PropertyStore) UpdateProperty(ctx context.Context, id uuid.UUID, p PropertyParams) (Property, error) {
	title := strings.TrimSpace(p.Title)
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET title = $1, slug = $2, description = $3, price = $4, currency = $5, city = $6,
            locality = $7, property_type = $8, bedrooms = $9, bathrooms = $10, area_sqft = $11,
            status = $12, attributes = $13, updated_at = NOW()
        WHERE property_id = $14
        RETURNING %s
    `, PropertiesTable, propertyColumns),
		title,
		slug.Generate(title),
		p.Description,
		p.Price,
		p.Currency,
		strings.TrimSpace(p.City),
		strings.TrimSpace(p.Locality),
		p.PropertyType,
		p.Bedrooms,
		p.Bathrooms,
		p.AreaSqft,
		p.Status,
		attributesOrEmpty(p.Attributes),
		id,
	)

	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, err
	}

	return property, nil
}

// DeleteProperty removes a property by identifier. Leads pointing at it keep a NULL property_id.
func (s *PropertyStore) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrPropertyNotFound
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE property_id = $1`, PropertiesTable), id)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}

	return nil
}

// SlugMismatch is a property whose cached slug no longer matches its title.
type SlugMismatch struct {
	PropertyID uuid.UUID
	Title      string
	Stored     string
	Expected   string
}

// ListSlugMismatches scans up to limit properties ordered by id after the given cursor and
// returns those whose cached slug is stale. next is uuid.Nil once the table is exhausted.
func (s *PropertyStore) ListSlugMismatches(ctx context.Context, after uuid.UUID, limit int) (mismatches []SlugMismatch, next uuid.UUID, err error) {
	if limit <= 0 {
		limit = maxPageSize
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT property_id, title, slug
        FROM %s
        WHERE property_id > $1
        ORDER BY property_id
        LIMIT $2
    `, PropertiesTable), after, limit)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("scan property slugs: %w", err)
	}
	defer rows.Close()

	scanned := 0
	for rows.Next() {
		var candidate SlugMismatch
		if err := rows.Scan(&candidate.PropertyID, &candidate.Title, &candidate.Stored); err != nil {
			return nil, uuid.Nil, fmt.Errorf("scan property slug: %w", err)
		}
		scanned++
		next = candidate.PropertyID

		candidate.Expected = slug.Generate(candidate.Title)
		if candidate.Expected != candidate.Stored {
			mismatches = append(mismatches, candidate)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, uuid.Nil, fmt.Errorf("iterate property slugs: %w", err)
	}

	if scanned < limit {
		next = uuid.Nil
	}

	return mismatches, next, nil
}

// UpdatePropertySlug overwrites the cached slug without touching updated_at.
func (s *PropertyStore) UpdatePropertySlug(ctx context.Context, id uuid.UUID, value string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET slug = $1 WHERE property_id = $2`, PropertiesTable), value, id)
	if err != nil {
		return fmt.Errorf("update property slug: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}

	return nil
}

func scanProperty(row pgx.Row) (Property, error) {
	var (
		property   Property
		price      pgtype.Float8
		bedrooms   pgtype.Int4
		bathrooms  pgtype.Int4
		areaSqft   pgtype.Float8
		attributes []byte
	)

	if err := row.Scan(
		&property.PropertyID,
		&property.Title,
		&property.Slug,
		&property.Description,
		&price,
		&property.Currency,
		&property.City,
		&property.Locality,
		&property.PropertyType,
		&bedrooms,
		&bathrooms,
		&areaSqft,
		&property.Status,
		&attributes,
		&property.CreatedBy,
		&property.CreatedAt,
		&property.UpdatedAt,
	); err != nil {
		return Property{}, err
	}

	property.Price = float8Ptr(price)
	property.Bedrooms = int4Ptr(bedrooms)
	property.Bathrooms = int4Ptr(bathrooms)
	property.AreaSqft = float8Ptr(areaSqft)
	property.Attributes = attributesOrEmpty(attributes)

	return property, nil
}
