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
)

const LeadsTable = "leads"

const leadColumns = `lead_id, full_name, email, phone, source, status, budget, property_id,
        is_assigned, assigned_to, notes, attributes, created_by, created_at, updated_at`

// Lead represents a row in the leads table.
type Lead struct {
	LeadID     uuid.UUID       `db:"lead_id" json:"leadId"`
	FullName   string          `db:"full_name" json:"fullName"`
	Email      string          `db:"email" json:"email"`
	Phone      string          `db:"phone" json:"phone"`
	Source     string          `db:"source" json:"source"`
	Status     string          `db:"status" json:"status"`
	Budget     *float64        `db:"budget" json:"budget,omitempty"`
	PropertyID *uuid.UUID      `db:"property_id" json:"propertyId,omitempty"`
	IsAssigned *bool           `db:"is_assigned" json:"isAssigned"` // nil for rows predating assignment tracking
	AssignedTo string          `db:"assigned_to" json:"assignedTo"`
	Notes      string          `db:"notes" json:"notes"`
	Attributes json.RawMessage `db:"attributes" json:"attributes"`
	CreatedBy  string          `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrLeadNotFound indicates a missing lead record.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrLeadPropertyMissing indicates the lead references a property that does not exist.
	ErrLeadPropertyMissing = errors.New("lead references unknown property")
)

// LeadStore exposes persistence helpers for the leads table.
type LeadStore struct {
	pool *pgxpool.Pool
}

// NewLeadStore returns a store bound to the given pool. The table is created by ApplySchema.
func NewLeadStore(pool *pgxpool.Pool) (*LeadStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &LeadStore{pool: pool}, nil
}

// LeadParams carries every writable lead column. is_assigned is always derived from AssignedTo.
type LeadParams struct {
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

// CreateLeadParams captures the fields required to insert a new lead.
type CreateLeadParams struct {
	LeadID    uuid.UUID
	CreatedBy string
	LeadParams
}

// ListLeadsParams captures filters and pagination for ListLeads.
type ListLeadsParams struct {
	Page       int
	PageSize   int
	Sort       *string
	Status     *string
	Assigned   *bool
	PropertyID *uuid.UUID
	Search     *string
}

// ListLeadsResult includes the rows and the total count for pagination metadata.
type ListLeadsResult struct {
	Leads      []Lead
	TotalItems int
}

// CreateLead inserts a new lead and returns the persisted record.
func (s *LeadStore) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	if params.LeadID == uuid.Nil {
		return Lead{}, errors.New("lead id is required")
	}

	p := params.LeadParams
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (lead_id, full_name, email, phone, source, status, budget, property_id,
            is_assigned, assigned_to, notes, attributes, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text <> '', $9, $10, $11, $12)
        RETURNING %s
    `, LeadsTable, leadColumns),
		params.LeadID,
		strings.TrimSpace(p.FullName),
		strings.TrimSpace(p.Email),
		strings.TrimSpace(p.Phone),
		strings.TrimSpace(p.Source),
		p.Status,
		p.Budget,
		p.PropertyID,
		strings.TrimSpace(p.AssignedTo),
		p.Notes,
		attributesOrEmpty(p.Attributes),
		params.CreatedBy,
	)

	lead, err := scanLead(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Lead{}, ErrLeadPropertyMissing
		}
		return Lead{}, err
	}

	return lead, nil
}

// ListLeads returns leads matching the filters with pagination applied.
func (s *LeadStore) ListLeads(ctx context.Context, params ListLeadsParams) (ListLeadsResult, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	whereParts := []string{"1=1"}
	var args []any

	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		args = append(args, strings.TrimSpace(*params.Status))
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Assigned != nil {
		// legacy rows without is_assigned are classified from assigned_to
		args = append(args, *params.Assigned)
		whereParts = append(whereParts, fmt.Sprintf("COALESCE(is_assigned, assigned_to <> '') = $%d", len(args)))
	}
	if params.PropertyID != nil {
		args = append(args, *params.PropertyID)
		whereParts = append(whereParts, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if params.Search != nil && strings.TrimSpace(*params.Search) != "" {
		args = append(args, likePattern(strings.TrimSpace(*params.Search)))
		n := len(args)
		whereParts = append(whereParts, fmt.Sprintf(
			"(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR phone LIKE $%d)", n, n, n))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	orderSQL, err := buildOrderBy(params.Sort, map[string]string{
		"fullName":  "full_name",
		"status":    "status",
		"budget":    "budget",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}, "ORDER BY created_at DESC")
	if err != nil {
		return ListLeadsResult{}, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", LeadsTable, whereSQL)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListLeadsResult{}, fmt.Errorf("count leads: %w", err)
	}

	result := ListLeadsResult{Leads: []Lead{}, TotalItems: total}
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
    `, leadColumns, LeadsTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

	rows, err := s.pool.Query(ctx, query, dataArgs...)
	if err != nil {
		return ListLeadsResult{}, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		lead, scanErr := scanLead(rows)
		if scanErr != nil {
			return ListLeadsResult{}, fmt.Errorf("scan lead: %w", scanErr)
		}
		result.Leads = append(result.Leads, lead)
	}

	if err = rows.Err(); err != nil {
		return ListLeadsResult{}, fmt.Errorf("iterate leads: %w", err)
	}

	return result, nil
}

// GetLead returns a single lead by identifier.
func (s *LeadStore) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s
        FROM %s WHERE lead_id = $1
    `, leadColumns, LeadsTable), id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrLeadNotFound
		}
		return Lead{}, err
	}

	return lead, nil
}

// UpdateLead replaces every writable column of the lead and returns the updated record.
func (s *LeadStore) UpdateLead(ctx context.Context, id uuid.UUID, p LeadParams) (Lead, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET full_name = $1, email = $2, phone = $3, source = $4, status = $5, budget = $6,
            property_id = $7, is_assigned = $8::text <> '', assigned_to = $8, notes = $9,
            attributes = $10, updated_at = NOW()
        WHERE lead_id = $11
        RETURNING %s
    `, LeadsTable, leadColumns),
		strings.TrimSpace(p.FullName),
		strings.TrimSpace(p.Email),
		strings.TrimSpace(p.Phone),
		strings.TrimSpace(p.Source),
		p.Status,
		p.Budget,
		p.PropertyID,
		strings.TrimSpace(p.AssignedTo),
		p.Notes,
		attributesOrEmpty(p.Attributes),
		id,
	)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrLeadNotFound
		}
		if isForeignKeyViolation(err) {
			return Lead{}, ErrLeadPropertyMissing
		}
		return Lead{}, err
	}

	return lead, nil
}

// SetLeadAssignment updates only the assignee; an empty assignee unassigns the lead.
func (s *LeadStore) SetLeadAssignment(ctx context.Context, id uuid.UUID, assignedTo string) (Lead, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET assigned_to = $1, is_assigned = $1::text <> '', updated_at = NOW()
        WHERE lead_id = $2
        RETURNING %s
    `, LeadsTable, leadColumns), strings.TrimSpace(assignedTo), id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrLeadNotFound
		}
		return Lead{}, err
	}

	return lead, nil
}

// DeleteLead removes a lead by identifier.
func (s *LeadStore) DeleteLead(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrLeadNotFound
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE lead_id = $1`, LeadsTable), id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	return nil
}

// AssignmentReport summarizes the state of the is_assigned column.
type AssignmentReport struct {
	Total      int `json:"total"`
	True       int `json:"true"`
	False      int `json:"false"`
	Null       int `json:"null"`
	Mismatched int `json:"mismatched"` // non-null is_assigned disagreeing with assigned_to
}

// Pending is the number of rows NormalizeLeadAssignment would rewrite.
func (r AssignmentReport) Pending() int {
	return r.Null + r.Mismatched
}

// LeadAssignmentReport counts leads by is_assigned value.
func (s *LeadStore) LeadAssignmentReport(ctx context.Context) (AssignmentReport, error) {
	var report AssignmentReport
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE is_assigned IS TRUE),
            COUNT(*) FILTER (WHERE is_assigned IS FALSE),
            COUNT(*) FILTER (WHERE is_assigned IS NULL),
            COUNT(*) FILTER (WHERE is_assigned IS NOT NULL AND is_assigned <> (assigned_to <> ''))
        FROM %s
    `, LeadsTable)).Scan(&report.Total, &report.True, &report.False, &report.Null, &report.Mismatched)
	if err != nil {
		return AssignmentReport{}, fmt.Errorf("lead assignment report: %w", err)
	}

	return report, nil
}

// NormalizeLeadAssignment derives is_assigned from assigned_to for every row where the two
// disagree or is_assigned is NULL. With dryRun the affected rows are only counted.
func (s *LeadStore) NormalizeLeadAssignment(ctx context.Context, dryRun bool) (int64, error) {
	const drift = `is_assigned IS DISTINCT FROM (assigned_to <> '')`

	if dryRun {
		var pending int64
		if err := s.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE %s`, LeadsTable, drift)).Scan(&pending); err != nil {
			return 0, fmt.Errorf("count unnormalized leads: %w", err)
		}
		return pending, nil
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s
        SET is_assigned = (assigned_to <> ''), updated_at = NOW()
        WHERE %s
    `, LeadsTable, drift))
	if err != nil {
		return 0, fmt.Errorf("normalize lead assignment: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead       Lead
		budget     pgtype.Float8
		propertyID pgtype.UUID
		isAssigned pgtype.Bool
		attributes []byte
	)

	if err := row.Scan(
		&lead.LeadID,
		&lead.FullName,
		&lead.Email,
		&lead.Phone,
		&lead.Source,
		&lead.Status,
		&budget,
		&propertyID,
		&isAssigned,
		&lead.AssignedTo,
		&lead.Notes,
		&attributes,
		&lead.CreatedBy,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return Lead{}, err
	}

	lead.Budget = float8Ptr(budget)
	lead.PropertyID = uuidPtr(propertyID)
	lead.IsAssigned = boolPtr(isAssigned)
	lead.Attributes = attributesOrEmpty(attributes)

	return lead, nil
}
