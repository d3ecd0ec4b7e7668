package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
)

const planningPackageColumns = `id, project_id, control_account_id, phase_id, code, name, description,
		planned_start, planned_end, planned_conversion_date, estimated_budget, estimated_hours,
		is_converted, conversion_date, converted_by, priority, is_active, is_deleted, deleted_at,
		created_by, updated_by, created_at, updated_at`

// SQLitePlanningPackageRepo implements PlanningPackageRepo using a SQLite database.
type SQLitePlanningPackageRepo struct {
	db db.DBTX
}

// NewSQLitePlanningPackageRepo creates a new SQLitePlanningPackageRepo.
func NewSQLitePlanningPackageRepo(db db.DBTX) *SQLitePlanningPackageRepo {
	return &SQLitePlanningPackageRepo{db: db}
}

func (r *SQLitePlanningPackageRepo) Create(ctx context.Context, p *domain.PlanningPackage) error {
	query := `INSERT INTO planning_packages (` + planningPackageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.ProjectID,
		p.ControlAccountID,
		p.PhaseID,
		p.Code,
		p.Name,
		p.Description,
		nullableTimeToString(p.PlannedStart, timestampLayout),
		nullableTimeToString(p.PlannedEnd, timestampLayout),
		nullableTimeToString(p.PlannedConversionDate, timestampLayout),
		p.EstimatedBudget.String(),
		p.EstimatedHours.String(),
		boolToInt(p.IsConverted),
		nullableTimeToString(p.ConversionDate, timestampLayout),
		p.ConvertedBy,
		p.Priority,
		boolToInt(p.IsActive),
		boolToInt(p.IsDeleted),
		nullableTimeToString(p.DeletedAt, timestampLayout),
		p.CreatedBy,
		p.UpdatedBy,
		formatTimestamp(p.CreatedAt),
		formatTimestamp(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting planning package: %w", err)
	}
	return nil
}

func (r *SQLitePlanningPackageRepo) GetByID(ctx context.Context, id string) (*domain.PlanningPackage, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planningPackageColumns+` FROM planning_packages WHERE id = ?`, id)
	p, err := scanPlanningPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundErr("planning package", id)
		}
		return nil, err
	}
	return p, nil
}

func (r *SQLitePlanningPackageRepo) ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.PlanningPackage, error) {
	query := `SELECT ` + planningPackageColumns + ` FROM planning_packages
		WHERE project_id = ? AND is_deleted = 0 ORDER BY priority, code`
	if includeDeleted {
		query = `SELECT ` + planningPackageColumns + ` FROM planning_packages
		WHERE project_id = ? ORDER BY priority, code`
	}
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing planning packages: %w", err)
	}
	defer rows.Close()

	var packages []*domain.PlanningPackage
	for rows.Next() {
		p, err := scanPlanningPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating planning packages: %w", err)
	}
	return packages, nil
}

func (r *SQLitePlanningPackageRepo) Update(ctx context.Context, p *domain.PlanningPackage) error {
	query := `UPDATE planning_packages SET control_account_id = ?, phase_id = ?, code = ?, name = ?,
		description = ?, planned_start = ?, planned_end = ?, planned_conversion_date = ?,
		estimated_budget = ?, estimated_hours = ?, is_converted = ?, conversion_date = ?,
		converted_by = ?, priority = ?, is_active = ?, is_deleted = ?, deleted_at = ?,
		updated_by = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		p.ControlAccountID,
		p.PhaseID,
		p.Code,
		p.Name,
		p.Description,
		nullableTimeToString(p.PlannedStart, timestampLayout),
		nullableTimeToString(p.PlannedEnd, timestampLayout),
		nullableTimeToString(p.PlannedConversionDate, timestampLayout),
		p.EstimatedBudget.String(),
		p.EstimatedHours.String(),
		boolToInt(p.IsConverted),
		nullableTimeToString(p.ConversionDate, timestampLayout),
		p.ConvertedBy,
		p.Priority,
		boolToInt(p.IsActive),
		boolToInt(p.IsDeleted),
		nullableTimeToString(p.DeletedAt, timestampLayout),
		p.UpdatedBy,
		formatTimestamp(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating planning package: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundErr("planning package", p.ID)
	}
	return nil
}

func scanPlanningPackage(s rowScanner) (*domain.PlanningPackage, error) {
	var p domain.PlanningPackage
	var controlAccount, phase, start, end, plannedConversion sql.NullString
	var conversion, convertedBy, deletedAt, updatedBy sql.NullString
	var budget, hours, createdAt, updatedAt string
	var converted, active, deleted int

	err := s.Scan(
		&p.ID, &p.ProjectID, &controlAccount, &phase, &p.Code, &p.Name, &p.Description,
		&start, &end, &plannedConversion, &budget, &hours,
		&converted, &conversion, &convertedBy, &p.Priority, &active, &deleted, &deletedAt,
		&p.CreatedBy, &updatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning planning package: %w", err)
	}

	p.ControlAccountID = nullableString(controlAccount)
	p.PhaseID = nullableString(phase)
	p.PlannedStart = parseNullableTime(start, timestampLayout)
	p.PlannedEnd = parseNullableTime(end, timestampLayout)
	p.PlannedConversionDate = parseNullableTime(plannedConversion, timestampLayout)
	p.IsConverted = intToBool(converted)
	p.ConversionDate = parseNullableTime(conversion, timestampLayout)
	p.ConvertedBy = nullableString(convertedBy)
	p.IsActive = intToBool(active)
	p.IsDeleted = intToBool(deleted)
	p.DeletedAt = parseNullableTime(deletedAt, timestampLayout)
	p.UpdatedBy = nullableString(updatedBy)

	if p.EstimatedBudget, err = parseDecimal(budget, "estimated_budget"); err != nil {
		return nil, err
	}
	if p.EstimatedHours, err = parseDecimal(hours, "estimated_hours"); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
