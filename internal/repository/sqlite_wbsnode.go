package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/shopspring/decimal"
)

// wbsNodeColumns is the canonical SELECT column list for wbs_nodes.
const wbsNodeColumns = `id, project_id, parent_id, code, name, description, level, sequence, full_path,
		kind, control_account_id, deliverable_description, acceptance_criteria, assumptions,
		constraints, inclusions, exclusions, pp_estimated_budget, pp_conversion_date,
		is_active, is_deleted, deleted_at, deleted_by, row_version, created_at, updated_at`

const workPackageColumns = `id, node_id, planned_start, planned_end, baseline_start, baseline_end,
		actual_start, actual_end, forecast_start, forecast_end, planned_duration_days,
		actual_duration_days, remaining_duration_days, total_float_days, free_float_days,
		is_critical_path, budget, currency, actual_cost, committed_cost, forecast_cost,
		progress_pct, physical_progress_pct, progress_method, status, responsible_user_id,
		primary_discipline_id, earned_value, planned_value, cpi, spi, is_baselined,
		baseline_date, created_at, updated_at`

const cbsMappingColumns = `id, node_id, cbs_id, allocation_pct, is_primary, start_date, end_date`

// SQLiteWBSNodeRepo implements WBSNodeRepo using a SQLite database.
type SQLiteWBSNodeRepo struct {
	db db.DBTX
}

// NewSQLiteWBSNodeRepo creates a new SQLiteWBSNodeRepo.
func NewSQLiteWBSNodeRepo(db db.DBTX) *SQLiteWBSNodeRepo {
	return &SQLiteWBSNodeRepo{db: db}
}

func (r *SQLiteWBSNodeRepo) Create(ctx context.Context, n *domain.WBSNode) error {
	query := `INSERT INTO wbs_nodes (` + wbsNodeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if n.RowVersion == 0 {
		n.RowVersion = 1
	}
	args := append([]any{n.ID, n.ProjectID, n.ParentID}, r.nodeValues(n)...)
	args = append(args, n.RowVersion, formatTimestamp(n.CreatedAt), formatTimestamp(n.UpdatedAt))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting wbs node: %w", err)
	}
	return r.saveParts(ctx, n)
}

// nodeValues returns the mutable columns from code through deleted_by.
func (r *SQLiteWBSNodeRepo) nodeValues(n *domain.WBSNode) []any {
	var ppBudget, ppConversion any
	if pp, ok := n.PlanningPackage(); ok {
		ppBudget = pp.EstimatedBudget.String()
		ppConversion = nullableTimeToString(pp.PlannedConversionDate, timestampLayout)
	}
	d := n.Dictionary
	return []any{
		n.Code, n.Name, n.Description, n.Level, n.Sequence, n.FullPath,
		string(n.Kind()), n.ControlAccountID,
		d.DeliverableDescription, d.AcceptanceCriteria, d.Assumptions,
		d.Constraints, d.Inclusions, d.Exclusions,
		ppBudget, ppConversion,
		boolToInt(n.IsActive), boolToInt(n.IsDeleted),
		nullableTimeToString(n.DeletedAt, timestampLayout), n.DeletedBy,
	}
}

func (r *SQLiteWBSNodeRepo) Update(ctx context.Context, n *domain.WBSNode) error {
	query := `UPDATE wbs_nodes SET code = ?, name = ?, description = ?, level = ?, sequence = ?,
		full_path = ?, kind = ?, control_account_id = ?, deliverable_description = ?,
		acceptance_criteria = ?, assumptions = ?, constraints = ?, inclusions = ?, exclusions = ?,
		pp_estimated_budget = ?, pp_conversion_date = ?, is_active = ?, is_deleted = ?,
		deleted_at = ?, deleted_by = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ?`
	args := append(r.nodeValues(n), formatTimestamp(n.UpdatedAt), n.ID, n.RowVersion)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating wbs node: %w", err)
	}
	if err := checkVersioned(res, "wbs node", n.ID); err != nil {
		return err
	}
	n.RowVersion++
	return r.saveParts(ctx, n)
}

// saveParts upserts the work package detail and CBS mappings of n.
func (r *SQLiteWBSNodeRepo) saveParts(ctx context.Context, n *domain.WBSNode) error {
	if wp, ok := n.WorkPackage(); ok {
		if err := r.upsertDetail(ctx, wp); err != nil {
			return err
		}
	}
	for _, m := range n.CBS.Mappings {
		query := `INSERT INTO wbs_cbs_mappings (` + cbsMappingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET allocation_pct = excluded.allocation_pct,
				is_primary = excluded.is_primary, end_date = excluded.end_date`
		_, err := r.db.ExecContext(ctx, query,
			m.ID, n.ID, m.CBSID, m.AllocationPct.String(), boolToInt(m.IsPrimary),
			formatTimestamp(m.StartDate), nullableTimeToString(m.EndDate, timestampLayout))
		if err != nil {
			return fmt.Errorf("saving cbs mapping %s: %w", m.CBSID, err)
		}
	}
	return nil
}

func (r *SQLiteWBSNodeRepo) upsertDetail(ctx context.Context, d *domain.WorkPackageDetail) error {
	query := `INSERT INTO work_package_details (` + workPackageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			planned_start = excluded.planned_start, planned_end = excluded.planned_end,
			baseline_start = excluded.baseline_start, baseline_end = excluded.baseline_end,
			actual_start = excluded.actual_start, actual_end = excluded.actual_end,
			forecast_start = excluded.forecast_start, forecast_end = excluded.forecast_end,
			planned_duration_days = excluded.planned_duration_days,
			actual_duration_days = excluded.actual_duration_days,
			remaining_duration_days = excluded.remaining_duration_days,
			total_float_days = excluded.total_float_days, free_float_days = excluded.free_float_days,
			is_critical_path = excluded.is_critical_path, budget = excluded.budget,
			currency = excluded.currency, actual_cost = excluded.actual_cost,
			committed_cost = excluded.committed_cost, forecast_cost = excluded.forecast_cost,
			progress_pct = excluded.progress_pct, physical_progress_pct = excluded.physical_progress_pct,
			progress_method = excluded.progress_method, status = excluded.status,
			responsible_user_id = excluded.responsible_user_id,
			primary_discipline_id = excluded.primary_discipline_id,
			earned_value = excluded.earned_value, planned_value = excluded.planned_value,
			cpi = excluded.cpi, spi = excluded.spi, is_baselined = excluded.is_baselined,
			baseline_date = excluded.baseline_date, updated_at = excluded.updated_at`
	ts := func(t *time.Time) any { return nullableTimeToString(t, timestampLayout) }
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.NodeID,
		ts(d.PlannedStart), ts(d.PlannedEnd), ts(d.BaselineStart), ts(d.BaselineEnd),
		ts(d.ActualStart), ts(d.ActualEnd), ts(d.ForecastStart), ts(d.ForecastEnd),
		d.PlannedDurationDays, nullableIntToValue(d.ActualDurationDays),
		nullableIntToValue(d.RemainingDurationDays), d.TotalFloatDays, d.FreeFloatDays,
		boolToInt(d.IsCriticalPath), d.Budget.String(), d.Currency, d.ActualCost.String(),
		d.CommittedCost.String(), d.ForecastCost.String(), d.ProgressPct, d.PhysicalProgressPct,
		string(d.ProgressMethod), string(d.Status), d.ResponsibleUserID, d.PrimaryDisciplineID,
		d.EarnedValue.String(), d.PlannedValue.String(), nullDecimalToValue(d.CPI),
		nullDecimalToValue(d.SPI), boolToInt(d.IsBaselined), ts(d.BaselineDate),
		formatTimestamp(d.CreatedAt), formatTimestamp(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving work package detail: %w", err)
	}
	return nil
}

func (r *SQLiteWBSNodeRepo) GetByID(ctx context.Context, id string) (*domain.WBSNode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+wbsNodeColumns+` FROM wbs_nodes WHERE id = ?`, id)
	n, ppBudget, err := r.scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundErr("wbs node", id)
		}
		return nil, err
	}
	nodes := []*domain.WBSNode{n}
	if err := r.attachParts(ctx, nodes, []decimal.NullDecimal{ppBudget}, `node_id = ?`, id); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *SQLiteWBSNodeRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.WBSNode, error) {
	return r.list(ctx, `project_id = ?`, projectID,
		`node_id IN (SELECT id FROM wbs_nodes WHERE project_id = ?)`)
}

func (r *SQLiteWBSNodeRepo) ListChildren(ctx context.Context, parentID string) ([]*domain.WBSNode, error) {
	return r.list(ctx, `parent_id = ?`, parentID,
		`node_id IN (SELECT id FROM wbs_nodes WHERE parent_id = ?)`)
}

func (r *SQLiteWBSNodeRepo) list(ctx context.Context, where, arg, partsWhere string) ([]*domain.WBSNode, error) {
	query := `SELECT ` + wbsNodeColumns + ` FROM wbs_nodes WHERE ` + where + ` ORDER BY level, sequence`
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing wbs nodes: %w", err)
	}
	var nodes []*domain.WBSNode
	var budgets []decimal.NullDecimal
	for rows.Next() {
		n, b, err := r.scanNode(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		nodes = append(nodes, n)
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating wbs nodes: %w", err)
	}
	rows.Close()

	if len(nodes) == 0 {
		return nodes, nil
	}
	if err := r.attachParts(ctx, nodes, budgets, partsWhere, arg); err != nil {
		return nil, err
	}
	return nodes, nil
}

// attachParts loads details and mappings for nodes and sets each node's
// element from its stored kind. Node rows are fully read before these
// queries run.
func (r *SQLiteWBSNodeRepo) attachParts(ctx context.Context, nodes []*domain.WBSNode, ppBudgets []decimal.NullDecimal, where, arg string) error {
	details, err := r.loadDetails(ctx, where, arg)
	if err != nil {
		return err
	}
	mappings, err := r.loadMappings(ctx, where, arg)
	if err != nil {
		return err
	}
	for i, n := range nodes {
		switch n.Element.Kind() {
		case domain.NodeWorkPackage:
			d, ok := details[n.ID]
			if !ok {
				return fmt.Errorf("wbs node %s is a work package without detail", n.ID)
			}
			n.Element = domain.WorkPackageElement{Detail: d}
		case domain.NodePlanningPackage:
			pp := n.Element.(domain.PlanningPackageElement)
			if ppBudgets[i].Valid {
				pp.EstimatedBudget = ppBudgets[i].Decimal
			}
			n.Element = pp
		}
		n.CBS = domain.CBSAllocationSet{Mappings: mappings[n.ID]}
	}
	return nil
}

func (r *SQLiteWBSNodeRepo) scanNode(s rowScanner) (*domain.WBSNode, decimal.NullDecimal, error) {
	var n domain.WBSNode
	var parentID, controlAccount, ppBudget, ppConversion, deletedAt, deletedBy sql.NullString
	var kind, createdAt, updatedAt string
	var isActive, isDeleted int
	d := &n.Dictionary

	err := s.Scan(
		&n.ID, &n.ProjectID, &parentID, &n.Code, &n.Name, &n.Description, &n.Level, &n.Sequence,
		&n.FullPath, &kind, &controlAccount,
		&d.DeliverableDescription, &d.AcceptanceCriteria, &d.Assumptions,
		&d.Constraints, &d.Inclusions, &d.Exclusions,
		&ppBudget, &ppConversion, &isActive, &isDeleted, &deletedAt, &deletedBy,
		&n.RowVersion, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, decimal.NullDecimal{}, err
		}
		return nil, decimal.NullDecimal{}, fmt.Errorf("scanning wbs node: %w", err)
	}

	n.ParentID = nullableString(parentID)
	n.ControlAccountID = nullableString(controlAccount)
	n.DeletedBy = nullableString(deletedBy)
	n.DeletedAt = parseNullableTime(deletedAt, timestampLayout)
	n.IsActive = intToBool(isActive)
	n.IsDeleted = intToBool(isDeleted)

	budget, err := parseNullDecimal(ppBudget, "pp_estimated_budget")
	if err != nil {
		return nil, decimal.NullDecimal{}, err
	}
	switch domain.NodeKind(kind) {
	case domain.NodeWorkPackage:
		// Detail attached by attachParts.
		n.Element = domain.WorkPackageElement{}
	case domain.NodePlanningPackage:
		n.Element = domain.PlanningPackageElement{
			EstimatedBudget:       decimal.Zero,
			PlannedConversionDate: parseNullableTime(ppConversion, timestampLayout),
		}
	default:
		n.Element = domain.SummaryElement{}
	}

	if n.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, decimal.NullDecimal{}, err
	}
	if n.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, decimal.NullDecimal{}, err
	}
	return &n, budget, nil
}

func (r *SQLiteWBSNodeRepo) loadDetails(ctx context.Context, where, arg string) (map[string]*domain.WorkPackageDetail, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workPackageColumns+` FROM work_package_details WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("loading work package details: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.WorkPackageDetail)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out[d.NodeID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work package details: %w", err)
	}
	return out, nil
}

func scanDetail(s rowScanner) (*domain.WorkPackageDetail, error) {
	var d domain.WorkPackageDetail
	var plannedStart, plannedEnd, baselineStart, baselineEnd sql.NullString
	var actualStart, actualEnd, forecastStart, forecastEnd, baselineDate sql.NullString
	var actualDuration, remainingDuration sql.NullInt64
	var critical, baselined int
	var budget, actualCost, committedCost, forecastCost, earned, planned string
	var cpi, spi, responsible, discipline sql.NullString
	var method, status, createdAt, updatedAt string

	err := s.Scan(
		&d.ID, &d.NodeID, &plannedStart, &plannedEnd, &baselineStart, &baselineEnd,
		&actualStart, &actualEnd, &forecastStart, &forecastEnd, &d.PlannedDurationDays,
		&actualDuration, &remainingDuration, &d.TotalFloatDays, &d.FreeFloatDays,
		&critical, &budget, &d.Currency, &actualCost, &committedCost, &forecastCost,
		&d.ProgressPct, &d.PhysicalProgressPct, &method, &status, &responsible,
		&discipline, &earned, &planned, &cpi, &spi, &baselined,
		&baselineDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning work package detail: %w", err)
	}

	ts := func(s sql.NullString) *time.Time { return parseNullableTime(s, timestampLayout) }
	d.PlannedStart, d.PlannedEnd = ts(plannedStart), ts(plannedEnd)
	d.BaselineStart, d.BaselineEnd = ts(baselineStart), ts(baselineEnd)
	d.ActualStart, d.ActualEnd = ts(actualStart), ts(actualEnd)
	d.ForecastStart, d.ForecastEnd = ts(forecastStart), ts(forecastEnd)
	d.BaselineDate = ts(baselineDate)
	d.ActualDurationDays = parseNullableInt(actualDuration)
	d.RemainingDurationDays = parseNullableInt(remainingDuration)
	d.IsCriticalPath = intToBool(critical)
	d.IsBaselined = intToBool(baselined)
	d.ProgressMethod = domain.ProgressMethod(method)
	d.Status = domain.WorkPackageStatus(status)
	d.ResponsibleUserID = nullableString(responsible)
	d.PrimaryDisciplineID = nullableString(discipline)

	amounts := []struct {
		dst   *decimal.Decimal
		src   string
		field string
	}{
		{&d.Budget, budget, "budget"},
		{&d.ActualCost, actualCost, "actual_cost"},
		{&d.CommittedCost, committedCost, "committed_cost"},
		{&d.ForecastCost, forecastCost, "forecast_cost"},
		{&d.EarnedValue, earned, "earned_value"},
		{&d.PlannedValue, planned, "planned_value"},
	}
	for _, a := range amounts {
		if *a.dst, err = parseDecimal(a.src, a.field); err != nil {
			return nil, err
		}
	}
	if d.CPI, err = parseNullDecimal(cpi, "cpi"); err != nil {
		return nil, err
	}
	if d.SPI, err = parseNullDecimal(spi, "spi"); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteWBSNodeRepo) loadMappings(ctx context.Context, where, arg string) (map[string][]*domain.CBSMapping, error) {
	query := `SELECT ` + cbsMappingColumns + ` FROM wbs_cbs_mappings WHERE ` + where + ` ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("loading cbs mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]*domain.CBSMapping)
	for rows.Next() {
		var m domain.CBSMapping
		var pct, start string
		var primary int
		var end sql.NullString
		if err := rows.Scan(&m.ID, &m.NodeID, &m.CBSID, &pct, &primary, &start, &end); err != nil {
			return nil, fmt.Errorf("scanning cbs mapping: %w", err)
		}
		if m.AllocationPct, err = parseDecimal(pct, "allocation_pct"); err != nil {
			return nil, err
		}
		if m.StartDate, err = parseTimestamp(start, "start_date"); err != nil {
			return nil, err
		}
		m.IsPrimary = intToBool(primary)
		m.EndDate = parseNullableTime(end, timestampLayout)
		out[m.NodeID] = append(out[m.NodeID], &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cbs mappings: %w", err)
	}
	return out, nil
}
