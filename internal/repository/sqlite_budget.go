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

const budgetColumns = `id, project_id, version, name, description, status, budget_type,
		is_baseline, baseline_date, is_locked, locked_by, locked_at, currency, exchange_rate,
		total_amount, contingency_amount, contingency_pct, management_reserve, management_reserve_pct,
		submitted_by, submitted_at, approved_by, approved_at, approval_comments,
		rejected_by, rejected_at, rejection_reason, parent_budget_id, revision_count,
		is_deleted, deleted_at, deleted_by, row_version, created_by, updated_by, created_at, updated_at`

const budgetItemColumns = `id, budget_id, control_account_id, item_code, description, cost_type,
		cost_category, quantity, unit_rate, amount, is_amount_overridden, unit_of_measure,
		accounting_code, notes, sort_order, is_deleted, deleted_at, created_at, updated_at`

const budgetRevisionColumns = `id, budget_id, revision_number, reason, previous_amount, new_amount,
		revision_date, revised_by, is_approved, approved_by, approved_at`

// SQLiteBudgetRepo implements BudgetRepo using a SQLite database.
type SQLiteBudgetRepo struct {
	db db.DBTX
}

// NewSQLiteBudgetRepo creates a new SQLiteBudgetRepo.
func NewSQLiteBudgetRepo(db db.DBTX) *SQLiteBudgetRepo {
	return &SQLiteBudgetRepo{db: db}
}

// budgetValues returns the columns from version through deleted_by, in
// budgetColumns order.
func budgetValues(b *domain.Budget) []any {
	ts := func(t *time.Time) any { return nullableTimeToString(t, timestampLayout) }
	return []any{
		b.Version, b.Name, b.Description, string(b.Status), string(b.Type),
		boolToInt(b.IsBaseline), ts(b.BaselineDate), boolToInt(b.IsLocked), b.LockedBy, ts(b.LockedAt),
		b.Currency, b.ExchangeRate.String(),
		b.TotalAmount.String(), b.ContingencyAmount.String(), b.ContingencyPct.String(),
		b.ManagementReserve.String(), b.ManagementReservePct.String(),
		b.SubmittedBy, ts(b.SubmittedAt), b.ApprovedBy, ts(b.ApprovedAt), b.ApprovalComments,
		b.RejectedBy, ts(b.RejectedAt), b.RejectionReason, b.ParentBudgetID, b.RevisionCount,
		boolToInt(b.IsDeleted), ts(b.DeletedAt), b.DeletedBy,
	}
}

func (r *SQLiteBudgetRepo) Create(ctx context.Context, b *domain.Budget) error {
	query := `INSERT INTO budgets (` + budgetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if b.RowVersion == 0 {
		b.RowVersion = 1
	}
	args := append([]any{b.ID, b.ProjectID}, budgetValues(b)...)
	args = append(args, b.RowVersion, b.CreatedBy, b.UpdatedBy,
		formatTimestamp(b.CreatedAt), formatTimestamp(b.UpdatedAt))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting budget: %w", err)
	}
	return r.saveChildren(ctx, b)
}

func (r *SQLiteBudgetRepo) Update(ctx context.Context, b *domain.Budget) error {
	query := `UPDATE budgets SET version = ?, name = ?, description = ?, status = ?, budget_type = ?,
		is_baseline = ?, baseline_date = ?, is_locked = ?, locked_by = ?, locked_at = ?,
		currency = ?, exchange_rate = ?, total_amount = ?, contingency_amount = ?, contingency_pct = ?,
		management_reserve = ?, management_reserve_pct = ?, submitted_by = ?, submitted_at = ?,
		approved_by = ?, approved_at = ?, approval_comments = ?, rejected_by = ?, rejected_at = ?,
		rejection_reason = ?, parent_budget_id = ?, revision_count = ?, is_deleted = ?,
		deleted_at = ?, deleted_by = ?, updated_by = ?, updated_at = ?, row_version = row_version + 1
		WHERE id = ? AND row_version = ?`
	args := append(budgetValues(b), b.UpdatedBy, formatTimestamp(b.UpdatedAt), b.ID, b.RowVersion)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating budget: %w", err)
	}
	if err := checkVersioned(res, "budget", b.ID); err != nil {
		return err
	}
	b.RowVersion++
	return r.saveChildren(ctx, b)
}

func (r *SQLiteBudgetRepo) saveChildren(ctx context.Context, b *domain.Budget) error {
	for _, it := range b.Items {
		if err := r.upsertItem(ctx, it); err != nil {
			return err
		}
	}
	for _, rev := range b.Revisions {
		if err := r.upsertRevision(ctx, rev); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteBudgetRepo) upsertItem(ctx context.Context, it *domain.BudgetItem) error {
	query := `INSERT INTO budget_items (` + budgetItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET control_account_id = excluded.control_account_id,
			item_code = excluded.item_code, description = excluded.description,
			cost_type = excluded.cost_type, cost_category = excluded.cost_category,
			quantity = excluded.quantity, unit_rate = excluded.unit_rate, amount = excluded.amount,
			is_amount_overridden = excluded.is_amount_overridden,
			unit_of_measure = excluded.unit_of_measure, accounting_code = excluded.accounting_code,
			notes = excluded.notes, sort_order = excluded.sort_order, is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at, updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		it.ID, it.BudgetID, it.ControlAccountID, it.ItemCode, it.Description, string(it.CostType),
		it.CostCategory, it.Quantity.String(), it.UnitRate.String(), it.Amount.String(),
		boolToInt(it.IsAmountOverridden), it.UnitOfMeasure, it.AccountingCode, it.Notes,
		it.SortOrder, boolToInt(it.IsDeleted), nullableTimeToString(it.DeletedAt, timestampLayout),
		formatTimestamp(it.CreatedAt), formatTimestamp(it.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving budget item %s: %w", it.ItemCode, err)
	}
	return nil
}

// upsertRevision writes the snapshot once; a conflicting id only refreshes
// the approval columns.
func (r *SQLiteBudgetRepo) upsertRevision(ctx context.Context, rev *domain.BudgetRevision) error {
	query := `INSERT INTO budget_revisions (` + budgetRevisionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_approved = excluded.is_approved,
			approved_by = excluded.approved_by, approved_at = excluded.approved_at`
	_, err := r.db.ExecContext(ctx, query,
		rev.ID, rev.BudgetID, rev.RevisionNumber, rev.Reason, rev.PreviousAmount.String(),
		rev.NewAmount.String(), formatTimestamp(rev.RevisionDate), rev.RevisedBy,
		boolToInt(rev.IsApproved), rev.ApprovedBy, nullableTimeToString(rev.ApprovedAt, timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("saving budget revision %d: %w", rev.RevisionNumber, err)
	}
	return nil
}

func (r *SQLiteBudgetRepo) GetByID(ctx context.Context, id string) (*domain.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundErr("budget", id)
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, []*domain.Budget{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *SQLiteBudgetRepo) ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE project_id = ? AND is_deleted = 0 ORDER BY created_at, version`
	if includeDeleted {
		query = `SELECT ` + budgetColumns + ` FROM budgets WHERE project_id = ? ORDER BY created_at, version`
	}
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	var budgets []*domain.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating budgets: %w", err)
	}
	rows.Close()

	if err := r.loadChildren(ctx, budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

func (r *SQLiteBudgetRepo) loadChildren(ctx context.Context, budgets []*domain.Budget) error {
	for _, b := range budgets {
		items, err := r.listItems(ctx, b.ID)
		if err != nil {
			return err
		}
		revisions, err := r.listRevisions(ctx, b.ID)
		if err != nil {
			return err
		}
		b.Items = items
		b.Revisions = revisions
	}
	return nil
}

func scanBudget(s rowScanner) (*domain.Budget, error) {
	var b domain.Budget
	var status, btype string
	var baselineDate, lockedBy, lockedAt sql.NullString
	var rate, total, contAmt, contPct, reserve, reservePct string
	var submittedBy, submittedAt, approvedBy, approvedAt sql.NullString
	var rejectedBy, rejectedAt, parentID, deletedAt, deletedBy, updatedBy sql.NullString
	var isBaseline, isLocked, isDeleted int
	var createdAt, updatedAt string

	err := s.Scan(
		&b.ID, &b.ProjectID, &b.Version, &b.Name, &b.Description, &status, &btype,
		&isBaseline, &baselineDate, &isLocked, &lockedBy, &lockedAt, &b.Currency, &rate,
		&total, &contAmt, &contPct, &reserve, &reservePct,
		&submittedBy, &submittedAt, &approvedBy, &approvedAt, &b.ApprovalComments,
		&rejectedBy, &rejectedAt, &b.RejectionReason, &parentID, &b.RevisionCount,
		&isDeleted, &deletedAt, &deletedBy, &b.RowVersion, &b.CreatedBy, &updatedBy,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning budget: %w", err)
	}

	b.Status = domain.BudgetStatus(status)
	b.Type = domain.BudgetType(btype)
	b.IsBaseline = intToBool(isBaseline)
	b.IsLocked = intToBool(isLocked)
	b.IsDeleted = intToBool(isDeleted)

	ts := func(ns sql.NullString) *time.Time { return parseNullableTime(ns, timestampLayout) }
	b.BaselineDate, b.LockedAt = ts(baselineDate), ts(lockedAt)
	b.SubmittedAt, b.ApprovedAt = ts(submittedAt), ts(approvedAt)
	b.RejectedAt, b.DeletedAt = ts(rejectedAt), ts(deletedAt)
	b.LockedBy = nullableString(lockedBy)
	b.SubmittedBy = nullableString(submittedBy)
	b.ApprovedBy = nullableString(approvedBy)
	b.RejectedBy = nullableString(rejectedBy)
	b.ParentBudgetID = nullableString(parentID)
	b.DeletedBy = nullableString(deletedBy)
	b.UpdatedBy = nullableString(updatedBy)

	amounts := []struct {
		dst   *decimal.Decimal
		src   string
		field string
	}{
		{&b.ExchangeRate, rate, "exchange_rate"},
		{&b.TotalAmount, total, "total_amount"},
		{&b.ContingencyAmount, contAmt, "contingency_amount"},
		{&b.ContingencyPct, contPct, "contingency_pct"},
		{&b.ManagementReserve, reserve, "management_reserve"},
		{&b.ManagementReservePct, reservePct, "management_reserve_pct"},
	}
	for _, a := range amounts {
		if *a.dst, err = parseDecimal(a.src, a.field); err != nil {
			return nil, err
		}
	}
	if b.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *SQLiteBudgetRepo) listItems(ctx context.Context, budgetID string) ([]*domain.BudgetItem, error) {
	query := `SELECT ` + budgetItemColumns + ` FROM budget_items WHERE budget_id = ? ORDER BY sort_order, item_code`
	rows, err := r.db.QueryContext(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("listing budget items: %w", err)
	}
	defer rows.Close()

	var items []*domain.BudgetItem
	for rows.Next() {
		var it domain.BudgetItem
		var controlAccount, deletedAt sql.NullString
		var costType, quantity, rate, amount, createdAt, updatedAt string
		var overridden, deleted int
		err := rows.Scan(&it.ID, &it.BudgetID, &controlAccount, &it.ItemCode, &it.Description,
			&costType, &it.CostCategory, &quantity, &rate, &amount, &overridden,
			&it.UnitOfMeasure, &it.AccountingCode, &it.Notes, &it.SortOrder, &deleted,
			&deletedAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning budget item: %w", err)
		}
		it.ControlAccountID = nullableString(controlAccount)
		it.CostType = domain.CostType(costType)
		it.IsAmountOverridden = intToBool(overridden)
		it.IsDeleted = intToBool(deleted)
		it.DeletedAt = parseNullableTime(deletedAt, timestampLayout)
		if it.Quantity, err = parseDecimal(quantity, "quantity"); err != nil {
			return nil, err
		}
		if it.UnitRate, err = parseDecimal(rate, "unit_rate"); err != nil {
			return nil, err
		}
		if it.Amount, err = parseDecimal(amount, "amount"); err != nil {
			return nil, err
		}
		if it.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
			return nil, err
		}
		if it.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating budget items: %w", err)
	}
	return items, nil
}

func (r *SQLiteBudgetRepo) listRevisions(ctx context.Context, budgetID string) ([]*domain.BudgetRevision, error) {
	query := `SELECT ` + budgetRevisionColumns + ` FROM budget_revisions WHERE budget_id = ? ORDER BY revision_number`
	rows, err := r.db.QueryContext(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("listing budget revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*domain.BudgetRevision
	for rows.Next() {
		var rev domain.BudgetRevision
		var previous, next, date string
		var approved int
		var approvedBy, approvedAt sql.NullString
		err := rows.Scan(&rev.ID, &rev.BudgetID, &rev.RevisionNumber, &rev.Reason, &previous, &next,
			&date, &rev.RevisedBy, &approved, &approvedBy, &approvedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning budget revision: %w", err)
		}
		if rev.PreviousAmount, err = parseDecimal(previous, "previous_amount"); err != nil {
			return nil, err
		}
		if rev.NewAmount, err = parseDecimal(next, "new_amount"); err != nil {
			return nil, err
		}
		if rev.RevisionDate, err = parseTimestamp(date, "revision_date"); err != nil {
			return nil, err
		}
		rev.IsApproved = intToBool(approved)
		rev.ApprovedBy = nullableString(approvedBy)
		rev.ApprovedAt = parseNullableTime(approvedAt, timestampLayout)
		revisions = append(revisions, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating budget revisions: %w", err)
	}
	return revisions, nil
}
