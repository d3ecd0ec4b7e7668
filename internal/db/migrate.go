package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is safe to re-run.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN is re-run on every start; a column that
			// already exists is expected.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillFullPaths(db); err != nil {
		return fmt.Errorf("backfilling wbs full paths: %w", err)
	}
	return nil
}

// migrateBackfillFullPaths fills full_path for nodes written before the
// column existed, walking ancestors with a recursive CTE.
func migrateBackfillFullPaths(db *sql.DB) error {
	ctx := context.Background()
	var missing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wbs_nodes WHERE full_path = ''`).Scan(&missing); err != nil {
		return fmt.Errorf("counting nodes without full path: %w", err)
	}
	if missing == 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, `
		WITH RECURSIVE paths(id, path) AS (
			SELECT id, name FROM wbs_nodes WHERE parent_id IS NULL
			UNION ALL
			SELECT n.id, p.path || ' / ' || n.name
			FROM wbs_nodes n JOIN paths p ON n.parent_id = p.id
		)
		UPDATE wbs_nodes
		SET full_path = (SELECT path FROM paths WHERE paths.id = wbs_nodes.id)
		WHERE full_path = '' AND id IN (SELECT id FROM paths)`)
	if err != nil {
		return fmt.Errorf("updating full paths: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		code        TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		currency    TEXT NOT NULL DEFAULT 'USD',
		start_date  TEXT,
		is_active   INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_code ON projects(code)`,

	`CREATE TABLE IF NOT EXISTS wbs_nodes (
		id                      TEXT PRIMARY KEY,
		project_id              TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		parent_id               TEXT REFERENCES wbs_nodes(id),
		code                    TEXT NOT NULL,
		name                    TEXT NOT NULL,
		description             TEXT NOT NULL DEFAULT '',
		level                   INTEGER NOT NULL DEFAULT 1,
		sequence                INTEGER NOT NULL DEFAULT 0,
		full_path               TEXT NOT NULL DEFAULT '',
		kind                    TEXT NOT NULL DEFAULT 'summary'
		                        CHECK(kind IN ('summary','work_package','planning_package')),
		control_account_id      TEXT,
		deliverable_description TEXT NOT NULL DEFAULT '',
		acceptance_criteria     TEXT NOT NULL DEFAULT '',
		assumptions             TEXT NOT NULL DEFAULT '',
		constraints             TEXT NOT NULL DEFAULT '',
		inclusions              TEXT NOT NULL DEFAULT '',
		exclusions              TEXT NOT NULL DEFAULT '',
		pp_estimated_budget     TEXT,
		pp_conversion_date      TEXT,
		is_active               INTEGER NOT NULL DEFAULT 1,
		is_deleted              INTEGER NOT NULL DEFAULT 0,
		deleted_at              TEXT,
		deleted_by              TEXT,
		row_version             INTEGER NOT NULL DEFAULT 1,
		created_at              TEXT NOT NULL,
		updated_at              TEXT NOT NULL,
		CHECK(parent_id IS NOT NULL OR kind = 'summary')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wbs_nodes_project ON wbs_nodes(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_wbs_nodes_parent ON wbs_nodes(parent_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_wbs_nodes_code_live ON wbs_nodes(project_id, code) WHERE is_deleted = 0`,

	`CREATE TABLE IF NOT EXISTS work_package_details (
		id                      TEXT PRIMARY KEY,
		node_id                 TEXT NOT NULL UNIQUE REFERENCES wbs_nodes(id) ON DELETE CASCADE,
		planned_start           TEXT,
		planned_end             TEXT,
		baseline_start          TEXT,
		baseline_end            TEXT,
		actual_start            TEXT,
		actual_end              TEXT,
		forecast_start          TEXT,
		forecast_end            TEXT,
		planned_duration_days   INTEGER NOT NULL DEFAULT 0,
		actual_duration_days    INTEGER,
		remaining_duration_days INTEGER,
		total_float_days        INTEGER NOT NULL DEFAULT 0,
		free_float_days         INTEGER NOT NULL DEFAULT 0,
		is_critical_path        INTEGER NOT NULL DEFAULT 0,
		budget                  TEXT NOT NULL DEFAULT '0',
		currency                TEXT NOT NULL DEFAULT '',
		actual_cost             TEXT NOT NULL DEFAULT '0',
		committed_cost          TEXT NOT NULL DEFAULT '0',
		forecast_cost           TEXT NOT NULL DEFAULT '0',
		progress_pct            REAL NOT NULL DEFAULT 0 CHECK(progress_pct >= 0 AND progress_pct <= 100),
		physical_progress_pct   REAL NOT NULL DEFAULT 0,
		progress_method         TEXT NOT NULL DEFAULT 'percent_complete',
		status                  TEXT NOT NULL DEFAULT 'not_started'
		                        CHECK(status IN ('not_started','in_progress','completed','on_hold','cancelled')),
		responsible_user_id     TEXT,
		primary_discipline_id   TEXT,
		earned_value            TEXT NOT NULL DEFAULT '0',
		planned_value           TEXT NOT NULL DEFAULT '0',
		cpi                     TEXT,
		spi                     TEXT,
		is_baselined            INTEGER NOT NULL DEFAULT 0,
		baseline_date           TEXT,
		created_at              TEXT NOT NULL,
		updated_at              TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS wbs_cbs_mappings (
		id             TEXT PRIMARY KEY,
		node_id        TEXT NOT NULL REFERENCES wbs_nodes(id) ON DELETE CASCADE,
		cbs_id         TEXT NOT NULL,
		allocation_pct TEXT NOT NULL,
		is_primary     INTEGER NOT NULL DEFAULT 0,
		start_date     TEXT NOT NULL,
		end_date       TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cbs_mappings_node ON wbs_cbs_mappings(node_id)`,

	`CREATE TABLE IF NOT EXISTS budgets (
		id                     TEXT PRIMARY KEY,
		project_id             TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		version                TEXT NOT NULL,
		name                   TEXT NOT NULL,
		description            TEXT NOT NULL DEFAULT '',
		status                 TEXT NOT NULL DEFAULT 'draft'
		                       CHECK(status IN ('draft','under_review','approved','rejected')),
		budget_type            TEXT NOT NULL DEFAULT 'original',
		is_baseline            INTEGER NOT NULL DEFAULT 0,
		baseline_date          TEXT,
		is_locked              INTEGER NOT NULL DEFAULT 0,
		locked_by              TEXT,
		locked_at              TEXT,
		currency               TEXT NOT NULL,
		exchange_rate          TEXT NOT NULL DEFAULT '1',
		total_amount           TEXT NOT NULL DEFAULT '0',
		contingency_amount     TEXT NOT NULL DEFAULT '0',
		contingency_pct        TEXT NOT NULL DEFAULT '0',
		management_reserve     TEXT NOT NULL DEFAULT '0',
		management_reserve_pct TEXT NOT NULL DEFAULT '0',
		submitted_by           TEXT,
		submitted_at           TEXT,
		approved_by            TEXT,
		approved_at            TEXT,
		approval_comments      TEXT NOT NULL DEFAULT '',
		rejected_by            TEXT,
		rejected_at            TEXT,
		rejection_reason       TEXT NOT NULL DEFAULT '',
		parent_budget_id       TEXT REFERENCES budgets(id),
		revision_count         INTEGER NOT NULL DEFAULT 0,
		is_deleted             INTEGER NOT NULL DEFAULT 0,
		deleted_at             TEXT,
		deleted_by             TEXT,
		row_version            INTEGER NOT NULL DEFAULT 1,
		created_by             TEXT NOT NULL DEFAULT '',
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_budgets_project ON budgets(project_id)`,
	`ALTER TABLE budgets ADD COLUMN updated_by TEXT`,
	// Databases written before versions were unique may hold live clashes;
	// later duplicates get an id suffix so the index below can be built.
	`UPDATE budgets SET version = version || '-' || substr(id, 1, 8)
		WHERE is_deleted = 0 AND EXISTS (
			SELECT 1 FROM budgets AS b2
			WHERE b2.project_id = budgets.project_id AND b2.is_deleted = 0
			AND lower(b2.version) = lower(budgets.version) AND b2.rowid < budgets.rowid)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_budgets_version_live ON budgets(project_id, version COLLATE NOCASE) WHERE is_deleted = 0`,

	`CREATE TABLE IF NOT EXISTS budget_items (
		id                   TEXT PRIMARY KEY,
		budget_id            TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
		control_account_id   TEXT,
		item_code            TEXT NOT NULL CHECK(length(item_code) <= 50),
		description          TEXT NOT NULL,
		cost_type            TEXT NOT NULL DEFAULT 'other',
		cost_category        TEXT NOT NULL DEFAULT '',
		quantity             TEXT NOT NULL DEFAULT '0',
		unit_rate            TEXT NOT NULL DEFAULT '0',
		amount               TEXT NOT NULL DEFAULT '0',
		is_amount_overridden INTEGER NOT NULL DEFAULT 0,
		unit_of_measure      TEXT NOT NULL DEFAULT '',
		accounting_code      TEXT NOT NULL DEFAULT '',
		notes                TEXT NOT NULL DEFAULT '',
		sort_order           INTEGER NOT NULL DEFAULT 0,
		is_deleted           INTEGER NOT NULL DEFAULT 0,
		deleted_at           TEXT,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_budget_items_budget ON budget_items(budget_id)`,

	`CREATE TABLE IF NOT EXISTS budget_revisions (
		id              TEXT PRIMARY KEY,
		budget_id       TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
		revision_number INTEGER NOT NULL,
		reason          TEXT NOT NULL,
		previous_amount TEXT NOT NULL,
		new_amount      TEXT NOT NULL,
		revision_date   TEXT NOT NULL,
		revised_by      TEXT NOT NULL,
		is_approved     INTEGER NOT NULL DEFAULT 0,
		approved_by     TEXT,
		approved_at     TEXT,
		UNIQUE(budget_id, revision_number)
	)`,

	`CREATE TABLE IF NOT EXISTS planning_packages (
		id                      TEXT PRIMARY KEY,
		project_id              TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		control_account_id      TEXT,
		phase_id                TEXT,
		code                    TEXT NOT NULL,
		name                    TEXT NOT NULL,
		description             TEXT NOT NULL DEFAULT '',
		planned_start           TEXT,
		planned_end             TEXT,
		planned_conversion_date TEXT,
		estimated_budget        TEXT NOT NULL DEFAULT '0',
		estimated_hours         TEXT NOT NULL DEFAULT '0',
		is_converted            INTEGER NOT NULL DEFAULT 0,
		conversion_date         TEXT,
		converted_by            TEXT,
		priority                INTEGER NOT NULL DEFAULT 50 CHECK(priority BETWEEN 1 AND 99),
		is_active               INTEGER NOT NULL DEFAULT 1,
		is_deleted              INTEGER NOT NULL DEFAULT 0,
		deleted_at              TEXT,
		created_by              TEXT NOT NULL DEFAULT '',
		updated_by              TEXT,
		created_at              TEXT NOT NULL,
		updated_at              TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_planning_packages_project ON planning_packages(project_id)`,
}
