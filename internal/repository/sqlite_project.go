package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
)

const projectColumns = `id, code, name, description, currency, start_date, is_active, created_at, updated_at`

// SQLiteProjectRepo implements ProjectRepo using a SQLite database.
type SQLiteProjectRepo struct {
	db db.DBTX
}

// NewSQLiteProjectRepo creates a new SQLiteProjectRepo.
func NewSQLiteProjectRepo(db db.DBTX) *SQLiteProjectRepo {
	return &SQLiteProjectRepo{db: db}
}

func (r *SQLiteProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Code,
		p.Name,
		p.Description,
		p.Currency,
		nullableTimeToString(p.StartDate, dateLayout),
		boolToInt(p.IsActive),
		formatTimestamp(p.CreatedAt),
		formatTimestamp(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *SQLiteProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return r.scanProject(row, id)
}

func (r *SQLiteProjectRepo) GetByCode(ctx context.Context, code string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE UPPER(code) = UPPER(?)`, code)
	return r.scanProject(row, code)
}

func (r *SQLiteProjectRepo) List(ctx context.Context, includeInactive bool) ([]*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE is_active = 1 ORDER BY code`
	if includeInactive {
		query = `SELECT ` + projectColumns + ` FROM projects ORDER BY code`
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		p, err := r.scanProject(rows, "")
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

func (r *SQLiteProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	query := `UPDATE projects SET code = ?, name = ?, description = ?, currency = ?, start_date = ?,
		is_active = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		p.Code,
		p.Name,
		p.Description,
		p.Currency,
		nullableTimeToString(p.StartDate, dateLayout),
		boolToInt(p.IsActive),
		formatTimestamp(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundErr("project", p.ID)
	}
	return nil
}

func (r *SQLiteProjectRepo) scanProject(s rowScanner, key string) (*domain.Project, error) {
	var p domain.Project
	var startDate sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Currency,
		&startDate, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundErr("project", key)
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	p.StartDate = parseNullableTime(startDate, dateLayout)
	p.IsActive = intToBool(isActive)
	if p.CreatedAt, err = parseTimestamp(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
