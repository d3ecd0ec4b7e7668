package repository

import (
	"context"

	"github.com/alexanderramin/wbsledger/internal/domain"
)

type ProjectRepo interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetByCode(ctx context.Context, code string) (*domain.Project, error)
	List(ctx context.Context, includeInactive bool) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
}

// WBSNodeRepo loads and stores WBS nodes together with their work package
// detail and CBS mappings. Soft-deleted nodes are returned so they can be
// restored; callers filter through domain.Tree.
type WBSNodeRepo interface {
	Create(ctx context.Context, n *domain.WBSNode) error
	GetByID(ctx context.Context, id string) (*domain.WBSNode, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.WBSNode, error)
	ListChildren(ctx context.Context, parentID string) ([]*domain.WBSNode, error)
	// Update fails with ErrConflict when n.RowVersion is stale and bumps
	// it on success.
	Update(ctx context.Context, n *domain.WBSNode) error
}

// BudgetRepo stores a budget with its items and revisions. Revision
// snapshot columns are written once; later updates only touch approval.
type BudgetRepo interface {
	Create(ctx context.Context, b *domain.Budget) error
	GetByID(ctx context.Context, id string) (*domain.Budget, error)
	ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.Budget, error)
	Update(ctx context.Context, b *domain.Budget) error
}

type PlanningPackageRepo interface {
	Create(ctx context.Context, p *domain.PlanningPackage) error
	GetByID(ctx context.Context, id string) (*domain.PlanningPackage, error)
	ListByProject(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.PlanningPackage, error)
	Update(ctx context.Context, p *domain.PlanningPackage) error
}
