package service

import (
	"context"
	"time"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/shopspring/decimal"
)

type planningService struct {
	packages repository.PlanningPackageRepo
	uow      db.UnitOfWork
	clock    domain.Clock
	user     string
	observer UseCaseObserver
}

func NewPlanningService(
	packages repository.PlanningPackageRepo,
	uow db.UnitOfWork,
	clock domain.Clock,
	user string,
	observers ...UseCaseObserver,
) PlanningService {
	return &planningService{
		packages: packages,
		uow:      uow,
		clock:    clock,
		user:     user,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *planningService) mutate(ctx context.Context, name, id string, fields map[string]any, fn func(p *domain.PlanningPackage, now time.Time) error) (pkg *domain.PlanningPackage, err error) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["planning_package_id"] = id
	defer observe(ctx, s.observer, name, fields)(&err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLitePlanningPackageRepo(tx)
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p, s.clock.Now()); err != nil {
			return err
		}
		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		pkg = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *planningService) Create(ctx context.Context, in domain.NewPlanningPackageInput) (pkg *domain.PlanningPackage, err error) {
	defer observe(ctx, s.observer, "create-planning-package", map[string]any{"project_id": in.ProjectID, "code": in.Code})(&err)

	in.ID = ensureID(in.ID)
	in.CreatedBy = domain.CoalesceStr(in.CreatedBy, s.user)
	pkg, err = domain.NewPlanningPackage(in, s.clock.Now())
	if err != nil {
		return nil, err
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := requireLiveProject(ctx, repository.NewSQLiteProjectRepo(tx), in.ProjectID); err != nil {
			return err
		}
		return repository.NewSQLitePlanningPackageRepo(tx).Create(ctx, pkg)
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *planningService) Get(ctx context.Context, id string) (*domain.PlanningPackage, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, domain.NotFoundErr("planning package", id)
	}
	return p, nil
}

func (s *planningService) List(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.PlanningPackage, error) {
	return s.packages.ListByProject(ctx, projectID, includeDeleted)
}

func (s *planningService) UpdateSchedule(ctx context.Context, id string, start, end, conversion *time.Time) (*domain.PlanningPackage, error) {
	return s.mutate(ctx, "update-planning-schedule", id, nil, func(p *domain.PlanningPackage, now time.Time) error {
		return p.UpdateSchedule(start, end, conversion, s.user, now)
	})
}

func (s *planningService) UpdateEstimate(ctx context.Context, id string, budget, hours decimal.Decimal) (*domain.PlanningPackage, error) {
	fields := map[string]any{"budget": budget.String(), "hours": hours.String()}
	return s.mutate(ctx, "update-planning-estimate", id, fields, func(p *domain.PlanningPackage, now time.Time) error {
		return p.UpdateEstimate(budget, hours, s.user, now)
	})
}

func (s *planningService) UpdatePriority(ctx context.Context, id string, priority int) (*domain.PlanningPackage, error) {
	return s.mutate(ctx, "update-planning-priority", id, map[string]any{"priority": priority},
		func(p *domain.PlanningPackage, now time.Time) error {
			return p.UpdatePriority(priority, s.user, now)
		})
}

func (s *planningService) Convert(ctx context.Context, id string) (*domain.PlanningPackage, error) {
	return s.mutate(ctx, "convert-planning-package", id, nil, func(p *domain.PlanningPackage, now time.Time) error {
		return p.ConvertToWorkPackage(s.user, now)
	})
}

func (s *planningService) Delete(ctx context.Context, id string) (*domain.PlanningPackage, error) {
	return s.mutate(ctx, "delete-planning-package", id, nil, func(p *domain.PlanningPackage, now time.Time) error {
		return p.SoftDelete(s.user, now)
	})
}

func (s *planningService) Status(p *domain.PlanningPackage) domain.PlanningPackageStatus {
	return p.Status(s.clock.Now())
}
