package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
)

type projectService struct {
	projects repository.ProjectRepo
	uow      db.UnitOfWork
	clock    domain.Clock
	observer UseCaseObserver
}

func NewProjectService(projects repository.ProjectRepo, uow db.UnitOfWork, clock domain.Clock, observers ...UseCaseObserver) ProjectService {
	return &projectService{
		projects: projects,
		uow:      uow,
		clock:    clock,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *projectService) Create(ctx context.Context, in CreateProjectInput) (project *domain.Project, err error) {
	defer observe(ctx, s.observer, "create-project", map[string]any{"code": in.Code})(&err)

	project, err = domain.NewProject(newID(), in.Code, in.Name, in.Currency, in.StartDate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	project.Description = strings.TrimSpace(in.Description)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteProjectRepo(tx)
		if existing, err := repo.GetByCode(ctx, project.Code); err == nil {
			return fmt.Errorf("project code %s is already used by %s: %w", project.Code, existing.Name, domain.ErrValidation)
		} else if !domain.IsNotFound(err) {
			return err
		}
		return repo.Create(ctx, project)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Resolve(ctx context.Context, ref string) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.projects.GetByCode(ctx, ref)
}

func (s *projectService) List(ctx context.Context, includeInactive bool) ([]*domain.Project, error) {
	return s.projects.List(ctx, includeInactive)
}
