package service

import (
	"context"
	"time"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/shopspring/decimal"
)

type wbsService struct {
	nodes    repository.WBSNodeRepo
	projects repository.ProjectRepo
	uow      db.UnitOfWork
	clock    domain.Clock
	user     string
	observer UseCaseObserver
}

// NewWBSService builds the tree use cases. user is recorded as the actor of
// deletes.
func NewWBSService(
	nodes repository.WBSNodeRepo,
	projects repository.ProjectRepo,
	uow db.UnitOfWork,
	clock domain.Clock,
	user string,
	observers ...UseCaseObserver,
) WBSService {
	return &wbsService{
		nodes:    nodes,
		projects: projects,
		uow:      uow,
		clock:    clock,
		user:     user,
		observer: useCaseObserverOrNoop(observers),
	}
}

// treeOp mutates the loaded tree and returns every node it changed; the
// first one is the operation's result.
type treeOp func(t *domain.Tree, now time.Time) ([]*domain.WBSNode, error)

// mutate loads the arena of nodeID's project, applies op and writes the
// changed nodes back, all inside one transaction.
func (s *wbsService) mutate(ctx context.Context, name, nodeID string, fields map[string]any, op treeOp) (node *domain.WBSNode, err error) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["node_id"] = nodeID
	defer observe(ctx, s.observer, name, fields)(&err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteWBSNodeRepo(tx)
		target, err := repo.GetByID(ctx, nodeID)
		if err != nil {
			return err
		}
		all, err := repo.ListByProject(ctx, target.ProjectID)
		if err != nil {
			return err
		}
		changed, err := op(domain.NewTree(all), s.clock.Now())
		if err != nil {
			return err
		}
		for _, n := range changed {
			if err := repo.Update(ctx, n); err != nil {
				return err
			}
		}
		node = changed[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["changed"] = node.ID
	return node, nil
}

// single adapts a tree operation that changes exactly one node.
func single(fn func(t *domain.Tree, now time.Time) (*domain.WBSNode, error)) treeOp {
	return func(t *domain.Tree, now time.Time) ([]*domain.WBSNode, error) {
		n, err := fn(t, now)
		if err != nil {
			return nil, err
		}
		return []*domain.WBSNode{n}, nil
	}
}

// workPackageOp runs fn against the detail of a live work-package node.
func workPackageOp(id, op string, fn func(d *domain.WorkPackageDetail, now time.Time) error) treeOp {
	return single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
		n, err := t.Get(id)
		if err != nil {
			return nil, err
		}
		d, err := n.RequireWorkPackage(op)
		if err != nil {
			return nil, err
		}
		if err := fn(d, now); err != nil {
			return nil, err
		}
		n.UpdatedAt = now
		return n, nil
	})
}

func (s *wbsService) AddRoot(ctx context.Context, projectID string, in domain.NewNodeInput) (node *domain.WBSNode, err error) {
	defer observe(ctx, s.observer, "add-wbs-root", map[string]any{"project_id": projectID, "code": in.Code})(&err)

	in.ID = ensureID(in.ID)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := requireLiveProject(ctx, repository.NewSQLiteProjectRepo(tx), projectID); err != nil {
			return err
		}
		repo := repository.NewSQLiteWBSNodeRepo(tx)
		all, err := repo.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		node, err = domain.NewTree(all).AddRoot(projectID, in, s.clock.Now())
		if err != nil {
			return err
		}
		return repo.Create(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *wbsService) AddChild(ctx context.Context, parentID string, in domain.NewNodeInput) (node *domain.WBSNode, err error) {
	defer observe(ctx, s.observer, "add-wbs-node", map[string]any{"parent_id": parentID, "code": in.Code, "kind": string(in.Kind)})(&err)

	in.ID = ensureID(in.ID)
	if in.Kind == domain.NodeWorkPackage {
		in.DetailID = ensureID(in.DetailID)
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteWBSNodeRepo(tx)
		parent, err := repo.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		project, err := requireLiveProject(ctx, repository.NewSQLiteProjectRepo(tx), parent.ProjectID)
		if err != nil {
			return err
		}
		in.Currency = domain.CoalesceStr(in.Currency, project.Currency)
		all, err := repo.ListByProject(ctx, parent.ProjectID)
		if err != nil {
			return err
		}
		node, err = domain.NewTree(all).AddChild(parentID, in, s.clock.Now())
		if err != nil {
			return err
		}
		return repo.Create(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *wbsService) GetNode(ctx context.Context, id string) (*domain.WBSNode, error) {
	n, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsDeleted {
		return nil, domain.NotFoundErr("wbs node", id)
	}
	return n, nil
}

func (s *wbsService) Tree(ctx context.Context, projectID string) (*domain.Tree, error) {
	all, err := s.nodes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return domain.NewTree(all), nil
}

func (s *wbsService) Rollup(ctx context.Context, id string) (domain.NodeRollup, error) {
	n, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return domain.NodeRollup{}, err
	}
	t, err := s.Tree(ctx, n.ProjectID)
	if err != nil {
		return domain.NodeRollup{}, err
	}
	return t.Rollup(id)
}

func (s *wbsService) Rename(ctx context.Context, id, name string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "rename-wbs-node", id, map[string]any{"name": name},
		func(t *domain.Tree, now time.Time) ([]*domain.WBSNode, error) {
			return t.Rename(id, name, now)
		})
}

func (s *wbsService) UpdateCode(ctx context.Context, id, code string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "recode-wbs-node", id, map[string]any{"code": code},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.UpdateCode(id, code, now)
		}))
}

func (s *wbsService) Describe(ctx context.Context, id, description string, dict domain.WBSDictionary) (*domain.WBSNode, error) {
	return s.mutate(ctx, "describe-wbs-node", id, nil,
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			n, err := t.Get(id)
			if err != nil {
				return nil, err
			}
			n.UpdateDescription(description, now)
			n.UpdateDictionary(dict, now)
			return n, nil
		}))
}

// AssignControlAccount sets the control account; an empty id clears it.
func (s *wbsService) AssignControlAccount(ctx context.Context, id, controlAccountID string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "assign-control-account", id, map[string]any{"control_account_id": controlAccountID},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			n, err := t.Get(id)
			if err != nil {
				return nil, err
			}
			n.AssignControlAccount(controlAccountID, now)
			return n, nil
		}))
}

func (s *wbsService) currencyFor(ctx context.Context, id string) (string, error) {
	n, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	p, err := s.projects.GetByID(ctx, n.ProjectID)
	if err != nil {
		return "", err
	}
	return p.Currency, nil
}

func (s *wbsService) ConvertToWorkPackage(ctx context.Context, id, controlAccountID string, method domain.ProgressMethod) (*domain.WBSNode, error) {
	currency, err := s.currencyFor(ctx, id)
	if err != nil {
		return nil, err
	}
	detailID := newID()
	return s.mutate(ctx, "convert-to-work-package", id, map[string]any{"method": string(method)},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.ConvertToWorkPackage(id, controlAccountID, method, detailID, currency, now)
		}))
}

func (s *wbsService) ConvertToPlanningPackage(ctx context.Context, id, controlAccountID string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "convert-to-planning-package", id, nil,
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.ConvertToPlanningPackage(id, controlAccountID, now)
		}))
}

func (s *wbsService) ConvertPlanningPackageToWorkPackage(ctx context.Context, id string, method domain.ProgressMethod) (*domain.WBSNode, error) {
	currency, err := s.currencyFor(ctx, id)
	if err != nil {
		return nil, err
	}
	detailID := newID()
	return s.mutate(ctx, "convert-planning-to-work-package", id, map[string]any{"method": string(method)},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.ConvertPlanningPackageToWorkPackage(id, method, detailID, currency, now)
		}))
}

func (s *wbsService) UpdatePlanningEstimate(ctx context.Context, id string, budget decimal.Decimal, conversion *time.Time) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-planning-estimate", id, map[string]any{"budget": budget.String()},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.UpdatePlanningEstimate(id, budget, conversion, now)
		}))
}

func (s *wbsService) Delete(ctx context.Context, id string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "delete-wbs-node", id, nil,
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.Delete(id, s.user, now)
		}))
}

func (s *wbsService) Restore(ctx context.Context, id string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "restore-wbs-node", id, nil,
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.Restore(id, now)
		}))
}

func (s *wbsService) AddCBSMapping(ctx context.Context, id, cbsID string, pct decimal.Decimal, primary bool) (*domain.WBSNode, error) {
	mappingID := newID()
	return s.mutate(ctx, "add-cbs-mapping", id, map[string]any{"cbs_id": cbsID, "pct": pct.String()},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.AddCBSMapping(id, mappingID, cbsID, pct, primary, now)
		}))
}

func (s *wbsService) RemoveCBSMapping(ctx context.Context, id, cbsID string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "remove-cbs-mapping", id, map[string]any{"cbs_id": cbsID},
		single(func(t *domain.Tree, now time.Time) (*domain.WBSNode, error) {
			return t.RemoveCBSMapping(id, cbsID, now)
		}))
}

func (s *wbsService) UpdateProgress(ctx context.Context, id string, pct float64, physical *float64) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-progress", id, map[string]any{"pct": pct},
		workPackageOp(id, "update progress", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateProgress(pct, physical, now)
		}))
}

func (s *wbsService) SetStatus(ctx context.Context, id string, status domain.WorkPackageStatus) (*domain.WBSNode, error) {
	return s.mutate(ctx, "set-work-package-status", id, map[string]any{"status": string(status)},
		workPackageOp(id, "set status", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.SetStatus(status, now)
		}))
}

func (s *wbsService) UpdateEarnedValue(ctx context.Context, id string, earned, planned decimal.Decimal) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-earned-value", id, map[string]any{"ev": earned.String(), "pv": planned.String()},
		workPackageOp(id, "update earned value", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateEarnedValue(earned, planned, now)
		}))
}

func (s *wbsService) UpdateActualCost(ctx context.Context, id string, actual decimal.Decimal) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-actual-cost", id, map[string]any{"ac": actual.String()},
		workPackageOp(id, "update actual cost", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateActualCost(actual, now)
		}))
}

func (s *wbsService) UpdateCommittedCost(ctx context.Context, id string, committed decimal.Decimal) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-committed-cost", id, map[string]any{"committed": committed.String()},
		workPackageOp(id, "update committed cost", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateCommittedCost(committed, now)
		}))
}

func (s *wbsService) UpdateBudget(ctx context.Context, id string, amount decimal.Decimal, currency string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-work-package-budget", id, map[string]any{"amount": amount.String()},
		workPackageOp(id, "update budget", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateBudget(amount, currency, now)
		}))
}

func (s *wbsService) UpdateSchedule(ctx context.Context, id string, start, end time.Time) (*domain.WBSNode, error) {
	return s.mutate(ctx, "update-work-package-schedule", id, nil,
		workPackageOp(id, "update schedule", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateSchedule(start, end, now)
		}))
}

func (s *wbsService) UpdateFloat(ctx context.Context, id string, totalFloat, freeFloat int, critical bool) (*domain.WBSNode, error) {
	fields := map[string]any{"total_float": totalFloat, "free_float": freeFloat, "critical": critical}
	return s.mutate(ctx, "update-float", id, fields,
		workPackageOp(id, "update float", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.UpdateFloat(totalFloat, freeFloat, critical, now)
		}))
}

func (s *wbsService) AssignResponsibility(ctx context.Context, id, userID, disciplineID string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "assign-responsibility", id, map[string]any{"responsible": userID},
		workPackageOp(id, "assign responsibility", func(d *domain.WorkPackageDetail, now time.Time) error {
			d.AssignResponsibility(userID, disciplineID, now)
			return nil
		}))
}

func (s *wbsService) Baseline(ctx context.Context, id string) (*domain.WBSNode, error) {
	return s.mutate(ctx, "baseline-work-package", id, nil,
		workPackageOp(id, "baseline", func(d *domain.WorkPackageDetail, now time.Time) error {
			return d.Baseline(now)
		}))
}
