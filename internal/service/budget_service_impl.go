package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/shopspring/decimal"
)

type budgetService struct {
	budgets  repository.BudgetRepo
	uow      db.UnitOfWork
	clock    domain.Clock
	user     string
	observer UseCaseObserver
}

// NewBudgetService builds the budget ledger use cases. user is the acting
// user id stamped on every transition.
func NewBudgetService(
	budgets repository.BudgetRepo,
	uow db.UnitOfWork,
	clock domain.Clock,
	user string,
	observers ...UseCaseObserver,
) BudgetService {
	return &budgetService{
		budgets:  budgets,
		uow:      uow,
		clock:    clock,
		user:     user,
		observer: useCaseObserverOrNoop(observers),
	}
}

// mutate loads the budget, applies fn and persists it in one transaction.
func (s *budgetService) mutate(ctx context.Context, name, id string, fields map[string]any, fn func(b *domain.Budget, now time.Time) error) (budget *domain.Budget, err error) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["budget_id"] = id
	defer observe(ctx, s.observer, name, fields)(&err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteBudgetRepo(tx)
		b, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(b, s.clock.Now()); err != nil {
			return err
		}
		if err := repo.Update(ctx, b); err != nil {
			return err
		}
		budget = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["status"] = string(budget.Status)
	return budget, nil
}

func (s *budgetService) Create(ctx context.Context, in domain.NewBudgetInput) (budget *domain.Budget, err error) {
	defer observe(ctx, s.observer, "create-budget", map[string]any{"project_id": in.ProjectID, "version": in.Version})(&err)

	in.ID = ensureID(in.ID)
	in.CreatedBy = domain.CoalesceStr(in.CreatedBy, s.user)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		project, err := requireLiveProject(ctx, repository.NewSQLiteProjectRepo(tx), in.ProjectID)
		if err != nil {
			return err
		}
		in.Currency = domain.CoalesceStr(in.Currency, project.Currency)
		budget, err = domain.NewBudget(in, s.clock.Now())
		if err != nil {
			return err
		}
		repo := repository.NewSQLiteBudgetRepo(tx)
		existing, err := repo.ListByProject(ctx, budget.ProjectID, false)
		if err != nil {
			return err
		}
		if err := domain.EnsureVersionAvailable(existing, budget.Version, budget.ID); err != nil {
			return err
		}
		return repo.Create(ctx, budget)
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func (s *budgetService) Revise(ctx context.Context, parentID, version, reason string) (budget *domain.Budget, err error) {
	defer observe(ctx, s.observer, "revise-budget", map[string]any{"parent_id": parentID})(&err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repo := repository.NewSQLiteBudgetRepo(tx)
		parent, err := repo.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		if parent.IsDeleted {
			return domain.NotFoundErr("budget", parentID)
		}
		// Deleted revisions still count toward the label sequence.
		existing, err := repo.ListByProject(ctx, parent.ProjectID, true)
		if err != nil {
			return err
		}
		version = strings.TrimSpace(version)
		if version == "" {
			version = domain.NextRevisionVersion(parent, existing)
		}
		if err := domain.EnsureVersionAvailable(existing, version, ""); err != nil {
			return err
		}
		budget, err = domain.NewRevisionOf(parent, domain.RevisionInput{
			ID:         newID(),
			Version:    version,
			Reason:     reason,
			RevisionID: newID(),
			CreatedBy:  s.user,
		}, s.clock.Now())
		if err != nil {
			return err
		}
		return repo.Create(ctx, budget)
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func (s *budgetService) Get(ctx context.Context, id string) (*domain.Budget, error) {
	b, err := s.budgets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.IsDeleted {
		return nil, domain.NotFoundErr("budget", id)
	}
	return b, nil
}

func (s *budgetService) List(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.Budget, error) {
	return s.budgets.ListByProject(ctx, projectID, includeDeleted)
}

func (s *budgetService) Transition(ctx context.Context, id string, action BudgetAction) (*domain.Budget, error) {
	var apply func(b *domain.Budget, now time.Time) error
	switch action {
	case ActionSubmit:
		apply = func(b *domain.Budget, now time.Time) error { return b.SubmitForApproval(s.user, now) }
	case ActionReturnToDraft:
		apply = func(b *domain.Budget, now time.Time) error { return b.ReturnToDraft(s.user, now) }
	case ActionSetBaseline:
		apply = func(b *domain.Budget, now time.Time) error { return b.SetAsBaseline(s.user, now) }
	case ActionRemoveBaseline:
		apply = func(b *domain.Budget, now time.Time) error { return b.RemoveBaseline(s.user, now) }
	case ActionLock:
		apply = func(b *domain.Budget, now time.Time) error { return b.Lock(s.user, now) }
	case ActionUnlock:
		apply = func(b *domain.Budget, now time.Time) error { return b.Unlock(s.user, now) }
	case ActionDelete:
		apply = func(b *domain.Budget, now time.Time) error { return b.SoftDelete(s.user, now) }
	default:
		return nil, fmt.Errorf("unknown budget action %q: %w", action, domain.ErrValidation)
	}
	return s.mutate(ctx, "budget-"+string(action), id, nil, apply)
}

func (s *budgetService) Approve(ctx context.Context, id, comments string) (*domain.Budget, error) {
	return s.mutate(ctx, "budget-approve", id, nil, func(b *domain.Budget, now time.Time) error {
		return b.Approve(s.user, comments, now)
	})
}

func (s *budgetService) Reject(ctx context.Context, id, reason string) (*domain.Budget, error) {
	return s.mutate(ctx, "budget-reject", id, nil, func(b *domain.Budget, now time.Time) error {
		return b.Reject(s.user, reason, now)
	})
}

func (s *budgetService) UpdateFinancials(ctx context.Context, id string, total, contingencyPct, reservePct decimal.Decimal) (*domain.Budget, error) {
	fields := map[string]any{"total": total.String()}
	return s.mutate(ctx, "update-budget-financials", id, fields, func(b *domain.Budget, now time.Time) error {
		return b.UpdateFinancials(total, contingencyPct, reservePct, s.user, now)
	})
}

func (s *budgetService) UpdateDetails(ctx context.Context, id, name, description string) (*domain.Budget, error) {
	return s.mutate(ctx, "update-budget-details", id, nil, func(b *domain.Budget, now time.Time) error {
		return b.UpdateDetails(name, description, s.user, now)
	})
}

func (s *budgetService) UpdateExchangeRate(ctx context.Context, id, currency string, rate decimal.Decimal) (*domain.Budget, error) {
	fields := map[string]any{"currency": currency, "rate": rate.String()}
	return s.mutate(ctx, "update-budget-exchange-rate", id, fields, func(b *domain.Budget, now time.Time) error {
		return b.UpdateExchangeRate(currency, rate, s.user, now)
	})
}

func (s *budgetService) AddItem(ctx context.Context, budgetID string, in domain.BudgetItemInput) (*domain.BudgetItem, error) {
	in.ID = ensureID(in.ID)
	var item *domain.BudgetItem
	_, err := s.mutate(ctx, "add-budget-item", budgetID, map[string]any{"item_code": in.ItemCode},
		func(b *domain.Budget, now time.Time) error {
			var err error
			item, err = b.AddBudgetItem(in, s.user, now)
			return err
		})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *budgetService) UpdateItemAmount(ctx context.Context, budgetID, itemID string, quantity, unitRate decimal.Decimal) (*domain.BudgetItem, error) {
	var item *domain.BudgetItem
	_, err := s.mutate(ctx, "update-budget-item", budgetID, map[string]any{"item_id": itemID},
		func(b *domain.Budget, now time.Time) error {
			var err error
			item, err = b.UpdateBudgetItemAmount(itemID, quantity, unitRate, s.user, now)
			return err
		})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *budgetService) OverrideItemAmount(ctx context.Context, budgetID, itemID string, amount decimal.Decimal) (*domain.BudgetItem, error) {
	var item *domain.BudgetItem
	_, err := s.mutate(ctx, "override-budget-item", budgetID, map[string]any{"item_id": itemID, "amount": amount.String()},
		func(b *domain.Budget, now time.Time) error {
			var err error
			item, err = b.OverrideBudgetItemAmount(itemID, amount, s.user, now)
			return err
		})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *budgetService) RemoveItem(ctx context.Context, budgetID, itemID string) (*domain.Budget, error) {
	return s.mutate(ctx, "remove-budget-item", budgetID, map[string]any{"item_id": itemID},
		func(b *domain.Budget, now time.Time) error {
			return b.RemoveBudgetItem(itemID, s.user, now)
		})
}

// RecordRevision appends the next revision number, so callers never pick it.
func (s *budgetService) RecordRevision(ctx context.Context, id, reason string) (*domain.BudgetRevision, error) {
	var rev *domain.BudgetRevision
	_, err := s.mutate(ctx, "record-budget-revision", id, nil, func(b *domain.Budget, now time.Time) error {
		var err error
		rev, err = b.CreateRevisionRecord(newID(), b.RevisionCount+1, reason, s.user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func (s *budgetService) ApproveRevision(ctx context.Context, id string, number int) (*domain.BudgetRevision, error) {
	var rev *domain.BudgetRevision
	_, err := s.mutate(ctx, "approve-budget-revision", id, map[string]any{"revision": number},
		func(b *domain.Budget, now time.Time) error {
			var err error
			rev, err = b.ApproveRevision(number, s.user, now)
			return err
		})
	if err != nil {
		return nil, err
	}
	return rev, nil
}
