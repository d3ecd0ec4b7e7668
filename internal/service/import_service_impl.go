package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/importer"
	"github.com/shopspring/decimal"
)

var errDryRun = errors.New("dry run")

type importService struct {
	projects ProjectService
	wbs      WBSService
	budgets  BudgetService
	uow      db.UnitOfWork
	observer UseCaseObserver
}

// NewImportService builds the file import on top of the other services. uow
// must open the transaction the services' own units of work join.
func NewImportService(
	projects ProjectService,
	wbs WBSService,
	budgets BudgetService,
	uow db.UnitOfWork,
	observers ...UseCaseObserver,
) ImportService {
	return &importService{
		projects: projects,
		wbs:      wbs,
		budgets:  budgets,
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *importService) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	schema, err := importer.LoadImportSchema(path)
	if err != nil {
		return nil, fmt.Errorf("loading import file: %w", err)
	}
	return s.Import(ctx, schema, opts)
}

func (s *importService) Import(ctx context.Context, schema *importer.ImportSchema, opts ImportOptions) (result *ImportResult, err error) {
	fields := map[string]any{"project": opts.ProjectRef, "dry_run": opts.DryRun}
	defer observe(ctx, s.observer, "import", fields)(&err)

	if errs := importer.ValidateImportSchema(schema); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}
	plan := importer.Convert(schema)

	// Reads of an existing project happen before the transaction opens.
	var (
		project  *domain.Project
		existing *domain.Tree
	)
	switch {
	case opts.ProjectRef != "" && plan.Project != nil:
		return nil, formatValidationErrors([]error{
			fmt.Errorf("the file defines project %s; drop it or import without a target project", plan.Project.Code),
		})
	case opts.ProjectRef != "":
		project, err = s.projects.Resolve(ctx, opts.ProjectRef)
		if err != nil {
			return nil, err
		}
		existing, err = s.wbs.Tree(ctx, project.ID)
		if err != nil {
			return nil, err
		}
	case plan.Project == nil:
		return nil, formatValidationErrors([]error{
			fmt.Errorf("project is required when no target project is given"),
		})
	default:
		existing = domain.NewTree(nil)
	}

	result = &ImportResult{DryRun: opts.DryRun}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, _ db.DBTX) error {
		if project == nil {
			p := plan.Project
			newProject, err := s.projects.Create(ctx, CreateProjectInput{
				Code:        p.Code,
				Name:        p.Name,
				Description: p.Description,
				Currency:    domain.CoalesceStr(p.Currency, opts.DefaultCurrency),
				StartDate:   p.StartDate,
			})
			if err != nil {
				return fmt.Errorf("creating project: %w", err)
			}
			project = newProject
		}
		result.Project = project

		created := make(map[string]string, len(plan.Nodes))
		for _, n := range plan.Nodes {
			id, err := s.importNode(ctx, project.ID, n, created, existing)
			if err != nil {
				return fmt.Errorf("creating node %s: %w", n.Input.Code, err)
			}
			created[n.Input.Code] = id
			result.NodeCount++
		}

		for _, b := range plan.Budgets {
			b.Input.ProjectID = project.ID
			budget, err := s.budgets.Create(ctx, b.Input)
			if err != nil {
				return fmt.Errorf("creating budget %q: %w", b.Input.Name, err)
			}
			for _, item := range b.Items {
				if _, err := s.budgets.AddItem(ctx, budget.ID, item); err != nil {
					return fmt.Errorf("adding item %s to budget %s: %w", item.ItemCode, budget.Version, err)
				}
				result.ItemCount++
			}
			result.BudgetCount++
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		fields["nodes"] = result.NodeCount
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	fields["project_id"] = project.ID
	fields["nodes"] = result.NodeCount
	return result, nil
}

// importNode creates one node under its parent and records the facts the
// file carries for it. It returns the new node's id.
func (s *importService) importNode(ctx context.Context, projectID string, n importer.NodePlan, created map[string]string, existing *domain.Tree) (string, error) {
	var (
		node *domain.WBSNode
		err  error
	)
	if n.ParentCode == "" {
		node, err = s.wbs.AddRoot(ctx, projectID, n.Input)
	} else {
		parentID, ok := created[n.ParentCode]
		if !ok {
			parent, found := existing.FindByCode(n.ParentCode)
			if !found || parent.IsDeleted {
				return "", domain.NotFoundErr("wbs node", n.ParentCode)
			}
			parentID = parent.ID
		}
		node, err = s.wbs.AddChild(ctx, parentID, n.Input)
	}
	if err != nil {
		return "", err
	}

	if n.Budget != nil {
		if _, err := s.wbs.UpdateBudget(ctx, node.ID, *n.Budget, ""); err != nil {
			return "", err
		}
	}
	if n.PlannedStart != nil && n.PlannedEnd != nil {
		if _, err := s.wbs.UpdateSchedule(ctx, node.ID, *n.PlannedStart, *n.PlannedEnd); err != nil {
			return "", err
		}
	}
	if n.Progress != nil {
		if _, err := s.wbs.UpdateProgress(ctx, node.ID, *n.Progress, nil); err != nil {
			return "", err
		}
	}
	if n.Estimate != nil || n.ConvertBy != nil {
		estimate := decimal.Zero
		if n.Estimate != nil {
			estimate = *n.Estimate
		}
		if _, err := s.wbs.UpdatePlanningEstimate(ctx, node.ID, estimate, n.ConvertBy); err != nil {
			return "", err
		}
	}
	return node.ID, nil
}

func formatValidationErrors(errs []error) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d problem(s):", len(errs))
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return &domain.Error{Kind: domain.ErrValidation, Entity: "import file", Msg: b.String()}
}
