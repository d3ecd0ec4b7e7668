package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/cli/formatter"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const nodeRefHelp = `NODE is a node id or PROJECT:CODE, e.g. CAP-001:1.2.`

func newWBSCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wbs",
		Short: "Build and maintain the work breakdown structure",
		Long:  "Build and maintain the work breakdown structure.\n\n" + nodeRefHelp,
	}

	cmd.AddCommand(
		newWBSRootCmd(app),
		newWBSAddCmd(app),
		newWBSTreeCmd(app),
		newWBSShowCmd(app),
		newWBSRenameCmd(app),
		newWBSRecodeCmd(app),
		newWBSDescribeCmd(app),
		newWBSAssignCACmd(app),
		newWBSConvertWPCmd(app),
		newWBSConvertPPCmd(app),
		newWBSConvertPPWPCmd(app),
		newWBSEstimateCmd(app),
		newWBSDeleteCmd(app),
		newWBSRestoreCmd(app),
		newWBSCBSCmd(app),
	)
	cmd.AddCommand(newWorkPackageCmds(app)...)

	return cmd
}

// resolveNodeID turns a node reference into an id. "PROJECT:CODE" is looked
// up in the project's tree, deleted nodes included so they can be restored.
func resolveNodeID(ctx context.Context, app *App, ref string) (string, error) {
	projectRef, code, ok := strings.Cut(ref, ":")
	if !ok {
		return ref, nil
	}
	p, err := app.Projects.Resolve(ctx, projectRef)
	if err != nil {
		return "", err
	}
	t, err := app.WBS.Tree(ctx, p.ID)
	if err != nil {
		return "", err
	}
	n, found := t.FindByCode(code)
	if !found {
		return "", domain.NotFoundErr("wbs node", ref)
	}
	return n.ID, nil
}

// nodeRunE resolves args[0] as a node and hands its id to fn, printing the
// returned node with verb.
func nodeRunE(app *App, verb string, fn func(cmd *cobra.Command, id string, args []string) (*domain.WBSNode, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := resolveNodeID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		n, err := fn(cmd, id, args[1:])
		if err != nil {
			return err
		}
		printNode(cmd, verb, n)
		return nil
	}
}

func printNode(cmd *cobra.Command, verb string, n *domain.WBSNode) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s [%s]\n",
		verb, formatter.KindBadge(n.Kind()), n.Code, n.Name, n.ID)
}

func parseAmount(s string) (decimal.Decimal, error) {
	var f decimalFlag
	if err := f.Set(s); err != nil {
		return decimal.Zero, err
	}
	return f.Decimal(), nil
}

func newWBSRootCmd(app *App) *cobra.Command {
	var in domain.NewNodeInput

	cmd := &cobra.Command{
		Use:   "root PROJECT",
		Short: "Add a top-level summary node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := app.WBS.AddRoot(cmd.Context(), p.ID, in)
			if err != nil {
				return err
			}
			printNode(cmd, "Added", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Code, "code", "", "dotted WBS code, e.g. 1 (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "node name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "node description")
	cmd.Flags().IntVar(&in.Sequence, "seq", 0, "sibling sequence (default: next)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newWBSAddCmd(app *App) *cobra.Command {
	var (
		in     domain.NewNodeInput
		kind   string
		method string
	)

	cmd := &cobra.Command{
		Use:   "add PARENT",
		Short: "Add a child node under a summary node",
		Long:  "Add a child node under a summary node.\n\nPARENT is a node id or PROJECT:CODE.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := resolveNodeID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			in.Kind = domain.NodeKind(kind)
			in.ProgressMethod = domain.ProgressMethod(method)
			n, err := app.WBS.AddChild(cmd.Context(), parentID, in)
			if err != nil {
				return err
			}
			printNode(cmd, "Added", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Code, "code", "", "dotted WBS code, e.g. 1.2 (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "node name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "node description")
	cmd.Flags().StringVar(&kind, "kind", string(domain.NodeSummary), "summary, work_package or planning_package")
	cmd.Flags().StringVar(&method, "method", "", "progress method for work packages (default percent_complete)")
	cmd.Flags().StringVar(&in.ControlAccountID, "control-account", "", "control account id")
	cmd.Flags().IntVar(&in.Sequence, "seq", 0, "sibling sequence (default: next)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newWBSTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree PROJECT",
		Short: "Show the WBS as a tree with rolled-up budget and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := app.WBS.Tree(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatWBSTree(p, t))
			return nil
		},
	}
}

func newWBSShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show NODE",
		Short: "Show a node with its rollup and work-package facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveNodeID(ctx, app, args[0])
			if err != nil {
				return err
			}
			n, err := app.WBS.GetNode(ctx, id)
			if err != nil {
				return err
			}
			rollup, err := app.WBS.Rollup(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatNode(n, rollup, projectCurrency(ctx, app, n.ProjectID)))
			return nil
		},
	}
}

func newWBSRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename NODE NAME",
		Short: "Rename a node and refresh its subtree paths",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Renamed", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.Rename(cmd.Context(), id, rest[0])
		}),
	}
}

func newWBSRecodeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recode NODE CODE",
		Short: "Change a node's WBS code",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Recoded", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.UpdateCode(cmd.Context(), id, rest[0])
		}),
	}
}

func newWBSDescribeCmd(app *App) *cobra.Command {
	var (
		description string
		dict        domain.WBSDictionary
	)

	cmd := &cobra.Command{
		Use:   "describe NODE",
		Short: "Update a node's description and WBS dictionary entry",
		Long:  "Update a node's description and WBS dictionary entry. Only the flags given are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Described", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			current, err := app.WBS.GetNode(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			merged := current.Dictionary
			desc := current.Description
			flags := cmd.Flags()
			overlay := func(name string, dst *string, v string) {
				if flags.Changed(name) {
					*dst = v
				}
			}
			overlay("description", &desc, description)
			overlay("deliverable", &merged.DeliverableDescription, dict.DeliverableDescription)
			overlay("acceptance", &merged.AcceptanceCriteria, dict.AcceptanceCriteria)
			overlay("assumptions", &merged.Assumptions, dict.Assumptions)
			overlay("constraints", &merged.Constraints, dict.Constraints)
			overlay("inclusions", &merged.Inclusions, dict.Inclusions)
			overlay("exclusions", &merged.Exclusions, dict.Exclusions)
			return app.WBS.Describe(cmd.Context(), id, desc, merged)
		}),
	}

	cmd.Flags().StringVar(&description, "description", "", "node description")
	cmd.Flags().StringVar(&dict.DeliverableDescription, "deliverable", "", "deliverable description")
	cmd.Flags().StringVar(&dict.AcceptanceCriteria, "acceptance", "", "acceptance criteria")
	cmd.Flags().StringVar(&dict.Assumptions, "assumptions", "", "assumptions")
	cmd.Flags().StringVar(&dict.Constraints, "constraints", "", "constraints")
	cmd.Flags().StringVar(&dict.Inclusions, "inclusions", "", "scope inclusions")
	cmd.Flags().StringVar(&dict.Exclusions, "exclusions", "", "scope exclusions")

	return cmd
}

func newWBSAssignCACmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-ca NODE CONTROL_ACCOUNT",
		Short: "Assign a node to a control account",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Assigned", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.AssignControlAccount(cmd.Context(), id, rest[0])
		}),
	}
}

func newWBSConvertWPCmd(app *App) *cobra.Command {
	var controlAccount, method string

	cmd := &cobra.Command{
		Use:   "convert-wp NODE",
		Short: "Convert a leaf summary node into a work package",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Converted", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.ConvertToWorkPackage(cmd.Context(), id, controlAccount, domain.ProgressMethod(method))
		}),
	}

	cmd.Flags().StringVar(&controlAccount, "control-account", "", "control account id")
	cmd.Flags().StringVar(&method, "method", "", "progress method (default percent_complete)")

	return cmd
}

func newWBSConvertPPCmd(app *App) *cobra.Command {
	var controlAccount string

	cmd := &cobra.Command{
		Use:   "convert-pp NODE",
		Short: "Convert a leaf summary node into a planning package",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Converted", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.ConvertToPlanningPackage(cmd.Context(), id, controlAccount)
		}),
	}

	cmd.Flags().StringVar(&controlAccount, "control-account", "", "control account id")

	return cmd
}

func newWBSConvertPPWPCmd(app *App) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "convert-pp-wp NODE",
		Short: "Detail a planning package into a work package, keeping its estimate as budget",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Converted", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.ConvertPlanningPackageToWorkPackage(cmd.Context(), id, domain.ProgressMethod(method))
		}),
	}

	cmd.Flags().StringVar(&method, "method", "", "progress method (default percent_complete)")

	return cmd
}

func newWBSEstimateCmd(app *App) *cobra.Command {
	var (
		budget    decimalFlag
		convertBy dateFlag
	)

	cmd := &cobra.Command{
		Use:   "estimate NODE",
		Short: "Set a planning package node's estimated budget and conversion date",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Estimated", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.UpdatePlanningEstimate(cmd.Context(), id, budget.Decimal(), convertBy.Time())
		}),
	}

	cmd.Flags().Var(&budget, "budget", "estimated budget (required)")
	cmd.Flags().Var(&convertBy, "convert-by", "planned conversion date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("budget")

	return cmd
}

func newWBSDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NODE",
		Short: "Soft-delete a node without live children",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Deleted", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.Delete(cmd.Context(), id)
		}),
	}
}

func newWBSRestoreCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore NODE",
		Short: "Restore a soft-deleted node",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Restored", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.Restore(cmd.Context(), id)
		}),
	}
}

func newWBSCBSCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cbs",
		Short: "Allocate a node to cost breakdown structure elements",
	}

	var (
		pct     decimalFlag
		primary bool
	)
	add := &cobra.Command{
		Use:   "add NODE CBS",
		Short: "Allocate a percentage of the node to a CBS element",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Allocated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.AddCBSMapping(cmd.Context(), id, rest[0], pct.Decimal(), primary)
		}),
	}
	add.Flags().Var(&pct, "pct", "allocation percentage, 0-100 (required)")
	add.Flags().BoolVar(&primary, "primary", false, "mark as the primary allocation")
	_ = add.MarkFlagRequired("pct")

	remove := &cobra.Command{
		Use:   "remove NODE CBS",
		Short: "End the node's allocation to a CBS element",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Deallocated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.RemoveCBSMapping(cmd.Context(), id, rest[0])
		}),
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// newWorkPackageCmds builds the commands that record facts on a work
// package node.
func newWorkPackageCmds(app *App) []*cobra.Command {
	var physical float64
	progress := &cobra.Command{
		Use:   "progress NODE PCT",
		Short: "Record percent complete (0-100)",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			pct, err := strconv.ParseFloat(rest[0], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid percent %q: %w", rest[0], domain.ErrValidation)
			}
			var phys *float64
			if cmd.Flags().Changed("physical") {
				phys = &physical
			}
			return app.WBS.UpdateProgress(cmd.Context(), id, pct, phys)
		}),
	}
	progress.Flags().Float64Var(&physical, "physical", 0, "physical percent complete")

	status := &cobra.Command{
		Use:   "status NODE STATUS",
		Short: "Put a work package on_hold, cancelled, or resume it with in_progress",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			return app.WBS.SetStatus(cmd.Context(), id, domain.WorkPackageStatus(rest[0]))
		}),
	}

	var earned, planned decimalFlag
	ev := &cobra.Command{
		Use:   "ev NODE",
		Short: "Record earned and planned value; derives SPI",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.UpdateEarnedValue(cmd.Context(), id, earned.Decimal(), planned.Decimal())
		}),
	}
	ev.Flags().Var(&earned, "earned", "earned value (required)")
	ev.Flags().Var(&planned, "planned", "planned value (required)")
	_ = ev.MarkFlagRequired("earned")
	_ = ev.MarkFlagRequired("planned")

	cost := &cobra.Command{
		Use:   "cost NODE AMOUNT",
		Short: "Record actual cost; derives CPI and forecast",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			amount, err := parseAmount(rest[0])
			if err != nil {
				return nil, err
			}
			return app.WBS.UpdateActualCost(cmd.Context(), id, amount)
		}),
	}

	committed := &cobra.Command{
		Use:   "committed NODE AMOUNT",
		Short: "Record committed cost",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			amount, err := parseAmount(rest[0])
			if err != nil {
				return nil, err
			}
			return app.WBS.UpdateCommittedCost(cmd.Context(), id, amount)
		}),
	}

	var currency string
	budget := &cobra.Command{
		Use:   "budget NODE AMOUNT",
		Short: "Set a work package budget",
		Args:  cobra.ExactArgs(2),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.WBSNode, error) {
			amount, err := parseAmount(rest[0])
			if err != nil {
				return nil, err
			}
			return app.WBS.UpdateBudget(cmd.Context(), id, amount, currency)
		}),
	}
	budget.Flags().StringVar(&currency, "currency", "", "budget currency (default: unchanged)")

	var start, end dateFlag
	schedule := &cobra.Command{
		Use:   "schedule NODE",
		Short: "Set planned start and end dates",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Scheduled", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.UpdateSchedule(cmd.Context(), id, *start.Time(), *end.Time())
		}),
	}
	schedule.Flags().Var(&start, "start", "planned start (YYYY-MM-DD, required)")
	schedule.Flags().Var(&end, "end", "planned end (YYYY-MM-DD, required)")
	_ = schedule.MarkFlagRequired("start")
	_ = schedule.MarkFlagRequired("end")

	var (
		totalFloat, freeFloat int
		critical              bool
	)
	floatCmd := &cobra.Command{
		Use:   "float NODE",
		Short: "Record schedule float and critical path flag",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Updated", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.UpdateFloat(cmd.Context(), id, totalFloat, freeFloat, critical)
		}),
	}
	floatCmd.Flags().IntVar(&totalFloat, "total", 0, "total float in days")
	floatCmd.Flags().IntVar(&freeFloat, "free", 0, "free float in days")
	floatCmd.Flags().BoolVar(&critical, "critical", false, "on the critical path")

	var user, discipline string
	assign := &cobra.Command{
		Use:   "assign NODE",
		Short: "Assign the responsible user and primary discipline",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Assigned", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.AssignResponsibility(cmd.Context(), id, user, discipline)
		}),
	}
	assign.Flags().StringVar(&user, "user", "", "responsible user id")
	assign.Flags().StringVar(&discipline, "discipline", "", "primary discipline id")

	baseline := &cobra.Command{
		Use:   "baseline NODE",
		Short: "Freeze the work package budget and schedule as its baseline",
		Args:  cobra.ExactArgs(1),
		RunE: nodeRunE(app, "Baselined", func(cmd *cobra.Command, id string, _ []string) (*domain.WBSNode, error) {
			return app.WBS.Baseline(cmd.Context(), id)
		}),
	}

	return []*cobra.Command{progress, status, ev, cost, committed, budget, schedule, floatCmd, assign, baseline}
}
