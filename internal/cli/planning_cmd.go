package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/cli/formatter"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/spf13/cobra"
)

func newPlanningCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "planning",
		Aliases: []string{"pp"},
		Short:   "Manage planning packages awaiting detailed planning",
		Long: `Manage planning packages awaiting detailed planning.

PACKAGE is a planning package id or PROJECT:CODE.`,
	}

	cmd.AddCommand(
		newPlanningAddCmd(app),
		newPlanningListCmd(app),
		newPlanningShowCmd(app),
		newPlanningScheduleCmd(app),
		newPlanningEstimateCmd(app),
		newPlanningPriorityCmd(app),
		newPlanningConvertCmd(app),
		newPlanningDeleteCmd(app),
	)

	return cmd
}

func resolvePackageID(ctx context.Context, app *App, ref string) (string, error) {
	projectRef, code, ok := strings.Cut(ref, ":")
	if !ok {
		return ref, nil
	}
	p, err := app.Projects.Resolve(ctx, projectRef)
	if err != nil {
		return "", err
	}
	pkgs, err := app.Planning.List(ctx, p.ID, false)
	if err != nil {
		return "", err
	}
	for _, pkg := range pkgs {
		if strings.EqualFold(pkg.Code, code) {
			return pkg.ID, nil
		}
	}
	return "", domain.NotFoundErr("planning package", ref)
}

func packageRunE(app *App, verb string, fn func(cmd *cobra.Command, id string, args []string) (*domain.PlanningPackage, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := resolvePackageID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		p, err := fn(cmd, id, args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s planning package %s %s (%s) [%s]\n",
			verb, p.Code, p.Name, app.Planning.Status(p), p.ID)
		return nil
	}
}

func newPlanningAddCmd(app *App) *cobra.Command {
	var (
		in            domain.NewPlanningPackageInput
		budget, hours decimalFlag
	)

	cmd := &cobra.Command{
		Use:   "add PROJECT",
		Short: "Create a planning package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in.ProjectID = p.ID
			in.EstimatedBudget = budget.Decimal()
			in.EstimatedHours = hours.Decimal()
			pkg, err := app.Planning.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created planning package %s %s [%s]\n", pkg.Code, pkg.Name, pkg.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Code, "code", "", "package code (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "package name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "package description")
	cmd.Flags().StringVar(&in.ControlAccountID, "control-account", "", "control account id")
	cmd.Flags().StringVar(&in.PhaseID, "phase", "", "phase id")
	cmd.Flags().Var(&budget, "budget", "estimated budget")
	cmd.Flags().Var(&hours, "hours", "estimated hours")
	cmd.Flags().IntVar(&in.Priority, "priority", 0, fmt.Sprintf("priority 1-99 (default %d)", domain.DefaultPlanningPriority))
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlanningListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list PROJECT",
		Short: "List planning packages by priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pkgs, err := app.Planning.List(cmd.Context(), p.ID, all)
			if err != nil {
				return err
			}
			if len(pkgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No planning packages found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlanningList(pkgs, p.Currency, app.Planning.Status))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deleted and converted packages")

	return cmd
}

func newPlanningShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show PACKAGE",
		Short: "Show a planning package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolvePackageID(ctx, app, args[0])
			if err != nil {
				return err
			}
			p, err := app.Planning.Get(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlanningPackage(p, projectCurrency(ctx, app, p.ProjectID), app.Planning.Status(p)))
			return nil
		},
	}
}

func newPlanningScheduleCmd(app *App) *cobra.Command {
	var start, end, convertBy dateFlag

	cmd := &cobra.Command{
		Use:   "schedule PACKAGE",
		Short: "Set planned dates and the conversion deadline",
		Long:  "Set planned dates and the conversion deadline. Dates not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: packageRunE(app, "Scheduled", func(cmd *cobra.Command, id string, _ []string) (*domain.PlanningPackage, error) {
			current, err := app.Planning.Get(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			s, e, c := current.PlannedStart, current.PlannedEnd, current.PlannedConversionDate
			flags := cmd.Flags()
			if flags.Changed("start") {
				s = start.Time()
			}
			if flags.Changed("end") {
				e = end.Time()
			}
			if flags.Changed("convert-by") {
				c = convertBy.Time()
			}
			return app.Planning.UpdateSchedule(cmd.Context(), id, s, e, c)
		}),
	}

	cmd.Flags().Var(&start, "start", "planned start (YYYY-MM-DD)")
	cmd.Flags().Var(&end, "end", "planned end (YYYY-MM-DD)")
	cmd.Flags().Var(&convertBy, "convert-by", "planned conversion date (YYYY-MM-DD)")

	return cmd
}

func newPlanningEstimateCmd(app *App) *cobra.Command {
	var budget, hours decimalFlag

	cmd := &cobra.Command{
		Use:   "estimate PACKAGE",
		Short: "Update the estimated budget and hours",
		Args:  cobra.ExactArgs(1),
		RunE: packageRunE(app, "Estimated", func(cmd *cobra.Command, id string, _ []string) (*domain.PlanningPackage, error) {
			current, err := app.Planning.Get(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			b, h := current.EstimatedBudget, current.EstimatedHours
			if cmd.Flags().Changed("budget") {
				b = budget.Decimal()
			}
			if cmd.Flags().Changed("hours") {
				h = hours.Decimal()
			}
			return app.Planning.UpdateEstimate(cmd.Context(), id, b, h)
		}),
	}

	cmd.Flags().Var(&budget, "budget", "estimated budget")
	cmd.Flags().Var(&hours, "hours", "estimated hours")

	return cmd
}

func newPlanningPriorityCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "priority PACKAGE N",
		Short: "Set priority (1 is most urgent, 99 least)",
		Args:  cobra.ExactArgs(2),
		RunE: packageRunE(app, "Prioritised", func(cmd *cobra.Command, id string, rest []string) (*domain.PlanningPackage, error) {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, fmt.Errorf("invalid priority %q: %w", rest[0], domain.ErrValidation)
			}
			return app.Planning.UpdatePriority(cmd.Context(), id, n)
		}),
	}
}

func newPlanningConvertCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "convert PACKAGE",
		Short: "Mark a planning package as converted to work packages",
		Args:  cobra.ExactArgs(1),
		RunE: packageRunE(app, "Converted", func(cmd *cobra.Command, id string, _ []string) (*domain.PlanningPackage, error) {
			return app.Planning.Convert(cmd.Context(), id)
		}),
	}
}

func newPlanningDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PACKAGE",
		Short: "Soft-delete a planning package",
		Args:  cobra.ExactArgs(1),
		RunE: packageRunE(app, "Deleted", func(cmd *cobra.Command, id string, _ []string) (*domain.PlanningPackage, error) {
			return app.Planning.Delete(cmd.Context(), id)
		}),
	}
}
