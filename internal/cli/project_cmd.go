package cli

import (
	"context"
	"fmt"

	"github.com/alexanderramin/wbsledger/internal/cli/formatter"
	"github.com/alexanderramin/wbsledger/internal/service"
	"github.com/spf13/cobra"
)

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"p"},
		Short:   "Manage projects",
	}

	cmd.AddCommand(
		newProjectAddCmd(app),
		newProjectListCmd(app),
		newProjectShowCmd(app),
	)

	return cmd
}

func newProjectAddCmd(app *App) *cobra.Command {
	var (
		code        string
		name        string
		currency    string
		description string
		start       dateFlag
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if currency == "" {
				currency = app.DefaultCurrency
			}
			p, err := app.Projects.Create(cmd.Context(), service.CreateProjectInput{
				Code:        code,
				Name:        name,
				Description: description,
				Currency:    currency,
				StartDate:   start.Time(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s %s [%s]\n", p.Code, p.Name, formatter.TruncID(p.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "project code, e.g. CAP-001 (required)")
	cmd.Flags().StringVar(&name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency (defaults to the configured currency)")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().Var(&start, "start", "start date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := app.Projects.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProjectList(projects))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include inactive projects")

	return cmd
}

func newProjectShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProject(p))
			return nil
		},
	}
}

// projectCurrency returns the currency of projectID, or "" when the
// project cannot be loaded.
func projectCurrency(ctx context.Context, app *App, projectID string) string {
	p, err := app.Projects.Resolve(ctx, projectID)
	if err != nil {
		return ""
	}
	return p.Currency
}
