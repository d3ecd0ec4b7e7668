package cli

import (
	"fmt"

	"github.com/alexanderramin/wbsledger/internal/cli/formatter"
	"github.com/alexanderramin/wbsledger/internal/service"
	"github.com/spf13/cobra"
)

func newImportCmd(app *App) *cobra.Command {
	var opts service.ImportOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a WBS and draft budgets from a JSON or YAML file",
		Long: `Import reads a project, its WBS nodes and draft budgets from FILE.
Files ending in .yaml or .yml are read as YAML, anything else as JSON.
A node's parent is implied by its code: 1.2.3 is created under 1.2.
The whole file is stored or, on any error, nothing is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.DefaultCurrency = app.DefaultCurrency
			res, err := app.Import.ImportFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			verb := "Imported"
			if res.DryRun {
				verb = "Checked (dry run, nothing saved)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %d nodes, %d budgets, %d items [%s]\n",
				verb, res.Project.Code, res.Project.Name,
				res.NodeCount, res.BudgetCount, res.ItemCount, formatter.TruncID(res.Project.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ProjectRef, "project", "", "import into this existing project (id or code)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "apply the import and roll it back")

	return cmd
}
