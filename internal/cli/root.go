package cli

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/alexanderramin/wbsledger/internal/service"
	"github.com/spf13/cobra"
)

// App holds the services every command needs.
type App struct {
	Projects service.ProjectService
	WBS      service.WBSService
	Budgets  service.BudgetService
	Planning service.PlanningService
	Import   service.ImportService

	// DefaultCurrency is used for new projects created without --currency.
	DefaultCurrency string
}

// NewRootCmd creates the top-level cobra command with all subcommands.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "wbsledger",
		Short: "WBS hierarchy and budget ledger for project controls",
		Long: `wbsledger keeps a project's work breakdown structure and its budget
ledger: work packages with earned-value facts, planning packages awaiting
detail, and budgets moving through review, approval and baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newProjectCmd(app),
		newWBSCmd(app),
		newBudgetCmd(app),
		newPlanningCmd(app),
		newImportCmd(app),
	)

	return root
}

// Exit codes by error kind.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 2
	ExitInvalidState = 3
	ExitNotFound     = 4
	ExitConflict     = 5
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrValidation):
		return ExitValidation
	case errors.Is(err, domain.ErrInvalidState):
		return ExitInvalidState
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, repository.ErrConflict):
		return ExitConflict
	default:
		return ExitFailure
	}
}

// ErrorMessage renders err for the terminal.
func ErrorMessage(err error) string {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Sprintf("Error: %v (reload and retry)", err)
	}
	return fmt.Sprintf("Error: %v", err)
}
