package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/wbsledger/internal/cli"
	"github.com/alexanderramin/wbsledger/internal/config"
	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/alexanderramin/wbsledger/internal/service"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMessage(err))
		os.Exit(cli.ExitCode(err))
	}
}

func run() error {
	// Config file: WBSLEDGER_CONFIG or ~/.wbsledger/config.yaml
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Plain output when piped or NO_COLOR is set
	fd := os.Stdout.Fd()
	if os.Getenv("NO_COLOR") != "" || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	projectRepo := repository.NewSQLiteProjectRepo(database)
	nodeRepo := repository.NewSQLiteWBSNodeRepo(database)
	budgetRepo := repository.NewSQLiteBudgetRepo(database)
	packageRepo := repository.NewSQLitePlanningPackageRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database)

	var observers []service.UseCaseObserver
	if cfg.Log.UseCases {
		observers = append(observers, service.NewLogUseCaseObserver(os.Stderr, cfg.Log.Format))
	}
	clock := domain.SystemClock{}

	app := &cli.App{
		Projects:        service.NewProjectService(projectRepo, uow, clock, observers...),
		WBS:             service.NewWBSService(nodeRepo, projectRepo, uow, clock, cfg.User, observers...),
		Budgets:         service.NewBudgetService(budgetRepo, uow, clock, cfg.User, observers...),
		Planning:        service.NewPlanningService(packageRepo, uow, clock, cfg.User, observers...),
		DefaultCurrency: cfg.Currency,
	}
	app.Import = service.NewImportService(app.Projects, app.WBS, app.Budgets, uow, observers...)

	return cli.NewRootCmd(app).Execute()
}
