package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/cli/formatter"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newBudgetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"b"},
		Short:   "Manage budgets, their items and approval workflow",
		Long: `Manage budgets, their items and approval workflow.

BUDGET is a budget id or PROJECT:VERSION, e.g. CAP-001:v1.`,
	}

	cmd.AddCommand(
		newBudgetCreateCmd(app),
		newBudgetListCmd(app),
		newBudgetShowCmd(app),
		newBudgetApproveCmd(app),
		newBudgetRejectCmd(app),
		newBudgetFinancialsCmd(app),
		newBudgetDetailsCmd(app),
		newBudgetFXCmd(app),
		newBudgetReviseCmd(app),
		newBudgetRecordRevisionCmd(app),
		newBudgetApproveRevisionCmd(app),
		newBudgetItemCmd(app),
	)

	transitions := []struct {
		use, short string
		action     service.BudgetAction
		verb       string
	}{
		{"submit", "Submit a draft budget for review", service.ActionSubmit, "Submitted"},
		{"draft", "Return a rejected budget to draft", service.ActionReturnToDraft, "Returned to draft"},
		{"baseline", "Mark an approved budget as the project baseline", service.ActionSetBaseline, "Baselined"},
		{"unbaseline", "Clear the baseline flag", service.ActionRemoveBaseline, "Removed baseline from"},
		{"lock", "Lock a budget against changes", service.ActionLock, "Locked"},
		{"unlock", "Unlock a budget", service.ActionUnlock, "Unlocked"},
		{"delete", "Soft-delete a budget", service.ActionDelete, "Deleted"},
	}
	for _, tr := range transitions {
		cmd.AddCommand(&cobra.Command{
			Use:   tr.use + " BUDGET",
			Short: tr.short,
			Args:  cobra.ExactArgs(1),
			RunE: budgetRunE(app, tr.verb, func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
				return app.Budgets.Transition(cmd.Context(), id, tr.action)
			}),
		})
	}

	return cmd
}

// resolveBudgetID turns a budget reference into an id. "PROJECT:VERSION"
// matches the budget's version case-insensitively.
func resolveBudgetID(ctx context.Context, app *App, ref string) (string, error) {
	projectRef, version, ok := strings.Cut(ref, ":")
	if !ok {
		return ref, nil
	}
	p, err := app.Projects.Resolve(ctx, projectRef)
	if err != nil {
		return "", err
	}
	budgets, err := app.Budgets.List(ctx, p.ID, false)
	if err != nil {
		return "", err
	}
	for _, b := range budgets {
		if strings.EqualFold(b.Version, version) {
			return b.ID, nil
		}
	}
	return "", domain.NotFoundErr("budget", ref)
}

// resolveItemID accepts an item id or an active item code.
func resolveItemID(ctx context.Context, app *App, budgetID, ref string) (string, error) {
	b, err := app.Budgets.Get(ctx, budgetID)
	if err != nil {
		return "", err
	}
	for _, it := range b.ActiveItems() {
		if it.ID == ref || strings.EqualFold(it.ItemCode, ref) {
			return it.ID, nil
		}
	}
	return "", domain.NotFoundErr("budget item", ref)
}

func budgetRunE(app *App, verb string, fn func(cmd *cobra.Command, id string, args []string) (*domain.Budget, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := resolveBudgetID(cmd.Context(), app, args[0])
		if err != nil {
			return err
		}
		b, err := fn(cmd, id, args[1:])
		if err != nil {
			return err
		}
		printBudget(cmd, verb, b)
		return nil
	}
}

func printBudget(cmd *cobra.Command, verb string, b *domain.Budget) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s budget %s %s (%s) [%s]\n",
		verb, b.Version, b.Name, b.Status, b.ID)
}

func newBudgetCreateCmd(app *App) *cobra.Command {
	var (
		in                      domain.NewBudgetInput
		budgetType              string
		total, contingency, mrp decimalFlag
		rate                    decimalFlag
	)

	cmd := &cobra.Command{
		Use:   "create PROJECT",
		Short: "Create a draft budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in.ProjectID = p.ID
			if in.Currency == "" {
				in.Currency = p.Currency
			}
			in.Type = domain.BudgetType(budgetType)
			in.TotalAmount = total.Decimal()
			in.ContingencyPct = contingency.Decimal()
			in.ManagementReservePct = mrp.Decimal()
			if cmd.Flags().Changed("fx") {
				in.ExchangeRate = decimal.NewNullDecimal(rate.Decimal())
			}
			b, err := app.Budgets.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			printBudget(cmd, "Created", b)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "budget name (required)")
	cmd.Flags().StringVar(&in.Version, "version", "", "version label (default v1)")
	cmd.Flags().StringVar(&in.Description, "description", "", "budget description")
	cmd.Flags().StringVar(&budgetType, "type", string(domain.BudgetOriginal), "original, revised, supplemental or forecast")
	cmd.Flags().StringVar(&in.Currency, "currency", "", "budget currency (default: project currency)")
	cmd.Flags().Var(&total, "total", "total amount")
	cmd.Flags().Var(&contingency, "contingency", "contingency percentage")
	cmd.Flags().Var(&mrp, "reserve", "management reserve percentage")
	cmd.Flags().Var(&rate, "fx", "exchange rate to the base currency (default 1)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBudgetListCmd(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list PROJECT",
		Short: "List a project's budgets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Projects.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			budgets, err := app.Budgets.List(cmd.Context(), p.ID, all)
			if err != nil {
				return err
			}
			if len(budgets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No budgets found.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBudgetList(budgets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deleted budgets")

	return cmd
}

func newBudgetShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show BUDGET",
		Short: "Show a budget with its items and revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBudgetID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			b, err := app.Budgets.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBudget(b))
			return nil
		},
	}
}

func newBudgetApproveCmd(app *App) *cobra.Command {
	var comments string

	cmd := &cobra.Command{
		Use:   "approve BUDGET",
		Short: "Approve a budget under review",
		Args:  cobra.ExactArgs(1),
		RunE: budgetRunE(app, "Approved", func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
			return app.Budgets.Approve(cmd.Context(), id, comments)
		}),
	}

	cmd.Flags().StringVar(&comments, "comments", "", "approval comments")

	return cmd
}

func newBudgetRejectCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject BUDGET",
		Short: "Reject a budget under review",
		Args:  cobra.ExactArgs(1),
		RunE: budgetRunE(app, "Rejected", func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
			return app.Budgets.Reject(cmd.Context(), id, reason)
		}),
	}

	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newBudgetFinancialsCmd(app *App) *cobra.Command {
	var total, contingency, reserve decimalFlag

	cmd := &cobra.Command{
		Use:   "financials BUDGET",
		Short: "Set total amount, contingency and management reserve",
		Long:  "Set total amount, contingency and management reserve. Flags not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: budgetRunE(app, "Updated", func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
			current, err := app.Budgets.Get(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			t, c, r := current.TotalAmount, current.ContingencyPct, current.ManagementReservePct
			flags := cmd.Flags()
			if flags.Changed("total") {
				t = total.Decimal()
			}
			if flags.Changed("contingency") {
				c = contingency.Decimal()
			}
			if flags.Changed("reserve") {
				r = reserve.Decimal()
			}
			return app.Budgets.UpdateFinancials(cmd.Context(), id, t, c, r)
		}),
	}

	cmd.Flags().Var(&total, "total", "total amount")
	cmd.Flags().Var(&contingency, "contingency", "contingency percentage")
	cmd.Flags().Var(&reserve, "reserve", "management reserve percentage")

	return cmd
}

func newBudgetDetailsCmd(app *App) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "details BUDGET",
		Short: "Update a budget's name and description",
		Args:  cobra.ExactArgs(1),
		RunE: budgetRunE(app, "Updated", func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
			current, err := app.Budgets.Get(cmd.Context(), id)
			if err != nil {
				return nil, err
			}
			n, d := current.Name, current.Description
			if cmd.Flags().Changed("name") {
				n = name
			}
			if cmd.Flags().Changed("description") {
				d = description
			}
			return app.Budgets.UpdateDetails(cmd.Context(), id, n, d)
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "budget name")
	cmd.Flags().StringVar(&description, "description", "", "budget description")

	return cmd
}

func newBudgetFXCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fx BUDGET CURRENCY RATE",
		Short: "Change a budget's currency and exchange rate",
		Args:  cobra.ExactArgs(3),
		RunE: budgetRunE(app, "Updated", func(cmd *cobra.Command, id string, rest []string) (*domain.Budget, error) {
			rate, err := parseAmount(rest[1])
			if err != nil {
				return nil, err
			}
			return app.Budgets.UpdateExchangeRate(cmd.Context(), id, rest[0], rate)
		}),
	}
}

func newBudgetReviseCmd(app *App) *cobra.Command {
	var version, reason string

	cmd := &cobra.Command{
		Use:   "revise BUDGET",
		Short: "Create a new draft budget derived from an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: budgetRunE(app, "Created", func(cmd *cobra.Command, id string, _ []string) (*domain.Budget, error) {
			return app.Budgets.Revise(cmd.Context(), id, version, reason)
		}),
	}

	cmd.Flags().StringVar(&version, "version", "", "version label (default: parent version with -R1)")
	cmd.Flags().StringVar(&reason, "reason", "", "revision reason (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newBudgetRecordRevisionCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "record-revision BUDGET",
		Short: "Record the current total as the next revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBudgetID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			r, err := app.Budgets.RecordRevision(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded revision %d: %s → %s\n",
				r.RevisionNumber, r.PreviousAmount.StringFixed(2), r.NewAmount.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "revision reason (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newBudgetApproveRevisionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-revision BUDGET NUMBER",
		Short: "Approve a recorded revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBudgetID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid revision number %q: %w", args[1], domain.ErrValidation)
			}
			r, err := app.Budgets.ApproveRevision(cmd.Context(), id, number)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved revision %d\n", r.RevisionNumber)
			return nil
		},
	}
}

func newBudgetItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage budget line items",
		Long:  "Manage budget line items. ITEM is an item id or item code.",
	}
	cmd.AddCommand(
		newBudgetItemAddCmd(app),
		newBudgetItemAmountCmd(app),
		newBudgetItemRemoveCmd(app),
	)
	return cmd
}

func printItem(cmd *cobra.Command, verb string, it *domain.BudgetItem) {
	suffix := ""
	if it.IsAmountOverridden {
		suffix = " (override)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s item %s %s%s [%s]\n",
		verb, it.ItemCode, it.Amount.StringFixed(2), suffix, it.ID)
}

func newBudgetItemAddCmd(app *App) *cobra.Command {
	var (
		in                domain.BudgetItemInput
		costType          string
		qty, rate, amount decimalFlag
		controlAccount    string
	)

	cmd := &cobra.Command{
		Use:   "add BUDGET",
		Short: "Add a line item to a draft budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveBudgetID(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			in.CostType = domain.CostType(costType)
			in.ControlAccountID = controlAccount
			in.Quantity = qty.Decimal()
			in.UnitRate = rate.Decimal()
			if cmd.Flags().Changed("amount") {
				a := amount.Decimal()
				in.Amount = &a
			}
			it, err := app.Budgets.AddItem(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			printItem(cmd, "Added", it)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ItemCode, "code", "", "item code, unique within the budget (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "item description (required)")
	cmd.Flags().StringVar(&costType, "cost-type", string(domain.CostOther), "labor, material, equipment, subcontract or other")
	cmd.Flags().StringVar(&in.CostCategory, "category", "", "cost category")
	cmd.Flags().Var(&qty, "qty", "quantity")
	cmd.Flags().Var(&rate, "rate", "unit rate")
	cmd.Flags().Var(&amount, "amount", "explicit amount, overriding quantity × rate")
	cmd.Flags().StringVar(&in.UnitOfMeasure, "uom", "", "unit of measure")
	cmd.Flags().StringVar(&in.AccountingCode, "account", "", "accounting code")
	cmd.Flags().StringVar(&controlAccount, "control-account", "", "control account id")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "notes")
	cmd.Flags().IntVar(&in.SortOrder, "sort", 0, "sort order")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func newBudgetItemAmountCmd(app *App) *cobra.Command {
	var qty, rate, override decimalFlag

	cmd := &cobra.Command{
		Use:   "amount BUDGET ITEM",
		Short: "Recompute an item from quantity and rate, or override its amount",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			budgetID, err := resolveBudgetID(ctx, app, args[0])
			if err != nil {
				return err
			}
			itemID, err := resolveItemID(ctx, app, budgetID, args[1])
			if err != nil {
				return err
			}

			var it *domain.BudgetItem
			if cmd.Flags().Changed("override") {
				it, err = app.Budgets.OverrideItemAmount(ctx, budgetID, itemID, override.Decimal())
			} else {
				it, err = app.Budgets.UpdateItemAmount(ctx, budgetID, itemID, qty.Decimal(), rate.Decimal())
			}
			if err != nil {
				return err
			}
			printItem(cmd, "Updated", it)
			return nil
		},
	}

	cmd.Flags().Var(&qty, "qty", "quantity")
	cmd.Flags().Var(&rate, "rate", "unit rate")
	cmd.Flags().Var(&override, "override", "explicit amount")
	cmd.MarkFlagsRequiredTogether("qty", "rate")
	cmd.MarkFlagsMutuallyExclusive("qty", "override")
	cmd.MarkFlagsMutuallyExclusive("rate", "override")
	cmd.MarkFlagsOneRequired("qty", "override")

	return cmd
}

func newBudgetItemRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove BUDGET ITEM",
		Short: "Soft-delete a line item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			budgetID, err := resolveBudgetID(ctx, app, args[0])
			if err != nil {
				return err
			}
			itemID, err := resolveItemID(ctx, app, budgetID, args[1])
			if err != nil {
				return err
			}
			b, err := app.Budgets.RemoveItem(ctx, budgetID, itemID)
			if err != nil {
				return err
			}
			printBudget(cmd, "Removed item from", b)
			return nil
		},
	}
}
