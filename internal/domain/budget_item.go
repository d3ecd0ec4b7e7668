package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityBudgetItem = "budget item"

// MaxItemCodeLength bounds BudgetItem.ItemCode.
const MaxItemCodeLength = 50

type BudgetItem struct {
	ID                 string
	BudgetID           string
	ControlAccountID   *string
	ItemCode           string
	Description        string
	CostType           CostType
	CostCategory       string
	Quantity           decimal.Decimal
	UnitRate           decimal.Decimal
	Amount             decimal.Decimal
	IsAmountOverridden bool
	UnitOfMeasure      string
	AccountingCode     string
	Notes              string
	SortOrder          int
	IsDeleted          bool
	DeletedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BudgetItemInput describes a line to add to a budget. Amount overrides
// Quantity x UnitRate when set.
type BudgetItemInput struct {
	ID               string
	ControlAccountID string
	ItemCode         string
	Description      string
	CostType         CostType
	CostCategory     string
	Quantity         decimal.Decimal
	UnitRate         decimal.Decimal
	Amount           *decimal.Decimal
	UnitOfMeasure    string
	AccountingCode   string
	Notes            string
	SortOrder        int
}

func newBudgetItem(budgetID string, in BudgetItemInput, now time.Time) (*BudgetItem, error) {
	code := strings.TrimSpace(in.ItemCode)
	if code == "" {
		return nil, validationErr(entityBudgetItem, "item code is required")
	}
	if len(code) > MaxItemCodeLength {
		return nil, validationErr(entityBudgetItem, "item code exceeds %d characters", MaxItemCodeLength)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, validationErr(entityBudgetItem, "description is required")
	}
	costType := in.CostType
	if costType == "" {
		costType = CostOther
	}
	if !ValidCostTypes[costType] {
		return nil, validationErr(entityBudgetItem, "unknown cost type %q", in.CostType)
	}
	if in.Quantity.IsNegative() || in.UnitRate.IsNegative() {
		return nil, validationErr(entityBudgetItem, "quantity and unit rate must be >= 0")
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, validationErr(entityBudgetItem, "amount must be >= 0, got %s", in.Amount)
	}

	item := &BudgetItem{
		ID:               in.ID,
		BudgetID:         budgetID,
		ControlAccountID: StrPtr(in.ControlAccountID),
		ItemCode:         code,
		Description:      strings.TrimSpace(in.Description),
		CostType:         costType,
		CostCategory:     strings.TrimSpace(in.CostCategory),
		Quantity:         in.Quantity,
		UnitRate:         in.UnitRate,
		Amount:           in.Quantity.Mul(in.UnitRate),
		UnitOfMeasure:    strings.TrimSpace(in.UnitOfMeasure),
		AccountingCode:   strings.TrimSpace(in.AccountingCode),
		Notes:            in.Notes,
		SortOrder:        in.SortOrder,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.Amount != nil {
		item.Amount = *in.Amount
		item.IsAmountOverridden = true
	}
	return item, nil
}

// UpdateAmount sets quantity and unit rate and recomputes Amount as their
// product, dropping any explicit override.
func (i *BudgetItem) UpdateAmount(quantity, unitRate decimal.Decimal, now time.Time) error {
	if quantity.IsNegative() || unitRate.IsNegative() {
		return validationErr(entityBudgetItem, "quantity and unit rate must be >= 0")
	}
	i.Quantity = quantity
	i.UnitRate = unitRate
	i.Amount = quantity.Mul(unitRate)
	i.IsAmountOverridden = false
	i.UpdatedAt = now
	return nil
}

// OverrideAmount pins Amount regardless of quantity and unit rate.
func (i *BudgetItem) OverrideAmount(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return validationErr(entityBudgetItem, "amount must be >= 0, got %s", amount)
	}
	i.Amount = amount
	i.IsAmountOverridden = true
	i.UpdatedAt = now
	return nil
}
