package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const entityRevision = "budget revision"

// BudgetRevision is the audit record of one budget amount change. Only the
// approval fields change after creation.
type BudgetRevision struct {
	ID             string
	BudgetID       string
	RevisionNumber int
	Reason         string
	PreviousAmount decimal.Decimal
	NewAmount      decimal.Decimal
	RevisionDate   time.Time
	RevisedBy      string
	IsApproved     bool
	ApprovedBy     *string
	ApprovedAt     *time.Time
}

// ChangeAmount is NewAmount - PreviousAmount.
func (r *BudgetRevision) ChangeAmount() decimal.Decimal {
	return r.NewAmount.Sub(r.PreviousAmount)
}

// Approve stamps the approval fields once.
func (r *BudgetRevision) Approve(approver string, now time.Time) error {
	if approver == "" {
		return validationErr(entityRevision, "approver is required")
	}
	if r.IsApproved {
		return invalidStateErr(entityRevision, r.ID, "approved", "approve", "revision %d is already approved", r.RevisionNumber)
	}
	r.IsApproved = true
	r.ApprovedBy = StrPtr(approver)
	r.ApprovedAt = TimePtr(now)
	return nil
}
