package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityBudget = "budget"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateCurrency checks for an ISO-4217 style three-letter code.
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(code) {
		return validationErr("currency", "currency %q must be three uppercase letters (e.g. USD)", code)
	}
	return nil
}

// Budget is the versioned, approvable financial envelope of a project.
type Budget struct {
	ID          string
	ProjectID   string
	Version     string
	Name        string
	Description string
	Status      BudgetStatus
	Type        BudgetType

	IsBaseline   bool
	BaselineDate *time.Time
	IsLocked     bool
	LockedBy     *string
	LockedAt     *time.Time

	Currency             string
	ExchangeRate         decimal.Decimal
	TotalAmount          decimal.Decimal
	ContingencyAmount    decimal.Decimal
	ContingencyPct       decimal.Decimal
	ManagementReserve    decimal.Decimal
	ManagementReservePct decimal.Decimal

	SubmittedBy      *string
	SubmittedAt      *time.Time
	ApprovedBy       *string
	ApprovedAt       *time.Time
	ApprovalComments string
	RejectedBy       *string
	RejectedAt       *time.Time
	RejectionReason  string

	ParentBudgetID *string
	RevisionCount  int

	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy *string

	Items     []*BudgetItem
	Revisions []*BudgetRevision

	RowVersion int
	CreatedBy  string
	UpdatedBy  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewBudgetInput describes a new draft budget.
type NewBudgetInput struct {
	ID                   string
	ProjectID            string
	Version              string
	Name                 string
	Description          string
	Type                 BudgetType
	Currency             string
	ExchangeRate         decimal.NullDecimal
	TotalAmount          decimal.Decimal
	ContingencyPct       decimal.Decimal
	ManagementReservePct decimal.Decimal
	CreatedBy            string
}

// NewBudget creates a draft budget. An absent exchange rate defaults to 1;
// an explicit one must be positive.
func NewBudget(in NewBudgetInput, now time.Time) (*Budget, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationErr(entityBudget, "name is required")
	}
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, validationErr(entityBudget, "project id is required")
	}
	btype := in.Type
	if btype == "" {
		btype = BudgetOriginal
	}
	if !ValidBudgetTypes[btype] {
		return nil, validationErr(entityBudget, "unknown budget type %q", in.Type)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := ValidateCurrency(currency); err != nil {
		return nil, err
	}
	rate := decimal.NewFromInt(1)
	if in.ExchangeRate.Valid {
		rate = in.ExchangeRate.Decimal
	}
	if err := validateFinancials(in.TotalAmount, in.ContingencyPct, in.ManagementReservePct); err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, validationErr(entityBudget, "exchange rate must be > 0, got %s", rate)
	}

	b := &Budget{
		ID:           in.ID,
		ProjectID:    in.ProjectID,
		Version:      CoalesceStr(strings.TrimSpace(in.Version), "v1"),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Status:       BudgetDraft,
		Type:         btype,
		Currency:     currency,
		ExchangeRate: rate,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.applyFinancials(in.TotalAmount, in.ContingencyPct, in.ManagementReservePct)
	return b, nil
}

// RevisionInput describes a budget created as a revision of a parent.
type RevisionInput struct {
	ID         string
	Version    string
	Reason     string
	RevisionID string
	CreatedBy  string
}

// NewRevisionOf copies the parent's scalar fields into a new draft linked
// through ParentBudgetID and records revision #1 on it.
func NewRevisionOf(parent *Budget, in RevisionInput, now time.Time) (*Budget, error) {
	if parent.IsDeleted {
		return nil, NotFoundErr(entityBudget, parent.ID)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, validationErr(entityBudget, "revision reason is required")
	}
	pid := parent.ID
	b := &Budget{
		ID:                   in.ID,
		ProjectID:            parent.ProjectID,
		Version:              CoalesceStr(strings.TrimSpace(in.Version), parent.Version+"-R1"),
		Name:                 parent.Name,
		Description:          parent.Description,
		Status:               BudgetDraft,
		Type:                 parent.Type,
		Currency:             parent.Currency,
		ExchangeRate:         parent.ExchangeRate,
		TotalAmount:          parent.TotalAmount,
		ContingencyAmount:    parent.ContingencyAmount,
		ContingencyPct:       parent.ContingencyPct,
		ManagementReserve:    parent.ManagementReserve,
		ManagementReservePct: parent.ManagementReservePct,
		ParentBudgetID:       &pid,
		CreatedBy:            in.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := b.appendRevision(in.RevisionID, 1, in.Reason, in.CreatedBy, parent.TotalAmount, now); err != nil {
		return nil, err
	}
	return b, nil
}

// EnsureVersionAvailable fails when a live budget in existing, other than
// selfID, already carries version. Versions compare without case.
func EnsureVersionAvailable(existing []*Budget, version, selfID string) error {
	for _, b := range existing {
		if b.IsDeleted || b.ID == selfID {
			continue
		}
		if strings.EqualFold(b.Version, version) {
			return validationErr(entityBudget, "version %q is already used by budget %s", version, b.ID)
		}
	}
	return nil
}

// NextRevisionVersion labels the next revision of parent as
// parent.Version-R<n>, where n counts the revisions already taken from it.
// Labels held by a live budget are skipped.
func NextRevisionVersion(parent *Budget, existing []*Budget) string {
	n := 1
	for _, b := range existing {
		if b.ParentBudgetID != nil && *b.ParentBudgetID == parent.ID {
			n++
		}
	}
	for {
		label := fmt.Sprintf("%s-R%d", parent.Version, n)
		if EnsureVersionAvailable(existing, label, "") == nil {
			return label
		}
		n++
	}
}

// TotalBudget is TotalAmount + ContingencyAmount + ManagementReserve.
func (b *Budget) TotalBudget() decimal.Decimal {
	return b.TotalAmount.Add(b.ContingencyAmount).Add(b.ManagementReserve)
}

// ActiveItems returns the items that have not been removed.
func (b *Budget) ActiveItems() []*BudgetItem {
	var out []*BudgetItem
	for _, it := range b.Items {
		if !it.IsDeleted {
			out = append(out, it)
		}
	}
	return out
}

// AllocatedAmount sums the amount of active items.
func (b *Budget) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.ActiveItems() {
		total = total.Add(it.Amount)
	}
	return total
}

// UnallocatedAmount is TotalAmount - AllocatedAmount (negative when over-allocated).
func (b *Budget) UnallocatedAmount() decimal.Decimal {
	return b.TotalAmount.Sub(b.AllocatedAmount())
}

// IsOverAllocated reports whether items exceed TotalAmount.
func (b *Budget) IsOverAllocated() bool {
	return b.AllocatedAmount().GreaterThan(b.TotalAmount)
}

// CanBeModified reports whether financial and descriptive fields are open.
func (b *Budget) CanBeModified() bool {
	return b.ValidateCanBeModified("modify") == nil
}

// ValidateCanBeModified is the single gate every mutator passes: the
// budget must be a live, unlocked draft.
func (b *Budget) ValidateCanBeModified(op string) error {
	switch {
	case b.IsDeleted:
		return NotFoundErr(entityBudget, b.ID)
	case b.IsLocked:
		return invalidStateErr(entityBudget, b.ID, "locked", op, "budget is locked")
	case b.Status != BudgetDraft:
		return invalidStateErr(entityBudget, b.ID, string(b.Status), op, "only draft budgets can be modified")
	}
	return nil
}

func (b *Budget) requireLive() error {
	if b.IsDeleted {
		return NotFoundErr(entityBudget, b.ID)
	}
	return nil
}

func (b *Budget) touch(userID string, now time.Time) {
	b.UpdatedBy = StrPtr(userID)
	b.UpdatedAt = now
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return validationErr(entityBudget, "user id is required")
	}
	return nil
}

// SubmitForApproval moves a draft to UnderReview.
func (b *Budget) SubmitForApproval(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetDraft {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "submit", "only draft budgets can be submitted")
	}
	b.Status = BudgetUnderReview
	b.SubmittedBy = StrPtr(userID)
	b.SubmittedAt = TimePtr(now)
	b.touch(userID, now)
	return nil
}

// Approve accepts a budget under review.
func (b *Budget) Approve(userID, comments string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetUnderReview {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "approve", "only budgets under review can be approved")
	}
	b.Status = BudgetApproved
	b.ApprovedBy = StrPtr(userID)
	b.ApprovedAt = TimePtr(now)
	b.ApprovalComments = strings.TrimSpace(comments)
	b.touch(userID, now)
	return nil
}

// Reject declines a budget under review. A reason is mandatory.
func (b *Budget) Reject(userID, reason string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return validationErr(entityBudget, "rejection reason is required")
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetUnderReview {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "reject", "only budgets under review can be rejected")
	}
	b.Status = BudgetRejected
	b.RejectedBy = StrPtr(userID)
	b.RejectedAt = TimePtr(now)
	b.RejectionReason = strings.TrimSpace(reason)
	b.touch(userID, now)
	return nil
}

// ReturnToDraft reopens a budget under review or rejected, clearing every
// submission and decision field.
func (b *Budget) ReturnToDraft(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetUnderReview && b.Status != BudgetRejected {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "return to draft",
			"only budgets under review or rejected can return to draft")
	}
	b.Status = BudgetDraft
	b.SubmittedBy, b.SubmittedAt = nil, nil
	b.ApprovedBy, b.ApprovedAt = nil, nil
	b.ApprovalComments = ""
	b.RejectedBy, b.RejectedAt = nil, nil
	b.RejectionReason = ""
	b.touch(userID, now)
	return nil
}

// SetAsBaseline marks an approved budget as the baseline.
func (b *Budget) SetAsBaseline(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetApproved {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "set baseline", "only approved budgets can be baselined")
	}
	if b.IsBaseline {
		return invalidStateErr(entityBudget, b.ID, "baseline", "set baseline", "budget is already the baseline")
	}
	b.IsBaseline = true
	b.BaselineDate = TimePtr(now)
	b.touch(userID, now)
	return nil
}

// RemoveBaseline clears the baseline flag of an unlocked budget.
func (b *Budget) RemoveBaseline(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if !b.IsBaseline {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "remove baseline", "budget is not a baseline")
	}
	if b.IsLocked {
		return invalidStateErr(entityBudget, b.ID, "locked", "remove baseline", "unlock the budget first")
	}
	b.IsBaseline = false
	b.BaselineDate = nil
	b.touch(userID, now)
	return nil
}

// Lock freezes an approved or baseline budget.
func (b *Budget) Lock(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status != BudgetApproved && !b.IsBaseline {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "lock", "only approved or baseline budgets can be locked")
	}
	if b.IsLocked {
		return invalidStateErr(entityBudget, b.ID, "locked", "lock", "budget is already locked")
	}
	b.IsLocked = true
	b.LockedBy = StrPtr(userID)
	b.LockedAt = TimePtr(now)
	b.touch(userID, now)
	return nil
}

// Unlock releases a lock.
func (b *Budget) Unlock(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if !b.IsLocked {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "unlock", "budget is not locked")
	}
	b.IsLocked = false
	b.LockedBy = nil
	b.LockedAt = nil
	b.touch(userID, now)
	return nil
}

func validateFinancials(total, contingencyPct, reservePct decimal.Decimal) error {
	if total.IsNegative() {
		return validationErr(entityBudget, "total amount must be >= 0, got %s", total)
	}
	if !validPercentage(contingencyPct) {
		return validationErr(entityBudget, "contingency percentage must be between 0 and 100, got %s", contingencyPct)
	}
	if !validPercentage(reservePct) {
		return validationErr(entityBudget, "management reserve percentage must be between 0 and 100, got %s", reservePct)
	}
	return nil
}

func (b *Budget) applyFinancials(total, contingencyPct, reservePct decimal.Decimal) {
	b.TotalAmount = total
	b.ContingencyPct = contingencyPct
	b.ManagementReservePct = reservePct
	b.ContingencyAmount = roundMoney(total.Mul(contingencyPct).Div(hundred))
	b.ManagementReserve = roundMoney(total.Mul(reservePct).Div(hundred))
}

// UpdateFinancials replaces the total and recomputes contingency and
// management reserve from their percentages.
func (b *Budget) UpdateFinancials(total, contingencyPct, reservePct decimal.Decimal, userID string, now time.Time) error {
	if err := b.ValidateCanBeModified("update financials"); err != nil {
		return err
	}
	if err := validateFinancials(total, contingencyPct, reservePct); err != nil {
		return err
	}
	b.applyFinancials(total, contingencyPct, reservePct)
	b.touch(userID, now)
	return nil
}

// UpdateDetails replaces the name and description.
func (b *Budget) UpdateDetails(name, description, userID string, now time.Time) error {
	if err := b.ValidateCanBeModified("update details"); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return validationErr(entityBudget, "name is required")
	}
	b.Name = strings.TrimSpace(name)
	b.Description = strings.TrimSpace(description)
	b.touch(userID, now)
	return nil
}

// UpdateExchangeRate replaces the currency and exchange rate.
func (b *Budget) UpdateExchangeRate(currency string, rate decimal.Decimal, userID string, now time.Time) error {
	if err := b.ValidateCanBeModified("update exchange rate"); err != nil {
		return err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := ValidateCurrency(currency); err != nil {
		return err
	}
	if !rate.IsPositive() {
		return validationErr(entityBudget, "exchange rate must be > 0, got %s", rate)
	}
	b.Currency = currency
	b.ExchangeRate = rate
	b.touch(userID, now)
	return nil
}

// Item returns the active item with the given id.
func (b *Budget) Item(itemID string) (*BudgetItem, error) {
	for _, it := range b.Items {
		if it.ID == itemID && !it.IsDeleted {
			return it, nil
		}
	}
	return nil, NotFoundErr(entityBudgetItem, itemID)
}

// AddBudgetItem appends a line. Item codes are unique among active items.
func (b *Budget) AddBudgetItem(in BudgetItemInput, userID string, now time.Time) (*BudgetItem, error) {
	if err := b.ValidateCanBeModified("add item"); err != nil {
		return nil, err
	}
	item, err := newBudgetItem(b.ID, in, now)
	if err != nil {
		return nil, err
	}
	for _, it := range b.ActiveItems() {
		if strings.EqualFold(it.ItemCode, item.ItemCode) {
			return nil, validationErr(entityBudgetItem, "item code %s already exists in budget %s", item.ItemCode, b.Version)
		}
	}
	if item.SortOrder == 0 {
		item.SortOrder = len(b.Items) + 1
	}
	b.Items = append(b.Items, item)
	b.touch(userID, now)
	return item, nil
}

// UpdateBudgetItemAmount recomputes an item's amount from quantity and rate.
func (b *Budget) UpdateBudgetItemAmount(itemID string, quantity, unitRate decimal.Decimal, userID string, now time.Time) (*BudgetItem, error) {
	if err := b.ValidateCanBeModified("update item"); err != nil {
		return nil, err
	}
	item, err := b.Item(itemID)
	if err != nil {
		return nil, err
	}
	if err := item.UpdateAmount(quantity, unitRate, now); err != nil {
		return nil, err
	}
	b.touch(userID, now)
	return item, nil
}

// OverrideBudgetItemAmount pins an item's amount.
func (b *Budget) OverrideBudgetItemAmount(itemID string, amount decimal.Decimal, userID string, now time.Time) (*BudgetItem, error) {
	if err := b.ValidateCanBeModified("override item"); err != nil {
		return nil, err
	}
	item, err := b.Item(itemID)
	if err != nil {
		return nil, err
	}
	if err := item.OverrideAmount(amount, now); err != nil {
		return nil, err
	}
	b.touch(userID, now)
	return item, nil
}

// RemoveBudgetItem soft-deletes an item.
func (b *Budget) RemoveBudgetItem(itemID, userID string, now time.Time) error {
	if err := b.ValidateCanBeModified("remove item"); err != nil {
		return err
	}
	item, err := b.Item(itemID)
	if err != nil {
		return err
	}
	item.IsDeleted = true
	item.DeletedAt = TimePtr(now)
	item.UpdatedAt = now
	b.touch(userID, now)
	return nil
}

// LatestRevision returns the highest-numbered revision, or nil.
func (b *Budget) LatestRevision() *BudgetRevision {
	var latest *BudgetRevision
	for _, r := range b.Revisions {
		if latest == nil || r.RevisionNumber > latest.RevisionNumber {
			latest = r
		}
	}
	return latest
}

// CreateRevisionRecord appends an audit record capturing TotalAmount now
// against the amount of the previous revision. revisionNumber must be
// RevisionCount+1.
func (b *Budget) CreateRevisionRecord(id string, revisionNumber int, reason, userID string, now time.Time) (*BudgetRevision, error) {
	if err := b.requireLive(); err != nil {
		return nil, err
	}
	previous := decimal.Zero
	if latest := b.LatestRevision(); latest != nil {
		previous = latest.NewAmount
	}
	return b.appendRevision(id, revisionNumber, reason, userID, previous, now)
}

func (b *Budget) appendRevision(id string, number int, reason, userID string, previous decimal.Decimal, now time.Time) (*BudgetRevision, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationErr(entityRevision, "reason is required")
	}
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if number != b.RevisionCount+1 {
		return nil, validationErr(entityRevision, "revision number must be %d, got %d", b.RevisionCount+1, number)
	}
	r := &BudgetRevision{
		ID:             id,
		BudgetID:       b.ID,
		RevisionNumber: number,
		Reason:         strings.TrimSpace(reason),
		PreviousAmount: previous,
		NewAmount:      b.TotalAmount,
		RevisionDate:   now,
		RevisedBy:      userID,
	}
	b.Revisions = append(b.Revisions, r)
	b.RevisionCount = number
	b.touch(userID, now)
	return r, nil
}

// ApproveRevision stamps approval on revision number n.
func (b *Budget) ApproveRevision(number int, approver string, now time.Time) (*BudgetRevision, error) {
	if err := b.requireLive(); err != nil {
		return nil, err
	}
	for _, r := range b.Revisions {
		if r.RevisionNumber == number {
			if err := r.Approve(approver, now); err != nil {
				return nil, err
			}
			b.touch(approver, now)
			return r, nil
		}
	}
	return nil, NotFoundErr(entityRevision, fmt.Sprintf("%s#%d", b.ID, number))
}

// SoftDelete removes a budget that is neither approved nor a baseline.
func (b *Budget) SoftDelete(userID string, now time.Time) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.requireLive(); err != nil {
		return err
	}
	if b.Status == BudgetApproved || b.IsBaseline {
		return invalidStateErr(entityBudget, b.ID, string(b.Status), "delete", "approved or baseline budgets cannot be deleted")
	}
	b.IsDeleted = true
	b.DeletedAt = TimePtr(now)
	b.DeletedBy = StrPtr(userID)
	b.touch(userID, now)
	return nil
}
