package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityNode = "wbs node"

// NodeElement is the closed set of node classifications. A WorkPackage
// element always carries its detail, so a work package without schedule
// and cost facts cannot be represented.
type NodeElement interface {
	Kind() NodeKind
	isNodeElement()
}

// SummaryElement is an aggregating node; the only kind that admits children.
type SummaryElement struct{}

func (SummaryElement) Kind() NodeKind { return NodeSummary }
func (SummaryElement) isNodeElement() {}

// WorkPackageElement is a leaf carrying schedule/cost/progress facts.
type WorkPackageElement struct {
	Detail *WorkPackageDetail
}

func (WorkPackageElement) Kind() NodeKind { return NodeWorkPackage }
func (WorkPackageElement) isNodeElement() {}

// PlanningPackageElement is a leaf placeholder for future scope.
type PlanningPackageElement struct {
	EstimatedBudget       decimal.Decimal
	PlannedConversionDate *time.Time
}

func (PlanningPackageElement) Kind() NodeKind { return NodePlanningPackage }
func (PlanningPackageElement) isNodeElement() {}

// WBSDictionary holds the descriptive dictionary fields of a node.
type WBSDictionary struct {
	DeliverableDescription string
	AcceptanceCriteria     string
	Assumptions            string
	Constraints            string
	Inclusions             string
	Exclusions             string
}

type WBSNode struct {
	ID               string
	ProjectID        string
	ParentID         *string
	Code             string
	Name             string
	Description      string
	Level            int
	Sequence         int
	FullPath         string
	Element          NodeElement
	ControlAccountID *string
	Dictionary       WBSDictionary
	CBS              CBSAllocationSet
	IsActive         bool
	IsDeleted        bool
	DeletedAt        *time.Time
	DeletedBy        *string
	RowVersion       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Kind derives the node kind from its element. A node without an element
// is a summary.
func (n *WBSNode) Kind() NodeKind {
	if n.Element == nil {
		return NodeSummary
	}
	return n.Element.Kind()
}

// WorkPackage returns the detail when the node is a work package.
func (n *WBSNode) WorkPackage() (*WorkPackageDetail, bool) {
	wp, ok := n.Element.(WorkPackageElement)
	if !ok || wp.Detail == nil {
		return nil, false
	}
	return wp.Detail, true
}

// RequireWorkPackage returns the detail or an InvalidState error naming op.
func (n *WBSNode) RequireWorkPackage(op string) (*WorkPackageDetail, error) {
	d, ok := n.WorkPackage()
	if !ok {
		return nil, invalidStateErr(entityNode, n.ID, string(n.Kind()), op, "node is not a work package")
	}
	return d, nil
}

// PlanningPackage returns the planning element when the node is one.
func (n *WBSNode) PlanningPackage() (PlanningPackageElement, bool) {
	pp, ok := n.Element.(PlanningPackageElement)
	return pp, ok
}

// IsRoot reports whether the node has no parent.
func (n *WBSNode) IsRoot() bool { return n.ParentID == nil }

// CanHaveChildren is true only for summary nodes.
func (n *WBSNode) CanHaveChildren() bool { return n.Kind() == NodeSummary }

// Rename changes the display name. The caller is responsible for
// refreshing full paths of the subtree.
func (n *WBSNode) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationErr(entityNode, "name is required")
	}
	n.Name = name
	n.UpdatedAt = now
	return nil
}

// UpdateCode replaces the dotted code after validating it.
func (n *WBSNode) UpdateCode(code string, now time.Time) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	n.Code = strings.TrimSpace(code)
	n.UpdatedAt = now
	return nil
}

// UpdateDescription replaces the free-text description.
func (n *WBSNode) UpdateDescription(desc string, now time.Time) {
	n.Description = strings.TrimSpace(desc)
	n.UpdatedAt = now
}

// UpdateDictionary replaces all dictionary fields.
func (n *WBSNode) UpdateDictionary(d WBSDictionary, now time.Time) {
	n.Dictionary = d
	n.UpdatedAt = now
}

// AssignControlAccount sets or clears (empty id) the control account.
func (n *WBSNode) AssignControlAccount(controlAccountID string, now time.Time) {
	n.ControlAccountID = StrPtr(controlAccountID)
	n.UpdatedAt = now
}

func validateNodeFields(code, name string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return validationErr(entityNode, "name is required")
	}
	return nil
}
