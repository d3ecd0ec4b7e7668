package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PathSeparator joins ancestor names in a node's full path.
const PathSeparator = " / "

// Tree is an arena of WBS nodes addressed by id. Parent links are ids and
// children are id lists, so every traversal walks the arena rather than
// following object references.
type Tree struct {
	nodes    map[string]*WBSNode
	children map[string][]string
	roots    []string
}

// NewNodeInput describes a node to be created in the tree.
type NewNodeInput struct {
	ID               string
	Code             string
	Name             string
	Description      string
	Kind             NodeKind
	Sequence         int
	ControlAccountID string

	// Used when Kind is NodeWorkPackage.
	DetailID       string
	ProgressMethod ProgressMethod
	Currency       string
}

// NewTree builds the arena from the flat node list of a project. Deleted
// nodes are kept so they can be restored; traversals skip them.
func NewTree(nodes []*WBSNode) *Tree {
	t := &Tree{
		nodes:    make(map[string]*WBSNode, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		t.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID != nil {
			if _, ok := t.nodes[*n.ParentID]; ok {
				t.children[*n.ParentID] = append(t.children[*n.ParentID], n.ID)
				continue
			}
		}
		t.roots = append(t.roots, n.ID)
	}
	t.sortIDs(t.roots)
	for _, ids := range t.children {
		t.sortIDs(ids)
	}
	return t
}

func (t *Tree) sortIDs(ids []string) {
	slices.SortStableFunc(ids, func(a, b string) int {
		na, nb := t.nodes[a], t.nodes[b]
		if na.Sequence != nb.Sequence {
			return na.Sequence - nb.Sequence
		}
		return CompareCodes(na.Code, nb.Code)
	})
}

// Len returns the number of nodes in the arena, deleted ones included.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup returns a node even when it is soft-deleted.
func (t *Tree) Lookup(id string) (*WBSNode, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, NotFoundErr(entityNode, id)
	}
	return n, nil
}

// Get returns a live (not soft-deleted) node.
func (t *Tree) Get(id string) (*WBSNode, error) {
	n, ok := t.nodes[id]
	if !ok || n.IsDeleted {
		return nil, NotFoundErr(entityNode, id)
	}
	return n, nil
}

// Roots returns the live root nodes in sibling order.
func (t *Tree) Roots() []*WBSNode {
	return t.live(t.roots)
}

// Children returns the live children of id in sibling order. GetTotalBudget
// and GetWeightedProgress both iterate exactly this set.
func (t *Tree) Children(id string) []*WBSNode {
	return t.live(t.children[id])
}

func (t *Tree) live(ids []string) []*WBSNode {
	out := make([]*WBSNode, 0, len(ids))
	for _, id := range ids {
		if n := t.nodes[id]; !n.IsDeleted {
			out = append(out, n)
		}
	}
	return out
}

// HasActiveChildren reports whether id has at least one non-deleted child.
func (t *Tree) HasActiveChildren(id string) bool {
	for _, cid := range t.children[id] {
		if !t.nodes[cid].IsDeleted {
			return true
		}
	}
	return false
}

// Walk visits live nodes in pre-order with their depth (roots are 0).
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n *WBSNode, depth int) bool) {
	var visit func(n *WBSNode, depth int)
	visit = func(n *WBSNode, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range t.Children(n.ID) {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots() {
		visit(r, 0)
	}
}

// FullPath builds "Root / Parent / Node" by walking ancestor ids.
func (t *Tree) FullPath(id string) string {
	var names []string
	seen := make(map[string]bool)
	for cur, ok := t.nodes[id]; ok && !seen[cur.ID]; {
		seen[cur.ID] = true
		names = append(names, cur.Name)
		if cur.ParentID == nil {
			break
		}
		cur, ok = t.nodes[*cur.ParentID]
	}
	slices.Reverse(names)
	return strings.Join(names, PathSeparator)
}

// FindByCode returns the node carrying code. A live node wins over deleted
// ones; among deleted nodes the most recently updated is returned.
func (t *Tree) FindByCode(code string) (*WBSNode, bool) {
	var found *WBSNode
	for _, n := range t.nodes {
		if n.Code != code {
			continue
		}
		if !n.IsDeleted {
			return n, true
		}
		if found == nil || n.UpdatedAt.After(found.UpdatedAt) {
			found = n
		}
	}
	return found, found != nil
}

func (t *Tree) codeTaken(code, exceptID string) bool {
	for _, n := range t.nodes {
		if !n.IsDeleted && n.ID != exceptID && n.Code == code {
			return true
		}
	}
	return false
}

func (t *Tree) nextSequence(ids []string) int {
	highest := 0
	for _, id := range ids {
		if s := t.nodes[id].Sequence; s > highest {
			highest = s
		}
	}
	return highest + 1
}

// AddRoot creates a project root. Roots are always summary nodes.
func (t *Tree) AddRoot(projectID string, in NewNodeInput, now time.Time) (*WBSNode, error) {
	if in.Kind != "" && in.Kind != NodeSummary {
		return nil, invalidStateErr(entityNode, in.ID, "root", "create "+string(in.Kind),
			"a root node cannot be a %s", in.Kind)
	}
	if err := validateNodeFields(in.Code, in.Name); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	if t.codeTaken(code, "") {
		return nil, validationErr(entityNode, "code %s is already used in this project", code)
	}
	seq := in.Sequence
	if seq <= 0 {
		seq = t.nextSequence(t.roots)
	}
	n := &WBSNode{
		ID:          in.ID,
		ProjectID:   projectID,
		Code:        code,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Level:       1,
		Sequence:    seq,
		Element:     SummaryElement{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	n.ControlAccountID = StrPtr(in.ControlAccountID)
	t.nodes[n.ID] = n
	t.roots = append(t.roots, n.ID)
	t.sortIDs(t.roots)
	n.FullPath = t.FullPath(n.ID)
	return n, nil
}

// AddChild appends a node one level below parentID. Only summary nodes
// accept children.
func (t *Tree) AddChild(parentID string, in NewNodeInput, now time.Time) (*WBSNode, error) {
	parent, err := t.Get(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.CanHaveChildren() {
		return nil, invalidStateErr(entityNode, parent.ID, string(parent.Kind()), "add child",
			"a %s cannot have children", parent.Kind())
	}
	if err := validateNodeFields(in.Code, in.Name); err != nil {
		return nil, err
	}
	kind := in.Kind
	if kind == "" {
		kind = NodeSummary
	}
	if !ValidNodeKinds[string(kind)] {
		return nil, validationErr(entityNode, "unknown node kind %q", kind)
	}
	code := strings.TrimSpace(in.Code)
	if t.codeTaken(code, "") {
		return nil, validationErr(entityNode, "code %s is already used in this project", code)
	}

	var element NodeElement = SummaryElement{}
	switch kind {
	case NodeWorkPackage:
		detail, err := NewWorkPackageDetail(in.DetailID, in.ID, in.ProgressMethod, decimal.Zero, in.Currency, now)
		if err != nil {
			return nil, err
		}
		element = WorkPackageElement{Detail: detail}
	case NodePlanningPackage:
		element = PlanningPackageElement{EstimatedBudget: decimal.Zero}
	}

	seq := in.Sequence
	if seq <= 0 {
		seq = t.nextSequence(t.children[parent.ID])
	}
	pid := parent.ID
	n := &WBSNode{
		ID:          in.ID,
		ProjectID:   parent.ProjectID,
		ParentID:    &pid,
		Code:        code,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Level:       parent.Level + 1,
		Sequence:    seq,
		Element:     element,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	n.ControlAccountID = StrPtr(in.ControlAccountID)
	t.nodes[n.ID] = n
	t.children[parent.ID] = append(t.children[parent.ID], n.ID)
	t.sortIDs(t.children[parent.ID])
	n.FullPath = t.FullPath(n.ID)
	return n, nil
}

// Rename changes a node's name and refreshes the full path of its whole
// live subtree. It returns every node whose stored fields changed.
func (t *Tree) Rename(id, name string, now time.Time) ([]*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if err := n.Rename(name, now); err != nil {
		return nil, err
	}
	changed := []*WBSNode{}
	var refresh func(cur *WBSNode)
	refresh = func(cur *WBSNode) {
		cur.FullPath = t.FullPath(cur.ID)
		cur.UpdatedAt = now
		changed = append(changed, cur)
		for _, c := range t.Children(cur.ID) {
			refresh(c)
		}
	}
	refresh(n)
	return changed, nil
}

// UpdateCode changes a node's code, keeping codes unique in the project.
func (t *Tree) UpdateCode(id, code string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if t.codeTaken(strings.TrimSpace(code), id) {
		return nil, validationErr(entityNode, "code %s is already used in this project", code)
	}
	if err := n.UpdateCode(code, now); err != nil {
		return nil, err
	}
	if n.ParentID != nil {
		t.sortIDs(t.children[*n.ParentID])
	} else {
		t.sortIDs(t.roots)
	}
	return n, nil
}

// ConvertToWorkPackage turns a childless summary or planning package into
// a work package. A summary's budget comes from its current rollup; a
// planning package keeps its estimated budget.
func (t *Tree) ConvertToWorkPackage(id, controlAccountID string, method ProgressMethod, detailID, currency string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	op := "convert to work package"
	if n.Kind() == NodeWorkPackage {
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), op, "node is already a work package")
	}
	if err := t.checkLeafConversion(n, op); err != nil {
		return nil, err
	}

	var budget decimal.Decimal
	if pp, ok := n.PlanningPackage(); ok {
		budget = pp.EstimatedBudget
	} else {
		budget = t.totalBudget(n.ID, map[string]decimal.Decimal{})
	}
	detail, err := NewWorkPackageDetail(detailID, n.ID, method, budget, currency, now)
	if err != nil {
		return nil, err
	}

	n.Element = WorkPackageElement{Detail: detail}
	if strings.TrimSpace(controlAccountID) != "" {
		n.ControlAccountID = StrPtr(controlAccountID)
	}
	n.UpdatedAt = now
	return n, nil
}

// ConvertToPlanningPackage turns a childless summary into a planning package.
func (t *Tree) ConvertToPlanningPackage(id, controlAccountID string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	op := "convert to planning package"
	switch n.Kind() {
	case NodePlanningPackage:
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), op, "node is already a planning package")
	case NodeWorkPackage:
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), op, "a work package cannot become a planning package")
	}
	if err := t.checkLeafConversion(n, op); err != nil {
		return nil, err
	}
	n.Element = PlanningPackageElement{
		EstimatedBudget: t.totalBudget(n.ID, map[string]decimal.Decimal{}),
	}
	if strings.TrimSpace(controlAccountID) != "" {
		n.ControlAccountID = StrPtr(controlAccountID)
	}
	n.UpdatedAt = now
	return n, nil
}

// ConvertPlanningPackageToWorkPackage matures a planning package into a
// work package, keeping the node identity and its estimated budget.
func (t *Tree) ConvertPlanningPackageToWorkPackage(id string, method ProgressMethod, detailID, currency string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if n.Kind() != NodePlanningPackage {
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), "convert planning package to work package",
			"node is not a planning package")
	}
	return t.ConvertToWorkPackage(id, "", method, detailID, currency, now)
}

// UpdatePlanningEstimate sets the estimated budget and planned conversion
// date of a planning-package node.
func (t *Tree) UpdatePlanningEstimate(id string, budget decimal.Decimal, conversion *time.Time, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if _, ok := n.PlanningPackage(); !ok {
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), "update estimate", "node is not a planning package")
	}
	if budget.IsNegative() {
		return nil, validationErr(entityNode, "estimated budget must be >= 0, got %s", budget)
	}
	n.Element = PlanningPackageElement{EstimatedBudget: budget, PlannedConversionDate: copyTime(conversion)}
	n.UpdatedAt = now
	return n, nil
}

func (t *Tree) checkLeafConversion(n *WBSNode, op string) error {
	if n.IsRoot() {
		return invalidStateErr(entityNode, n.ID, "root", op, "a root node must remain a summary")
	}
	if t.HasActiveChildren(n.ID) {
		return invalidStateErr(entityNode, n.ID, string(n.Kind()), op,
			"node has %d child node(s)", len(t.Children(n.ID)))
	}
	return nil
}

// Delete soft-deletes a node that has no live children.
func (t *Tree) Delete(id, actor string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if t.HasActiveChildren(id) {
		return nil, invalidStateErr(entityNode, id, string(n.Kind()), "delete",
			"node has %d child node(s); delete them first", len(t.Children(id)))
	}
	n.IsDeleted = true
	n.IsActive = false
	n.DeletedAt = TimePtr(now)
	n.DeletedBy = StrPtr(actor)
	n.UpdatedAt = now
	return n, nil
}

// Restore reverses a soft delete. The parent must be a live summary.
func (t *Tree) Restore(id string, now time.Time) (*WBSNode, error) {
	n, err := t.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.IsDeleted {
		return nil, invalidStateErr(entityNode, id, "active", "restore", "node is not deleted")
	}
	if n.ParentID != nil {
		if p, ok := t.nodes[*n.ParentID]; ok {
			if p.IsDeleted {
				return nil, invalidStateErr(entityNode, id, "deleted", "restore", "parent %s is deleted; restore it first", p.ID)
			}
			if !p.CanHaveChildren() {
				return nil, invalidStateErr(entityNode, id, "deleted", "restore",
					"parent %s is a %s and cannot have children", p.ID, p.Kind())
			}
		}
	}
	if t.codeTaken(n.Code, n.ID) {
		return nil, invalidStateErr(entityNode, id, "deleted", "restore", "code %s has been reused", n.Code)
	}
	n.IsDeleted = false
	n.IsActive = true
	n.DeletedAt = nil
	n.DeletedBy = nil
	n.UpdatedAt = now
	return n, nil
}

// AddCBSMapping adds a cost-breakdown allocation to a live node.
func (t *Tree) AddCBSMapping(id, mappingID, cbsID string, pct decimal.Decimal, primary bool, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := n.CBS.Add(mappingID, n.ID, cbsID, pct, primary, now); err != nil {
		return nil, err
	}
	n.UpdatedAt = now
	return n, nil
}

// RemoveCBSMapping soft-ends a node's mapping to cbsID.
func (t *Tree) RemoveCBSMapping(id, cbsID string, now time.Time) (*WBSNode, error) {
	n, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if err := n.CBS.Remove(n.ID, cbsID, now); err != nil {
		return nil, err
	}
	n.UpdatedAt = now
	return n, nil
}

// GetTotalBudget returns the work-package budget, or the recursive sum over
// live children for every other kind.
func (t *Tree) GetTotalBudget(id string) (decimal.Decimal, error) {
	if _, err := t.Get(id); err != nil {
		return decimal.Zero, err
	}
	return t.totalBudget(id, map[string]decimal.Decimal{}), nil
}

// GetWeightedProgress returns a work package's own progress, or the
// budget-weighted average of its live children's progress.
func (t *Tree) GetWeightedProgress(id string) (float64, error) {
	if _, err := t.Get(id); err != nil {
		return 0, err
	}
	return t.weightedProgress(id, map[string]decimal.Decimal{}).InexactFloat64(), nil
}

// NodeRollup is the budget and progress aggregate of one node.
type NodeRollup struct {
	NodeID      string
	TotalBudget decimal.Decimal
	ProgressPct float64
}

// Rollup computes budget and progress for id in one pass, sharing the
// per-node budget cache between both aggregations.
func (t *Tree) Rollup(id string) (NodeRollup, error) {
	if _, err := t.Get(id); err != nil {
		return NodeRollup{}, err
	}
	cache := map[string]decimal.Decimal{}
	return NodeRollup{
		NodeID:      id,
		TotalBudget: t.totalBudget(id, cache),
		ProgressPct: t.weightedProgress(id, cache).InexactFloat64(),
	}, nil
}

func (t *Tree) totalBudget(id string, cache map[string]decimal.Decimal) decimal.Decimal {
	if v, ok := cache[id]; ok {
		return v
	}
	n := t.nodes[id]
	var total decimal.Decimal
	if wp, ok := n.WorkPackage(); ok {
		total = wp.Budget
	} else {
		for _, c := range t.Children(id) {
			total = total.Add(t.totalBudget(c.ID, cache))
		}
	}
	cache[id] = total
	return total
}

func (t *Tree) weightedProgress(id string, cache map[string]decimal.Decimal) decimal.Decimal {
	n := t.nodes[id]
	if wp, ok := n.WorkPackage(); ok {
		return decimal.NewFromFloat(wp.ProgressPct)
	}
	var weighted, weights decimal.Decimal
	for _, c := range t.Children(id) {
		w := t.totalBudget(c.ID, cache)
		weighted = weighted.Add(w.Mul(t.weightedProgress(c.ID, cache)))
		weights = weights.Add(w)
	}
	if !weights.IsPositive() {
		return decimal.Zero
	}
	return weighted.Div(weights)
}
