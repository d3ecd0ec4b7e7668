package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityCBS = "cbs allocation"

// CBSMapping links a WBS node to a cost-breakdown-structure element with an
// allocation percentage. Removal sets EndDate instead of deleting the row.
type CBSMapping struct {
	ID            string
	NodeID        string
	CBSID         string
	AllocationPct decimal.Decimal
	IsPrimary     bool
	StartDate     time.Time
	EndDate       *time.Time
}

// IsActive reports whether the mapping has not been ended.
func (m *CBSMapping) IsActive() bool { return m.EndDate == nil }

// CBSAllocationSet is the collection of CBS mappings attached to one node.
// Active allocations never sum above 100% and at most one is primary.
type CBSAllocationSet struct {
	Mappings []*CBSMapping
}

// Active returns the mappings that have not been ended.
func (s *CBSAllocationSet) Active() []*CBSMapping {
	var out []*CBSMapping
	for _, m := range s.Mappings {
		if m.IsActive() {
			out = append(out, m)
		}
	}
	return out
}

// ActiveTotal sums the allocation percentage of active mappings.
func (s *CBSAllocationSet) ActiveTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range s.Active() {
		total = total.Add(m.AllocationPct)
	}
	return total
}

// Primary returns the active primary mapping, if any.
func (s *CBSAllocationSet) Primary() *CBSMapping {
	for _, m := range s.Active() {
		if m.IsPrimary {
			return m
		}
	}
	return nil
}

// Add appends a mapping after checking the 100% ceiling. A primary mapping
// clears the flag on every existing mapping first.
func (s *CBSAllocationSet) Add(id, nodeID, cbsID string, pct decimal.Decimal, primary bool, now time.Time) (*CBSMapping, error) {
	cbsID = strings.TrimSpace(cbsID)
	if cbsID == "" {
		return nil, validationErr(entityCBS, "cbs id is required")
	}
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return nil, validationErr(entityCBS, "allocation must be in (0, 100], got %s", pct)
	}
	for _, m := range s.Active() {
		if m.CBSID == cbsID {
			return nil, invalidStateErr(entityCBS, nodeID, "allocated", "add "+cbsID,
				"cbs %s is already mapped to this node", cbsID)
		}
	}
	if total := s.ActiveTotal().Add(pct); total.GreaterThan(hundred) {
		return nil, invalidStateErr(entityCBS, nodeID, s.ActiveTotal().String()+"%", "add "+cbsID,
			"total allocation would be %s%%, exceeding 100%%", total)
	}

	if primary {
		for _, m := range s.Mappings {
			m.IsPrimary = false
		}
	}
	m := &CBSMapping{
		ID:            id,
		NodeID:        nodeID,
		CBSID:         cbsID,
		AllocationPct: pct,
		IsPrimary:     primary,
		StartDate:     now,
	}
	s.Mappings = append(s.Mappings, m)
	return m, nil
}

// Remove soft-ends the active mapping for cbsID, freeing its percentage.
func (s *CBSAllocationSet) Remove(nodeID, cbsID string, now time.Time) error {
	for _, m := range s.Active() {
		if m.CBSID == cbsID {
			m.EndDate = TimePtr(now)
			m.IsPrimary = false
			return nil
		}
	}
	return NotFoundErr(entityCBS, nodeID+"/"+cbsID)
}
