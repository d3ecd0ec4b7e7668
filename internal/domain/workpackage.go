package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityWorkPackage = "work package"

// WorkPackageDetail holds the schedule, cost and progress facts of a
// WorkPackage-kind node. Its lifetime is bound to the owning node.
type WorkPackageDetail struct {
	ID     string
	NodeID string

	// Schedule
	PlannedStart          *time.Time
	PlannedEnd            *time.Time
	BaselineStart         *time.Time
	BaselineEnd           *time.Time
	ActualStart           *time.Time
	ActualEnd             *time.Time
	ForecastStart         *time.Time
	ForecastEnd           *time.Time
	PlannedDurationDays   int
	ActualDurationDays    *int
	RemainingDurationDays *int
	TotalFloatDays        int
	FreeFloatDays         int
	IsCriticalPath        bool

	// Cost
	Budget        decimal.Decimal
	Currency      string
	ActualCost    decimal.Decimal
	CommittedCost decimal.Decimal
	ForecastCost  decimal.Decimal

	// Progress
	ProgressPct         float64
	PhysicalProgressPct float64
	ProgressMethod      ProgressMethod
	Status              WorkPackageStatus

	ResponsibleUserID   *string
	PrimaryDisciplineID *string

	// Earned value (CPI/SPI are invalid while undefined)
	EarnedValue  decimal.Decimal
	PlannedValue decimal.Decimal
	CPI          decimal.NullDecimal
	SPI          decimal.NullDecimal

	IsBaselined  bool
	BaselineDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkPackageDetail creates the detail instantiated when a node is
// converted to a work package.
func NewWorkPackageDetail(id, nodeID string, method ProgressMethod, budget decimal.Decimal, currency string, now time.Time) (*WorkPackageDetail, error) {
	if method == "" {
		method = ProgressPercentComplete
	}
	if !ValidProgressMethods[method] {
		return nil, validationErr(entityWorkPackage, "unknown progress method %q", method)
	}
	if budget.IsNegative() {
		return nil, validationErr(entityWorkPackage, "budget must be >= 0, got %s", budget)
	}
	d := &WorkPackageDetail{
		ID:             id,
		NodeID:         nodeID,
		Budget:         budget,
		Currency:       currency,
		ForecastCost:   budget,
		ProgressMethod: method,
		Status:         WPNotStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return d, nil
}

// IsStarted reports whether work has actually begun.
func (d *WorkPackageDetail) IsStarted() bool { return d.ActualStart != nil }

// IsFinished reports whether the work package has reached completion.
func (d *WorkPackageDetail) IsFinished() bool { return d.Status == WPCompleted }

// UpdateProgress records overall and (optionally) physical progress and
// derives the status from it. Derivation only moves forward.
func (d *WorkPackageDetail) UpdateProgress(pct float64, physical *float64, now time.Time) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return validationErr(entityWorkPackage, "progress must be between 0 and 100, got %v", pct)
	}
	phys := Float64FromPtrWithDefault(d.PhysicalProgressPct, physical)
	if math.IsNaN(phys) || phys < 0 || phys > 100 {
		return validationErr(entityWorkPackage, "physical progress must be between 0 and 100, got %v", phys)
	}
	switch d.Status {
	case WPOnHold, WPCancelled:
		return invalidStateErr(entityWorkPackage, d.NodeID, string(d.Status), "update progress",
			"progress cannot be reported while %s", d.Status)
	case WPCompleted:
		if pct < 100 {
			return invalidStateErr(entityWorkPackage, d.NodeID, string(d.Status), "update progress",
				"completed work package cannot regress to %v%%", pct)
		}
	}

	d.ProgressPct = pct
	d.PhysicalProgressPct = phys

	switch {
	case pct == 0 && d.ActualStart == nil:
		d.Status = WPNotStarted
	case pct < 100:
		if d.ActualStart == nil {
			d.ActualStart = TimePtr(now)
		}
		d.Status = WPInProgress
	default:
		if d.ActualStart == nil {
			d.ActualStart = TimePtr(now)
		}
		if d.Status != WPCompleted {
			d.ActualEnd = TimePtr(now)
			days := daysBetween(*d.ActualStart, now)
			d.ActualDurationDays = &days
			zero := 0
			d.RemainingDurationDays = &zero
		}
		d.Status = WPCompleted
	}
	d.UpdatedAt = now
	return nil
}

// SetStatus moves the work package explicitly. Only hold, cancel and
// resume-from-hold are accepted; everything else is derived from progress.
func (d *WorkPackageDetail) SetStatus(status WorkPackageStatus, now time.Time) error {
	if d.Status == status {
		return nil
	}
	if d.Status == WPCompleted || d.Status == WPCancelled {
		return invalidStateErr(entityWorkPackage, d.NodeID, string(d.Status), "set status "+string(status),
			"work package is %s", d.Status)
	}
	switch status {
	case WPOnHold, WPCancelled:
		if d.IsStarted() && !d.IsFinished() {
			elapsed := daysBetween(*d.ActualStart, now)
			remaining := d.PlannedDurationDays - elapsed
			if remaining < 0 {
				remaining = 0
			}
			d.RemainingDurationDays = &remaining
		}
	case WPInProgress, WPNotStarted:
		if d.Status != WPOnHold {
			return invalidStateErr(entityWorkPackage, d.NodeID, string(d.Status), "set status "+string(status),
				"status %s is derived from progress", status)
		}
		// Resuming restores whatever the recorded progress implies.
		status = WPInProgress
		if d.ProgressPct == 0 && d.ActualStart == nil {
			status = WPNotStarted
		}
	default:
		return validationErr(entityWorkPackage, "status %q cannot be set explicitly", status)
	}
	d.Status = status
	d.UpdatedAt = now
	return nil
}

// UpdateEarnedValue sets EV and PV and recomputes the performance indices.
func (d *WorkPackageDetail) UpdateEarnedValue(earned, planned decimal.Decimal, now time.Time) error {
	if earned.IsNegative() || planned.IsNegative() {
		return validationErr(entityWorkPackage, "earned and planned value must be >= 0")
	}
	d.EarnedValue = earned
	d.PlannedValue = planned
	d.recomputePerformance()
	d.UpdatedAt = now
	return nil
}

// UpdateActualCost sets AC and recomputes the performance indices.
func (d *WorkPackageDetail) UpdateActualCost(actual decimal.Decimal, now time.Time) error {
	if actual.IsNegative() {
		return validationErr(entityWorkPackage, "actual cost must be >= 0, got %s", actual)
	}
	d.ActualCost = actual
	d.recomputePerformance()
	d.UpdatedAt = now
	return nil
}

// UpdateCommittedCost sets the committed (ordered but not yet spent) cost.
func (d *WorkPackageDetail) UpdateCommittedCost(committed decimal.Decimal, now time.Time) error {
	if committed.IsNegative() {
		return validationErr(entityWorkPackage, "committed cost must be >= 0, got %s", committed)
	}
	d.CommittedCost = committed
	d.UpdatedAt = now
	return nil
}

// UpdateBudget replaces the budget amount and currency.
func (d *WorkPackageDetail) UpdateBudget(amount decimal.Decimal, currency string, now time.Time) error {
	if amount.IsNegative() {
		return validationErr(entityWorkPackage, "budget must be >= 0, got %s", amount)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" {
		if err := ValidateCurrency(currency); err != nil {
			return err
		}
		d.Currency = currency
	}
	d.Budget = amount
	d.recomputePerformance()
	d.UpdatedAt = now
	return nil
}

// UpdateSchedule sets the planned window and derives the planned duration.
func (d *WorkPackageDetail) UpdateSchedule(start, end time.Time, now time.Time) error {
	if end.Before(start) {
		return validationErr(entityWorkPackage, "planned end %s is before planned start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	d.PlannedStart = TimePtr(start)
	d.PlannedEnd = TimePtr(end)
	d.PlannedDurationDays = daysBetween(start, end)
	d.UpdatedAt = now
	return nil
}

// UpdateFloat records scheduling float and the critical-path flag.
func (d *WorkPackageDetail) UpdateFloat(totalFloat, freeFloat int, critical bool, now time.Time) error {
	if freeFloat > totalFloat {
		return validationErr(entityWorkPackage, "free float %d exceeds total float %d", freeFloat, totalFloat)
	}
	d.TotalFloatDays = totalFloat
	d.FreeFloatDays = freeFloat
	d.IsCriticalPath = critical
	d.UpdatedAt = now
	return nil
}

// AssignResponsibility sets the responsible user and primary discipline.
func (d *WorkPackageDetail) AssignResponsibility(userID, disciplineID string, now time.Time) {
	d.ResponsibleUserID = StrPtr(userID)
	d.PrimaryDisciplineID = StrPtr(disciplineID)
	d.UpdatedAt = now
}

// Baseline freezes the current planned dates. There is no way back.
func (d *WorkPackageDetail) Baseline(now time.Time) error {
	if d.IsBaselined {
		return invalidStateErr(entityWorkPackage, d.NodeID, "baselined", "baseline",
			"work package is already baselined")
	}
	d.BaselineStart = copyTime(d.PlannedStart)
	d.BaselineEnd = copyTime(d.PlannedEnd)
	d.BaselineDate = TimePtr(now)
	d.IsBaselined = true
	d.UpdatedAt = now
	return nil
}

// CostVariance is EV - AC.
func (d *WorkPackageDetail) CostVariance() decimal.Decimal {
	return d.EarnedValue.Sub(d.ActualCost)
}

// ScheduleVariance is EV - PV.
func (d *WorkPackageDetail) ScheduleVariance() decimal.Decimal {
	return d.EarnedValue.Sub(d.PlannedValue)
}

func (d *WorkPackageDetail) recomputePerformance() {
	d.CPI = decimal.NullDecimal{}
	if d.ActualCost.IsPositive() {
		d.CPI = decimal.NewNullDecimal(d.EarnedValue.Div(d.ActualCost).Round(4))
	}
	d.SPI = decimal.NullDecimal{}
	if d.PlannedValue.IsPositive() {
		d.SPI = decimal.NewNullDecimal(d.EarnedValue.Div(d.PlannedValue).Round(4))
	}
	if d.CPI.Valid && d.CPI.Decimal.IsPositive() {
		d.ForecastCost = roundMoney(d.Budget.Div(d.CPI.Decimal))
	} else {
		d.ForecastCost = d.Budget
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
