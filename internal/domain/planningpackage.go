package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const entityPlanningPackage = "planning package"

// NearTermWindow is how far ahead of its planned conversion date a planning
// package is considered near-term.
const NearTermWindow = 60 * 24 * time.Hour

const (
	MinPlanningPriority     = 1
	MaxPlanningPriority     = 99
	DefaultPlanningPriority = 50
)

// PlanningPackage is a project-level placeholder for future scope that
// lives outside the WBS tree.
type PlanningPackage struct {
	ID               string
	ProjectID        string
	ControlAccountID *string
	PhaseID          *string
	Code             string
	Name             string
	Description      string

	PlannedStart          *time.Time
	PlannedEnd            *time.Time
	PlannedConversionDate *time.Time
	EstimatedBudget       decimal.Decimal
	EstimatedHours        decimal.Decimal

	IsConverted    bool
	ConversionDate *time.Time
	ConvertedBy    *string

	Priority  int
	IsActive  bool
	IsDeleted bool
	DeletedAt *time.Time

	CreatedBy string
	UpdatedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NewPlanningPackageInput struct {
	ID               string
	ProjectID        string
	ControlAccountID string
	PhaseID          string
	Code             string
	Name             string
	Description      string
	EstimatedBudget  decimal.Decimal
	EstimatedHours   decimal.Decimal
	Priority         int
	CreatedBy        string
}

func NewPlanningPackage(in NewPlanningPackageInput, now time.Time) (*PlanningPackage, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, validationErr(entityPlanningPackage, "code is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationErr(entityPlanningPackage, "name is required")
	}
	if in.EstimatedBudget.IsNegative() || in.EstimatedHours.IsNegative() {
		return nil, validationErr(entityPlanningPackage, "estimated budget and hours must be >= 0")
	}
	priority := in.Priority
	if priority == 0 {
		priority = DefaultPlanningPriority
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	return &PlanningPackage{
		ID:               in.ID,
		ProjectID:        in.ProjectID,
		ControlAccountID: StrPtr(in.ControlAccountID),
		PhaseID:          StrPtr(in.PhaseID),
		Code:             code,
		Name:             strings.TrimSpace(in.Name),
		Description:      strings.TrimSpace(in.Description),
		EstimatedBudget:  in.EstimatedBudget,
		EstimatedHours:   in.EstimatedHours,
		Priority:         priority,
		IsActive:         true,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// DerivePlanningStatus is the pure status function. A nil conversion date
// is always Future.
func DerivePlanningStatus(converted bool, conversion *time.Time, now time.Time) PlanningPackageStatus {
	switch {
	case converted:
		return PlanningConverted
	case conversion == nil:
		return PlanningFuture
	case !now.Before(*conversion):
		return PlanningReadyForConversion
	case conversion.Sub(now) <= NearTermWindow:
		return PlanningNearTerm
	default:
		return PlanningFuture
	}
}

// Status evaluates the planning status at now.
func (p *PlanningPackage) Status(now time.Time) PlanningPackageStatus {
	return DerivePlanningStatus(p.IsConverted, p.PlannedConversionDate, now)
}

func (p *PlanningPackage) requireMutable(op string) error {
	if p.IsDeleted {
		return NotFoundErr(entityPlanningPackage, p.ID)
	}
	if p.IsConverted {
		return invalidStateErr(entityPlanningPackage, p.ID, string(PlanningConverted), op,
			"planning package has already been converted")
	}
	return nil
}

// UpdateSchedule sets the planned window and conversion date. The
// conversion must happen no later than the planned start.
func (p *PlanningPackage) UpdateSchedule(start, end, conversion *time.Time, userID string, now time.Time) error {
	if err := p.requireMutable("update schedule"); err != nil {
		return err
	}
	if start != nil && end != nil && end.Before(*start) {
		return validationErr(entityPlanningPackage, "planned end %s is before planned start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if start != nil && conversion != nil && conversion.After(*start) {
		return validationErr(entityPlanningPackage, "conversion date %s is after planned start %s",
			conversion.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	p.PlannedStart = copyTime(start)
	p.PlannedEnd = copyTime(end)
	p.PlannedConversionDate = copyTime(conversion)
	p.UpdatedBy = StrPtr(userID)
	p.UpdatedAt = now
	return nil
}

// UpdateEstimate replaces the estimated budget and hours.
func (p *PlanningPackage) UpdateEstimate(budget, hours decimal.Decimal, userID string, now time.Time) error {
	if err := p.requireMutable("update estimate"); err != nil {
		return err
	}
	if budget.IsNegative() || hours.IsNegative() {
		return validationErr(entityPlanningPackage, "estimated budget and hours must be >= 0")
	}
	p.EstimatedBudget = budget
	p.EstimatedHours = hours
	p.UpdatedBy = StrPtr(userID)
	p.UpdatedAt = now
	return nil
}

func validatePriority(priority int) error {
	if priority < MinPlanningPriority || priority > MaxPlanningPriority {
		return validationErr(entityPlanningPackage, "priority must be between %d and %d, got %d",
			MinPlanningPriority, MaxPlanningPriority, priority)
	}
	return nil
}

// UpdatePriority sets the priority (1 is highest).
func (p *PlanningPackage) UpdatePriority(priority int, userID string, now time.Time) error {
	if err := p.requireMutable("update priority"); err != nil {
		return err
	}
	if err := validatePriority(priority); err != nil {
		return err
	}
	p.Priority = priority
	p.UpdatedBy = StrPtr(userID)
	p.UpdatedAt = now
	return nil
}

// ConvertToWorkPackage marks the placeholder converted and deactivates it.
// No WBS node is created.
func (p *PlanningPackage) ConvertToWorkPackage(convertedBy string, now time.Time) error {
	if err := p.requireMutable("convert"); err != nil {
		return err
	}
	if strings.TrimSpace(convertedBy) == "" {
		return validationErr(entityPlanningPackage, "converted by is required")
	}
	p.IsConverted = true
	p.ConversionDate = TimePtr(now)
	p.ConvertedBy = StrPtr(convertedBy)
	p.IsActive = false
	p.UpdatedBy = StrPtr(convertedBy)
	p.UpdatedAt = now
	return nil
}

// SoftDelete hides the planning package.
func (p *PlanningPackage) SoftDelete(userID string, now time.Time) error {
	if p.IsDeleted {
		return NotFoundErr(entityPlanningPackage, p.ID)
	}
	p.IsDeleted = true
	p.IsActive = false
	p.DeletedAt = TimePtr(now)
	p.UpdatedBy = StrPtr(userID)
	p.UpdatedAt = now
	return nil
}
