package domain

import (
	"regexp"
	"strings"
	"time"
)

const entityProject = "project"

var projectCodePattern = regexp.MustCompile(`^[A-Z]{2,6}-?[0-9]{2,5}$`)

// ValidateProjectCode checks a short project code such as CAP-001.
func ValidateProjectCode(code string) error {
	if !projectCodePattern.MatchString(code) {
		return validationErr(entityProject, "invalid project code %q: use 2-6 uppercase letters and 2-5 digits (e.g. CAP-001)", code)
	}
	return nil
}

// Project owns WBS nodes, budgets and planning packages.
type Project struct {
	ID          string
	Code        string
	Name        string
	Description string
	Currency    string
	StartDate   *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProject(id, code, name, currency string, start *time.Time, now time.Time) (*Project, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateProjectCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, validationErr(entityProject, "name is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := ValidateCurrency(currency); err != nil {
		return nil, err
	}
	return &Project{
		ID:        id,
		Code:      code,
		Name:      strings.TrimSpace(name),
		Currency:  currency,
		StartDate: copyTime(start),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
