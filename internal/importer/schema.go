package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ImportSchema is the top-level structure of a WBS import file. Project is
// optional when importing into an existing project.
type ImportSchema struct {
	Project *ProjectImport `json:"project,omitempty" yaml:"project,omitempty"`
	Nodes   []NodeImport   `json:"nodes" yaml:"nodes"`
	Budgets []BudgetImport `json:"budgets,omitempty" yaml:"budgets,omitempty"`
}

// ProjectImport defines the project created by the import.
type ProjectImport struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Currency    string `json:"currency,omitempty" yaml:"currency,omitempty"`
	StartDate   string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
}

// NodeImport defines one WBS node. The parent is implied by the code:
// "1.2.3" is created under "1.2".
type NodeImport struct {
	Code           string `json:"code" yaml:"code"`
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	Kind           string `json:"kind,omitempty" yaml:"kind,omitempty"`
	ControlAccount string `json:"control_account,omitempty" yaml:"control_account,omitempty"`

	// Work package facts.
	Method       string           `json:"method,omitempty" yaml:"method,omitempty"`
	Budget       *decimal.Decimal `json:"budget,omitempty" yaml:"budget,omitempty"`
	Progress     *float64         `json:"progress,omitempty" yaml:"progress,omitempty"`
	PlannedStart string           `json:"planned_start,omitempty" yaml:"planned_start,omitempty"`
	PlannedEnd   string           `json:"planned_end,omitempty" yaml:"planned_end,omitempty"`

	// Planning package facts.
	Estimate  *decimal.Decimal `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	ConvertBy string           `json:"convert_by,omitempty" yaml:"convert_by,omitempty"`
}

// BudgetImport defines a draft budget and its line items.
type BudgetImport struct {
	Version     string          `json:"version,omitempty" yaml:"version,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string          `json:"type,omitempty" yaml:"type,omitempty"`
	Currency    string          `json:"currency,omitempty" yaml:"currency,omitempty"`
	Total       decimal.Decimal `json:"total" yaml:"total"`
	Contingency decimal.Decimal `json:"contingency_pct,omitempty" yaml:"contingency_pct,omitempty"`
	Reserve     decimal.Decimal `json:"reserve_pct,omitempty" yaml:"reserve_pct,omitempty"`
	Items       []ItemImport    `json:"items,omitempty" yaml:"items,omitempty"`
}

// ItemImport defines a budget line item. Amount overrides quantity × rate.
type ItemImport struct {
	Code           string           `json:"code" yaml:"code"`
	Description    string           `json:"description" yaml:"description"`
	CostType       string           `json:"cost_type,omitempty" yaml:"cost_type,omitempty"`
	Category       string           `json:"category,omitempty" yaml:"category,omitempty"`
	Quantity       decimal.Decimal  `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Rate           decimal.Decimal  `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty" yaml:"amount,omitempty"`
	UnitOfMeasure  string           `json:"uom,omitempty" yaml:"uom,omitempty"`
	AccountingCode string           `json:"account,omitempty" yaml:"account,omitempty"`
	ControlAccount string           `json:"control_account,omitempty" yaml:"control_account,omitempty"`
}

// LoadImportSchema reads an import file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. Unknown fields are rejected.
func LoadImportSchema(path string) (*ImportSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseJSON(data []byte) (*ImportSchema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var schema ImportSchema
	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}

func ParseYAML(data []byte) (*ImportSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var schema ImportSchema
	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}
