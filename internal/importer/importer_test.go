package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrDec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptrFloat(f float64) *float64 { return &f }

const plantYAML = `
project:
  code: CAP-001
  name: Capital Works
  currency: usd
  start_date: 2025-07-01
nodes:
  - code: "1.2"
    name: Mechanical
    kind: work_package
    budget: 1000
  - code: "1"
    name: Plant
  - code: "1.1"
    name: Civil
    kind: work_package
    method: milestone
    budget: "3000.50"
    progress: 50
    planned_start: 2025-07-01
    planned_end: 2025-09-30
  - code: "1.3"
    name: Utilities
    kind: planning_package
    estimate: 6000
    convert_by: 2025-10-01
budgets:
  - name: Control budget
    total: 100000
    contingency_pct: 10
    items:
      - code: MAT-01
        description: Steel
        cost_type: material
        quantity: 10
        rate: 250
`

func TestParseYAML_AndConvert(t *testing.T) {
	schema, err := ParseYAML([]byte(plantYAML))
	require.NoError(t, err)
	require.Empty(t, ValidateImportSchema(schema))

	require.NotNil(t, schema.Nodes[2].Budget)
	assert.True(t, ptrDec("3000.50").Equal(*schema.Nodes[2].Budget))

	plan := Convert(schema)
	require.NotNil(t, plan.Project)
	assert.Equal(t, "USD", plan.Project.Currency)
	require.NotNil(t, plan.Project.StartDate)

	codes := make([]string, 0, len(plan.Nodes))
	for _, n := range plan.Nodes {
		codes = append(codes, n.Input.Code)
	}
	assert.Equal(t, []string{"1", "1.1", "1.2", "1.3"}, codes, "parents first, then by code")
	assert.Equal(t, "", plan.Nodes[0].ParentCode)
	assert.Equal(t, "1", plan.Nodes[1].ParentCode)
	assert.Equal(t, domain.NodeSummary, plan.Nodes[0].Input.Kind, "kind defaults to summary")
	assert.Equal(t, domain.ProgressMilestone, plan.Nodes[1].Input.ProgressMethod)
	require.NotNil(t, plan.Nodes[1].PlannedEnd)
	require.NotNil(t, plan.Nodes[3].ConvertBy)

	require.Len(t, plan.Budgets, 1)
	b := plan.Budgets[0]
	assert.True(t, decimal.NewFromInt(100000).Equal(b.Input.TotalAmount))
	require.Len(t, b.Items, 1)
	assert.Equal(t, domain.CostMaterial, b.Items[0].CostType)
	assert.Equal(t, 1, b.Items[0].SortOrder)
	assert.Nil(t, b.Items[0].Amount)
}

func TestParseYAML_UnknownFieldRejected(t *testing.T) {
	_, err := ParseYAML([]byte("nodes:\n  - code: \"1\"\n    name: Plant\n    colour: red\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseJSON(t *testing.T) {
	schema, err := ParseJSON([]byte(`{"nodes":[{"code":"1","name":"Plant"},{"code":"1.1","name":"Civil","kind":"work_package","budget":"2500"}]}`))
	require.NoError(t, err)
	assert.Nil(t, schema.Project)
	require.Len(t, schema.Nodes, 2)
	assert.True(t, ptrDec("2500").Equal(*schema.Nodes[1].Budget))

	_, err = ParseJSON([]byte(`{"nodes":[], "extra": 1}`))
	assert.Error(t, err)
}

func TestLoadImportSchema_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "plant.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(plantYAML), 0o644))
	schema, err := LoadImportSchema(yamlPath)
	require.NoError(t, err)
	assert.Len(t, schema.Nodes, 4)

	jsonPath := filepath.Join(dir, "plant.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"nodes":[{"code":"1","name":"Plant"}]}`), 0o644))
	schema, err = LoadImportSchema(jsonPath)
	require.NoError(t, err)
	assert.Len(t, schema.Nodes, 1)

	_, err = LoadImportSchema(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestValidateImportSchema_Errors(t *testing.T) {
	tests := []struct {
		name   string
		schema ImportSchema
		want   string
	}{
		{
			name:   "project code required",
			schema: ImportSchema{Project: &ProjectImport{Name: "X"}},
			want:   "project.code is required",
		},
		{
			name:   "bad currency",
			schema: ImportSchema{Project: &ProjectImport{Code: "CAP-001", Name: "X", Currency: "dollars"}},
			want:   "project.currency",
		},
		{
			name:   "bad code",
			schema: ImportSchema{Nodes: []NodeImport{{Code: "1.x", Name: "Bad"}}},
			want:   "invalid WBS code",
		},
		{
			name:   "duplicate code",
			schema: ImportSchema{Nodes: []NodeImport{{Code: "1", Name: "A"}, {Code: "1", Name: "B"}}},
			want:   "duplicate code",
		},
		{
			name:   "root must be summary",
			schema: ImportSchema{Nodes: []NodeImport{{Code: "1", Name: "A", Kind: "work_package"}}},
			want:   "must be a summary",
		},
		{
			name: "child of work package",
			schema: ImportSchema{Nodes: []NodeImport{
				{Code: "1", Name: "A"},
				{Code: "1.1", Name: "B", Kind: "work_package"},
				{Code: "1.1.1", Name: "C"},
			}},
			want: "cannot have children",
		},
		{
			name:   "budget on summary",
			schema: ImportSchema{Nodes: []NodeImport{{Code: "1", Name: "A", Budget: ptrDec("5")}}},
			want:   "work packages only",
		},
		{
			name: "estimate on work package",
			schema: ImportSchema{Nodes: []NodeImport{
				{Code: "1", Name: "A"},
				{Code: "1.1", Name: "B", Kind: "work_package", Estimate: ptrDec("5")},
			}},
			want: "planning packages only",
		},
		{
			name: "progress range",
			schema: ImportSchema{Nodes: []NodeImport{
				{Code: "1", Name: "A"},
				{Code: "1.1", Name: "B", Kind: "work_package", Progress: ptrFloat(120)},
			}},
			want: "between 0 and 100",
		},
		{
			name: "dates reversed",
			schema: ImportSchema{Nodes: []NodeImport{
				{Code: "1", Name: "A"},
				{Code: "1.1", Name: "B", Kind: "work_package", PlannedStart: "2025-09-01", PlannedEnd: "2025-08-01"},
			}},
			want: "must not be before",
		},
		{
			name: "half a schedule",
			schema: ImportSchema{Nodes: []NodeImport{
				{Code: "1", Name: "A"},
				{Code: "1.1", Name: "B", Kind: "work_package", PlannedStart: "2025-09-01"},
			}},
			want: "given together",
		},
		{
			name:   "duplicate budget version",
			schema: ImportSchema{Budgets: []BudgetImport{{Name: "A"}, {Name: "B", Version: "V1"}}},
			want:   "duplicate version",
		},
		{
			name: "duplicate item code ignoring case",
			schema: ImportSchema{Budgets: []BudgetImport{{Name: "A", Items: []ItemImport{
				{Code: "MAT-01", Description: "x"}, {Code: "mat-01", Description: "y"},
			}}}},
			want: "duplicate code",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateImportSchema(&tc.schema)
			require.NotEmpty(t, errs)
			var msgs []string
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tc.want)
		})
	}
}

func TestParentCode(t *testing.T) {
	assert.Equal(t, "", ParentCode("1"))
	assert.Equal(t, "1", ParentCode("1.2"))
	assert.Equal(t, "1.2", ParentCode("1.2.10"))
}
