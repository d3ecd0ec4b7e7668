package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importYAML = `project:
  code: IMP-010
  name: Imported Works
nodes:
  - code: "1"
    name: Plant
  - code: "1.1"
    name: Civil
    kind: work_package
    budget: 3000
    progress: 50
  - code: "1.2"
    name: Mechanical
    kind: work_package
    budget: 1000
    progress: 10
budgets:
  - name: Control budget
    total: 50000
    items:
      - code: MAT-01
        description: Steel
        quantity: 10
        rate: 250
`

func writeImportFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestImportCmd(t *testing.T) {
	app := testApp(t)
	path := writeImportFile(t, "works.yaml", importYAML)

	out := mustExec(t, app, "import", path)
	assert.Contains(t, out, "Imported IMP-010 Imported Works: 3 nodes, 1 budgets, 1 items")

	out = plain(mustExec(t, app, "wbs", "tree", "IMP-010"))
	assert.Contains(t, out, "4,000.00 USD")
	assert.Contains(t, out, "40.0%")

	out = plain(mustExec(t, app, "budget", "show", "IMP-010:v1"))
	assert.Contains(t, out, "MAT-01")

	_, err := executeCmd(t, app, "import", path)
	require.Error(t, err)
	assert.Equal(t, ExitValidation, ExitCode(err), "project code already used")
}

func TestImportCmd_DryRunAndExistingProject(t *testing.T) {
	app := testApp(t)
	path := writeImportFile(t, "works.yml", importYAML)

	out := mustExec(t, app, "import", path, "--dry-run")
	assert.Contains(t, out, "dry run, nothing saved")
	_, err := executeCmd(t, app, "project", "show", "IMP-010")
	assert.Equal(t, ExitNotFound, ExitCode(err))

	seedProject(t, app)
	mustExec(t, app, "wbs", "root", "CAP-001", "--code", "1", "--name", "Plant")
	nodes := writeImportFile(t, "nodes.json", `{"nodes":[{"code":"1.1","name":"Civil","kind":"work_package","budget":"2500"}]}`)
	out = mustExec(t, app, "import", nodes, "--project", "CAP-001")
	assert.Contains(t, out, "Imported CAP-001 Capital Works: 1 nodes, 0 budgets, 0 items")

	out = plain(mustExec(t, app, "wbs", "show", "CAP-001:1.1"))
	assert.Contains(t, out, "2,500.00 USD")
}

func TestImportCmd_InvalidFile(t *testing.T) {
	app := testApp(t)
	path := writeImportFile(t, "bad.json", `{"nodes":[{"code":"1","name":"Plant","kind":"work_package"}]}`)

	_, err := executeCmd(t, app, "import", path, "--project", "CAP-001")
	require.Error(t, err)
	assert.Equal(t, ExitValidation, ExitCode(err))
	assert.Contains(t, err.Error(), "must be a summary")

	_, err = executeCmd(t, app, "import")
	assert.Error(t, err)
}
