package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/alexanderramin/wbsledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "tester"

func setupRepos(t *testing.T) (
	repository.ProjectRepo,
	repository.WBSNodeRepo,
	repository.BudgetRepo,
	repository.PlanningPackageRepo,
	db.UnitOfWork,
) {
	database := testutil.NewTestDB(t)
	return repository.NewSQLiteProjectRepo(database),
		repository.NewSQLiteWBSNodeRepo(database),
		repository.NewSQLiteBudgetRepo(database),
		repository.NewSQLitePlanningPackageRepo(database),
		testutil.NewTestUoW(database)
}

// recordingObserver keeps every event for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (r *recordingObserver) ObserveUseCase(_ context.Context, e UseCaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) last() UseCaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func seedProject(t *testing.T, projects repository.ProjectRepo) *domain.Project {
	t.Helper()
	p := testutil.NewTestProject("Seed")
	require.NoError(t, projects.Create(context.Background(), p))
	return p
}

func TestEnsureID(t *testing.T) {
	assert.Equal(t, "keep", ensureID("keep"))
	generated := ensureID("  ")
	assert.Len(t, generated, 36)
	assert.NotEqual(t, generated, ensureID(""))
}

func TestRequireLiveProject_Inactive(t *testing.T) {
	projects, _, _, _, _ := setupRepos(t)
	ctx := context.Background()

	closed := testutil.NewTestProject("Closed", testutil.WithInactive())
	require.NoError(t, projects.Create(ctx, closed))

	_, err := requireLiveProject(ctx, projects, closed.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestLogUseCaseObserver_Text(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogUseCaseObserver(&buf, LogFormatText)
	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name:    "create-budget",
		Success: true,
		Fields:  map[string]any{"budget_id": "b-1"},
	})

	out := buf.String()
	assert.Contains(t, out, "msg=service_use_case")
	assert.Contains(t, out, "use_case=create-budget")
	assert.Contains(t, out, "budget_id=b-1")
	assert.Contains(t, out, "level=INFO")
}

func TestLogUseCaseObserver_JSONError(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogUseCaseObserver(&buf, LogFormatJSON)
	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name: "budget-lock",
		Err:  errors.New("budget is locked"),
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "budget-lock", record["use_case"])
	assert.Equal(t, false, record["success"])
	assert.Equal(t, "budget is locked", record["error"])
}

func TestLogUseCaseObserver_NilWriterIsNoop(t *testing.T) {
	obs := NewLogUseCaseObserver(nil, LogFormatText)
	assert.IsType(t, NoopUseCaseObserver{}, obs)
	assert.IsType(t, NoopUseCaseObserver{}, useCaseObserverOrNoop([]UseCaseObserver{nil}))
}
