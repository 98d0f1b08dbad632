package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/event"
	"task-registry-service/internal/core/port"
	"task-registry-service/internal/core/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopLogger - заглушка LoggerPort для тестов
type nopLogger struct{}

func (nopLogger) Info(msg string, fields port.Fields)             {}
func (nopLogger) Warn(msg string, fields port.Fields)             {}
func (nopLogger) Error(msg string, err error, fields port.Fields) {}
func (nopLogger) Debug(msg string, fields port.Fields)            {}
func (l nopLogger) WithFields(fields port.Fields) port.LoggerPort { return l }

// fakeRepo - in-memory реализация TaskRepositoryPort с версионной записью
type fakeRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	err   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[string]domain.Task)}
}

func (r *fakeRepo) Save(_ context.Context, task *domain.Task, list domain.TaskList) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tasks[task.ID]; ok {
		*task = existing
		return nil
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeRepo) Update(_ context.Context, task *domain.Task, list domain.TaskList) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %q: %w", task.ID, domain.ErrTaskNotFound)
	}
	if existing.Version != task.Version {
		return fmt.Errorf("task %q: %w", task.ID, domain.ErrVersionConflict)
	}
	task.Version++
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, taskID string, list domain.TaskList) (*domain.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrTaskNotFound)
	}
	copied := task
	return &copied, nil
}

func (r *fakeRepo) FindAll(_ context.Context, list domain.TaskList, limit, offset int) ([]domain.Task, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Task
	for _, task := range r.tasks {
		all = append(all, task)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.TaskAddedEvent
}

func (n *fakeNotifier) NotifyTaskAdded(_ context.Context, ev domain.TaskAddedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type testEnv struct {
	router   http.Handler
	repo     *fakeRepo
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	taskList := domain.TaskList{Name: "default"}

	addUC := usecase.NewAddTaskUseCase(repo, notifier, taskList)
	startUC := usecase.NewStartTaskUseCase(repo, taskList)
	executeUC := usecase.NewExecuteTaskUseCase(repo, taskList)
	getUC := usecase.NewGetTaskByIdUseCase(repo, taskList)
	getTasksUC := usecase.NewGetTasksListUseCase(repo, taskList)

	dispatcher := event.NewDispatcher(startUC, executeUC)
	handlers := NewTaskHandler(addUC, getUC, getTasksUC, dispatcher, taskList)

	return &testEnv{
		router:   NewRouter(handlers, nopLogger{}),
		repo:     repo,
		notifier: notifier,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerTask(t *testing.T, id string) {
	t.Helper()
	body := fmt.Sprintf(`{"taskId":%q,"taskName":"build","taskType":"ci","inputData":"payload"}`, id)
	rec := e.do(t, http.MethodPost, "/taskEvents", body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegisterTaskEvent(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/taskEvents",
		`{"taskId":"t-1","taskName":"build","taskType":"ci","inputData":"payload"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/tasks/t-1", rec.Header().Get("Location"))

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t-1", resp.ID)
	assert.Equal(t, domain.StatusAssigned, resp.Status)
	require.NotNil(t, resp.InputData)
	assert.Equal(t, "payload", *resp.InputData)
	assert.Nil(t, resp.OutputData)
	assert.Equal(t, "default", resp.TaskListName)

	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, "t-1", env.notifier.events[0].TaskID)
}

func TestRegisterTaskEvent_NameOptional(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/taskEvents",
		`{"taskId":"t-9","taskType":"print","inputData":"hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusAssigned, resp.Status)
	assert.Empty(t, resp.Name)
}

func TestRegisterTaskEvent_RejectsContractViolations(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `not-json`},
		{name: "missing required field", body: `{"taskId":"t-1","taskName":"build"}`},
		{name: "unknown field", body: `{"taskId":"t-1","taskName":"build","taskType":"ci","extra":1}`},
		{name: "bad status value", body: `{"taskId":"t-1","taskName":"build","taskType":"ci","taskStatus":"DONE"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/taskEvents", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, env.notifier.events)
}

func TestPatchTask_StartLifecycle(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	rec := env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"STARTED"}]`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	getRec := env.do(t, http.MethodGet, "/tasks/t-1", "")
	require.Equal(t, http.StatusOK, getRec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusStarted, resp.Status)
	assert.Equal(t, int64(2), resp.Version)
}

func TestPatchTask_ExecuteLifecycle(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	rec := env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"STARTED"}]`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"EXECUTED"},{"op":"replace","path":"/outputData","value":"42"}]`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	getRec := env.do(t, http.MethodGet, "/tasks/t-1", "")
	require.Equal(t, http.StatusOK, getRec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusExecuted, resp.Status)
	require.NotNil(t, resp.OutputData)
	assert.Equal(t, "42", *resp.OutputData)
}

func TestRegisterTaskEvent_RedeliveryKeepsLifecycleState(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	rec := env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"STARTED"}]`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Коллаборатор доставил событие создания повторно
	rec = env.do(t, http.MethodPost, "/taskEvents",
		`{"taskId":"t-1","taskName":"build","taskType":"ci","inputData":"payload"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusStarted, resp.Status)
	assert.Equal(t, int64(2), resp.Version)

	getRec := env.do(t, http.MethodGet, "/tasks/t-1", "")
	require.Equal(t, http.StatusOK, getRec.Code)
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusStarted, resp.Status)
}

func TestPatchTask_UnknownTask(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPatch, "/tasks/missing",
		`[{"op":"replace","path":"/taskStatus","value":"STARTED"}]`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchTask_UnrecognizedEventShape(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	rec := env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskName","value":"renamed"}]`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPatchTask_MalformedPayload(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	cases := []struct {
		name string
		body string
	}{
		{name: "not a list", body: `{"op":"replace"}`},
		{name: "empty list", body: `[]`},
		{
			name: "conflicting status operations",
			body: `[{"op":"replace","path":"/taskStatus","value":"STARTED"},{"op":"replace","path":"/taskStatus","value":"EXECUTED"}]`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, "/tasks/t-1", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPatchTask_InvalidTransition(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	// EXECUTED до STARTED нарушает предусловие перехода
	rec := env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"EXECUTED"}]`)

	assert.Equal(t, http.StatusConflict, rec.Code)

	// Состояние не изменилось
	getRec := env.do(t, http.MethodGet, "/tasks/t-1", "")
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusAssigned, resp.Status)
}

func TestGetTaskByID_NotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/tasks/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTasksList(t *testing.T) {
	env := newTestEnv()
	for i := 1; i <= 3; i++ {
		env.registerTask(t, fmt.Sprintf("t-%d", i))
	}

	rec := env.do(t, http.MethodGet, "/tasks?page=1&perPage=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PaginatedTasksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.PerPage)
}

func TestGetTasksList_DefaultsBadPagination(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	rec := env.do(t, http.MethodGet, "/tasks?page=-1&perPage=9999", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PaginatedTasksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PerPage)
}

func TestDependencyFailuresMapToGatewayErrors(t *testing.T) {
	env := newTestEnv()
	env.registerTask(t, "t-1")

	env.repo.err = domain.ErrDependencyTimeout
	rec := env.do(t, http.MethodGet, "/tasks/t-1", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	env.repo.err = domain.ErrDependencyUnavailable
	rec = env.do(t, http.MethodPatch, "/tasks/t-1",
		`[{"op":"replace","path":"/taskStatus","value":"STARTED"}]`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTaskResponse_OmitsAbsentPayloads(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/taskEvents",
		`{"taskId":"t-1","taskName":"build","taskType":"ci"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := rec.Body.String()
	assert.False(t, strings.Contains(body, "inputData"))
	assert.False(t, strings.Contains(body, "outputData"))
}
