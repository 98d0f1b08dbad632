package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"task-registry-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTask(t *testing.T, repo *memoryRepo, list domain.TaskList, status domain.TaskStatus) *domain.Task {
	t.Helper()
	task := domain.NewTask("t-1", "build", "ci", status, strPtr("payload"), nil)
	require.NoError(t, repo.Save(context.Background(), task, list))
	return task
}

func TestStartTask(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusAssigned)
	uc := NewStartTaskUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, task.Status)
	assert.Equal(t, int64(2), task.Version)

	stored, err := repo.FindByID(context.Background(), "t-1", list)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, stored.Status)
}

func TestStartTask_UnknownTask(t *testing.T) {
	repo := newMemoryRepo()
	uc := NewStartTaskUseCase(repo, domain.TaskList{Name: "default"})

	task, err := uc.Execute(context.Background(), "missing")

	assert.Nil(t, task)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestStartTask_AlreadyStarted(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusStarted)
	uc := NewStartTaskUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1")

	assert.Nil(t, task)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Состояние в хранилище не изменилось
	stored, findErr := repo.FindByID(context.Background(), "t-1", list)
	require.NoError(t, findErr)
	assert.Equal(t, domain.StatusStarted, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestStartTask_ConcurrentDeliveries(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusAssigned)
	uc := NewStartTaskUseCase(repo, list)

	const workers = 8
	errsCh := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := uc.Execute(context.Background(), "t-1")
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	var succeeded int
	for err := range errsCh {
		if err == nil {
			succeeded++
			continue
		}
		// Проигравшие получают либо конфликт версий, либо отказ предусловия
		assert.True(t,
			errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrInvalidTransition),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := repo.FindByID(context.Background(), "t-1", list)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestExecuteTask(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusStarted)
	uc := NewExecuteTaskUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1", strPtr("42"))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, task.Status)
	require.NotNil(t, task.OutputData)
	assert.Equal(t, "42", *task.OutputData)

	stored, err := repo.FindByID(context.Background(), "t-1", list)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, stored.Status)
	require.NotNil(t, stored.OutputData)
	assert.Equal(t, "42", *stored.OutputData)
}

func TestExecuteTask_WithoutOutput(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusStarted)
	uc := NewExecuteTaskUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusExecuted, task.Status)
	assert.Nil(t, task.OutputData)
}

func TestExecuteTask_RequiresStartedStatus(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusAssigned)
	uc := NewExecuteTaskUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1", strPtr("42"))

	assert.Nil(t, task)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGetTaskById(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	seedTask(t, repo, list, domain.StatusAssigned)
	uc := NewGetTaskByIdUseCase(repo, list)

	task, err := uc.Execute(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, "t-1", task.ID)

	_, err = uc.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestGetTasksList_Pagination(t *testing.T) {
	repo := newMemoryRepo()
	list := domain.TaskList{Name: "default"}
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		task := domain.NewTask(id, "build", "ci", domain.StatusAssigned, nil, nil)
		require.NoError(t, repo.Save(context.Background(), task, list))
	}
	uc := NewGetTasksListUseCase(repo, list)

	tasks, total, err := uc.Execute(context.Background(), 2, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 2)

	tasks, total, err = uc.Execute(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 1)
}

func TestGetTasksList_ScopedToList(t *testing.T) {
	repo := newMemoryRepo()
	listA := domain.TaskList{Name: "alpha"}
	listB := domain.TaskList{Name: "beta"}
	require.NoError(t, repo.Save(context.Background(), domain.NewTask("t-1", "build", "ci", domain.StatusAssigned, nil, nil), listA))
	require.NoError(t, repo.Save(context.Background(), domain.NewTask("t-2", "build", "ci", domain.StatusAssigned, nil, nil), listB))

	uc := NewGetTasksListUseCase(repo, listA)
	tasks, total, err := uc.Execute(context.Background(), 10, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t-1", tasks[0].ID)
}
