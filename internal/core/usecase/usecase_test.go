package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"task-registry-service/internal/core/domain"
)

// memoryRepo - потокобезопасная in-memory реализация TaskRepositoryPort
// с той же версионной семантикой записи, что и у Postgres-адаптера.
type memoryRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task

	saveErr   error
	updateErr error
	findErr   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tasks: make(map[string]domain.Task)}
}

func repoKey(list domain.TaskList, taskID string) string {
	return list.Name + "/" + taskID
}

func (r *memoryRepo) Save(_ context.Context, task *domain.Task, list domain.TaskList) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := repoKey(list, task.ID)
	if existing, ok := r.tasks[key]; ok {
		// Существующий документ не перезаписываем: событие создания
		// не откатывает ушедший вперед жизненный цикл
		*task = existing
		return nil
	}
	r.tasks[key] = *task
	return nil
}

func (r *memoryRepo) Update(_ context.Context, task *domain.Task, list domain.TaskList) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := repoKey(list, task.ID)
	existing, ok := r.tasks[key]
	if !ok {
		return fmt.Errorf("task %q: %w", task.ID, domain.ErrTaskNotFound)
	}
	if existing.Version != task.Version {
		return fmt.Errorf("task %q version %d: %w", task.ID, task.Version, domain.ErrVersionConflict)
	}
	task.Version++
	r.tasks[key] = *task
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, taskID string, list domain.TaskList) (*domain.Task, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[repoKey(list, taskID)]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", taskID, domain.ErrTaskNotFound)
	}
	copied := task
	return &copied, nil
}

func (r *memoryRepo) FindAll(_ context.Context, list domain.TaskList, limit, offset int) ([]domain.Task, int64, error) {
	if r.findErr != nil {
		return nil, 0, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []domain.Task
	for key, task := range r.tasks {
		if key == repoKey(list, task.ID) {
			all = append(all, task)
		}
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

// recordingNotifier запоминает все полученные события
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.TaskAddedEvent
}

func (n *recordingNotifier) NotifyTaskAdded(_ context.Context, event domain.TaskAddedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) recorded() []domain.TaskAddedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.TaskAddedEvent(nil), n.events...)
}

func strPtr(s string) *string { return &s }
