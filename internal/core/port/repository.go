package port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

// TaskRepositoryPort - контракт моста персистентности. Хранилище — единственный
// владелец долговременного состояния задач; никакой компонент не кеширует Task
// между запросами.
type TaskRepositoryPort interface {
	// Save сохраняет новую задачу. Повторный вызов для уже существующей
	// идентичности не создает дубликатов и не перезаписывает документ —
	// событие создания не имеет права откатить ушедший вперед жизненный
	// цикл; task при этом гидрируется сохраненным состоянием.
	Save(ctx context.Context, task *domain.Task, list domain.TaskList) error
	// Update перезаписывает задачу только если task.Version совпадает с версией
	// в хранилище; при несовпадении возвращает ErrVersionConflict, при отсутствии
	// задачи — ErrTaskNotFound. Успех инкрементирует task.Version.
	Update(ctx context.Context, task *domain.Task, list domain.TaskList) error
	// FindByID - read-only проекция; ErrTaskNotFound, если задачи нет
	FindByID(ctx context.Context, taskID string, list domain.TaskList) (*domain.Task, error)
	FindAll(ctx context.Context, list domain.TaskList, limit, offset int) ([]domain.Task, int64, error)
}
