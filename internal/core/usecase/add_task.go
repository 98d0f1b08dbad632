package usecase

import (
	"context"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
	"task-registry-service/internal/core/port/usecases_port"
)

type AddTaskUseCase struct {
	repo     port.TaskRepositoryPort
	notifier port.RosterNotifierPort
	taskList domain.TaskList
}

func NewAddTaskUseCase(repo port.TaskRepositoryPort, notifier port.RosterNotifierPort, taskList domain.TaskList) *AddTaskUseCase {
	return &AddTaskUseCase{
		repo:     repo,
		notifier: notifier,
		taskList: taskList,
	}
}

func (uc *AddTaskUseCase) Execute(ctx context.Context, params usecases_port.NewTaskParams) (*domain.Task, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "AddTask",
		"task_id":   params.ID,
		"task_type": params.Type,
		"task_list": uc.taskList.Name,
	})

	ucLogger.Info("Use case started", nil)

	task := domain.NewTask(params.ID, params.Name, params.Type, params.Status, params.InputData, params.OutputData)

	// Повторная доставка того же события не создает дубликатов и не
	// откатывает жизненный цикл: Save вернет сохраненное состояние задачи
	if err := uc.repo.Save(ctx, task, uc.taskList); err != nil {
		ucLogger.Error("Repository failed to save task", err, nil)
		return nil, err
	}

	ucLogger.Info("Task persisted, notifying roster", port.Fields{"status": task.Status})

	// Запись уже зафиксирована; сбой уведомления ее не откатывает.
	// Адаптер логирует ошибки доставки сам.
	uc.notifier.NotifyTaskAdded(ctx, domain.TaskAddedEvent{
		TaskID:       task.ID,
		TaskListName: uc.taskList.Name,
	})

	ucLogger.Info("Use case finished successfully", nil)
	return task, nil
}
