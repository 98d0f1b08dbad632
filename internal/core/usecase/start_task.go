package usecase

import (
	"context"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
)

// StartTaskUseCase применяет событие "задача запущена": ASSIGNED -> STARTED
type StartTaskUseCase struct {
	repo     port.TaskRepositoryPort
	taskList domain.TaskList
}

func NewStartTaskUseCase(repo port.TaskRepositoryPort, taskList domain.TaskList) *StartTaskUseCase {
	return &StartTaskUseCase{repo: repo, taskList: taskList}
}

func (uc *StartTaskUseCase) Execute(ctx context.Context, taskID string) (*domain.Task, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "StartTask",
		"task_id":   taskID,
		"task_list": uc.taskList.Name,
	})

	ucLogger.Info("Use case started", nil)

	task, err := uc.repo.FindByID(ctx, taskID, uc.taskList)
	if err != nil {
		ucLogger.Error("Repository failed to find task", err, nil)
		return nil, err
	}

	if err := task.Start(); err != nil {
		ucLogger.Warn("Start precondition not met", port.Fields{"status": task.Status})
		return nil, err
	}

	// Версионная запись: при состязании за одну и ту же задачу проигравший
	// получает ErrVersionConflict, а не молча затирает чужой переход
	if err := uc.repo.Update(ctx, task, uc.taskList); err != nil {
		ucLogger.Error("Repository failed to update task", err, nil)
		return nil, err
	}

	ucLogger.Info("Use case finished successfully", port.Fields{"new_status": task.Status})
	return task, nil
}
