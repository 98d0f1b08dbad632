package usecase

import (
	"context"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
)

// ExecuteTaskUseCase применяет событие "задача выполнена": STARTED -> EXECUTED
type ExecuteTaskUseCase struct {
	repo     port.TaskRepositoryPort
	taskList domain.TaskList
}

func NewExecuteTaskUseCase(repo port.TaskRepositoryPort, taskList domain.TaskList) *ExecuteTaskUseCase {
	return &ExecuteTaskUseCase{repo: repo, taskList: taskList}
}

func (uc *ExecuteTaskUseCase) Execute(ctx context.Context, taskID string, outputData *string) (*domain.Task, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":   "ExecuteTask",
		"task_id":    taskID,
		"task_list":  uc.taskList.Name,
		"has_output": outputData != nil,
	})

	ucLogger.Info("Use case started", nil)

	task, err := uc.repo.FindByID(ctx, taskID, uc.taskList)
	if err != nil {
		ucLogger.Error("Repository failed to find task", err, nil)
		return nil, err
	}

	if err := task.Execute(outputData); err != nil {
		ucLogger.Warn("Execute precondition not met", port.Fields{"status": task.Status})
		return nil, err
	}

	if err := uc.repo.Update(ctx, task, uc.taskList); err != nil {
		ucLogger.Error("Repository failed to update task", err, nil)
		return nil, err
	}

	ucLogger.Info("Use case finished successfully", port.Fields{"new_status": task.Status})
	return task, nil
}
