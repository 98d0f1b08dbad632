package usecase

import (
	"context"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
)

type GetTaskByIdUseCase struct {
	repo     port.TaskRepositoryPort
	taskList domain.TaskList
}

func NewGetTaskByIdUseCase(repo port.TaskRepositoryPort, taskList domain.TaskList) *GetTaskByIdUseCase {
	return &GetTaskByIdUseCase{
		repo:     repo,
		taskList: taskList,
	}
}

func (uc *GetTaskByIdUseCase) Execute(ctx context.Context, taskID string) (*domain.Task, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "GetTaskById", "task_id": taskID, "task_list": uc.taskList.Name})

	ucLogger.Info("Use case started", nil)

	task, err := uc.repo.FindByID(ctx, taskID, uc.taskList)
	if err != nil {
		ucLogger.Error("Repository failed to find task", err, nil)
		return nil, err
	}

	ucLogger.Info("Use case finished successfully", nil)
	return task, nil
}
