package usecase

import (
	"context"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
)

type GetTasksListUseCase struct {
	repo     port.TaskRepositoryPort
	taskList domain.TaskList
}

func NewGetTasksListUseCase(repo port.TaskRepositoryPort, taskList domain.TaskList) *GetTasksListUseCase {
	return &GetTasksListUseCase{
		repo:     repo,
		taskList: taskList,
	}
}

func (uc *GetTasksListUseCase) Execute(ctx context.Context, limit, offset int) ([]domain.Task, int64, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "GetTasksList", "task_list": uc.taskList.Name, "limit": limit, "offset": offset})

	ucLogger.Info("Use case started", nil)

	tasks, count, err := uc.repo.FindAll(ctx, uc.taskList, limit, offset)
	if err != nil {
		ucLogger.Error("Repository failed to find tasks", err, nil)
		return nil, 0, err
	}

	ucLogger.Info("Use case finished successfully", port.Fields{"found_on_page": len(tasks), "total_count": count})
	return tasks, count, nil
}
