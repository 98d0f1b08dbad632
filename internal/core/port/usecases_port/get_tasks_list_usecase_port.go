package usecases_port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

type GetTasksListUseCasePort interface {
	Execute(ctx context.Context, limit, offset int) ([]domain.Task, int64, error)
}
