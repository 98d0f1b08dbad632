package usecases_port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

type GetTaskByIdUseCasePort interface {
	Execute(ctx context.Context, taskID string) (*domain.Task, error)
}
