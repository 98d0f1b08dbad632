package usecases_port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

type ExecuteTaskUseCasePort interface {
	Execute(ctx context.Context, taskID string, outputData *string) (*domain.Task, error)
}
