package usecases_port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

type StartTaskUseCasePort interface {
	Execute(ctx context.Context, taskID string) (*domain.Task, error)
}
