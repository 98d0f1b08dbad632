package usecases_port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

// NewTaskParams - данные входящего события о создании задачи
type NewTaskParams struct {
	ID         string
	Name       string
	Type       string
	Status     domain.TaskStatus
	InputData  *string
	OutputData *string
}

type AddTaskUseCasePort interface {
	Execute(ctx context.Context, params NewTaskParams) (*domain.Task, error)
}
