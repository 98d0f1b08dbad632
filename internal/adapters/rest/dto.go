package rest

import (
	"time"

	"task-registry-service/internal/core/domain"
)

// TaskEventRequest - плоское событие о новой задаче от сервиса-коллаборатора.
// Пустые inputData/outputData означают отсутствующее значение.
type TaskEventRequest struct {
	TaskID     string `json:"taskId"`
	TaskName   string `json:"taskName"`
	TaskType   string `json:"taskType"`
	TaskStatus string `json:"taskStatus"`
	InputData  string `json:"inputData"`
	OutputData string `json:"outputData"`
}

// TaskResponse - DTO для ответа с одной задачей.
// Опциональные payload-поля сериализуются только при наличии значения,
// чтобы потребитель снова увидел "отсутствует", а не пустую строку.
type TaskResponse struct {
	ID           string            `json:"taskId"`
	Name         string            `json:"taskName"`
	Type         string            `json:"taskType"`
	Status       domain.TaskStatus `json:"taskStatus"`
	InputData    *string           `json:"inputData,omitempty"`
	OutputData   *string           `json:"outputData,omitempty"`
	TaskListName string            `json:"taskListName"`
	Version      int64             `json:"version"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
}

// PaginatedTasksResponse - DTO для ответа со списком задач
type PaginatedTasksResponse struct {
	Data    []TaskResponse `json:"data"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"perPage"`
}

// toTaskResponse - маппер из доменной модели в DTO
func toTaskResponse(task *domain.Task, taskListName string) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		Name:         task.Name,
		Type:         task.Type,
		Status:       task.Status,
		InputData:    task.InputData,
		OutputData:   task.OutputData,
		TaskListName: taskListName,
		Version:      task.Version,
		CreatedAt:    task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    task.UpdatedAt.Format(time.RFC3339),
	}
}
