package domain

import (
	"fmt"
	"time"
)

// TaskStatus - перечисление для статусов жизненного цикла задачи
type TaskStatus string

const (
	StatusUnassigned TaskStatus = "UNASSIGNED"
	StatusAssigned   TaskStatus = "ASSIGNED"
	StatusStarted    TaskStatus = "STARTED"
	StatusExecuted   TaskStatus = "EXECUTED"
)

// statusRank задает строгий порядок статусов; переходы допустимы только вперед
var statusRank = map[TaskStatus]int{
	StatusUnassigned: 0,
	StatusAssigned:   1,
	StatusStarted:    2,
	StatusExecuted:   3,
}

// IsValid сообщает, входит ли статус в известное множество
func (s TaskStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Task - основная доменная сущность.
// InputData/OutputData - опциональные payload-поля: nil означает "значение отсутствует".
// OutputData остается nil, пока задача не достигла статуса EXECUTED.
type Task struct {
	ID         string
	Name       string
	Type       string
	Status     TaskStatus
	InputData  *string
	OutputData *string
	// Version — токен оптимистической конкуренции; проверяется хранилищем при каждой записи
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask - конструктор для новой задачи.
// Пустой статус означает, что создающая сторона его не указала — тогда задача
// считается уже назначенной (ASSIGNED). OutputData принимается только если
// задача создается сразу в статусе EXECUTED, иначе отбрасывается.
func NewTask(id, name, taskType string, status TaskStatus, input, output *string) *Task {
	if status == "" {
		status = StatusAssigned
	}
	if status != StatusExecuted {
		output = nil
	}
	now := time.Now().UTC()
	return &Task{
		ID:         id,
		Name:       name,
		Type:       taskType,
		Status:     status,
		InputData:  input,
		OutputData: output,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Start переводит задачу ASSIGNED -> STARTED
func (t *Task) Start() error {
	if t.Status != StatusAssigned {
		return fmt.Errorf("cannot start task %q in status %q: %w", t.ID, t.Status, ErrInvalidTransition)
	}
	t.Status = StatusStarted
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Execute переводит задачу STARTED -> EXECUTED и фиксирует результат.
// nil output допустим — задача завершилась, не произведя выходных данных.
func (t *Task) Execute(output *string) error {
	if t.Status != StatusStarted {
		return fmt.Errorf("cannot execute task %q in status %q: %w", t.ID, t.Status, ErrInvalidTransition)
	}
	t.Status = StatusExecuted
	t.OutputData = output
	t.UpdatedAt = time.Now().UTC()
	return nil
}
