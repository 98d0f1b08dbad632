package domain

// Event - закрытое множество доменных событий жизненного цикла задачи.
// Закрытость (неэкспортируемый маркер) гарантирует, что транслятор и
// диспетчер работают с одним и тем же набором типов.
type Event interface {
	isEvent()
	// Kind - стабильное имя события для логов
	Kind() string
}

// TaskStartedEvent - исполнитель приступил к задаче
type TaskStartedEvent struct {
	TaskID string
}

func (TaskStartedEvent) isEvent()     {}
func (TaskStartedEvent) Kind() string { return "task_started" }

// TaskExecutedEvent - исполнитель завершил задачу.
// OutputData == nil означает, что задача завершилась без выходных данных.
type TaskExecutedEvent struct {
	TaskID     string
	OutputData *string
}

func (TaskExecutedEvent) isEvent()     {}
func (TaskExecutedEvent) Kind() string { return "task_executed" }

// TaskAddedEvent - в реестре появилась новая задача; публикуется внешнему
// коллаборатору, диспетчер входящих обновлений его не обрабатывает
type TaskAddedEvent struct {
	TaskID       string
	TaskListName string
}

func (TaskAddedEvent) isEvent()     {}
func (TaskAddedEvent) Kind() string { return "task_added" }
