package constants

// Имена очередей
const (
	QueueTaskLifecycleEvents = "task_lifecycle_events"
)

// Ключи маршрутизации
const (
	RoutingKeyTaskLifecycle = "task.lifecycle.patch"
)

const MainExchange = "executor_events_exchange"

const (
	FinalDLXExchange   = "task_lifecycle_final_dlx"
	FinalDLQ           = "task_lifecycle_final_dlq"
	FinalDLQRoutingKey = "task_lifecycle.dlq.key"
)

const RetryTTL = 10000 // 10 секунд
