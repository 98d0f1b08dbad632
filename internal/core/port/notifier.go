package port

import (
	"context"

	"task-registry-service/internal/core/domain"
)

// RosterNotifierPort - контракт для оповещения внешнего коллаборатора о новых
// задачах. Вызов fire-and-forget: ошибки доставки логируются адаптером и не
// влияют на результат запроса — запись в реестр к этому моменту уже
// зафиксирована.
type RosterNotifierPort interface {
	NotifyTaskAdded(ctx context.Context, event domain.TaskAddedEvent)
}
