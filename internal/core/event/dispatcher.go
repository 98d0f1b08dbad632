package event

import (
	"context"
	"fmt"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"
	"task-registry-service/internal/core/port/usecases_port"
)

// Dispatcher маршрутизирует типизированное доменное событие в соответствующий
// use case. Stateless: вся маршрутизация — исчерпывающий type switch по
// закрытому множеству domain.Event, так что множества типов транслятора и
// диспетчера не могут разъехаться.
type Dispatcher struct {
	startTaskUC   usecases_port.StartTaskUseCasePort
	executeTaskUC usecases_port.ExecuteTaskUseCasePort
}

// NewDispatcher - конструктор
func NewDispatcher(startUC usecases_port.StartTaskUseCasePort, executeUC usecases_port.ExecuteTaskUseCasePort) *Dispatcher {
	return &Dispatcher{
		startTaskUC:   startUC,
		executeTaskUC: executeUC,
	}
}

// Dispatch вызывает обработчик события и возвращает его типизированную ошибку
// (ErrTaskNotFound, ErrInvalidTransition, ErrVersionConflict, ...) без
// сворачивания в boolean.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "EventDispatcher",
		"event":     ev.Kind(),
	})
	logger.Debug("Dispatching domain event", nil)

	switch e := ev.(type) {
	case domain.TaskStartedEvent:
		_, err := d.startTaskUC.Execute(ctx, e.TaskID)
		return err

	case domain.TaskExecutedEvent:
		_, err := d.executeTaskUC.Execute(ctx, e.TaskID, e.OutputData)
		return err

	default:
		// Сюда попадает только событие, для которого нет обработчика, —
		// нарушение внутреннего инварианта, а не ошибка клиента
		logger.Error("No handler registered for event", domain.ErrUnknownEvent, nil)
		return fmt.Errorf("no handler registered for event %T: %w", ev, domain.ErrUnknownEvent)
	}
}
