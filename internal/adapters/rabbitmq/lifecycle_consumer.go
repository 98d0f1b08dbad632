package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"errors"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/contracts"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/event"
	"task-registry-service/internal/core/port"
	"task-registry-service/pkg/rabbitmq/rabbitmq_common"
	"task-registry-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DTO для сообщения от пула исполнителей
type TaskPatchDTO struct {
	TaskID string                 `json:"task_id"`
	Patch  []event.PatchOperation `json:"patch"`
}

// LifecycleConsumerAdapter - консьюмер событий жизненного цикла задач.
type LifecycleConsumerAdapter struct {
	consumer   *rabbitmq_consumer.Consumer
	dispatcher *event.Dispatcher
	logger     port.LoggerPort
}

// NewLifecycleConsumerAdapter - конструктор.
func NewLifecycleConsumerAdapter(
	cfg rabbitmq_consumer.ConsumerConfig,
	dispatcher *event.Dispatcher,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*LifecycleConsumerAdapter, error) {
	adapter := &LifecycleConsumerAdapter{dispatcher: dispatcher, logger: logger}

	// Логгер для pkg-уровня с контекстом нашего компонента
	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_consumer", "consumer_tag": cfg.ConsumerTag})
	cfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewConsumer(cfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, err
	}
	adapter.consumer = consumer
	return adapter, nil
}

// messageHandler - обработчик одного сообщения.
func (a *LifecycleConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID, ok := d.Headers["x-trace-id"].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	// Сообщения, не проходящие контракт, бессмысленно переотправлять
	if err := contracts.Validate(contracts.SchemaTaskPatch, d.Body); err != nil {
		msgLogger.Warn("Message violates task patch contract, rejecting.", port.Fields{"error": err.Error()})
		return nil
	}

	var dto TaskPatchDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		msgLogger.Error("Failed to unmarshal task patch DTO, rejecting message.", err, nil)
		return nil
	}

	handlerLogger := msgLogger.WithFields(port.Fields{
		"task_id": dto.TaskID,
	})
	ctx = contextkeys.ContextWithLogger(ctx, handlerLogger)

	handlerLogger.Info("Processing task lifecycle patch.", port.Fields{"operations": len(dto.Patch)})

	ev, err := event.Translate(dto.TaskID, dto.Patch)
	if err != nil {
		// Битый или нераспознанный payload не станет лучше после ретрая
		handlerLogger.Warn("Patch does not translate to a lifecycle event, rejecting.", port.Fields{"error": err.Error()})
		return nil
	}

	if err := a.dispatcher.Dispatch(ctx, ev); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Повторная доставка не сделает переход допустимым
			handlerLogger.Warn("Event rejected by task state machine, dropping.", port.Fields{"error": err.Error()})
			return nil
		}
		handlerLogger.Error("Failed to dispatch lifecycle event, message will be nacked for retry.", err, nil)
		return err
	}

	handlerLogger.Info("Successfully processed task lifecycle patch.", nil)
	return nil
}

// Start и Close методы, которые делегируют вызовы a.consumer.
func (a *LifecycleConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}
func (a *LifecycleConsumerAdapter) Close() error { return a.consumer.Close() }
