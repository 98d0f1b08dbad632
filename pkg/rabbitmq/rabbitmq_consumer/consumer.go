package rabbitmq_consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"task-registry-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler функция-обработчик для полученных сообщений.
// Пакет сам решает, как делать ack/nack по возвращенной ошибке.
type MessageHandler func(delivery amqp.Delivery) error

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config
	// Настройки очереди
	QueueName    string
	DeclareQueue bool
	DurableQueue bool
	QueueArgs    amqp.Table
	// Настройки обменника для привязки
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	RoutingKeyForBind      string
	// Настройки QoS
	PrefetchCount int
	// Настройки потребителя
	ConsumerTag string

	// Механизм ретраев: сообщения после Nack уходят в retry-обменник,
	// отлеживаются в wait-очереди с TTL и возвращаются в основной обменник.
	// Исчерпавшие MaxRetries публикуются в финальный DLX.
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int // миллисекунды
	FinalDLXExchange     string
	FinalDLQ             string
	FinalDLQRoutingKey   string
	MaxRetries           int

	Logger rabbitmq_common.Logger
}

// Consumer потребляет сообщения очереди и распределяет их по горутинам
type Consumer struct {
	config          ConsumerConfig
	connection      *amqp.Connection
	channel         *amqp.Channel
	publishChannel  *amqp.Channel // отдельный канал для публикаций в финальный DLX
	actualQueueName string
	handler         MessageHandler
	wg              sync.WaitGroup

	Logger rabbitmq_common.Logger
}

// NewConsumer создает потребителя и настраивает всю топологию
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*Consumer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consumer: invalid base config: %w", err)
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return nil, fmt.Errorf("consumer: queue name is required if DeclareQueue is false")
	}
	if cfg.DeclareExchangeForBind && cfg.ExchangeNameForBind != "" && cfg.ExchangeTypeForBind == "" {
		return nil, fmt.Errorf("consumer: exchange type is required if declaring an exchange for binding")
	}
	if handler == nil {
		return nil, fmt.Errorf("consumer: message handler is required")
	}

	c := &Consumer{
		config:  cfg,
		handler: handler,
		Logger:  logger,
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to get channel from manager: %w", err)
	}
	c.connection = conn // ссылка нужна для NotifyClose
	c.channel = ch

	if err := c.setupTopology(); err != nil {
		_ = c.channel.Close()
		return nil, fmt.Errorf("consumer: topology setup failed: %w", err)
	}

	if cfg.EnableRetryMechanism {
		// Публикация и потребление не делят один канал
		_, pubCh, err := connManager.GetChannel()
		if err != nil {
			_ = c.channel.Close()
			return nil, fmt.Errorf("consumer: failed to open publish channel: %w", err)
		}
		c.publishChannel = pubCh
	}

	return c, nil
}

// setupTopology объявляет очередь, обменник, привязку и ретрай-сателлиты
func (c *Consumer) setupTopology() error {
	if c.config.PrefetchCount > 0 {
		c.Logger.Debug("Setting QoS", "prefetch_count", c.config.PrefetchCount)
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	if c.config.EnableRetryMechanism {
		if c.config.QueueArgs == nil {
			c.config.QueueArgs = amqp.Table{}
		}
		// "мертвые" сообщения из основной очереди должны идти в retry-exchange
		c.config.QueueArgs["x-dead-letter-exchange"] = c.config.RetryExchange
	}

	c.actualQueueName = c.config.QueueName
	if c.config.DeclareQueue {
		c.Logger.Debug("Declaring queue", "name", c.config.QueueName, "durable", c.config.DurableQueue)
		q, err := c.channel.QueueDeclare(
			c.config.QueueName,
			c.config.DurableQueue,
			false, // autoDelete
			false, // exclusive
			false, // noWait
			c.config.QueueArgs,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", c.config.QueueName, err)
		}
		c.actualQueueName = q.Name
	}

	if c.config.DeclareExchangeForBind {
		c.Logger.Debug("Declaring exchange", "name", c.config.ExchangeNameForBind, "type", c.config.ExchangeTypeForBind)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // autoDelete
			false, // internal
			false, // noWait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", c.config.ExchangeNameForBind, err)
		}
	}

	if c.config.ExchangeNameForBind != "" {
		c.Logger.Debug("Binding queue to exchange",
			"queue_name", c.actualQueueName,
			"exchange_name", c.config.ExchangeNameForBind,
			"routing_key", c.config.RoutingKeyForBind,
		)
		err := c.channel.QueueBind(c.actualQueueName, c.config.RoutingKeyForBind, c.config.ExchangeNameForBind, false, nil)
		if err != nil {
			return fmt.Errorf("failed to bind queue '%s': %w", c.actualQueueName, err)
		}
	}

	if !c.config.EnableRetryMechanism {
		c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
		return nil
	}

	// Финальные DLX и DLQ — "свалка" для сообщений, исчерпавших все попытки
	c.Logger.Debug("Declaring final DLX", "name", c.config.FinalDLXExchange)
	if err := c.channel.ExchangeDeclare(c.config.FinalDLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLX: %w", err)
	}
	c.Logger.Debug("Declaring final DLQ", "name", c.config.FinalDLQ)
	if _, err := c.channel.QueueDeclare(c.config.FinalDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLQ: %w", err)
	}
	if err := c.channel.QueueBind(c.config.FinalDLQ, c.config.FinalDLQRoutingKey, c.config.FinalDLXExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind final DLQ: %w", err)
	}

	// Ретрай-сателлиты: fanout-обменник и wait-очередь с TTL,
	// возвращающая сообщения в основной обменник
	c.Logger.Debug("Declaring retry exchange", "name", c.config.RetryExchange)
	if err := c.channel.ExchangeDeclare(c.config.RetryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}
	c.Logger.Debug("Declaring retry-wait queue with TTL", "name", c.config.RetryQueue, "ttl", c.config.RetryTTL)
	_, err := c.channel.QueueDeclare(
		c.config.RetryQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{
			"x-message-ttl":          int32(c.config.RetryTTL),
			"x-dead-letter-exchange": c.config.ExchangeNameForBind,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry-wait queue: %w", err)
	}
	if err := c.channel.QueueBind(c.config.RetryQueue, "", c.config.RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry-wait queue: %w", err)
	}

	c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
	return nil
}

// StartConsuming начинает потребление сообщений; блокируется до отмены
// контекста или потери соединения
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.channel == nil || c.connection == nil || c.connection.IsClosed() {
		return fmt.Errorf("consumer: not connected")
	}

	msgs, err := c.channel.Consume(
		c.actualQueueName,
		c.config.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer %s: failed to register on queue '%s': %w", c.config.ConsumerTag, c.actualQueueName, err)
	}

	c.Logger.Info("[*] Waiting for messages on queue", "queue_name", c.actualQueueName)

	go func() {
		for {
			// Приоритетная неблокирующая проверка на отмену, чтобы не запускать
			// нового обработчика после команды на остановку
			select {
			case <-ctx.Done():
				c.Logger.Info("Context cancelled for consumer. Exiting consumption loop.", "consumer_tag", c.config.ConsumerTag)
				return
			default:
			}

			select {
			case <-ctx.Done():
				c.Logger.Info("Context cancelled for consumer. Exiting consumption loop.", "consumer_tag", c.config.ConsumerTag)
				return

			case d, ok := <-msgs:
				if !ok {
					c.Logger.Info("Deliveries channel closed by RabbitMQ. Exiting loop.", "consumer_tag", c.config.ConsumerTag)
					return
				}

				c.wg.Add(1)
				go func(delivery amqp.Delivery) {
					defer c.wg.Done()
					c.processDelivery(delivery)
				}(d)
			}
		}
	}()

	notifyClose := make(chan *amqp.Error)
	c.connection.NotifyClose(notifyClose)

	select {
	case <-ctx.Done():
		// Штатное завершение, не ошибка
		c.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", c.config.ConsumerTag)
		return nil

	case err := <-notifyClose:
		c.Logger.Error(err, "Connection closed for consumer.", "consumer_tag", c.config.ConsumerTag)
		return err
	}
}

func (c *Consumer) processDelivery(delivery amqp.Delivery) {
	c.Logger.Debug("[->] Started processing message", "delivery_tag", delivery.DeliveryTag)

	processErr := c.handler(delivery)
	if processErr == nil {
		_ = delivery.Ack(false)
		c.Logger.Debug("[+] Message Ack'd", "delivery_tag", delivery.DeliveryTag)
		return
	}

	c.Logger.Error(processErr, "Handler error for message", "delivery_tag", delivery.DeliveryTag)

	if !c.config.EnableRetryMechanism {
		c.Logger.Info("Retry disabled. Nacking message without requeue.", "delivery_tag", delivery.DeliveryTag)
		_ = delivery.Nack(false, false)
		return
	}

	deathCount := c.getDeathCount(delivery)
	if deathCount < int64(c.config.MaxRetries) {
		// Лимит не достигнут — Nack(requeue=false) уводит сообщение в ретрай-цикл
		c.Logger.Info("Retrying message", "delivery_tag", delivery.DeliveryTag, "death_count", deathCount)
		_ = delivery.Nack(false, false)
		return
	}

	// Лимит ретраев исчерпан, публикуем в финальный DLX
	c.Logger.Info("Max retries reached for message. Publishing to final DLX.", "delivery_tag", delivery.DeliveryTag)
	err := c.publishChannel.PublishWithContext(
		context.Background(),
		c.config.FinalDLXExchange,
		c.config.FinalDLQRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  delivery.ContentType,
			Body:         delivery.Body,
			Headers:      delivery.Headers,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		c.Logger.Error(err, "Failed to publish to final DLX. Nacking to trigger retry loop again.", "delivery_tag", delivery.DeliveryTag)
		_ = delivery.Nack(false, false)
		return
	}
	// Копия в DLQ, можно подтверждать оригинал
	_ = delivery.Ack(false)
}

// getDeathCount - сколько раз сообщение уже умирало в основной очереди (x-death)
func (c *Consumer) getDeathCount(d amqp.Delivery) int64 {
	if d.Headers == nil {
		return 0
	}
	xDeath, ok := d.Headers["x-death"]
	if !ok {
		return 0
	}
	deaths, ok := xDeath.([]interface{})
	if !ok {
		return 0
	}

	for _, death := range deaths {
		if tbl, ok := death.(amqp.Table); ok {
			if queue, ok := tbl["queue"].(string); ok && queue == c.actualQueueName {
				if count, ok := tbl["count"].(int64); ok {
					return count
				}
			}
		}
	}
	return 0
}

// Close дожидается обработчиков и закрывает каналы потребителя
func (c *Consumer) Close() error {
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()

	var firstErr error
	if c.publishChannel != nil {
		if err := c.publishChannel.Close(); err != nil {
			c.Logger.Error(err, "Error closing publish channel")
			firstErr = err
		}
		c.publishChannel = nil
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.Logger.Error(err, "Error closing channel")
			if firstErr == nil {
				firstErr = err
			}
		}
		c.channel = nil
	}

	c.Logger.Info("Consumer closed")
	return firstErr
}
