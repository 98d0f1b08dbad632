package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	logger_adapter "task-registry-service/internal/adapters/logger"
	postgres_adapter "task-registry-service/internal/adapters/postgres"
	rabbitmq_adapter "task-registry-service/internal/adapters/rabbitmq"
	"task-registry-service/internal/adapters/rest"
	"task-registry-service/internal/adapters/roster_client"
	"task-registry-service/internal/configs"
	"task-registry-service/internal/constants"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/event"
	"task-registry-service/internal/core/port"
	"task-registry-service/internal/core/usecase"
	fluentlogger "task-registry-service/pkg/fluent_logger"
	"task-registry-service/pkg/postgres"
	"task-registry-service/pkg/rabbitmq/rabbitmq_common"
	"task-registry-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	config            *configs.AppConfig
	dbPool            *pgxpool.Pool
	apiServer         *rest.Server
	lifecycleListener port.EventListenerPort
	connManager       *rabbitmq_common.ConnectionManager

	logger       port.LoggerPort
	fluentClient *fluent.Fluent
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ИНИЦИАЛИЗАЦИЯ ЛОГГЕРОВ ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false, // текстовый формат
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	// Добавляем Fluent Bit логгер, если он включен в конфигурации
	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName, // Используем имя приложения как префикс
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	// Создаем наш композитный логгер
	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	// --- 2. СОЗДАЕМ БАЗОВЫЙ ЛОГГЕР ПРИЛОЖЕНИЯ С КОНТЕКСТОМ ---
	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 3. ИНИЦИАЛИЗАЦИЯ НИЗКОУРОВНЕВЫХ ЗАВИСИМОСТЕЙ ---
	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

	storageTimeout := time.Duration(appConfig.Database.TimeoutMs) * time.Millisecond
	taskRepo, err := postgres_adapter.NewPostgresTaskRepository(dbPool, storageTimeout)
	if err != nil {
		appLogger.Error("Failed to create postgres task repository", err, nil)
		dbPool.Close()
		return nil, fmt.Errorf("failed to create postgres storage adapter: %w", err)
	}

	rosterNotifier := roster_client.NewClient(
		appConfig.Roster.BaseURL,
		appConfig.Roster.PublicBaseURL,
		time.Duration(appConfig.Roster.TimeoutMs)*time.Millisecond,
	)
	appLogger.Info("Roster notifier initialized.", nil)

	taskList := domain.TaskList{Name: appConfig.TaskListName}

	// ИНИЦИАЛИЗАЦИЯ USE CASES (ядра бизнес-логики)
	addTaskUC := usecase.NewAddTaskUseCase(taskRepo, rosterNotifier, taskList)
	startTaskUC := usecase.NewStartTaskUseCase(taskRepo, taskList)
	executeTaskUC := usecase.NewExecuteTaskUseCase(taskRepo, taskList)
	getTaskByIdUC := usecase.NewGetTaskByIdUseCase(taskRepo, taskList)
	getTasksUC := usecase.NewGetTasksListUseCase(taskRepo, taskList)
	appLogger.Info("All use cases initialized.", nil)

	dispatcher := event.NewDispatcher(startTaskUC, executeTaskUC)

	// REST API Server
	apiHandlers := rest.NewTaskHandler(addTaskUC, getTaskByIdUC, getTasksUC, dispatcher, taskList)
	apiServer := rest.NewServer(fmt.Sprintf("%d", appConfig.Port), apiHandlers, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	application := &App{
		config:       appConfig,
		dbPool:       dbPool,
		apiServer:    apiServer,
		logger:       appLogger,
		fluentClient: fluentClient,
	}

	if !appConfig.RabbitMQ.Enabled {
		appLogger.Info("RabbitMQ disabled, lifecycle events will arrive over HTTP only.", nil)
		return application, nil
	}

	// --- 4. RABBITMQ: МЕНЕДЖЕР СОЕДИНЕНИЯ И КОНСЬЮМЕР СОБЫТИЙ ---
	connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger)
	connManager, err := rabbitmq_common.NewManager(appConfig.RabbitMQ.URL, connManagerBridge)
	if err != nil {
		appLogger.Error("Failed to create connection manager", err, nil)
		dbPool.Close()
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

	consumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:              constants.QueueTaskLifecycleEvents,
		RoutingKeyForBind:      constants.RoutingKeyTaskLifecycle,
		ExchangeNameForBind:    constants.MainExchange,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    "topic",
		DurableExchangeForBind: true,
		PrefetchCount:          5,
		DurableQueue:           true,
		ConsumerTag:            "task-lifecycle-processor-adapter",
		DeclareQueue:           true,

		// Сателлиты ретраев для этой конкретной очереди.
		// Имя основной очереди используется как префикс для уникальности.
		EnableRetryMechanism: true,
		RetryExchange:        constants.QueueTaskLifecycleEvents + "_retry_ex",
		RetryQueue:           constants.QueueTaskLifecycleEvents + "_retry_wait_10s",
		RetryTTL:             constants.RetryTTL,

		// Общая "свалка" для сообщений, исчерпавших все попытки.
		FinalDLXExchange:   constants.FinalDLXExchange,
		FinalDLQ:           constants.FinalDLQ,
		FinalDLQRoutingKey: constants.FinalDLQRoutingKey,

		// Количество ретраев помимо первой попытки.
		MaxRetries: 3,
	}

	lifecycleListener, err := rabbitmq_adapter.NewLifecycleConsumerAdapter(consumerCfg, dispatcher, baseLogger, connManager)
	if err != nil {
		appLogger.Error("Failed to create lifecycle consumer", err, nil)
		connManager.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create lifecycle consumer adapter: %w", err)
	}
	appLogger.Info("RabbitMQ lifecycle listener initialized.", nil)

	application.connManager = connManager
	application.lifecycleListener = lifecycleListener

	return application, nil
}

func (a *App) Run() error {
	// Единый контекст приложения для управления graceful shutdown
	appCtx, cancelApp := context.WithCancel(context.Background())

	// WaitGroup для ожидания завершения всех фоновых задач
	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		// Ждем завершения всех запущенных горутин (слушателей)
		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		// Теперь безопасно закрываем ресурсы
		if a.lifecycleListener != nil {
			if err := a.lifecycleListener.Close(); err != nil {
				a.logger.Error("Error closing lifecycle listener", err, nil)
			}
		}

		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
			}
		}

		if a.dbPool != nil {
			a.dbPool.Close()
			a.logger.Info("PostgreSQL pool closed.", nil)
		}

		a.logger.Info("Application shut down gracefully.", nil)
		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	errorsCh := make(chan error, 1)

	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Port})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errorsCh <- fmt.Errorf("HTTP server start error: %w", err)
		}
	}()

	if a.lifecycleListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listenerLogger := a.logger.WithFields(port.Fields{"listener": "Task Lifecycle Events Listener"})
			listenerLogger.Info("Starting listener...", nil)

			if err := a.lifecycleListener.Start(appCtx); err != nil {
				listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
				errorsCh <- fmt.Errorf("task lifecycle listener error: %w", err)
			} else {
				listenerLogger.Info("Listener stopped gracefully.", nil)
			}
		}()
	}

	// Ожидание сигнала на завершение или ошибки от одного из компонентов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down...", nil)
	}

	// Инициируем graceful shutdown, отменяя главный контекст
	cancelApp()

	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Безопасное значение по умолчанию
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
