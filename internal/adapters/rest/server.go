package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	core_port "task-registry-service/internal/core/port"
)

// Server - REST API сервер реестра задач
type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewRouter собирает роутинг сервиса. Вынесен отдельно, чтобы хендлеры можно
// было тестировать через httptest без поднятия слушающего сокета.
func NewRouter(handlers *TaskHandler, baseLogger core_port.LoggerPort) chi.Router {
	r := chi.NewRouter()

	// Общие middleware
	r.Use(LoggerMiddleware(baseLogger))
	r.Use(middleware.Recoverer)

	// POST /taskEvents - событие о новой задаче от сервиса-коллаборатора.
	// Межсервисный вызов, доверяем внутренней сети.
	r.Post("/taskEvents", handlers.RegisterTaskEvent)

	r.Route("/tasks", func(r chi.Router) {
		// GET /tasks - страница задач списка
		r.Get("/", handlers.GetTasksList)

		// GET /tasks/{taskID} - детали задачи
		r.Get("/{taskID}", handlers.GetTaskByID)

		// PATCH /tasks/{taskID} - partial-update жизненного цикла
		r.Patch("/{taskID}", handlers.PatchTask)
	})

	return r
}

func NewServer(port string, handlers *TaskHandler, baseLogger core_port.LoggerPort) *Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: NewRouter(handlers, baseLogger),
	}

	return &Server{
		httpServer: srv,
		logger:     baseLogger,
	}
}

// Start запускает HTTP-сервер.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", core_port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop корректно останавливает сервер.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
