package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/contracts"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/event"
	"task-registry-service/internal/core/port"
	"task-registry-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	addTaskUC  usecases_port.AddTaskUseCasePort
	getTaskUC  usecases_port.GetTaskByIdUseCasePort
	getTasksUC usecases_port.GetTasksListUseCasePort
	dispatcher *event.Dispatcher
	taskList   domain.TaskList
}

// NewTaskHandler - конструктор
func NewTaskHandler(
	addUC usecases_port.AddTaskUseCasePort,
	getUC usecases_port.GetTaskByIdUseCasePort,
	getTasksUC usecases_port.GetTasksListUseCasePort,
	dispatcher *event.Dispatcher,
	taskList domain.TaskList,
) *TaskHandler {
	return &TaskHandler{
		addTaskUC:  addUC,
		getTaskUC:  getUC,
		getTasksUC: getTasksUC,
		dispatcher: dispatcher,
		taskList:   taskList,
	}
}

// RegisterTaskEvent - обработчик POST /taskEvents: событие о новой задаче
// от сервиса-коллаборатора
func (h *TaskHandler) RegisterTaskEvent(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RegisterTaskEvent"})

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("Failed to read task event request body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Контракт проверяется до декодирования: битые события отклоняем сразу
	if err := contracts.Validate(contracts.SchemaTaskEvent, body); err != nil {
		logger.Warn("Task event payload failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Task event does not match the expected shape")
		return
	}

	var req TaskEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("Failed to decode task event request body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	handlerLogger := logger.WithFields(port.Fields{
		"task_id":   req.TaskID,
		"task_type": req.TaskType,
	})
	handlerLogger.Info("Processing task event", nil)

	params := usecases_port.NewTaskParams{
		ID:         req.TaskID,
		Name:       req.TaskName,
		Type:       req.TaskType,
		Status:     domain.TaskStatus(req.TaskStatus),
		InputData:  optionalPayload(req.InputData),
		OutputData: optionalPayload(req.OutputData),
	}

	task, err := h.addTaskUC.Execute(r.Context(), params)
	if err != nil {
		h.writeDependencyOr500(w, handlerLogger, "AddTask use case failed", err)
		return
	}

	handlerLogger.Info("Task registered successfully", port.Fields{"status": task.Status})
	w.Header().Set("Location", "/tasks/"+task.ID)
	RespondWithJSON(w, http.StatusCreated, toTaskResponse(task, h.taskList.Name))
}

// PatchTask - обработчик PATCH /tasks/{taskID}: partial-update с переходом
// жизненного цикла
func (h *TaskHandler) PatchTask(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "PatchTask"})

	taskID := chi.URLParam(r, "taskID")
	handlerLogger := logger.WithFields(port.Fields{"task_id": taskID})

	var ops []event.PatchOperation
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		handlerLogger.Warn("Failed to decode patch request body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Request body must be a list of patch operations")
		return
	}

	domainEvent, err := event.Translate(taskID, ops)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedPatch):
			handlerLogger.Warn("Malformed patch payload", port.Fields{"error": err.Error()})
			WriteJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUnknownEvent):
			// Транспорт в порядке, но такой формы события мы не знаем
			handlerLogger.Warn("Unrecognized event shape", port.Fields{"error": err.Error()})
			WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			handlerLogger.Error("Translator failed unexpectedly", err, nil)
			WriteJSONError(w, http.StatusInternalServerError, "Failed to process patch")
		}
		return
	}

	handlerLogger.Info("Processing lifecycle event", port.Fields{"event": domainEvent.Kind()})

	if err := h.dispatcher.Dispatch(r.Context(), domainEvent); err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			handlerLogger.Warn("Patch failed: task not found", nil)
			WriteJSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrInvalidTransition):
			handlerLogger.Warn("Patch failed: invalid transition", port.Fields{"error": err.Error()})
			WriteJSONError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrVersionConflict):
			handlerLogger.Warn("Patch failed: concurrent update won", nil)
			WriteJSONError(w, http.StatusConflict, err.Error())
		default:
			h.writeDependencyOr500(w, handlerLogger, "Event dispatch failed", err)
		}
		return
	}

	handlerLogger.Info("Lifecycle event applied successfully", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetTaskByID"})

	taskID := chi.URLParam(r, "taskID")
	handlerLogger := logger.WithFields(port.Fields{"task_id": taskID})
	handlerLogger.Info("Processing request to get task by ID", nil)

	task, err := h.getTaskUC.Execute(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			handlerLogger.Warn("Get task failed: task not found", nil)
			WriteJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeDependencyOr500(w, handlerLogger, "GetTaskByID use case failed", err)
		return
	}

	handlerLogger.Info("Successfully retrieved task by ID", nil)
	RespondWithJSON(w, http.StatusOK, toTaskResponse(task, h.taskList.Name))
}

func (h *TaskHandler) GetTasksList(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetTasksList"})

	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(query.Get("perPage"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	limit := perPage
	offset := (page - 1) * perPage

	handlerLogger := logger.WithFields(port.Fields{"limit": limit, "offset": offset})
	handlerLogger.Info("Processing request to get tasks list", nil)

	tasks, totalCount, err := h.getTasksUC.Execute(r.Context(), limit, offset)
	if err != nil {
		h.writeDependencyOr500(w, handlerLogger, "GetTasksList use case failed", err)
		return
	}

	handlerLogger.Info("Successfully retrieved tasks list", port.Fields{
		"total_found":   totalCount,
		"items_on_page": len(tasks),
	})

	taskResponses := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		taskResponses[i] = toTaskResponse(&task, h.taskList.Name)
	}

	RespondWithJSON(w, http.StatusOK, PaginatedTasksResponse{
		Data:    taskResponses,
		Total:   totalCount,
		Page:    page,
		PerPage: perPage,
	})
}

// writeDependencyOr500 отражает инфраструктурные сбои в 5xx, не смешивая их
// с доменными ошибками
func (h *TaskHandler) writeDependencyOr500(w http.ResponseWriter, logger port.LoggerPort, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrDependencyTimeout):
		logger.Error(msg, err, nil)
		WriteJSONError(w, http.StatusGatewayTimeout, "Dependency call timed out")
	case errors.Is(err, domain.ErrDependencyUnavailable):
		logger.Error(msg, err, nil)
		WriteJSONError(w, http.StatusServiceUnavailable, "Dependency unavailable")
	default:
		logger.Error(msg, err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// optionalPayload: пустая строка на проводе означает отсутствующее значение
func optionalPayload(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
