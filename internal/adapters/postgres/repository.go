package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-registry-service/internal/contextkeys"
	"task-registry-service/internal/core/domain"
	"task-registry-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTaskRepository - реализация моста персистентности поверх PostgreSQL.
// Таблица — см. schema.sql: документ задачи плюс денормализованное имя списка
// (ключ партиции) и счетчик версии для оптимистической конкуренции.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
	// timeout ограничивает каждый вызов к хранилищу; истечение — это
	// ErrDependencyTimeout, а не доменная ошибка
	timeout time.Duration
}

// NewPostgresTaskRepository - конструктор.
func NewPostgresTaskRepository(pool *pgxpool.Pool, timeout time.Duration) (*PostgresTaskRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresTaskRepository{pool: pool, timeout: timeout}, nil
}

func (r *PostgresTaskRepository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// mapStoreErr переводит ошибки драйвера в инфраструктурную часть таксономии
func mapStoreErr(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", action, domain.ErrDependencyTimeout)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// Save сохраняет новую задачу по ключу (id, task_list_name). Повторный Save
// той же задачи не создает дубликатов и не перезаписывает существующий
// документ: жизненный цикл мог уже уйти вперед, и событие создания не имеет
// права откатить переход. Вместо этого task гидрируется сохраненным состоянием.
func (r *PostgresTaskRepository) Save(ctx context.Context, task *domain.Task, list domain.TaskList) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresTaskRepository",
		"method":    "Save",
		"task_id":   task.ID,
		"task_list": list.Name,
	})

	repoLogger.Debug("Inserting task document", port.Fields{"status": task.Status})

	query := `
		INSERT INTO tasks (id, task_list_name, name, type, status, input_data, output_data, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id, task_list_name) DO NOTHING
		RETURNING version
	`

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var version int64
	err := r.pool.QueryRow(opCtx, query,
		task.ID,
		list.Name,
		task.Name,
		task.Type,
		task.Status,
		payloadToColumn(task.InputData),
		payloadToColumn(task.OutputData),
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&version)
	if err == nil {
		task.Version = version
		repoLogger.Debug("Task saved successfully", nil)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		repoLogger.Error("Failed to save task", err, nil)
		return mapStoreErr(err, "failed to save task")
	}

	// Документ уже существует — повторная доставка события создания.
	// Возвращаем вызывающему то, что реально сохранено.
	existing, err := r.FindByID(ctx, task.ID, list)
	if err != nil {
		repoLogger.Error("Failed to load existing task after redelivered save", err, nil)
		return mapStoreErr(err, "failed to load existing task")
	}
	*task = *existing

	repoLogger.Debug("Task already exists, returning stored state", port.Fields{"status": task.Status, "version": task.Version})
	return nil
}

// Update перезаписывает документ только при совпадении версии (compare-and-swap).
// Проигравший гонку переход получает ErrVersionConflict и решает сам, повторять ли.
func (r *PostgresTaskRepository) Update(ctx context.Context, task *domain.Task, list domain.TaskList) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresTaskRepository",
		"method":    "Update",
		"task_id":   task.ID,
		"task_list": list.Name,
		"version":   task.Version,
	})

	repoLogger.Debug("Updating task document", port.Fields{"new_status": task.Status})

	query := `
		UPDATE tasks
		SET
			name        = $4,
			type        = $5,
			status      = $6,
			input_data  = $7,
			output_data = $8,
			version     = version + 1,
			updated_at  = $9
		WHERE id = $1 AND task_list_name = $2 AND version = $3
		RETURNING version
	`

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var newVersion int64
	err := r.pool.QueryRow(opCtx, query,
		task.ID,
		list.Name,
		task.Version,
		task.Name,
		task.Type,
		task.Status,
		payloadToColumn(task.InputData),
		payloadToColumn(task.OutputData),
		task.UpdatedAt,
	).Scan(&newVersion)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо задачи нет вовсе, либо нас обогнал другой переход —
			// различаем, чтобы вернуть правильную ошибку таксономии
			return r.classifyMissedUpdate(opCtx, repoLogger, task.ID, list)
		}
		repoLogger.Error("Failed to update task", err, nil)
		return mapStoreErr(err, "failed to update task")
	}

	task.Version = newVersion
	repoLogger.Debug("Task updated successfully", port.Fields{"new_version": newVersion})
	return nil
}

func (r *PostgresTaskRepository) classifyMissedUpdate(ctx context.Context, repoLogger port.LoggerPort, taskID string, list domain.TaskList) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND task_list_name = $2)`,
		taskID, list.Name,
	).Scan(&exists)
	if err != nil {
		repoLogger.Error("Failed to classify missed update", err, nil)
		return mapStoreErr(err, "failed to classify missed update")
	}
	if !exists {
		repoLogger.Warn("Update failed: task not found", nil)
		return domain.ErrTaskNotFound
	}
	repoLogger.Warn("Update failed: version conflict", nil)
	return domain.ErrVersionConflict
}

// FindByID находит одну задачу по ее идентичности. Чтение ничего не мутирует.
func (r *PostgresTaskRepository) FindByID(ctx context.Context, taskID string, list domain.TaskList) (*domain.Task, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresTaskRepository",
		"method":    "FindByID",
		"task_id":   taskID,
		"task_list": list.Name,
	})

	repoLogger.Debug("Finding task by ID.", nil)

	query := `
		SELECT id, name, type, status, input_data, output_data, version, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND task_list_name = $2
	`

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	var task domain.Task
	var inputData, outputData string

	err := r.pool.QueryRow(opCtx, query, taskID, list.Name).Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&task.Status,
		&inputData,
		&outputData,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			repoLogger.Warn("Task not found.", nil)
			return nil, domain.ErrTaskNotFound
		}
		repoLogger.Error("Failed to find task by ID", err, nil)
		return nil, mapStoreErr(err, "failed to find task by id")
	}

	task.InputData = columnToPayload(inputData)
	task.OutputData = columnToPayload(outputData)

	repoLogger.Debug("Task found successfully.", nil)
	return &task, nil
}

// FindAll возвращает страницу задач списка вместе с общим количеством
func (r *PostgresTaskRepository) FindAll(ctx context.Context, list domain.TaskList, limit, offset int) ([]domain.Task, int64, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresTaskRepository",
		"method":    "FindAll",
		"task_list": list.Name,
		"limit":     limit,
		"offset":    offset,
	})

	repoLogger.Debug("Starting transaction to find tasks of the list.", nil)

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(opCtx)
	if err != nil {
		repoLogger.Error("Failed to begin transaction", err, nil)
		return nil, 0, mapStoreErr(err, "failed to begin transaction")
	}
	defer tx.Rollback(opCtx)

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM tasks WHERE task_list_name = $1`
	if err := tx.QueryRow(opCtx, countQuery, list.Name).Scan(&totalCount); err != nil {
		repoLogger.Error("Failed to count tasks", err, nil)
		return nil, 0, mapStoreErr(err, "failed to count tasks")
	}

	if totalCount == 0 {
		return []domain.Task{}, 0, nil
	}

	dataQuery := `
		SELECT id, name, type, status, input_data, output_data, version, created_at, updated_at
		FROM tasks
		WHERE task_list_name = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := tx.Query(opCtx, dataQuery, list.Name, limit, offset)
	if err != nil {
		repoLogger.Error("Failed to query tasks", err, nil)
		return nil, 0, mapStoreErr(err, "failed to query tasks")
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0, limit)
	for rows.Next() {
		var task domain.Task
		var inputData, outputData string
		if err := rows.Scan(
			&task.ID, &task.Name, &task.Type, &task.Status,
			&inputData, &outputData, &task.Version,
			&task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			repoLogger.Error("Failed to scan task row", err, nil)
			return nil, 0, mapStoreErr(err, "failed to scan task")
		}
		task.InputData = columnToPayload(inputData)
		task.OutputData = columnToPayload(outputData)
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		repoLogger.Error("Error during tasks iteration", err, nil)
		return nil, 0, mapStoreErr(err, "error during tasks iteration")
	}

	if err := tx.Commit(opCtx); err != nil {
		repoLogger.Error("Failed to commit transaction", err, nil)
		return nil, 0, mapStoreErr(err, "failed to commit transaction")
	}

	return tasks, totalCount, nil
}
