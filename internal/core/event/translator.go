package event

import (
	"fmt"

	"task-registry-service/internal/core/domain"
)

// PatchOperation - одна операция частичного обновления в стиле RFC 6902
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

const (
	opReplace = "replace"

	pathTaskStatus = "/taskStatus"
	pathOutputData = "/outputData"
)

// Translate превращает список patch-операций в ровно одно доменное событие.
// Структурно некорректный payload (пустой список, конфликтующие операции
// статуса, дубликаты) -> ErrMalformedPatch. Корректный по форме, но не
// описывающий известное событие -> ErrUnknownEvent.
func Translate(taskID string, ops []PatchOperation) (domain.Event, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("patch payload contains no operations: %w", domain.ErrMalformedPatch)
	}

	var statusOp, outputOp *PatchOperation
	for i := range ops {
		op := &ops[i]
		if op.Op != opReplace {
			return nil, fmt.Errorf("unsupported operation %q on path %q: %w", op.Op, op.Path, domain.ErrUnknownEvent)
		}
		switch op.Path {
		case pathTaskStatus:
			if statusOp != nil {
				// Два разных новых статуса в одном payload — неразрешимая двусмысленность
				return nil, fmt.Errorf("patch payload contains more than one status operation: %w", domain.ErrMalformedPatch)
			}
			statusOp = op
		case pathOutputData:
			if outputOp != nil {
				return nil, fmt.Errorf("patch payload contains duplicate output operations: %w", domain.ErrMalformedPatch)
			}
			outputOp = op
		default:
			return nil, fmt.Errorf("unrecognized patch path %q: %w", op.Path, domain.ErrUnknownEvent)
		}
	}

	if statusOp == nil {
		return nil, fmt.Errorf("patch payload does not address the task status: %w", domain.ErrUnknownEvent)
	}

	switch domain.TaskStatus(statusOp.Value) {
	case domain.StatusStarted:
		if outputOp != nil {
			return nil, fmt.Errorf("output data does not belong to a start event: %w", domain.ErrUnknownEvent)
		}
		return domain.TaskStartedEvent{TaskID: taskID}, nil

	case domain.StatusExecuted:
		ev := domain.TaskExecutedEvent{TaskID: taskID}
		if outputOp != nil {
			value := outputOp.Value
			ev.OutputData = &value
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("status value %q does not describe a known event: %w", statusOp.Value, domain.ErrUnknownEvent)
	}
}
