package domain

import "errors"

// Сентинельные ошибки доменной таксономии. Проверяются через errors.Is,
// оборачиваются через fmt.Errorf с %w.
var (
	// ErrMalformedPatch - структурно некорректный partial-update payload
	ErrMalformedPatch = errors.New("malformed patch payload")
	// ErrUnknownEvent - синтаксически корректный payload, не описывающий известное событие
	ErrUnknownEvent = errors.New("unrecognized event shape")
	// ErrInvalidTransition - нарушено предусловие статуса
	ErrInvalidTransition = errors.New("invalid task status transition")
	// ErrTaskNotFound - задача с указанной идентичностью отсутствует
	ErrTaskNotFound = errors.New("task not found")
	// ErrVersionConflict - запись отклонена: версия задачи устарела
	ErrVersionConflict = errors.New("task version conflict")
	// ErrDependencyTimeout / ErrDependencyUnavailable - сбои инфраструктуры,
	// не смешиваются с доменными ошибками
	ErrDependencyTimeout     = errors.New("dependency call timed out")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
