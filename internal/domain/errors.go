package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCellNotFound возвращается, если ячейка не найдена в grid/platform.
	ErrCellNotFound = errors.New("placement cell not found")
	// ErrExtraElementNotFound возвращается, если extra element не найден.
	ErrExtraElementNotFound = errors.New("extra element not found")
	// ErrWheelstackNotFound возвращается, если wheelstack не найден.
	ErrWheelstackNotFound = errors.New("wheelstack not found")
	// ErrWheelNotFound возвращается, если колесо не найдено.
	ErrWheelNotFound = errors.New("wheel not found")
	// ErrStorageNotFound возвращается, если хранилище не найдено.
	ErrStorageNotFound = errors.New("storage not found")
	// ErrBatchNotFound возвращается, если партия не найдена.
	ErrBatchNotFound = errors.New("batch number not found")
	// ErrOrderNotFound возвращается, если заказ не найден в pending-разделе.
	// Для completion/cancellation это означает «уже разрешён», не повод для retry.
	ErrOrderNotFound = errors.New("order not found")
	// ErrSnapshotNotFound возвращается, если у размещения нет снимков.
	ErrSnapshotNotFound = errors.New("placement snapshot not found")

	// ErrTestsNotDone — sentinel для UI: партия не проходила лабораторный тест.
	ErrTestsNotDone = errors.New("TESTS_NOT_DONE")
	// ErrTestsFailed — sentinel для UI: партия не прошла лабораторный тест.
	ErrTestsFailed = errors.New("TESTS_FAILED")

	// ErrTxRetriesExhausted сигнализирует об исчерпании повторов
	// транзакции после транзиентных конфликтов.
	ErrTxRetriesExhausted = errors.New("transaction retries exhausted")

	// Ошибки инвариантов wheelstack-а.
	ErrBatchNumberRequired  = errors.New("wheelstack batch number is required")
	ErrMaxSizeInvalid       = errors.New("wheelstack max size must be in 1..6")
	ErrWheelsOverflow       = errors.New("wheelstack holds more wheels than max size")
	ErrPlacementKindInvalid = errors.New("placement kind is not supported")
)

// ValidationError — нарушение бизнес-предусловия запроса.
// Обнаруживается до начала мутаций и безопасно отдаётся вызывающему.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError создаёт ValidationError с форматированной причиной.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError — ресурс существует, но удерживается другим живым заказом,
// либо назначение уже занято. Вызывающий может повторить позже.
type ConflictError struct {
	Resource  string
	BlockedBy string
}

func (e *ConflictError) Error() string {
	if e.BlockedBy == "" {
		return fmt.Sprintf("conflict: %s is not available", e.Resource)
	}
	return fmt.Sprintf("conflict: %s is blocked by order %s", e.Resource, e.BlockedBy)
}

// CorruptionError — нарушен межсущностный инвариант, на который система
// полагается. Это баг или ручная порча данных, а не пользовательская ошибка:
// логируется на уровне error и никогда не чинится автоматически.
type CorruptionError struct {
	Resource string
	Detail   string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("data corruption on %s: %s", e.Resource, e.Detail)
}

// IsNotFound проверяет, относится ли ошибка к классу NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCellNotFound) ||
		errors.Is(err, ErrExtraElementNotFound) ||
		errors.Is(err, ErrWheelstackNotFound) ||
		errors.Is(err, ErrWheelNotFound) ||
		errors.Is(err, ErrStorageNotFound) ||
		errors.Is(err, ErrBatchNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsConflict проверяет, является ли ошибка конфликтом блокировок.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// IsValidation проверяет, является ли ошибка нарушением предусловий.
// Batch-gating sentinel-ы относятся к этому же классу, но различимы
// для UI по фиксированному тексту.
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation) ||
		errors.Is(err, ErrTestsNotDone) ||
		errors.Is(err, ErrTestsFailed)
}

// IsCorruption проверяет, является ли ошибка нарушением инварианта данных.
func IsCorruption(err error) bool {
	var corruption *CorruptionError
	return errors.As(err, &corruption)
}
