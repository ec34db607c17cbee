package domain

import "time"

// OrderType описывает вид перемещения, которое оформляет заказ.
type OrderType string

const (
	// OrderTypeMoveWholeStack — перемещение целой стопки между ячейками.
	OrderTypeMoveWholeStack OrderType = "moveWholeStack"
	// OrderTypeMoveToLaboratory — извлечение одного колеса в лабораторию.
	OrderTypeMoveToLaboratory OrderType = "moveToLaboratory"
	// OrderTypeMoveToProcessing — отгрузка стопки в processing через кран.
	OrderTypeMoveToProcessing OrderType = "moveToProcessing"
	// OrderTypeMoveToRejected — отбраковка стопки через кран.
	OrderTypeMoveToRejected OrderType = "moveToRejected"
	// OrderTypeMoveToStorage — перемещение стопки в плоское хранилище.
	OrderTypeMoveToStorage OrderType = "moveToStorage"
	// OrderTypeMergeWheelstacks — слияние двух стопок одной партии.
	OrderTypeMergeWheelstacks OrderType = "mergeWheelstacks"
)

// Valid проверяет, что тип заказа относится к поддерживаемым значениям.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMoveWholeStack, OrderTypeMoveToLaboratory,
		OrderTypeMoveToProcessing, OrderTypeMoveToRejected,
		OrderTypeMoveToStorage, OrderTypeMergeWheelstacks:
		return true
	default:
		return false
	}
}

// LifecycleState описывает раздел, в котором находится запись заказа.
// Разделы не пересекаются: перевод состояния выполняется одним
// транзакционным обновлением той же строки.
type LifecycleState string

const (
	LifecyclePending   LifecycleState = "pending"
	LifecycleCompleted LifecycleState = "completed"
	LifecycleCanceled  LifecycleState = "canceled"
)

// DefaultCancellationReason подставляется, если вызывающий не указал причину.
const DefaultCancellationReason = "Not specified"

// AffectedWheelstacks — снимок стопок, затронутых заказом, на момент создания.
type AffectedWheelstacks struct {
	Source      string
	Destination string
}

// AffectedWheels — снимок колёс, затронутых заказом, на момент создания.
// Это копии, а не живые ссылки: последующие мутации списков колёс
// не меняют заявленный заказом объём.
type AffectedWheels struct {
	Source      []string
	Destination []string
}

// Order — запись одного зарезервированного, а затем завершённого
// или отменённого перемещения.
type Order struct {
	ID                  string
	OrderType           OrderType
	Source              EndpointRef
	Destination         EndpointRef
	AffectedWheelstacks AffectedWheelstacks
	AffectedWheels      AffectedWheels
	// ChosenWheel заполняется только для moveToLaboratory.
	ChosenWheel        string
	State              LifecycleState
	CancellationReason string
	CreatedAt          time.Time
	LastUpdated        time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
}
