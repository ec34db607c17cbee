package domain

import "time"

// TestRecord — запись о передаче колеса в лабораторию и результате теста.
type TestRecord struct {
	WheelID     string
	ArrivalDate time.Time
	Result      *bool // nil, пока лаборатория не отчиталась
	TestDate    *time.Time
	ConfirmedBy string
}

// BatchNumber — производственная партия. Результаты лабораторных тестов
// партии открывают или закрывают перемещения в processing/rejected.
type BatchNumber struct {
	BatchNumber        string
	LaboratoryPassed   *bool
	LaboratoryTestDate *time.Time
	Wheels             []TestRecord
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Tested сообщает, проводился ли лабораторный тест партии.
func (b BatchNumber) Tested() bool {
	return b.LaboratoryTestDate != nil
}

// Passed сообщает, прошла ли партия лабораторный тест.
func (b BatchNumber) Passed() bool {
	return b.LaboratoryPassed != nil && *b.LaboratoryPassed
}

// GateProcessing проверяет допуск партии к перемещению в processing.
func (b BatchNumber) GateProcessing() error {
	if !b.Tested() {
		return ErrTestsNotDone
	}
	if !b.Passed() {
		return ErrTestsFailed
	}
	return nil
}

// GateRejected проверяет допуск партии к перемещению в rejected.
// Достаточно факта проведения теста, результат не важен.
func (b BatchNumber) GateRejected() error {
	if !b.Tested() {
		return ErrTestsNotDone
	}
	return nil
}
