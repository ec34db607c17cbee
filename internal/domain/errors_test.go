package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		notFound   bool
		conflict   bool
		validation bool
		corruption bool
	}{
		{name: "cell not found", err: ErrCellNotFound, notFound: true},
		{name: "wrapped order not found", err: fmt.Errorf("resolve order: %w", ErrOrderNotFound), notFound: true},
		{name: "validation", err: NewValidationError("bad input %d", 7), validation: true},
		{name: "tests not done", err: ErrTestsNotDone, validation: true},
		{name: "tests failed", err: fmt.Errorf("gate: %w", ErrTestsFailed), validation: true},
		{name: "conflict", err: &ConflictError{Resource: "cell grid/G1(A,1)", BlockedBy: "order-1"}, conflict: true},
		{name: "corruption", err: &CorruptionError{Resource: "cell grid/G1(A,1)", Detail: "missing wheelstack"}, corruption: true},
		{name: "retries exhausted", err: ErrTxRetriesExhausted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNotFound(tc.err); got != tc.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tc.notFound)
			}
			if got := IsConflict(tc.err); got != tc.conflict {
				t.Errorf("IsConflict = %v, want %v", got, tc.conflict)
			}
			if got := IsValidation(tc.err); got != tc.validation {
				t.Errorf("IsValidation = %v, want %v", got, tc.validation)
			}
			if got := IsCorruption(tc.err); got != tc.corruption {
				t.Errorf("IsCorruption = %v, want %v", got, tc.corruption)
			}
		})
	}
}

func TestConflictError_Message(t *testing.T) {
	withHolder := &ConflictError{Resource: "wheelstack stack-1", BlockedBy: "order-9"}
	if withHolder.Error() != "conflict: wheelstack stack-1 is blocked by order order-9" {
		t.Errorf("unexpected message: %s", withHolder.Error())
	}

	withoutHolder := &ConflictError{Resource: "destination cell grid/G1(B,1) is already occupied"}
	if withoutHolder.Error() != "conflict: destination cell grid/G1(B,1) is already occupied is not available" {
		t.Errorf("unexpected message: %s", withoutHolder.Error())
	}
}

func TestGateSentinels_KeepFixedText(t *testing.T) {
	// UI различает gate-ошибки по фиксированному тексту.
	if ErrTestsNotDone.Error() != "TESTS_NOT_DONE" {
		t.Errorf("unexpected ErrTestsNotDone text: %s", ErrTestsNotDone.Error())
	}
	if ErrTestsFailed.Error() != "TESTS_FAILED" {
		t.Errorf("unexpected ErrTestsFailed text: %s", ErrTestsFailed.Error())
	}
	if errors.Is(ErrTestsNotDone, ErrTestsFailed) {
		t.Error("gate sentinels must be distinct")
	}
}
