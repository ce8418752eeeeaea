package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestNewAppError(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "Test error", nil)

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	if err.Message != "Test error" {
		t.Errorf("Expected message 'Test error', got %s", err.Message)
	}

	if err.Severity != SeverityLow {
		t.Errorf("Expected severity %s, got %s", SeverityLow, err.Severity)
	}
}

func TestAppErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		code           ErrorCode
		expectedStatus int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeUnauthenticated, http.StatusUnauthorized},
		{ErrCodeDuplicateUser, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusUnprocessableEntity},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeStoreFailure, http.StatusInternalServerError},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
	}

	for _, test := range tests {
		err := NewAppError(test.code, "Test", nil)
		status := err.HTTPStatus()

		if status != test.expectedStatus {
			t.Errorf("Code %s: expected status %d, got %d", test.code, test.expectedStatus, status)
		}
	}
}

func TestErrorResponseHidesInternalDetails(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodeStoreFailure, "Internal server error", "dial tcp 10.0.0.1:5432: refused", nil)

	resp := NewErrorResponse(err)

	if resp.Detail != "Internal server error" {
		t.Errorf("Expected generic detail, got %q", resp.Detail)
	}
}

func TestErrorResponseCarriesFields(t *testing.T) {
	err := NewValidationError([]FieldViolation{{Field: "amount", Constraint: "gt=0"}}, nil)

	resp := NewErrorResponse(err)

	if len(resp.Errors) != 1 || resp.Errors[0].Field != "amount" {
		t.Errorf("Expected amount violation, got %+v", resp.Errors)
	}
	if err.HTTPStatus() != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", err.HTTPStatus())
	}
}

func TestWrapError(t *testing.T) {
	original := fmt.Errorf("original error")
	wrapped := WrapError(original, ErrCodeInternal, "Wrapped error")

	if wrapped.Cause != original {
		t.Error("Expected cause to be original error")
	}

	if WrapError(nil, ErrCodeInternal, "nil") != nil {
		t.Error("Expected nil for nil error")
	}

	appErr := NewAppError(ErrCodeNotFound, "Not found", nil)
	if WrapError(appErr, ErrCodeInternal, "Should not wrap") != appErr {
		t.Error("Expected same AppError instance")
	}
}

func TestAppErrorString(t *testing.T) {
	err := NewAppErrorWithDetails(ErrCodeDuplicateUser, "Duplicate user", "username taken", nil)

	expected := "[DUPLICATE_USER] Duplicate user: username taken"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}
