package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode 定义错误代码类型
type ErrorCode string

// 错误代码常量
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeDuplicateUser   ErrorCode = "DUPLICATE_USER"
	ErrCodeRateLimit       ErrorCode = "RATE_LIMIT"
	ErrCodeStoreFailure    ErrorCode = "STORE_FAILURE"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// FieldViolation names one rejected input field and the constraint it broke.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// AppError 应用错误结构
type AppError struct {
	Code      ErrorCode        `json:"code"`
	Message   string           `json:"message"`
	Details   string           `json:"details,omitempty"`
	Fields    []FieldViolation `json:"fields,omitempty"`
	Severity  ErrorSeverity    `json:"severity"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id,omitempty"`
	Subject   string           `json:"subject,omitempty"`
	Cause     error            `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeDuplicateUser:
		return http.StatusBadRequest
	case ErrCodeInvalidInput:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError 创建新的应用错误
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewAppErrorWithDetails 创建带详细信息的应用错误
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

// NewValidationError builds an INVALID_INPUT error carrying per-field detail.
func NewValidationError(fields []FieldViolation, cause error) *AppError {
	err := NewAppError(ErrCodeInvalidInput, "Validation failed", cause)
	err.Fields = fields
	return err
}

// WithRequestID 添加请求ID
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithSubject records the authenticated subject for logging.
func (e *AppError) WithSubject(subject string) *AppError {
	e.Subject = subject
	return e
}

// getSeverityByCode 根据错误代码确定严重程度
func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeStoreFailure:
		return SeverityCritical
	case ErrCodeRateLimit:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ErrorResponse is the client-facing body. Only the message and the field
// violations are exposed; causes stay in the logs.
type ErrorResponse struct {
	Detail string           `json:"detail"`
	Errors []FieldViolation `json:"errors,omitempty"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError) *ErrorResponse {
	detail := err.Message
	if err.Details != "" && err.Code != ErrCodeInternal && err.Code != ErrCodeStoreFailure {
		detail = err.Details
	}
	return &ErrorResponse{
		Detail: detail,
		Errors: err.Fields,
	}
}

// WrapError 包装标准错误为应用错误
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewAppError(code, message, err)
}

// IsAppError 检查是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}
