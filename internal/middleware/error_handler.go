package middleware

import (
	stderrors "errors"
	"net/http"
	"runtime/debug"

	"tradestream/internal/auth"
	"tradestream/internal/errors"
	"tradestream/internal/logger"
	"tradestream/internal/store"
	"tradestream/internal/trade"

	"github.com/gin-gonic/gin"
)

// UnauthenticatedDetail is returned for every credential failure.
const UnauthenticatedDetail = "Could not validate credentials"

// ErrorHandler 错误处理中间件 (panic recovery)
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered",
			"error", recovered,
			"stack", string(debug.Stack()),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		handleError(c, log, errors.NewAppError(errors.ErrCodeInternal, "Internal server error", nil))
	})
}

// HandleError renders the last error attached to the context once the
// handler chain has run.
func HandleError(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			handleError(c, log, c.Errors.Last().Err)
		}
	}
}

// AbortWithError attaches err to the context and stops the chain. The
// HandleError middleware writes the response.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ToAppError maps domain errors onto application errors.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	var dup *auth.DuplicateUserError
	var verr *trade.ValidationError
	switch {
	case stderrors.Is(err, auth.ErrUnauthenticated):
		return errors.NewAppError(errors.ErrCodeUnauthenticated, UnauthenticatedDetail, err)
	case stderrors.As(err, &dup):
		return errors.NewAppError(errors.ErrCodeDuplicateUser, dup.Error(), err)
	case stderrors.As(err, &verr):
		appErr := errors.NewValidationError(verr.Fields, err)
		appErr.Details = "Invalid trade"
		return appErr
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewAppError(errors.ErrCodeNotFound, "Not found", err)
	default:
		return errors.WrapError(err, errors.ErrCodeStoreFailure, "Internal server error")
	}
}

// handleError 统一错误处理
func handleError(c *gin.Context, log logger.Logger, err error) {
	if err == nil {
		return
	}

	appErr := ToAppError(err)
	if appErr.RequestID == "" {
		appErr = appErr.WithRequestID(getRequestID(c))
	}
	if identity := IdentityFrom(c); identity != nil {
		appErr = appErr.WithSubject(identity.Subject)
	}

	logError(c, log, appErr)

	if appErr.Code == errors.ErrCodeUnauthenticated {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr))
}

// logError 记录错误日志
func logError(c *gin.Context, log logger.Logger, err *errors.AppError) {
	fields := []interface{}{
		"error_code", err.Code,
		"message", err.Message,
		"severity", err.Severity,
		"request_id", err.RequestID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
	}
	if err.Subject != "" {
		fields = append(fields, "subject", err.Subject)
	}
	if err.Details != "" {
		fields = append(fields, "details", err.Details)
	}
	if err.Cause != nil {
		fields = append(fields, "cause", err.Cause.Error())
	}

	// 根据严重程度选择日志级别
	switch err.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		log.Error("Request failed", fields...)
	case errors.SeverityMedium:
		log.Warn("Request failed", fields...)
	default:
		log.Info("Request rejected", fields...)
	}
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if rid, ok := requestID.(string); ok {
			return rid
		}
	}
	return c.GetHeader(RequestIDHeader)
}

// NotFound renders unmatched routes with the standard error body.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errors.ErrorResponse{Detail: "Not Found"})
}
