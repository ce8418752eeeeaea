package logger

import (
	"fmt"
	"time"
)

// HTTPRequestInfo HTTP请求信息
type HTTPRequestInfo struct {
	Method     string
	Path       string
	StatusCode int
	Latency    time.Duration
	ClientIP   string
	UserAgent  string
	BodySize   int
	Subject    string
}

// RequestLogger 请求日志记录器
type RequestLogger struct {
	logger Logger
}

// NewRequestLogger 创建请求日志记录器
func NewRequestLogger(logger Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// LogRequest picks the level from the status code: 5xx error, 4xx warn.
func (rl *RequestLogger) LogRequest(info HTTPRequestInfo) {
	fields := map[string]interface{}{
		"method":      info.Method,
		"path":        info.Path,
		"status_code": info.StatusCode,
		"latency":     info.Latency.String(),
		"client_ip":   info.ClientIP,
		"user_agent":  info.UserAgent,
		"body_size":   info.BodySize,
	}
	if info.Subject != "" {
		fields["subject"] = info.Subject
	}

	msg := fmt.Sprintf("%s %s - %d", info.Method, info.Path, info.StatusCode)

	switch {
	case info.StatusCode >= 500:
		rl.logger.WithFields(fields).Error(msg)
	case info.StatusCode >= 400:
		rl.logger.WithFields(fields).Warn(msg)
	default:
		rl.logger.WithFields(fields).Info(msg)
	}
}
