package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradestream/internal/auth"
	"tradestream/internal/errors"
	"tradestream/internal/logger"
	"tradestream/internal/logger/loggertest"
	"tradestream/internal/stability"
	"tradestream/internal/trade"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver struct{}

func (stubResolver) ResolveBearer(header string) (*auth.Identity, error) {
	if header == "Bearer ok" {
		return &auth.Identity{Subject: "alice"}, nil
	}
	return nil, auth.ErrUnauthenticated
}

func newEngine(log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(log), HandleError(log))
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	r := newEngine(logger.NewNop())
	r.GET("/me", RequireAuth(stubResolver{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": IdentityFrom(c).Subject})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer ok")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"alice"}`, w.Body.String())

	for _, header := range []string{"", "Bearer nope", "bearer ok"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, UnauthenticatedDetail, decode(t, w).Detail)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"duplicate", &auth.DuplicateUserError{Username: "a", Email: "b"}, http.StatusBadRequest, "User with username 'a' or email 'b' already registered"},
		{"validation", &trade.ValidationError{Fields: []errors.FieldViolation{{Field: "amount", Constraint: "must be greater than 0"}}}, http.StatusUnprocessableEntity, "Invalid trade"},
		{"store failure", stderrors.New("pq: connection refused"), http.StatusInternalServerError, "Internal server error"},
		{"rate limit", errors.NewAppError(errors.ErrCodeRateLimit, "Too many requests", nil), http.StatusTooManyRequests, "Too many requests"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(logger.NewNop())
			r.GET("/x", func(c *gin.Context) { AbortWithError(c, tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.detail, body.Detail)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	log, hook := loggertest.New()
	r := newEngine(log)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w).Detail)

	var sawPanic bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Panic recovered" && e.Level == logrus.ErrorLevel {
			sawPanic = true
		}
	}
	assert.True(t, sawPanic)
}

func TestRequestIDPropagation(t *testing.T) {
	r := newEngine(logger.NewNop())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "6f1c3c7e-5a7f-4b43-9a0e-0d2f9f5a4b11")
	r.ServeHTTP(w, req)
	assert.Equal(t, "6f1c3c7e-5a7f-4b43-9a0e-0d2f9f5a4b11", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(logger.NewNop())
	r.Use(RateLimit(stability.NewRateLimiter(stability.RateLimiterConfig{RequestsPerSec: 0.001, Burst: 2})))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRequestLoggerLevels(t *testing.T) {
	log, hook := loggertest.New()
	r := gin.New()
	r.Use(RequestLogger(logger.NewRequestLogger(log)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "/bad", hook.LastEntry().Data["path"])
}
