// Package testutils holds shared fixtures for package tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradestream/internal/cache"
	"tradestream/internal/common"
	"tradestream/internal/config"
	"tradestream/internal/logger"
	"tradestream/internal/logger/loggertest"
	"tradestream/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSecret is long enough to pass config validation.
const TestSecret = "test-secret-0123456789abcdef0123456789"

// TestConfig 测试配置
type TestConfig struct {
	// UseRedis starts a miniredis server and a Redis-backed throttle.
	UseRedis bool
	// Start is the initial time of the suite clock.
	Start time.Time
}

// DefaultTestConfig 默认测试配置
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		UseRedis: false,
		Start:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestSuite 测试套件
type TestSuite struct {
	T        *testing.T
	Config   *TestConfig
	Store    *store.MemoryStore
	Redis    *miniredis.Miniredis
	Throttle cache.RateLimiter
	Logger   logger.Logger
	LogHook  *test.Hook
	Clock    *common.FixedClock
	TempDir  string
	Cleanup  []func()
}

// NewTestSuite 创建测试套件
func NewTestSuite(t *testing.T, cfg *TestConfig) *TestSuite {
	t.Helper()
	if cfg == nil {
		cfg = DefaultTestConfig()
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultTestConfig().Start
	}

	log, hook := loggertest.New()
	suite := &TestSuite{
		T:       t,
		Config:  cfg,
		Store:   store.NewMemoryStore(),
		Logger:  log,
		LogHook: hook,
		Clock:   common.NewFixedClock(cfg.Start),
		TempDir: t.TempDir(),
	}

	if cfg.UseRedis {
		suite.setupRedis()
	} else {
		suite.Throttle = cache.NewMemoryCache()
	}

	t.Cleanup(suite.TearDown)
	return suite
}

// AddCleanup 添加清理函数
func (s *TestSuite) AddCleanup(cleanup func()) {
	s.Cleanup = append(s.Cleanup, cleanup)
}

// TearDown runs cleanups in reverse order. It is safe to call twice.
func (s *TestSuite) TearDown() {
	for i := len(s.Cleanup) - 1; i >= 0; i-- {
		s.Cleanup[i]()
	}
	s.Cleanup = nil
}

// setupRedis 设置Redis
func (s *TestSuite) setupRedis() {
	s.Redis = miniredis.RunT(s.T)
	client := redis.NewClient(&redis.Options{Addr: s.Redis.Addr()})
	s.Throttle = cache.NewRedisCacheFromClient(client, "test:")
	s.AddCleanup(func() { _ = client.Close() })
}

// AppConfig returns a valid configuration for in-process servers: memory
// store, test secret, cheap bcrypt and a fast stream.
func (s *TestSuite) AppConfig() *config.Config {
	cfg := config.Default()
	cfg.App.Env = "production"
	cfg.JWT.Secret = TestSecret
	cfg.Security.BcryptCost = 4
	cfg.Stream.Interval = 20 * time.Millisecond
	cfg.Redis.Enabled = s.Config.UseRedis
	if s.Redis != nil {
		cfg.Redis.Addr = s.Redis.Addr()
	}
	return cfg
}

// CreateTempFile 创建临时文件
func (s *TestSuite) CreateTempFile(name, content string) string {
	filePath := filepath.Join(s.TempDir, name)
	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(s.T, err)
	return filePath
}

// HTTPTestHelper HTTP测试助手
type HTTPTestHelper struct {
	Handler http.Handler
	Suite   *TestSuite
}

// NewHTTPTestHelper 创建HTTP测试助手
func NewHTTPTestHelper(suite *TestSuite, handler http.Handler) *HTTPTestHelper {
	return &HTTPTestHelper{
		Handler: handler,
		Suite:   suite,
	}
}

// GET 发送GET请求
func (h *HTTPTestHelper) GET(path string, headers map[string]string) *HTTPResponse {
	return h.Request(http.MethodGet, path, nil, headers)
}

// POST 发送POST请求
func (h *HTTPTestHelper) POST(path string, body interface{}, headers map[string]string) *HTTPResponse {
	return h.Request(http.MethodPost, path, body, headers)
}

// PostForm sends an application/x-www-form-urlencoded body.
func (h *HTTPTestHelper) PostForm(path string, form url.Values, headers map[string]string) *HTTPResponse {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return h.do(req)
}

// Request 发送HTTP请求. A string or []byte body is sent as is.
func (h *HTTPTestHelper) Request(method, path string, body interface{}, headers map[string]string) *HTTPResponse {
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	case []byte:
		bodyReader = bytes.NewReader(b)
	default:
		bodyBytes, err := json.Marshal(body)
		require.NoError(h.Suite.T, err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return h.do(req)
}

func (h *HTTPTestHelper) do(req *http.Request) *HTTPResponse {
	w := httptest.NewRecorder()
	h.Handler.ServeHTTP(w, req)

	return &HTTPResponse{
		StatusCode: w.Code,
		Body:       w.Body.Bytes(),
		Headers:    w.Header(),
		suite:      h.Suite,
	}
}

// BearerHeader builds an Authorization header map.
func BearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// HTTPResponse HTTP响应
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	suite      *TestSuite
}

// AssertStatus 断言状态码
func (r *HTTPResponse) AssertStatus(expectedStatus int) *HTTPResponse {
	assert.Equal(r.suite.T, expectedStatus, r.StatusCode, string(r.Body))
	return r
}

// AssertJSON 断言JSON响应
func (r *HTTPResponse) AssertJSON(expected interface{}) *HTTPResponse {
	var actual interface{}
	err := json.Unmarshal(r.Body, &actual)
	require.NoError(r.suite.T, err)
	assert.Equal(r.suite.T, expected, actual)
	return r
}

// AssertContains 断言响应包含指定内容
func (r *HTTPResponse) AssertContains(substring string) *HTTPResponse {
	assert.Contains(r.suite.T, string(r.Body), substring)
	return r
}

// GetJSON 获取JSON响应
func (r *HTTPResponse) GetJSON(target interface{}) error {
	return json.Unmarshal(r.Body, target)
}

// MustJSON decodes the body or fails the test.
func (r *HTTPResponse) MustJSON(target interface{}) {
	require.NoError(r.suite.T, json.Unmarshal(r.Body, target), string(r.Body))
}

// GetString 获取字符串响应
func (r *HTTPResponse) GetString() string {
	return string(r.Body)
}

// MockData 模拟数据生成器
type MockData struct {
	rand *rand.Rand
}

// NewMockData 创建模拟数据生成器
func NewMockData() *MockData {
	return &MockData{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomString 生成随机字符串
func (m *MockData) RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[m.rand.Intn(len(charset))]
	}
	return string(b)
}

// RandomFloat 生成随机浮点数
func (m *MockData) RandomFloat(min, max float64) float64 {
	return min + m.rand.Float64()*(max-min)
}

// RandomChoice 从选项中随机选择
func (m *MockData) RandomChoice(choices []string) string {
	return choices[m.rand.Intn(len(choices))]
}

// Username returns a name that passes registration rules.
func (m *MockData) Username() string {
	return "user_" + m.RandomString(8)
}

// Email returns a unique-looking address.
func (m *MockData) Email() string {
	return fmt.Sprintf("%s@example.com", strings.ToLower(m.RandomString(10)))
}

// Registration returns a valid registration body.
func (m *MockData) Registration() map[string]interface{} {
	return map[string]interface{}{
		"username": m.Username(),
		"email":    m.Email(),
		"password": "pw-" + m.RandomString(12),
		"fullName": "Test " + m.RandomString(5),
	}
}

// TradeInput returns a valid trade body.
func (m *MockData) TradeInput() map[string]interface{} {
	return map[string]interface{}{
		"action": m.RandomChoice([]string{"buy", "sell"}),
		"amount": m.RandomFloat(0.001, 10),
		"price":  m.RandomFloat(100, 50000),
		"symbol": m.RandomChoice([]string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "DOTUSDT"}),
	}
}

// WaitForCondition 等待条件满足
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, message)
}
