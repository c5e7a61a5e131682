package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/aggregator"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/tasks"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/upstream"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/config"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/metrics"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockComposer is a mock implementation of Composer
type MockComposer struct {
	mock.Mock
}

func (m *MockComposer) Compose(ctx context.Context, req *types.Request) (*types.CompositeResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*types.CompositeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComposer) ComposeDefault(ctx context.Context) (*types.CompositeResult, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*types.CompositeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockComposer) GetByID(ctx context.Context, id string) (*types.CompositeResult, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*types.CompositeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTasks is a mock implementation of TaskRegistry
type MockTasks struct {
	mock.Mock
}

func (m *MockTasks) Submit(ctx context.Context, req *types.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockTasks) Poll(id string) tasks.PollResult {
	args := m.Called(id)
	return args.Get(0).(tasks.PollResult)
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func perform(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleResult() *types.CompositeResult {
	return &types.CompositeResult{
		ID:            "result-1",
		Message:       "Hello World",
		HelloText:     "Hello",
		WorldText:     "World",
		Language:      "en",
		HelloStrategy: fragment.StrategyStandard,
		WorldStrategy: fragment.StrategyStandard,
		Source:        types.SourceLive,
	}
}

func TestGetDefault(t *testing.T) {
	composer := new(MockComposer)
	composer.On("ComposeDefault", mock.Anything).Return(sampleResult(), nil)

	router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))
	w := perform(router, http.MethodGet, AggregatorBasePath, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, w.Header().Get("X-Request-ID"))

	var result types.CompositeResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "Hello World", result.Message)
	composer.AssertExpectations(t)
}

func TestRequestIDIsPropagated(t *testing.T) {
	composer := new(MockComposer)
	composer.On("ComposeDefault", mock.Anything).Return(sampleResult(), nil)

	router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))
	req := httptest.NewRequest(http.MethodGet, AggregatorBasePath, nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "client-supplied", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-supplied", decode(t, w).RequestID)
}

func TestCompose(t *testing.T) {
	composer := new(MockComposer)
	composer.On("Compose", mock.Anything, mock.MatchedBy(func(r *types.Request) bool {
		return r.Language == "fr" && r.PlanetType == types.PlanetMars && r.Uppercase && r.Delimiter != nil && *r.Delimiter == "-"
	})).Return(sampleResult(), nil)

	router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))
	w := perform(router, http.MethodPost, AggregatorBasePath, map[string]interface{}{
		"language":   "fr",
		"planetType": "MARS",
		"uppercase":  true,
		"delimiter":  "-",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	composer.AssertExpectations(t)
}

func TestCompose_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing language", `{"formalityLevel":3}`, "language is required"},
		{"formality out of range", `{"language":"en","formalityLevel":9}`, "formalityLevel must be at most 5"},
		{"unknown planet", `{"language":"en","planetType":"KRYPTON"}`, ""},
		{"lower-case enum", `{"language":"en","scope":"global"}`, ""},
		{"malformed json", `{"language":`, "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := new(MockComposer)
			router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))

			req := httptest.NewRequest(http.MethodPost, AggregatorBasePath, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Error.Message)
			}
			composer.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything)
		})
	}
}

func TestGetByID(t *testing.T) {
	composer := new(MockComposer)
	composer.On("GetByID", mock.Anything, "result-1").Return(sampleResult(), nil)
	composer.On("GetByID", mock.Anything, "missing").Return(nil, errors.NewResultNotFoundError("missing"))

	router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))

	w := perform(router, http.MethodGet, AggregatorBasePath+"/result-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, AggregatorBasePath+"/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.Equal(t, "RESULT_NOT_FOUND", env.Error.Code)
	assert.Equal(t, "missing", env.Error.Details["result_id"])
}

func TestAsyncLifecycle(t *testing.T) {
	registry := new(MockTasks)
	registry.On("Submit", mock.Anything, mock.Anything).Return("task-1", nil)
	registry.On("Poll", "task-1").Return(tasks.PollResult{Status: types.TaskPending}).Once()
	registry.On("Poll", "task-1").Return(tasks.PollResult{Status: types.TaskDone, Result: sampleResult()}).Once()
	registry.On("Poll", "task-1").Return(tasks.PollResult{Status: types.TaskNotFound})

	router := NewAggregatorRouter(Dependencies{}, new(MockComposer), registry)

	w := perform(router, http.MethodPost, AggregatorBasePath+"/async", map[string]interface{}{"language": "en"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted types.AsyncAccepted
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &accepted))
	assert.Equal(t, "task-1", accepted.RequestID)
	assert.Equal(t, StatusProcessing, accepted.Status)
	assert.Equal(t, AggregatorBasePath+"/async/task-1", accepted.StatusCheckURL)

	w = perform(router, http.MethodGet, accepted.StatusCheckURL, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = perform(router, http.MethodGet, accepted.StatusCheckURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var result types.CompositeResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, "result-1", result.ID)

	w = perform(router, http.MethodGet, accepted.StatusCheckURL, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TASK_NOT_FOUND", decode(t, w).Error.Code)

	registry.AssertExpectations(t)
}

func TestSubmitAsync_Invalid(t *testing.T) {
	registry := new(MockTasks)
	router := NewAggregatorRouter(Dependencies{}, new(MockComposer), registry)

	w := perform(router, http.MethodPost, AggregatorBasePath+"/async", map[string]interface{}{"language": "e"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	registry.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestPanicIsRecovered(t *testing.T) {
	composer := new(MockComposer)
	composer.On("ComposeDefault", mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(nil, nil)

	router := NewAggregatorRouter(Dependencies{}, composer, new(MockTasks))
	w := perform(router, http.MethodGet, AggregatorBasePath, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	composer := new(MockComposer)
	composer.On("ComposeDefault", mock.Anything).Return(sampleResult(), nil)

	deps := Dependencies{RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}}
	router := NewAggregatorRouter(deps, composer, new(MockTasks))

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, AggregatorBasePath, nil).Code)

	w := perform(router, http.MethodGet, AggregatorBasePath, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, w).Error.Code)

	// Health is not rate limited
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/health", nil).Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Now()

	assert.True(t, rl.allow("10.0.0.1", now))
	assert.False(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.2", now))
	assert.True(t, rl.allow("10.0.0.1", now.Add(time.Second)))

	assert.True(t, rl.allow("10.0.0.3", now.Add(2*limiterIdleTTL)))
	rl.mu.Lock()
	assert.Len(t, rl.clients, 1, "idle clients are evicted")
	rl.mu.Unlock()
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	m := metrics.NewMetrics(&metrics.Config{Enabled: true, Namespace: "test"})
	composer := new(MockComposer)
	composer.On("ComposeDefault", mock.Anything).Return(sampleResult(), nil)

	router := NewAggregatorRouter(Dependencies{Metrics: m}, composer, new(MockTasks))
	perform(router, http.MethodGet, AggregatorBasePath, nil)

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/health/ready", nil).Code)

	w := perform(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	router := NewAggregatorRouter(Dependencies{}, new(MockComposer), new(MockTasks))

	req := httptest.NewRequest(http.MethodOptions, AggregatorBasePath, nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestHelloService(t *testing.T) {
	router := NewHelloRouter(Dependencies{}, fragment.NewHelloGenerator(nil))

	tests := []struct {
		query    string
		text     string
		strategy string
	}{
		{"language=es&formalityLevel=2", "aloH", fragment.StrategyReversed},
		{"language=en&formalityLevel=5", "SGVsbG8=", fragment.StrategyEncoded},
		{"", "Hello", fragment.StrategyStandard},
		{"language=DE", "Hallo", fragment.StrategyStandard},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := perform(router, http.MethodGet, upstream.HelloPath+"?"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var frag types.FragmentResponse
			require.NoError(t, json.Unmarshal(decode(t, w).Data, &frag))
			assert.Equal(t, tt.text, frag.Text)
			assert.Equal(t, tt.strategy, frag.Strategy)
		})
	}

	w := perform(router, http.MethodGet, upstream.HelloPath+"?formalityLevel=9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorldService(t *testing.T) {
	router := NewWorldRouter(Dependencies{}, fragment.NewWorldGenerator(nil))

	w := perform(router, http.MethodGet, upstream.WorldPath+"?language=en&planetType=MARS&scope=GLOBAL", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var frag types.FragmentResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &frag))
	assert.Equal(t, "MARS!!!", frag.Text)
	assert.Equal(t, fragment.StrategyEmphasized, frag.Strategy)
	assert.Equal(t, "MARS", frag.PlanetType)

	w = perform(router, http.MethodGet, upstream.WorldPath+"?language=es&scope=LOCAL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &frag))
	assert.Equal(t, "Mundo", frag.Text)

	frag = types.FragmentResponse{}
	w = perform(router, http.MethodGet, upstream.WorldPath+"?language=en", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &frag))
	assert.Equal(t, "World", frag.Text)
	assert.Equal(t, fragment.StrategyStandard, frag.Strategy)
	assert.Empty(t, frag.Scope)

	w = perform(router, http.MethodGet, upstream.WorldPath+"?planetType=KRYPTON", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestEndToEnd runs the aggregator over the real fragment services
func TestEndToEnd(t *testing.T) {
	helloServer := httptest.NewServer(NewHelloRouter(Dependencies{}, fragment.NewHelloGenerator(nil)))
	defer helloServer.Close()
	worldServer := httptest.NewServer(NewWorldRouter(Dependencies{}, fragment.NewWorldGenerator(nil)))
	defer worldServer.Close()

	service, err := aggregator.NewService(aggregator.Options{
		Hello: upstream.NewHelloClient(upstream.ClientConfig{BaseURL: helloServer.URL}),
		World: upstream.NewWorldClient(upstream.ClientConfig{BaseURL: worldServer.URL}),
	})
	require.NoError(t, err)

	registry := tasks.NewRegistry(service, nil, nil)
	router := NewAggregatorRouter(Dependencies{}, service, registry)

	w := perform(router, http.MethodPost, AggregatorBasePath, map[string]interface{}{
		"language":  "en",
		"delimiter": " ",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var result types.CompositeResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, "Hello World", result.Message)
	assert.Equal(t, types.SourceLive, result.Source)

	w = perform(router, http.MethodGet, AggregatorBasePath+"/"+result.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodPost, AggregatorBasePath+"/async", map[string]interface{}{
		"language":  "en",
		"scope":     "LOCAL",
		"uppercase": true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted types.AsyncAccepted
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &accepted))

	require.Eventually(t, func() bool {
		w = perform(router, http.MethodGet, accepted.StatusCheckURL, nil)
		return w.Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, "HELLO WORLD", result.Message)
}
