package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

const resultJSON = `{"id":"r-1","message":"HELLO WORLD","helloText":"Hello","worldText":"World",
"language":"en","formalityLevel":3,"planetType":"EARTH","scope":"LOCAL","delimiter":" ",
"helloStrategy":"STANDARD","worldStrategy":"STANDARD","source":"LIVE","generationTimeMillis":4}`

type recorded struct {
	method string
	path   string
	body   string
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) add(r recorded) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, r)
}

func (l *callLog) all() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.calls...)
}

func fakeAggregator(t *testing.T, log *callLog) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.add(recorded{method: r.Method, path: r.URL.Path, body: string(body)})

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/hello-world/async":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"success":true,"data":{"requestId":"t-1","status":"PROCESSING","statusCheckUrl":"/api/v1/hello-world/async/t-1"}}`))
		case r.URL.Path == "/api/v1/hello-world/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"RESULT_NOT_FOUND","message":"composite result not found"}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"data":` + resultJSON + `}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompose_DefaultRequest(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	out, err := run(t, "compose", "--server", server.URL)
	require.NoError(t, err)

	calls := log.all()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].method)
	assert.Equal(t, "/api/v1/hello-world", calls[0].path)
	assert.True(t, strings.HasPrefix(out, "HELLO WORLD\n"))
	assert.Contains(t, out, "STANDARD")
}

func TestCompose_CustomRequest(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	_, err := run(t, "compose", "--server", server.URL,
		"-l", "es", "-f", "2", "-p", "mars", "--scope", "local", "--uppercase", "-d", "")
	require.NoError(t, err)

	calls := log.all()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].method)

	var req types.Request
	require.NoError(t, json.Unmarshal([]byte(calls[0].body), &req))
	assert.Equal(t, "es", req.Language)
	assert.Equal(t, 2, req.FormalityLevel)
	assert.Equal(t, types.PlanetMars, req.PlanetType)
	assert.Equal(t, types.ScopeLocal, req.Scope)
	assert.True(t, req.Uppercase)
	require.NotNil(t, req.Delimiter)
	assert.Equal(t, "", *req.Delimiter)
}

func TestCompose_OmitsUnsetDelimiter(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	_, err := run(t, "compose", "--server", server.URL, "--reversed")
	require.NoError(t, err)

	calls := log.all()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].body, "delimiter")
}

func TestCompose_JSONOutput(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	out, err := run(t, "compose", "--server", server.URL, "--json")
	require.NoError(t, err)

	var result types.CompositeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "r-1", result.ID)
	assert.Equal(t, types.SourceLive, result.Source)
}

func TestAsync_WaitsForResult(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	out, err := run(t, "async", "--server", server.URL, "--poll-interval", "1ms")
	require.NoError(t, err)

	calls := log.all()
	require.Len(t, calls, 2)
	assert.Equal(t, "/api/v1/hello-world/async", calls[0].path)
	assert.Equal(t, "/api/v1/hello-world/async/t-1", calls[1].path)
	assert.Contains(t, out, "HELLO WORLD")
}

func TestAsync_NoWait(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	out, err := run(t, "async", "--server", server.URL, "--no-wait")
	require.NoError(t, err)

	calls := log.all()
	require.Len(t, calls, 1)
	assert.Contains(t, out, "Submitted t-1")
}

func TestGet(t *testing.T) {
	var log callLog
	server := fakeAggregator(t, &log)

	out, err := run(t, "get", "r-1", "--server", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/hello-world/r-1", log.all()[0].path)
	assert.Contains(t, out, "r-1")

	_, err = run(t, "get", "missing", "--server", server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite result not found")

	_, err = run(t, "get", "--server", server.URL)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "hwctl version dev\n", out)
}
