package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

func TestHelloClient_Produce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HelloPath, r.URL.Path)
		assert.Equal(t, "es", r.URL.Query().Get("language"))
		assert.Equal(t, "2", r.URL.Query().Get("formalityLevel"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"text":"aloH","strategy":"REVERSED","language":"es"}}`))
	}))
	defer server.Close()

	client := NewHelloClient(ClientConfig{BaseURL: server.URL + "/"})
	ctx := logging.WithRequestID(context.Background(), "req-1")

	frag, err := client.Produce(ctx, fragment.HelloContext{Language: "es", FormalityLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, fragment.Fragment{Text: "aloH", Strategy: "REVERSED"}, frag)
	assert.Equal(t, server.URL+"/health", client.HealthURL())
	assert.Equal(t, NameHello, client.Name())
}

func TestWorldClient_Produce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WorldPath, r.URL.Path)
		assert.Equal(t, "MARS", r.URL.Query().Get("planetType"))
		assert.Equal(t, "GLOBAL", r.URL.Query().Get("scope"))
		w.Write([]byte(`{"success":true,"data":{"text":"MARS!!!","strategy":"EMPHASIZED","language":"en"}}`))
	}))
	defer server.Close()

	client := NewWorldClient(ClientConfig{BaseURL: server.URL})

	frag, err := client.Produce(context.Background(), fragment.WorldContext{
		Language:   "en",
		PlanetType: types.PlanetMars,
		Scope:      types.ScopeGlobal,
	})
	require.NoError(t, err)
	assert.Equal(t, "MARS!!!", frag.Text)
	assert.Equal(t, "EMPHASIZED", frag.Strategy)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected errors.ErrorType
		message  string
	}{
		{"server error", http.StatusServiceUnavailable, `{"success":false}`, errors.ErrorTypeUpstream, ""},
		{"client error", http.StatusBadRequest, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"language is required"}}`, errors.ErrorTypeValidation, "language is required"},
		{"client error without body", http.StatusNotFound, ``, errors.ErrorTypeValidation, ""},
		{"malformed body", http.StatusOK, `not json`, errors.ErrorTypeUpstream, ""},
		{"empty payload", http.StatusOK, `{"success":true}`, errors.ErrorTypeUpstream, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewHelloClient(ClientConfig{BaseURL: server.URL})
			_, err := client.Produce(context.Background(), fragment.HelloContext{Language: "en", FormalityLevel: 3})
			require.Error(t, err)
			assert.Equal(t, tt.expected, errors.GetType(err))

			if tt.message != "" {
				appErr, ok := errors.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.message, appErr.Message)
			}
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewHelloClient(ClientConfig{BaseURL: url, Timeout: 500 * time.Millisecond})
	_, err := client.Produce(context.Background(), fragment.HelloContext{Language: "en", FormalityLevel: 3})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUpstream, errors.GetType(err))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", errors.GetCode(err))
}

func TestLocalProducers(t *testing.T) {
	hello := NewLocalHelloProducer(nil)
	world := NewLocalWorldProducer(nil)
	ctx := context.Background()

	h, err := hello.Produce(ctx, fragment.HelloContext{Language: "fr", FormalityLevel: 3})
	require.NoError(t, err)
	assert.Equal(t, fragment.Fragment{Text: "Bonjour", Strategy: fragment.StrategyStandard}, h)

	w, err := world.Produce(ctx, fragment.WorldContext{Language: "fr", PlanetType: types.PlanetEarth, Scope: types.ScopeLocal})
	require.NoError(t, err)
	assert.Equal(t, fragment.Fragment{Text: "Monde", Strategy: fragment.StrategyStandard}, w)
}

func TestLocalProducer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalHelloProducer(nil).Produce(ctx, fragment.HelloContext{Language: "en"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducerFunc(t *testing.T) {
	var p HelloProducer = ProducerFunc[fragment.HelloContext](func(ctx context.Context, c fragment.HelloContext) (fragment.Fragment, error) {
		return fragment.Fragment{Text: c.Language}, nil
	})

	frag, err := p.Produce(context.Background(), fragment.HelloContext{Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de", frag.Text)
}
