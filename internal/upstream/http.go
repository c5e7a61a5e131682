package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/tracing"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Service paths
const (
	HelloPath = "/api/v1/greetings/generate"
	WorldPath = "/api/v1/worlds/generate"
)

const maxResponseBytes = 1 << 20

// envelope mirrors the API response wrapper of the fragment services
type envelope struct {
	Success bool                    `json:"success"`
	Data    *types.FragmentResponse `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClientConfig configures an HTTP producer
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Tracing *tracing.TracingService
}

// HTTPClient calls a fragment service over HTTP
type HTTPClient[C any] struct {
	name    string
	baseURL string
	path    string
	query   func(C) url.Values
	client  *http.Client
	tracing *tracing.TracingService
	logger  *logging.Logger
}

// NewHelloClient creates an HTTP producer for the hello service
func NewHelloClient(cfg ClientConfig) *HTTPClient[fragment.HelloContext] {
	return newHTTPClient(NameHello, HelloPath, cfg, func(c fragment.HelloContext) url.Values {
		return url.Values{
			"language":       {c.Language},
			"formalityLevel": {strconv.Itoa(c.FormalityLevel)},
		}
	})
}

// NewWorldClient creates an HTTP producer for the world service
func NewWorldClient(cfg ClientConfig) *HTTPClient[fragment.WorldContext] {
	return newHTTPClient(NameWorld, WorldPath, cfg, func(c fragment.WorldContext) url.Values {
		return url.Values{
			"language":   {c.Language},
			"planetType": {string(c.PlanetType)},
			"scope":      {string(c.Scope)},
		}
	})
}

func newHTTPClient[C any](name, path string, cfg ClientConfig, query func(C) url.Values) *HTTPClient[C] {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Tracing == nil {
		cfg.Tracing = tracing.Noop()
	}

	return &HTTPClient[C]{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		path:    path,
		query:   query,
		client:  cfg.Tracing.InstrumentHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		tracing: cfg.Tracing,
		logger:  logging.GetLogger(),
	}
}

// Name returns the upstream name
func (h *HTTPClient[C]) Name() string {
	return h.name
}

// HealthURL returns the health endpoint of the upstream service
func (h *HTTPClient[C]) HealthURL() string {
	return h.baseURL + "/health"
}

// Produce requests one fragment. Transport failures and 5xx responses are
// upstream errors; 4xx responses are validation errors.
func (h *HTTPClient[C]) Produce(ctx context.Context, c C) (fragment.Fragment, error) {
	ctx, span := h.tracing.StartUpstreamSpan(ctx, h.name)
	defer span.End()

	frag, err := h.produce(ctx, c)
	if err != nil {
		h.tracing.RecordError(span, err)
	}
	return frag, err
}

func (h *HTTPClient[C]) produce(ctx context.Context, c C) (fragment.Fragment, error) {
	endpoint := h.baseURL + h.path + "?" + h.query(c).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fragment.Fragment{}, errors.NewInternalError("failed to create upstream request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fragment.Fragment{}, errors.NewUpstreamError(h.name, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fragment.Fragment{}, errors.NewUpstreamError(h.name, "failed to read response").WithCause(err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	switch {
	case resp.StatusCode >= 500:
		return fragment.Fragment{}, errors.NewUpstreamError(h.name, fmt.Sprintf("service returned status %d", resp.StatusCode)).
			WithDetail("status_code", strconv.Itoa(resp.StatusCode))
	case resp.StatusCode >= 400:
		message := fmt.Sprintf("%s service rejected the request with status %d", h.name, resp.StatusCode)
		if decodeErr == nil && env.Error != nil && env.Error.Message != "" {
			message = env.Error.Message
		}
		return fragment.Fragment{}, errors.NewValidationError(message).
			WithDetail("upstream", h.name).
			WithDetail("status_code", strconv.Itoa(resp.StatusCode))
	}

	if decodeErr != nil {
		return fragment.Fragment{}, errors.NewUpstreamError(h.name, "malformed response").WithCause(decodeErr)
	}
	if !env.Success || env.Data == nil {
		return fragment.Fragment{}, errors.NewUpstreamError(h.name, "response carried no fragment")
	}

	h.logger.Debug("Upstream fragment received",
		"upstream", h.name,
		"strategy", env.Data.Strategy,
	)

	return fragment.Fragment{Text: env.Data.Text, Strategy: env.Data.Strategy}, nil
}
