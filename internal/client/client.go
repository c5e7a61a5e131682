// Package client is an HTTP client for the aggregation API.
package client

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/resilience"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BasePath is the route group of the composition endpoints
const BasePath = "/api/v1/hello-world"

const maxResponseBytes = 1 << 20

// ErrPending is returned by Poll while a composition is still running
var ErrPending = stderrors.New("composition still processing")

// Config configures a Client
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client calls the aggregation service
type Client struct {
	baseURL string
	http    *http.Client
}

type apiError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   *apiError           `json:"error"`
}

// New creates a client
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
	}
}

// ComposeDefault composes the default request
func (c *Client) ComposeDefault(ctx context.Context) (*types.CompositeResult, error) {
	var result types.CompositeResult
	if _, err := c.do(ctx, http.MethodGet, BasePath, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Compose composes a customized request
func (c *Client) Compose(ctx context.Context, req *types.Request) (*types.CompositeResult, error) {
	var result types.CompositeResult
	if _, err := c.do(ctx, http.MethodPost, BasePath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a previously produced result
func (c *Client) Get(ctx context.Context, id string) (*types.CompositeResult, error) {
	var result types.CompositeResult
	if _, err := c.do(ctx, http.MethodGet, BasePath+"/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit starts an async composition
func (c *Client) Submit(ctx context.Context, req *types.Request) (*types.AsyncAccepted, error) {
	var accepted types.AsyncAccepted
	if _, err := c.do(ctx, http.MethodPost, BasePath+"/async", req, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// Poll checks an async composition once. It returns ErrPending while the
// composition runs. A finished result can only be collected once.
func (c *Client) Poll(ctx context.Context, id string) (*types.CompositeResult, error) {
	var raw jsoniter.RawMessage
	status, err := c.do(ctx, http.MethodGet, BasePath+"/async/"+url.PathEscape(id), nil, &raw)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, ErrPending
	}

	var result types.CompositeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.NewInternalError("invalid result payload").WithCause(err)
	}
	return &result, nil
}

// Await polls until the composition finishes, the attempts in retry run out
// or ctx ends
func (c *Client) Await(ctx context.Context, id string, retry resilience.RetryConfig) (*types.CompositeResult, error) {
	retry.RetryableErrors = func(err error) bool {
		return stderrors.Is(err, ErrPending)
	}

	var result *types.CompositeResult
	err := resilience.NewRetrier(retry).Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.Poll(ctx, id)
		return err
	})
	if stderrors.Is(err, ErrPending) {
		return nil, errors.NewTimeoutError("async composition").WithDetail("request_id", id)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// do sends one request and decodes the envelope data into out
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errors.NewInternalError("failed to encode request").WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, errors.NewValidationError("invalid server address").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, errors.NewTimeoutError(method + " " + path).WithCause(err)
		}
		return 0, errors.NewUpstreamError("aggregator", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, errors.NewUpstreamError("aggregator", "failed to read response").WithCause(err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return resp.StatusCode, errors.NewUpstreamError("aggregator",
			fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)).WithCause(err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return resp.StatusCode, toAppError(resp.StatusCode, env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, errors.NewInternalError("invalid response payload").WithCause(err)
		}
	}
	return resp.StatusCode, nil
}

// toAppError restores the typed error the server reported
func toAppError(status int, e *apiError) *errors.AppError {
	code, message := "", http.StatusText(status)
	if e != nil {
		code, message = e.Code, e.Message
	}

	var errType errors.ErrorType
	switch status {
	case http.StatusBadRequest:
		errType = errors.ErrorTypeValidation
	case http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
	case http.StatusTooManyRequests:
		errType = errors.ErrorTypeRateLimit
	case http.StatusGatewayTimeout:
		errType = errors.ErrorTypeTimeout
	case http.StatusBadGateway:
		errType = errors.ErrorTypeUpstream
	case http.StatusServiceUnavailable:
		errType = errors.ErrorTypeCircuitOpen
	default:
		errType = errors.ErrorTypeInternal
	}
	if code == "" {
		code = strings.ToUpper(string(errType))
	}

	appErr := errors.NewAppError(errType, code, message)
	if e != nil {
		for k, v := range e.Details {
			appErr.WithDetail(k, fmt.Sprint(v))
		}
	}
	return appErr
}
