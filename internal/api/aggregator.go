package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/aggregator"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/tasks"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// StatusProcessing is reported for async compositions not yet finished
const StatusProcessing = "PROCESSING"

// Composer is the aggregation surface the handlers need
type Composer interface {
	Compose(ctx context.Context, req *types.Request) (*types.CompositeResult, error)
	ComposeDefault(ctx context.Context) (*types.CompositeResult, error)
	GetByID(ctx context.Context, id string) (*types.CompositeResult, error)
}

// TaskRegistry accepts async compositions and reports their state
type TaskRegistry interface {
	Submit(ctx context.Context, req *types.Request) (string, error)
	Poll(id string) tasks.PollResult
}

// AggregatorHandler serves the hello-world composition endpoints
type AggregatorHandler struct {
	composer Composer
	tasks    TaskRegistry
	basePath string
}

// NewAggregatorHandler creates the composition handler. basePath is the
// route group prefix used to build status check URLs.
func NewAggregatorHandler(composer Composer, tasks TaskRegistry, basePath string) *AggregatorHandler {
	return &AggregatorHandler{
		composer: composer,
		tasks:    tasks,
		basePath: basePath,
	}
}

// GetDefault composes the default request
func (h *AggregatorHandler) GetDefault(c *gin.Context) {
	result, err := h.composer.ComposeDefault(c.Request.Context())
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, result)
}

// Compose composes a customized request
func (h *AggregatorHandler) Compose(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	result, err := h.composer.Compose(c.Request.Context(), req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, result)
}

// GetByID returns a previously produced result
func (h *AggregatorHandler) GetByID(c *gin.Context) {
	result, err := h.composer.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, result)
}

// SubmitAsync starts a background composition
func (h *AggregatorHandler) SubmitAsync(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	id, err := h.tasks.Submit(c.Request.Context(), req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	AcceptedResponse(c, h.accepted(id))
}

// PollAsync reports a background composition. A finished result is returned
// once; afterwards the id is unknown.
func (h *AggregatorHandler) PollAsync(c *gin.Context) {
	id := c.Param("requestId")

	res := h.tasks.Poll(id)
	switch res.Status {
	case types.TaskDone:
		SuccessResponse(c, res.Result)
	case types.TaskPending:
		AcceptedResponse(c, h.accepted(id))
	default:
		NotFoundResponse(c, "TASK_NOT_FOUND", "async task not found")
	}
}

func (h *AggregatorHandler) accepted(id string) types.AsyncAccepted {
	return types.AsyncAccepted{
		RequestID:      id,
		Status:         StatusProcessing,
		StatusCheckURL: h.basePath + "/async/" + id,
	}
}

// bindRequest decodes and validates the JSON body, writing the error
// response itself when it fails
func bindRequest(c *gin.Context) (*types.Request, bool) {
	var req types.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponseFromError(c, aggregator.ValidationError(err))
		return nil, false
	}
	return &req, true
}
