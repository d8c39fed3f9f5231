package controller

import (
	"context"
	"net/http"

	"coderunner/internal/execution/sandbox/runner"
	"coderunner/internal/execution/service"
	"coderunner/pkg/errors"
	"coderunner/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const faultPrefix = "Server error in /run-code: "

// Executor is the orchestrator used by the controller.
type Executor interface {
	Execute(ctx context.Context, req service.ExecutionRequest) service.Execution
	Languages() []runner.LanguageInfo
}

// ExecutionController handles code execution HTTP endpoints.
type ExecutionController struct {
	executor       Executor
	maxSourceBytes int
}

// NewExecutionController creates a controller. maxSourceBytes <= 0 disables the
// size check on the structured endpoint.
func NewExecutionController(executor Executor, maxSourceBytes int) *ExecutionController {
	return &ExecutionController{executor: executor, maxSourceBytes: maxSourceBytes}
}

// RunCode handles the plain {language, source_code} -> {output} contract.
// Unparseable bodies fall back to the defaults instead of failing.
func (h *ExecutionController) RunCode(c *gin.Context) {
	var req RunCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = RunCodeRequest{}
	}

	exec := h.executor.Execute(c.Request.Context(), req.toServiceRequest())
	if exec.Fault {
		c.JSON(http.StatusInternalServerError, RunCodeResponse{Output: faultPrefix + exec.FaultDetail})
		return
	}
	c.JSON(http.StatusOK, RunCodeResponse{Output: exec.Output})
}

// RunCodeLimited writes a rate-limit rejection in the RunCode response shape.
func RunCodeLimited(c *gin.Context, err error) {
	code := errors.GetCode(err)
	c.JSON(code.HTTPStatus(), RunCodeResponse{Output: "Error: " + err.Error()})
}

// CreateExecution runs code and returns a detailed result envelope.
func (h *ExecutionController) CreateExecution(c *gin.Context) {
	var req RunCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	svcReq := req.toServiceRequest()
	if h.maxSourceBytes > 0 && len(svcReq.SourceCode) > h.maxSourceBytes {
		response.Error(c, errors.Newf(errors.CodeTooLarge, "source code exceeds %d bytes", h.maxSourceBytes).
			WithDetail("size", len(svcReq.SourceCode)))
		return
	}

	exec := h.executor.Execute(c.Request.Context(), svcReq)
	if exec.Fault {
		response.Error(c, errors.Newf(errors.InternalServerError, "execution failed: %s", exec.FaultDetail))
		return
	}
	response.Success(c, newExecutionResponse(exec))
}

// ListLanguages returns the registered languages.
func (h *ExecutionController) ListLanguages(c *gin.Context) {
	response.Success(c, LanguagesResponse{Languages: h.executor.Languages()})
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
