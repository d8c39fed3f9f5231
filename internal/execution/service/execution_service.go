// Package service implements the code execution orchestrator.
package service

import (
	"context"
	"fmt"
	"time"

	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/runner"
	"coderunner/pkg/utils/contextkey"
	"coderunner/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	DefaultLanguage = "python"
)

// PipelineSource resolves language ids to pipelines.
type PipelineSource interface {
	Lookup(id string) (runner.Pipeline, bool)
	Languages() []runner.LanguageInfo
}

// ExecutionRequest is one caller submission.
type ExecutionRequest struct {
	Language   string
	SourceCode string
}

// Execution is the outcome of Execute.
type Execution struct {
	Language string
	// Output is the formatted text for the caller.
	Output  string
	Result  result.PipelineResult
	Verdict result.Verdict
	// Fault is set only when the pipeline failed outside its modeled results.
	Fault       bool
	FaultDetail string
	Duration    time.Duration
}

// ExecutionService selects a pipeline and runs it behind a failure boundary.
type ExecutionService struct {
	pipelines PipelineSource
}

// NewExecutionService creates the orchestrator.
func NewExecutionService(pipelines PipelineSource) *ExecutionService {
	return &ExecutionService{pipelines: pipelines}
}

// Execute never panics and always returns output text.
func (s *ExecutionService) Execute(ctx context.Context, req ExecutionRequest) (exec Execution) {
	start := time.Now()
	ctx = context.WithValue(ctx, contextkey.Language, req.Language)
	exec.Language = req.Language

	defer func() {
		if r := recover(); r != nil {
			detail := panicSummary(r)
			logger.Error(ctx, "execution panicked", zap.String("panic", detail), zap.Stack("stack"))
			exec.Result = result.InternalError{Detail: detail}
			exec.Output = result.Format(exec.Result)
			exec.Fault = true
			exec.FaultDetail = detail
		}
		exec.Verdict = exec.Result.Verdict()
		exec.Duration = time.Since(start)
		logger.Info(ctx, "execution finished",
			zap.String("verdict", string(exec.Verdict)),
			zap.Bool("fault", exec.Fault),
			zap.Int("source_bytes", len(req.SourceCode)),
			zap.Duration("duration", exec.Duration),
		)
	}()

	pipeline, ok := s.pipelines.Lookup(req.Language)
	if !ok {
		exec.Result = result.UnsupportedLanguage{Language: req.Language}
		exec.Output = result.Format(exec.Result)
		return exec
	}

	res := pipeline.Run(ctx, req.SourceCode)
	if res == nil {
		res = result.InternalError{Language: req.Language, Detail: "pipeline returned no result"}
	}
	exec.Result = res
	exec.Output = result.Format(res)
	return exec
}

// Languages lists the registered languages.
func (s *ExecutionService) Languages() []runner.LanguageInfo {
	return s.pipelines.Languages()
}

func panicSummary(r interface{}) string {
	if err, ok := r.(error); ok {
		return fmt.Sprintf("%T: %v", err, err)
	}
	return fmt.Sprintf("panic: %v", r)
}
