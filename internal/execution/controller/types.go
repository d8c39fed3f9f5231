// Package controller exposes the execution orchestrator over HTTP.
package controller

import (
	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/runner"
	"coderunner/internal/execution/service"
)

// RunCodeRequest is the inbound payload. Nil fields take the defaults.
type RunCodeRequest struct {
	Language   *string `json:"language"`
	SourceCode *string `json:"source_code"`
}

func (r RunCodeRequest) toServiceRequest() service.ExecutionRequest {
	out := service.ExecutionRequest{Language: service.DefaultLanguage}
	if r.Language != nil {
		out.Language = *r.Language
	}
	if r.SourceCode != nil {
		out.SourceCode = *r.SourceCode
	}
	return out
}

// RunCodeResponse is the outbound payload of /run-code.
type RunCodeResponse struct {
	Output string `json:"output"`
}

// ExecutionResponse is the data of the structured execution endpoint.
type ExecutionResponse struct {
	Language   string `json:"language"`
	Verdict    string `json:"verdict"`
	Output     string `json:"output"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	TimedOut   bool   `json:"timed_out"`
	Phase      string `json:"phase,omitempty"`
	Truncated  bool   `json:"truncated"`
	WallTimeMs int64  `json:"wall_time_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// LanguagesResponse lists the registered languages.
type LanguagesResponse struct {
	Languages []runner.LanguageInfo `json:"languages"`
}

func newExecutionResponse(exec service.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		Language:   exec.Language,
		Verdict:    string(exec.Verdict),
		Output:     exec.Output,
		DurationMs: exec.Duration.Milliseconds(),
	}
	switch r := exec.Result.(type) {
	case result.Success:
		code := r.Run.ExitCode
		resp.ExitCode = &code
		resp.Truncated = r.Run.Truncated
		resp.WallTimeMs = r.Run.WallTimeMs
		resp.Phase = string(result.PhaseRun)
	case result.CompileError:
		code := r.ExitCode
		resp.ExitCode = &code
		resp.Phase = string(result.PhaseCompile)
	case result.Timeout:
		resp.TimedOut = true
		resp.Phase = string(r.Phase)
	}
	return resp
}
