// Package result defines process outcomes, pipeline results and verdict mapping.
package result

import "time"

// Phase names one step of a pipeline.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Verdict is the short classification of a pipeline result.
type Verdict string

const (
	VerdictOK  Verdict = "OK"  // ran and exited zero
	VerdictRE  Verdict = "RE"  // ran and exited nonzero
	VerdictCE  Verdict = "CE"  // compilation failed
	VerdictTLE Verdict = "TLE" // a phase exceeded its wall-clock budget
	VerdictTM  Verdict = "TM"  // a required tool is missing
	VerdictUL  Verdict = "UL"  // unsupported language
	VerdictSE  Verdict = "SE"  // internal error
)

// RunResult captures raw data from one process invocation.
type RunResult struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	TimedOut     bool
	LaunchFailed bool
	// Truncated is set when either stream exceeded the capture cap.
	Truncated  bool
	WallTimeMs int64
}

// PipelineResult is the closed set of outcomes a language pipeline can produce.
// The concrete types are Success, CompileError, ToolMissing, Timeout,
// UnsupportedLanguage and InternalError.
type PipelineResult interface {
	Verdict() Verdict
	isPipelineResult()
}

// Success means the program ran to completion, whatever its exit code.
type Success struct {
	Run RunResult
}

// CompileError carries the compiler diagnostics.
type CompileError struct {
	Log      string
	ExitCode int
}

// ToolMissing names an executable that could not be located.
type ToolMissing struct {
	Tool string
	// Hint tells the operator what to install.
	Hint string
}

// Timeout reports which phase ran out of time.
type Timeout struct {
	Phase    Phase
	Language string
	Limit    time.Duration
}

// UnsupportedLanguage is returned when no pipeline is registered for the id.
type UnsupportedLanguage struct {
	Language string
}

// InternalError covers any unexpected failure inside a pipeline.
type InternalError struct {
	Language string
	Detail   string
}

func (Success) isPipelineResult()             {}
func (CompileError) isPipelineResult()        {}
func (ToolMissing) isPipelineResult()         {}
func (Timeout) isPipelineResult()             {}
func (UnsupportedLanguage) isPipelineResult() {}
func (InternalError) isPipelineResult()       {}

func (s Success) Verdict() Verdict {
	if s.Run.ExitCode != 0 {
		return VerdictRE
	}
	return VerdictOK
}

func (CompileError) Verdict() Verdict        { return VerdictCE }
func (ToolMissing) Verdict() Verdict         { return VerdictTM }
func (Timeout) Verdict() Verdict             { return VerdictTLE }
func (UnsupportedLanguage) Verdict() Verdict { return VerdictUL }
func (InternalError) Verdict() Verdict       { return VerdictSE }
