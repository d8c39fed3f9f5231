// Package engine launches external processes under a wall-clock budget.
package engine

import (
	"context"

	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/spec"
)

// Engine executes one RunSpec as a child process.
//
// A missing executable is reported as an error with code ToolNotFound, never as
// a RunResult with a nonzero exit code. Other launch failures return a RunResult
// with LaunchFailed set together with a ProcessLaunchFailed error. A timeout is
// not an error: the RunResult has TimedOut set.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}
