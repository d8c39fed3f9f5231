package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/spec"
	appErr "coderunner/pkg/errors"
	"coderunner/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStdoutStderrMaxBytes int64 = 1 << 20
	defaultWaitDelay                  = time.Second
)

type localEngine struct {
	cfg Config
}

// NewEngine creates an engine that runs commands directly on the host.
// There is no isolation beyond the wall-clock budget.
func NewEngine(cfg Config) Engine {
	if cfg.StdoutStderrMaxBytes == 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &localEngine{cfg: cfg}
}

func (e *localEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return result.RunResult{}, appErr.Wrapf(err, appErr.ExecutionCancelled, "%s cancelled before launch", phaseName(runSpec))
	}

	tool := runSpec.Cmd[0]
	path, err := resolveExecutable(tool, runSpec.WorkDir)
	if err != nil {
		if isNotFound(err) {
			return result.RunResult{}, appErr.ToolMissing(tool, err)
		}
		return result.RunResult{ExitCode: -1, LaunchFailed: true},
			appErr.Wrapf(err, appErr.ProcessLaunchFailed, "resolve %s failed", tool).WithDetail("tool", tool)
	}

	cmd := exec.Command(path, runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	if len(runSpec.Env) > 0 {
		cmd.Env = append(os.Environ(), runSpec.Env...)
	}
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	stdout := newCappedBuffer(e.cfg.StdoutStderrMaxBytes)
	stderr := newCappedBuffer(e.cfg.StdoutStderrMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	prepareProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{ExitCode: -1, LaunchFailed: true},
			appErr.Wrapf(err, appErr.ProcessLaunchFailed, "start %s failed", tool).WithDetail("tool", tool)
	}

	var timedOut atomic.Bool
	var cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if limit := runSpec.Limits.WallTime(); limit > 0 {
			timer := time.NewTimer(limit)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			killProcessGroup(cmd)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	runResult := result.RunResult{
		ExitCode:   exitCodeFromState(cmd.ProcessState),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
		WallTimeMs: time.Since(start).Milliseconds(),
	}
	if timedOut.Load() {
		runResult.TimedOut = true
		runResult.ExitCode = -1
	}

	if waitErr != nil && !isExitError(waitErr) {
		logger.Warn(ctx, "process wait returned error",
			zap.String("phase", phaseName(runSpec)),
			zap.String("tool", tool),
			zap.Error(waitErr),
		)
	}
	if interruptedByCancel(cancelled.Load(), cmd.ProcessState) {
		return runResult, appErr.Wrapf(ctx.Err(), appErr.ExecutionCancelled, "%s cancelled", phaseName(runSpec))
	}

	logger.Debug(ctx, "process finished",
		zap.String("phase", phaseName(runSpec)),
		zap.String("tool", tool),
		zap.Int("exit_code", runResult.ExitCode),
		zap.Bool("timed_out", runResult.TimedOut),
		zap.Int64("wall_time_ms", runResult.WallTimeMs),
	)
	return runResult, nil
}

// resolveExecutable locates tool the way exec.Command would, except that a
// relative path containing a separator is taken relative to workDir.
func resolveExecutable(tool, workDir string) (string, error) {
	if !strings.ContainsRune(tool, filepath.Separator) && !strings.ContainsRune(tool, '/') {
		return exec.LookPath(tool)
	}
	path := tool
	if !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}
	return exec.LookPath(path)
}

// interruptedByCancel reports whether cancellation actually ended the child.
// The watcher can see ctx.Done after the child already exited on its own.
func interruptedByCancel(cancelled bool, state *os.ProcessState) bool {
	return cancelled && killedBySignal(state)
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func exitCodeFromState(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || strings.TrimSpace(runSpec.Cmd[0]) == "" {
		return appErr.ValidationError("cmd", "required")
	}
	if runSpec.Limits.WallTimeMs < 0 {
		return appErr.ValidationError("wall_time_ms", fmt.Sprintf("must not be negative, got %d", runSpec.Limits.WallTimeMs))
	}
	return nil
}

func phaseName(runSpec spec.RunSpec) string {
	if runSpec.Phase == "" {
		return string(result.PhaseRun)
	}
	return runSpec.Phase
}
