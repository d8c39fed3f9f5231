//go:build unix

package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coderunner/internal/execution/sandbox/spec"
	appErr "coderunner/pkg/errors"
)

func shellSpec(script string, timeout time.Duration) spec.RunSpec {
	return spec.RunSpec{
		Phase:  "run",
		Cmd:    []string{"sh", "-c", script},
		Limits: spec.LimitFromDuration(timeout),
	}
}

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	eng := NewEngine(Config{})
	res, err := eng.Run(context.Background(), shellSpec("echo hello; echo oops 1>&2; exit 3", 5*time.Second))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.Stderr != "oops\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.TimedOut || res.LaunchFailed {
		t.Fatalf("unexpected flags: %+v", res)
	}
}

func TestRunFeedsStdinAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("here"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	eng := NewEngine(Config{})
	runSpec := shellSpec("cat marker.txt; cat -", 5*time.Second)
	runSpec.WorkDir = dir
	runSpec.Stdin = "-piped"
	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stdout != "here-piped" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestRunPassesExtraEnv(t *testing.T) {
	eng := NewEngine(Config{})
	runSpec := shellSpec(`printf %s "$CODERUNNER_TEST"`, 5*time.Second)
	runSpec.Env = []string{"CODERUNNER_TEST=value"}
	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stdout != "value" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	eng := NewEngine(Config{WaitDelay: 500 * time.Millisecond})
	start := time.Now()
	// The background sleep holds stdout open; only a group kill lets Wait return promptly.
	res, err := eng.Run(context.Background(), shellSpec("sleep 30 & sleep 30", 300*time.Millisecond))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("run returned after %s, expected prompt kill", elapsed)
	}
}

func TestRunToolMissing(t *testing.T) {
	eng := NewEngine(Config{})
	_, err := eng.Run(context.Background(), spec.RunSpec{Cmd: []string{"definitely-not-a-real-tool-xyz"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr.GetCode(err) != appErr.ToolNotFound {
		t.Fatalf("code = %v, want ToolNotFound", appErr.GetCode(err))
	}
	if tool := appErr.GetError(err).DetailString("tool"); tool != "definitely-not-a-real-tool-xyz" {
		t.Fatalf("tool detail = %q", tool)
	}
}

func TestRunRelativeBinaryResolvesAgainstWorkDir(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "prog")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho from-prog\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	eng := NewEngine(Config{})
	res, err := eng.Run(context.Background(), spec.RunSpec{WorkDir: dir, Cmd: []string{"./prog"}, Limits: spec.LimitFromDuration(5 * time.Second)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "from-prog" {
		t.Fatalf("stdout = %q", res.Stdout)
	}

	_, err = eng.Run(context.Background(), spec.RunSpec{WorkDir: dir, Cmd: []string{"./missing"}})
	if appErr.GetCode(err) != appErr.ToolNotFound {
		t.Fatalf("missing relative binary: code = %v", appErr.GetCode(err))
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	eng := NewEngine(Config{StdoutStderrMaxBytes: 8})
	res, err := eng.Run(context.Background(), shellSpec("printf 0123456789abcdef", 5*time.Second))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stdout != "01234567" || !res.Truncated {
		t.Fatalf("stdout = %q truncated = %v", res.Stdout, res.Truncated)
	}
}

func TestRunCancelledContext(t *testing.T) {
	eng := NewEngine(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := eng.Run(ctx, shellSpec("sleep 30", 0))
	if appErr.GetCode(err) != appErr.ExecutionCancelled {
		t.Fatalf("code = %v, want ExecutionCancelled", appErr.GetCode(err))
	}
	if res.TimedOut {
		t.Fatal("cancellation must not be reported as timeout")
	}
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	eng := NewEngine(Config{})
	if _, err := eng.Run(context.Background(), spec.RunSpec{}); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCappedBuffer(t *testing.T) {
	buf := newCappedBuffer(4)
	n, err := buf.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	_, _ = buf.Write([]byte("gh"))
	if buf.String() != "abcd" || !buf.Truncated() {
		t.Fatalf("buffer = %q truncated = %v", buf.String(), buf.Truncated())
	}

	unlimited := newCappedBuffer(-1)
	_, _ = unlimited.Write([]byte("abcdef"))
	if unlimited.String() != "abcdef" || unlimited.Truncated() {
		t.Fatalf("unlimited buffer = %q", unlimited.String())
	}

	invalid := newCappedBuffer(-1)
	_, _ = invalid.Write([]byte{'o', 'k', 0xff})
	if invalid.String() != "ok\uFFFD" {
		t.Fatalf("invalid utf-8 not replaced: %q", invalid.String())
	}
}

func TestCancelAfterNaturalExitIsNotCancellation(t *testing.T) {
	exited := exec.Command("sh", "-c", "exit 0")
	if err := exited.Run(); err != nil {
		t.Fatalf("run sh: %v", err)
	}
	if interruptedByCancel(true, exited.ProcessState) {
		t.Fatal("a child that exited on its own must not be reported as cancelled")
	}

	killed := exec.Command("sh", "-c", "kill -9 $$")
	_ = killed.Run()
	if !interruptedByCancel(true, killed.ProcessState) {
		t.Fatal("a child ended by SIGKILL after cancellation must be reported as cancelled")
	}
	if interruptedByCancel(false, killed.ProcessState) {
		t.Fatal("no cancellation was requested")
	}
}

func TestRunSubMillisecondBudgetStillTimesOut(t *testing.T) {
	eng := NewEngine(Config{WaitDelay: 500 * time.Millisecond})
	start := time.Now()
	res, err := eng.Run(context.Background(), shellSpec("sleep 3; echo done", 500*time.Microsecond))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.TimedOut || res.Stdout != "" {
		t.Fatalf("expected timeout without output, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run returned after %s", elapsed)
	}
}
