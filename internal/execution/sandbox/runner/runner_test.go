package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/spec"
	"coderunner/internal/execution/sandbox/workspace"
	appErr "coderunner/pkg/errors"
)

type fakeEngine struct {
	mu    sync.Mutex
	specs []spec.RunSpec
	// seen records workspace file contents at the time each phase ran.
	seen   []map[string]string
	handle func(call int, runSpec spec.RunSpec) (result.RunResult, error)
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.mu.Lock()
	call := len(f.specs)
	f.specs = append(f.specs, runSpec)
	files := map[string]string{}
	if runSpec.WorkDir != "" {
		entries, _ := os.ReadDir(runSpec.WorkDir)
		for _, e := range entries {
			data, _ := os.ReadFile(filepath.Join(runSpec.WorkDir, e.Name()))
			files[e.Name()] = string(data)
		}
	}
	f.seen = append(f.seen, files)
	f.mu.Unlock()
	if f.handle == nil {
		return result.RunResult{}, nil
	}
	return f.handle(call, runSpec)
}

func (f *fakeEngine) calls() []spec.RunSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spec.RunSpec(nil), f.specs...)
}

type factoryFunc func(ctx context.Context, prefix string) (*workspace.Workspace, error)

func (f factoryFunc) Create(ctx context.Context, prefix string) (*workspace.Workspace, error) {
	return f(ctx, prefix)
}

type recordingMetrics struct {
	mu       sync.Mutex
	compiles []bool
	runs     []string
}

func (m *recordingMetrics) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compiles = append(m.compiles, ok)
}

func (m *recordingMetrics) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, truncated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, verdict)
}

func langByID(t *testing.T, id string) profile.LanguageSpec {
	t.Helper()
	for _, lang := range profile.DefaultLanguages() {
		if lang.ID == id {
			return lang
		}
	}
	t.Fatalf("no default language %s", id)
	return profile.LanguageSpec{}
}

func newTestManager(t *testing.T) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(workspace.Config{RootDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func assertNoWorkspaces(t *testing.T, m *workspace.Manager) {
	t.Helper()
	entries, err := os.ReadDir(m.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace leaked: %d entries left under %s", len(entries), m.Root())
	}
}

func newPipeline(t *testing.T, id string, eng *fakeEngine, m *workspace.Manager, metrics *recordingMetrics) Pipeline {
	t.Helper()
	opts := Options{Engine: eng, Workspaces: m}
	if metrics != nil {
		opts.Metrics = metrics
	}
	p, err := NewPipeline(langByID(t, id), opts)
	if err != nil {
		t.Fatalf("NewPipeline(%s): %v", id, err)
	}
	return p
}

func TestInlinePipelineAppendsSource(t *testing.T) {
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		return result.RunResult{Stdout: "hello\n"}, nil
	}}
	metrics := &recordingMetrics{}
	p := newPipeline(t, "python", eng, nil, metrics)

	res := p.Run(context.Background(), "print('hello')")
	if got := result.Format(res); got != "hello" {
		t.Fatalf("Format() = %q", got)
	}
	calls := eng.calls()
	if len(calls) != 1 {
		t.Fatalf("engine called %d times", len(calls))
	}
	want := []string{"python3", "-c", "print('hello')"}
	if len(calls[0].Cmd) != len(want) {
		t.Fatalf("cmd = %q", calls[0].Cmd)
	}
	for i := range want {
		if calls[0].Cmd[i] != want[i] {
			t.Fatalf("cmd = %q, want %q", calls[0].Cmd, want)
		}
	}
	if calls[0].WorkDir != "" {
		t.Fatalf("inline pipeline must not use a workspace, got %s", calls[0].WorkDir)
	}
	if calls[0].Limits.WallTime() != 5*time.Second {
		t.Fatalf("run limit = %s", calls[0].Limits.WallTime())
	}
	if len(metrics.runs) != 1 || metrics.runs[0] != "OK" {
		t.Fatalf("metrics runs = %v", metrics.runs)
	}
}

func TestInlinePipelineToolMissing(t *testing.T) {
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		return result.RunResult{}, appErr.ToolMissing("node", errors.New("exec: not found"))
	}}
	p := newPipeline(t, "javascript", eng, nil, nil)

	res := p.Run(context.Background(), "console.log(1)")
	want := "Error: 'node' not found. Please install Node.js to run JavaScript code."
	if got := result.Format(res); got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestInlinePipelineTimeout(t *testing.T) {
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		return result.RunResult{TimedOut: true, ExitCode: -1}, nil
	}}
	p := newPipeline(t, "python", eng, nil, nil)

	res := p.Run(context.Background(), "while True: pass")
	timeout, ok := res.(result.Timeout)
	if !ok {
		t.Fatalf("result = %#v, want Timeout", res)
	}
	if timeout.Phase != result.PhaseRun || timeout.Language != "Python" || timeout.Limit != 5*time.Second {
		t.Fatalf("unexpected timeout: %+v", timeout)
	}
}

func TestInlinePipelineLaunchFailure(t *testing.T) {
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		return result.RunResult{LaunchFailed: true, ExitCode: -1},
			appErr.New(appErr.ProcessLaunchFailed).WithMessage("start python3 failed: invalid argument")
	}}
	p := newPipeline(t, "python", eng, nil, nil)

	res := p.Run(context.Background(), "x")
	internal, ok := res.(result.InternalError)
	if !ok || internal.Language != "Python" {
		t.Fatalf("result = %#v, want InternalError", res)
	}
}

func TestCompiledPipelineSuccess(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{handle: func(call int, runSpec spec.RunSpec) (result.RunResult, error) {
		if call == 1 {
			return result.RunResult{Stdout: "hello\n"}, nil
		}
		return result.RunResult{}, nil
	}}
	metrics := &recordingMetrics{}
	p := newPipeline(t, "cpp", eng, m, metrics)

	source := "#include <cstdio>\nint main(){puts(\"hello\");}"
	res := p.Run(context.Background(), source)
	if got := result.Format(res); got != "hello" {
		t.Fatalf("Format() = %q", got)
	}

	calls := eng.calls()
	if len(calls) != 2 {
		t.Fatalf("engine called %d times, want 2", len(calls))
	}
	compile, run := calls[0], calls[1]
	dir := compile.WorkDir
	if dir == "" || run.WorkDir != dir {
		t.Fatalf("workdirs differ: %q vs %q", compile.WorkDir, run.WorkDir)
	}
	if !isWithin(dir, m.Root()) || !hasPrefix(filepath.Base(dir), "coderunner_cpp_") {
		t.Fatalf("unexpected workspace %s", dir)
	}
	wantCompile := []string{"g++", filepath.Join(dir, "main.cpp"), "-o", filepath.Join(dir, "a.out")}
	for i := range wantCompile {
		if compile.Cmd[i] != wantCompile[i] {
			t.Fatalf("compile cmd = %q, want %q", compile.Cmd, wantCompile)
		}
	}
	if run.Cmd[0] != filepath.Join(dir, "a.out") {
		t.Fatalf("run cmd = %q", run.Cmd)
	}
	if compile.Limits.WallTime() != 10*time.Second || run.Limits.WallTime() != 5*time.Second {
		t.Fatalf("limits = %s / %s", compile.Limits.WallTime(), run.Limits.WallTime())
	}
	if eng.seen[0]["main.cpp"] != source {
		t.Fatalf("source not written before compile: %v", eng.seen[0])
	}
	if len(metrics.compiles) != 1 || !metrics.compiles[0] || len(metrics.runs) != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
	assertNoWorkspaces(t, m)
}

func TestCompiledPipelineJavaEntryPoint(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{}
	p := newPipeline(t, "java", eng, m, nil)

	res := p.Run(context.Background(), "public class Main {}")
	if got := result.Format(res); got != result.NoOutputMarker {
		t.Fatalf("Format() = %q", got)
	}
	calls := eng.calls()
	if len(calls) != 2 {
		t.Fatalf("engine called %d times", len(calls))
	}
	if _, ok := eng.seen[0]["Main.java"]; !ok {
		t.Fatalf("source must be written as Main.java, got %v", eng.seen[0])
	}
	if calls[0].Cmd[0] != "javac" || calls[0].Cmd[1] != "Main.java" {
		t.Fatalf("compile cmd = %q", calls[0].Cmd)
	}
	wantRun := []string{"java", "-cp", calls[0].WorkDir, "Main"}
	for i := range wantRun {
		if calls[1].Cmd[i] != wantRun[i] {
			t.Fatalf("run cmd = %q, want %q", calls[1].Cmd, wantRun)
		}
	}
	assertNoWorkspaces(t, m)
}

func TestCompiledPipelineCompileError(t *testing.T) {
	tests := []struct {
		name    string
		compile result.RunResult
		wantLog string
	}{
		{"stderr", result.RunResult{ExitCode: 1, Stderr: "  main.cpp:1: error: expected ';'\n"}, "main.cpp:1: error: expected ';'"},
		{"stdout fallback", result.RunResult{ExitCode: 2, Stdout: "fatal: bad input\n"}, "fatal: bad input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			eng := &fakeEngine{handle: func(call int, runSpec spec.RunSpec) (result.RunResult, error) {
				return tt.compile, nil
			}}
			p := newPipeline(t, "cpp", eng, m, nil)

			res := p.Run(context.Background(), "int main(")
			if got := result.Format(res); got != result.CompileErrorMarker+"\n"+tt.wantLog {
				t.Fatalf("Format() = %q", got)
			}
			if n := len(eng.calls()); n != 1 {
				t.Fatalf("run phase started after compile error (%d calls)", n)
			}
			assertNoWorkspaces(t, m)
		})
	}
}

func TestCompiledPipelineCompileTimeoutSkipsRun(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		return result.RunResult{TimedOut: true, ExitCode: -1}, nil
	}}
	metrics := &recordingMetrics{}
	p := newPipeline(t, "cpp", eng, m, metrics)

	res := p.Run(context.Background(), "template<int N> struct X {};")
	timeout, ok := res.(result.Timeout)
	if !ok || timeout.Phase != result.PhaseCompile || timeout.Limit != 10*time.Second {
		t.Fatalf("result = %#v, want compile timeout", res)
	}
	if n := len(eng.calls()); n != 1 {
		t.Fatalf("run phase started after compile timeout (%d calls)", n)
	}
	if len(metrics.compiles) != 1 || metrics.compiles[0] || len(metrics.runs) != 0 {
		t.Fatalf("metrics = %+v", metrics)
	}
	assertNoWorkspaces(t, m)
}

func TestCompiledPipelineToolMissingPerPhase(t *testing.T) {
	t.Run("compiler", func(t *testing.T) {
		m := newTestManager(t)
		eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
			return result.RunResult{}, appErr.ToolMissing("g++", errors.New("not found"))
		}}
		res := newPipeline(t, "cpp", eng, m, nil).Run(context.Background(), "int main(){}")
		want := "Error: 'g++' not found. Please install a C++ compiler (g++)."
		if got := result.Format(res); got != want {
			t.Fatalf("Format() = %q, want %q", got, want)
		}
		assertNoWorkspaces(t, m)
	})

	t.Run("runtime", func(t *testing.T) {
		m := newTestManager(t)
		eng := &fakeEngine{handle: func(call int, runSpec spec.RunSpec) (result.RunResult, error) {
			if call == 1 {
				return result.RunResult{}, appErr.ToolMissing("java", errors.New("not found"))
			}
			return result.RunResult{}, nil
		}}
		res := newPipeline(t, "java", eng, m, nil).Run(context.Background(), "public class Main {}")
		want := "Error: 'java' not found. Please install Java JDK/JRE."
		if got := result.Format(res); got != want {
			t.Fatalf("Format() = %q, want %q", got, want)
		}
		assertNoWorkspaces(t, m)
	})
}

func TestCompiledPipelineMissingBinaryIsInternal(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{handle: func(call int, runSpec spec.RunSpec) (result.RunResult, error) {
		if call == 1 {
			return result.RunResult{}, appErr.ToolMissing(runSpec.Cmd[0], errors.New("no such file"))
		}
		return result.RunResult{}, nil
	}}
	res := newPipeline(t, "cpp", eng, m, nil).Run(context.Background(), "int main(){}")
	if _, ok := res.(result.InternalError); !ok {
		t.Fatalf("result = %#v, want InternalError", res)
	}
}

func TestCompiledPipelineWorkspaceFailure(t *testing.T) {
	eng := &fakeEngine{}
	p, err := NewPipeline(langByID(t, "cpp"), Options{
		Engine: eng,
		Workspaces: factoryFunc(func(ctx context.Context, prefix string) (*workspace.Workspace, error) {
			return nil, appErr.New(appErr.WorkspaceError).WithMessage("disk full")
		}),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	res := p.Run(context.Background(), "int main(){}")
	if got := result.Format(res); got != "Unexpected C++ error: disk full" {
		t.Fatalf("Format() = %q", got)
	}
	if len(eng.calls()) != 0 {
		t.Fatal("engine must not run without a workspace")
	}
}

func TestCompiledPipelineRemovesWorkspaceOnPanic(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{handle: func(int, spec.RunSpec) (result.RunResult, error) {
		panic("engine exploded")
	}}
	p := newPipeline(t, "cpp", eng, m, nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		p.Run(context.Background(), "int main(){}")
	}()
	assertNoWorkspaces(t, m)
}

func TestCompiledPipelinesDoNotShareWorkspaces(t *testing.T) {
	m := newTestManager(t)
	eng := &fakeEngine{handle: func(call int, runSpec spec.RunSpec) (result.RunResult, error) {
		if runSpec.Phase == string(result.PhaseRun) {
			data, err := os.ReadFile(filepath.Join(runSpec.WorkDir, "main.cpp"))
			if err != nil {
				return result.RunResult{}, err
			}
			return result.RunResult{Stdout: string(data)}, nil
		}
		return result.RunResult{}, nil
	}}
	p := newPipeline(t, "cpp", eng, m, nil)

	const n = 16
	var wg sync.WaitGroup
	outputs := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outputs[i] = result.Format(p.Run(context.Background(), "// body "+string(rune('a'+i))))
		}(i)
	}
	wg.Wait()
	for i, out := range outputs {
		if want := "// body " + string(rune('a'+i)); out != want {
			t.Fatalf("request %d saw %q, want %q", i, out, want)
		}
	}
	assertNoWorkspaces(t, m)
}

func TestNewPipelineValidates(t *testing.T) {
	if _, err := NewPipeline(profile.LanguageSpec{ID: "x"}, Options{Engine: &fakeEngine{}}); err == nil {
		t.Fatal("expected error for spec without run command")
	}
	if _, err := NewPipeline(langByID(t, "python"), Options{}); err == nil {
		t.Fatal("expected error without engine")
	}
	if _, err := NewPipeline(langByID(t, "cpp"), Options{Engine: &fakeEngine{}}); err == nil {
		t.Fatal("expected error for compiled language without workspaces")
	}
}

func TestBuildCommand(t *testing.T) {
	cmd, err := buildCommand(`g++ -O2 "{src}" -o {bin}`, commandVars{Src: "/tmp/with space/main.cpp", Bin: "/tmp/with space/a.out"})
	if err != nil {
		t.Fatalf("buildCommand: %v", err)
	}
	want := []string{"g++", "-O2", "/tmp/with space/main.cpp", "-o", "/tmp/with space/a.out"}
	if len(cmd) != len(want) {
		t.Fatalf("cmd = %q", cmd)
	}
	for i := range want {
		if cmd[i] != want[i] {
			t.Fatalf("cmd = %q, want %q", cmd, want)
		}
	}

	if _, err := buildCommand("{bin}", commandVars{}); appErr.GetCode(err) != appErr.InvalidParams {
		t.Fatalf("missing placeholder value: %v", err)
	}
	if _, err := buildCommand("  ", commandVars{}); err == nil {
		t.Fatal("expected error for empty template")
	}
	if _, err := buildCommand(`python3 "-c`, commandVars{}); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func TestInlinePipelineSubMillisecondTimeoutStaysBounded(t *testing.T) {
	eng := &fakeEngine{}
	lang := langByID(t, "python")
	lang.RunTimeout = 500 * time.Microsecond
	p, err := NewPipeline(lang, Options{Engine: eng, Workspaces: newTestManager(t)})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	p.Run(context.Background(), "print('done')")

	calls := eng.calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	if calls[0].Limits.WallTimeMs != 1 || calls[0].Limits.WallTime() <= 0 {
		t.Fatalf("limit = %+v, want a 1ms bound", calls[0].Limits)
	}
}

func TestInlinePipelinePassesDashSourceVerbatim(t *testing.T) {
	eng := &fakeEngine{}
	p := newPipeline(t, "javascript", eng, newTestManager(t), nil)
	p.Run(context.Background(), "--version")

	calls := eng.calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	cmd := calls[0].Cmd
	if len(cmd) != 3 || cmd[0] != "node" || cmd[1] != "-e" || cmd[2] != "--version" {
		t.Fatalf("argv = %q, want the source as the value of -e", cmd)
	}
}
