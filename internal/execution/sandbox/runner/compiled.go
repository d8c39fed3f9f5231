package runner

import (
	"context"
	"fmt"
	"strings"

	"coderunner/internal/execution/sandbox/engine"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/spec"
	"coderunner/internal/execution/sandbox/workspace"
	appErr "coderunner/pkg/errors"
)

// compiledPipeline writes the source into a fresh workspace, compiles it,
// and runs the output from the same workspace. The workspace is removed
// on every return path.
type compiledPipeline struct {
	lang       profile.LanguageSpec
	eng        engine.Engine
	workspaces workspace.Factory
	metrics    observer.MetricsRecorder
	prefix     string
}

func (p *compiledPipeline) Language() string           { return p.lang.ID }
func (p *compiledPipeline) Spec() profile.LanguageSpec { return p.lang }

func (p *compiledPipeline) Run(ctx context.Context, source string) result.PipelineResult {
	ws, err := p.workspaces.Create(ctx, p.prefix)
	if err != nil {
		return p.internal(err)
	}
	defer ws.Destroy(context.WithoutCancel(ctx))

	if err := ws.Write(p.lang.SourceFile, source); err != nil {
		return p.internal(err)
	}
	vars := commandVars{Src: ws.Path(p.lang.SourceFile), Dir: ws.Root()}
	if p.lang.BinaryFile != "" {
		vars.Bin = ws.Path(p.lang.BinaryFile)
	}

	if res, ok := p.compile(ctx, ws.Root(), vars); !ok {
		return res
	}
	return p.run(ctx, ws.Root(), vars)
}

// compile reports ok=false with the terminal result when the run phase must not start.
func (p *compiledPipeline) compile(ctx context.Context, dir string, vars commandVars) (result.PipelineResult, bool) {
	cmd, err := buildCommand(p.lang.CompileCmdTpl, vars)
	if err != nil {
		return p.internal(err), false
	}
	compileRes, err := p.eng.Run(ctx, spec.RunSpec{
		Phase:   string(result.PhaseCompile),
		WorkDir: dir,
		Cmd:     cmd,
		Env:     p.lang.Env,
		Limits:  spec.LimitFromDuration(p.lang.CompileTimeout),
	})
	ok := err == nil && !compileRes.TimedOut && compileRes.ExitCode == 0
	p.metrics.ObserveCompile(ctx, p.lang.ID, ok, compileRes.WallTimeMs)

	switch {
	case err != nil:
		return fromEngineError(ctx, p.lang, result.PhaseCompile, p.lang.CompileToolHint, err), false
	case compileRes.TimedOut:
		return timeoutResult(p.lang, result.PhaseCompile), false
	case compileRes.ExitCode != 0:
		log := compileRes.Stderr
		if strings.TrimSpace(log) == "" {
			log = compileRes.Stdout
		}
		return result.CompileError{Log: log, ExitCode: compileRes.ExitCode}, false
	}
	return nil, true
}

func (p *compiledPipeline) run(ctx context.Context, dir string, vars commandVars) result.PipelineResult {
	cmd, err := buildCommand(p.lang.RunCmdTpl, vars)
	if err != nil {
		return p.internal(err)
	}
	runRes, err := p.eng.Run(ctx, spec.RunSpec{
		Phase:   string(result.PhaseRun),
		WorkDir: dir,
		Cmd:     cmd,
		Env:     p.lang.Env,
		Limits:  spec.LimitFromDuration(p.lang.RunTimeout),
	})

	var res result.PipelineResult
	switch {
	case err != nil && appErr.Is(err, appErr.ToolNotFound) && isWithin(appErr.GetError(err).DetailString("tool"), dir):
		// The compiler exited zero but produced nothing runnable.
		res = p.internal(fmt.Errorf("compiled binary %s is missing", p.lang.BinaryFile))
	case err != nil:
		res = fromEngineError(ctx, p.lang, result.PhaseRun, p.lang.RunToolHint, err)
	case runRes.TimedOut:
		res = timeoutResult(p.lang, result.PhaseRun)
	default:
		res = result.Success{Run: runRes}
	}
	p.metrics.ObserveRun(ctx, p.lang.ID, string(res.Verdict()), runRes.WallTimeMs, runRes.Truncated)
	return res
}

func (p *compiledPipeline) internal(err error) result.PipelineResult {
	return result.InternalError{Language: p.lang.DisplayName(), Detail: err.Error()}
}
