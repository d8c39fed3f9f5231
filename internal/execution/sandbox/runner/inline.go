package runner

import (
	"context"

	"coderunner/internal/execution/sandbox/engine"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/spec"
)

// inlinePipeline hands the source to an interpreter as its last argument.
// It never touches the filesystem.
type inlinePipeline struct {
	lang    profile.LanguageSpec
	eng     engine.Engine
	metrics observer.MetricsRecorder
}

func (p *inlinePipeline) Language() string           { return p.lang.ID }
func (p *inlinePipeline) Spec() profile.LanguageSpec { return p.lang }

func (p *inlinePipeline) Run(ctx context.Context, source string) result.PipelineResult {
	cmd, err := buildCommand(p.lang.RunCmdTpl, commandVars{})
	if err != nil {
		return result.InternalError{Language: p.lang.DisplayName(), Detail: err.Error()}
	}
	cmd = append(cmd, source)

	runRes, err := p.eng.Run(ctx, spec.RunSpec{
		Phase:  string(result.PhaseRun),
		Cmd:    cmd,
		Env:    p.lang.Env,
		Limits: spec.LimitFromDuration(p.lang.RunTimeout),
	})
	res := p.classify(ctx, runRes, err)
	p.metrics.ObserveRun(ctx, p.lang.ID, string(res.Verdict()), runRes.WallTimeMs, runRes.Truncated)
	return res
}

func (p *inlinePipeline) classify(ctx context.Context, runRes result.RunResult, err error) result.PipelineResult {
	if err != nil {
		return fromEngineError(ctx, p.lang, result.PhaseRun, p.lang.RunToolHint, err)
	}
	if runRes.TimedOut {
		return timeoutResult(p.lang, result.PhaseRun)
	}
	return result.Success{Run: runRes}
}
