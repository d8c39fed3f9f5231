// Package runner turns language profiles into executable pipelines.
package runner

import (
	"context"
	"path/filepath"
	"strings"

	"coderunner/internal/execution/sandbox/engine"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/result"
	"coderunner/internal/execution/sandbox/workspace"
	appErr "coderunner/pkg/errors"
	"coderunner/pkg/utils/logger"

	"go.uber.org/zap"
)

// Pipeline compiles (when needed) and runs one source text for one language.
// Run always returns a result; failures are expressed as result variants.
type Pipeline interface {
	Language() string
	Run(ctx context.Context, source string) result.PipelineResult
}

// Describer is implemented by pipelines that expose their language profile.
type Describer interface {
	Spec() profile.LanguageSpec
}

// Options carries the collaborators shared by all pipelines.
type Options struct {
	Engine     engine.Engine
	Workspaces workspace.Factory
	Metrics    observer.MetricsRecorder
	// WorkspacePrefix is prepended to "<language>_" in workspace names.
	WorkspacePrefix string
}

const defaultWorkspacePrefix = "coderunner_"

// NewPipeline builds the pipeline matching lang.Mode.
func NewPipeline(lang profile.LanguageSpec, opts Options) (Pipeline, error) {
	lang = lang.WithDefaults()
	if err := lang.Validate(); err != nil {
		return nil, err
	}
	if opts.Engine == nil {
		return nil, appErr.ValidationError("engine", "required")
	}
	if opts.Metrics == nil {
		opts.Metrics = observer.NoopMetricsRecorder{}
	}
	if opts.WorkspacePrefix == "" {
		opts.WorkspacePrefix = defaultWorkspacePrefix
	}

	switch lang.Mode {
	case profile.ModeCompiled:
		if opts.Workspaces == nil {
			return nil, appErr.ValidationError("workspaces", "required for compiled languages")
		}
		return &compiledPipeline{
			lang:       lang,
			eng:        opts.Engine,
			workspaces: opts.Workspaces,
			metrics:    opts.Metrics,
			prefix:     opts.WorkspacePrefix + lang.ID + "_",
		}, nil
	default:
		return &inlinePipeline{lang: lang, eng: opts.Engine, metrics: opts.Metrics}, nil
	}
}

// fromEngineError maps an engine error to a result. Engine errors never
// describe user program behavior, only the environment.
func fromEngineError(ctx context.Context, lang profile.LanguageSpec, phase result.Phase, hint string, err error) result.PipelineResult {
	switch appErr.GetCode(err) {
	case appErr.ToolNotFound:
		tool := appErr.GetError(err).DetailString("tool")
		logger.Warn(ctx, "tool not found",
			zap.String("language_id", lang.ID),
			zap.String("phase", string(phase)),
			zap.String("tool", tool),
		)
		return result.ToolMissing{Tool: tool, Hint: hint}
	case appErr.ExecutionCancelled:
		return result.InternalError{Language: lang.DisplayName(), Detail: string(phase) + " cancelled"}
	default:
		logger.Error(ctx, "engine failure",
			zap.String("language_id", lang.ID),
			zap.String("phase", string(phase)),
			zap.Error(err),
		)
		return result.InternalError{Language: lang.DisplayName(), Detail: err.Error()}
	}
}

func timeoutResult(lang profile.LanguageSpec, phase result.Phase) result.Timeout {
	limit := lang.RunTimeout
	if phase == result.PhaseCompile {
		limit = lang.CompileTimeout
	}
	return result.Timeout{Phase: phase, Language: lang.DisplayName(), Limit: limit}
}

// isWithin reports whether path lies inside dir.
func isWithin(path, dir string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
