// Package profile defines the language profiles used by the sandbox.
package profile

import (
	"fmt"
	"strings"
	"time"

	appErr "coderunner/pkg/errors"
)

// Mode selects the pipeline shape for a language.
type Mode string

const (
	// ModeInline passes the source to an interpreter as a single argument.
	ModeInline Mode = "inline"
	// ModeCompiled writes the source to a workspace, compiles it, then runs the result.
	ModeCompiled Mode = "compiled"
)

const (
	DefaultCompileTimeout = 10 * time.Second
	DefaultRunTimeout     = 5 * time.Second
)

// LanguageSpec defines how to compile and run a language.
// Command templates are split with shell quoting rules and may reference
// {src}, {bin} and {dir}.
type LanguageSpec struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Mode           Mode          `yaml:"mode"`
	SourceFile     string        `yaml:"sourceFile"`
	BinaryFile     string        `yaml:"binaryFile"`
	CompileCmdTpl  string        `yaml:"compileCmd"`
	RunCmdTpl      string        `yaml:"runCmd"`
	CompileTimeout time.Duration `yaml:"compileTimeout"`
	RunTimeout     time.Duration `yaml:"runTimeout"`
	Env            []string      `yaml:"env"`
	// Hints are shown when the compiler or runtime executable is missing.
	CompileToolHint string `yaml:"compileToolHint"`
	RunToolHint     string `yaml:"runToolHint"`
}

// DisplayName returns Name, falling back to ID.
func (s LanguageSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// CompileEnabled reports whether the language has a compile phase.
func (s LanguageSpec) CompileEnabled() bool {
	return s.Mode == ModeCompiled
}

// WithDefaults fills zero timeouts and the inline mode.
func (s LanguageSpec) WithDefaults() LanguageSpec {
	s.ID = strings.ToLower(strings.TrimSpace(s.ID))
	if s.Mode == "" {
		s.Mode = ModeInline
	}
	if s.RunTimeout == 0 {
		s.RunTimeout = DefaultRunTimeout
	}
	if s.Mode == ModeCompiled && s.CompileTimeout == 0 {
		s.CompileTimeout = DefaultCompileTimeout
	}
	return s
}

// Validate checks that a spec can be turned into a pipeline.
func (s LanguageSpec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return appErr.ValidationError("language.id", "required")
	}
	if strings.TrimSpace(s.RunCmdTpl) == "" {
		return appErr.ValidationError("language.runCmd", fmt.Sprintf("required for %s", s.ID))
	}
	if s.RunTimeout < 0 || s.CompileTimeout < 0 {
		return appErr.ValidationError("language.timeout", fmt.Sprintf("must not be negative for %s", s.ID))
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return appErr.ValidationError("language.env", fmt.Sprintf("%q is not KEY=VALUE", kv))
		}
	}
	switch s.Mode {
	case ModeInline:
		return nil
	case ModeCompiled:
		if strings.TrimSpace(s.CompileCmdTpl) == "" {
			return appErr.ValidationError("language.compileCmd", fmt.Sprintf("required for %s", s.ID))
		}
		if strings.TrimSpace(s.SourceFile) == "" {
			return appErr.ValidationError("language.sourceFile", fmt.Sprintf("required for %s", s.ID))
		}
		if strings.ContainsAny(s.SourceFile+s.BinaryFile, `/\`) {
			return appErr.ValidationError("language.sourceFile", "must be a plain file name")
		}
		return nil
	default:
		return appErr.ValidationError("language.mode", fmt.Sprintf("unknown mode %q", s.Mode))
	}
}

// DefaultLanguages returns the built-in language set.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:          "python",
			Name:        "Python",
			Mode:        ModeInline,
			RunCmdTpl:   "python3 -c",
			RunTimeout:  DefaultRunTimeout,
			RunToolHint: "Please install Python 3 to run Python code.",
		},
		{
			ID:          "javascript",
			Name:        "JavaScript",
			Mode:        ModeInline,
			RunCmdTpl:   "node -e",
			RunTimeout:  DefaultRunTimeout,
			RunToolHint: "Please install Node.js to run JavaScript code.",
		},
		{
			ID:              "cpp",
			Name:            "C++",
			Mode:            ModeCompiled,
			SourceFile:      "main.cpp",
			BinaryFile:      "a.out",
			CompileCmdTpl:   "g++ {src} -o {bin}",
			RunCmdTpl:       "{bin}",
			CompileTimeout:  DefaultCompileTimeout,
			RunTimeout:      DefaultRunTimeout,
			CompileToolHint: "Please install a C++ compiler (g++).",
		},
		{
			ID:              "java",
			Name:            "Java",
			Mode:            ModeCompiled,
			SourceFile:      "Main.java",
			CompileCmdTpl:   "javac Main.java",
			RunCmdTpl:       "java -cp {dir} Main",
			CompileTimeout:  DefaultCompileTimeout,
			RunTimeout:      DefaultRunTimeout,
			CompileToolHint: "Please install Java JDK to run Java code.",
			RunToolHint:     "Please install Java JDK/JRE.",
		},
	}
}
