package result

import (
	"fmt"
	"strings"
)

const (
	NoOutputMarker     = "[No output produced]"
	ErrorsMarker       = "[Errors]"
	CompileErrorMarker = "[Compilation Error]"
	TruncatedMarker    = "[Output truncated]"
)

// Format renders a pipeline result as the text returned to the caller.
// Every result maps to defined text; a nil result is reported as an internal error.
func Format(res PipelineResult) string {
	switch r := res.(type) {
	case Success:
		return formatRun(r.Run)
	case CompileError:
		return CompileErrorMarker + "\n" + strings.TrimSpace(r.Log)
	case ToolMissing:
		return formatToolMissing(r)
	case Timeout:
		return formatTimeout(r)
	case UnsupportedLanguage:
		return fmt.Sprintf("Language '%s' is not supported yet.", r.Language)
	case InternalError:
		return formatInternal(r)
	case nil:
		return formatInternal(InternalError{Detail: "pipeline returned no result"})
	default:
		return formatInternal(InternalError{Detail: fmt.Sprintf("unknown result type %T", res)})
	}
}

func formatRun(run RunResult) string {
	stdout := strings.TrimSpace(run.Stdout)
	stderr := strings.TrimSpace(run.Stderr)
	if stdout == "" && stderr == "" {
		if run.Truncated {
			return NoOutputMarker + "\n" + TruncatedMarker
		}
		return NoOutputMarker
	}

	var b strings.Builder
	b.WriteString(stdout)
	if stderr != "" {
		if stdout != "" {
			b.WriteString("\n")
		}
		b.WriteString(ErrorsMarker)
		b.WriteString("\n")
		b.WriteString(stderr)
	}
	if run.Truncated {
		b.WriteString("\n")
		b.WriteString(TruncatedMarker)
	}
	return b.String()
}

func formatToolMissing(r ToolMissing) string {
	hint := strings.TrimSpace(r.Hint)
	if hint == "" {
		hint = fmt.Sprintf("Please install '%s' to run this code.", r.Tool)
	}
	return fmt.Sprintf("Error: '%s' not found. %s", r.Tool, hint)
}

func formatTimeout(r Timeout) string {
	name := r.Language
	if name == "" {
		name = "Program"
	}
	action := "execution"
	if r.Phase == PhaseCompile {
		action = "compilation"
	}
	if r.Limit > 0 {
		return fmt.Sprintf("Error: %s %s timed out after %s.", name, action, r.Limit)
	}
	return fmt.Sprintf("Error: %s %s timed out.", name, action)
}

func formatInternal(r InternalError) string {
	detail := strings.TrimSpace(r.Detail)
	if detail == "" {
		detail = "unknown error"
	}
	if r.Language == "" {
		return "Server error: " + detail
	}
	return fmt.Sprintf("Unexpected %s error: %s", r.Language, detail)
}
