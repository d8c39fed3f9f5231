package runner

import (
	"strings"

	appErr "coderunner/pkg/errors"

	"github.com/google/shlex"
)

// commandVars holds the values substituted into a command template.
type commandVars struct {
	Src string
	Bin string
	Dir string
}

// buildCommand splits tpl with shell quoting rules, then expands
// placeholders inside each field so paths containing spaces stay intact.
func buildCommand(tpl string, vars commandVars) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	replacements := []struct {
		placeholder string
		value       string
	}{
		{"{src}", vars.Src},
		{"{bin}", vars.Bin},
		{"{dir}", vars.Dir},
	}
	for i, field := range fields {
		for _, r := range replacements {
			if !strings.Contains(field, r.placeholder) {
				continue
			}
			if r.value == "" {
				return nil, appErr.Newf(appErr.InvalidParams, "template references %s but no value is set", r.placeholder)
			}
			field = strings.ReplaceAll(field, r.placeholder, r.value)
		}
		fields[i] = field
	}
	return fields, nil
}
