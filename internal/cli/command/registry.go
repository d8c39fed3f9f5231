package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	sourceFields := []Field{
		{Name: "language", Aliases: []string{"lang", "l"}, Prompt: "language", Type: FieldString},
		{Name: "code", Aliases: []string{"source_code", "c"}, Prompt: "source code", Type: FieldString, Required: true},
		{Name: "file", Aliases: []string{"source_file", "f"}, Prompt: "source file", Type: FieldFile},
	}
	commands := []Command{
		{
			Service:      "code",
			Action:       "run",
			Method:       http.MethodPost,
			PathTemplate: "/api/v1/run-code",
			Summary:      "run source and print the formatted output",
			Fields:       sourceFields,
		},
		{
			Service:      "code",
			Action:       "exec",
			Method:       http.MethodPost,
			PathTemplate: "/api/v1/executions",
			Summary:      "run source and print the structured verdict",
			Fields:       sourceFields,
		},
		{
			Service:      "lang",
			Action:       "list",
			Method:       http.MethodGet,
			PathTemplate: "/api/v1/languages",
			Summary:      "list registered languages",
		},
		{
			Service:      "health",
			Action:       "check",
			Method:       http.MethodGet,
			PathTemplate: "/healthz",
			Summary:      "probe the server",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// SortedKeys returns command keys in display order.
func SortedKeys(commands map[string]Command) []string {
	keys := make([]string, 0, len(commands))
	for key := range commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ApplyShortcuts marks file-backed fields and fills the default language.
func ApplyShortcuts(cmd Command, params Params, defaultLanguage string) {
	params.Canonicalize(cmd.Fields)
	if cmd.Service != "code" {
		return
	}
	if params.Get("file") != "" && params.Get("code") == "" {
		params.Set("code", FileMarker)
	}
	if params.Get("language") == "" && defaultLanguage != "" {
		params.Set("language", defaultLanguage)
	}
}

// MissingFields lists required fields that have no value yet.
func MissingFields(cmd Command, params Params) []Field {
	var missing []Field
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Get(field.Name) != "" {
			continue
		}
		missing = append(missing, field)
	}
	return missing
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)

	var body []byte
	if cmd.Method != http.MethodGet && cmd.Method != http.MethodDelete {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    cmd.PathTemplate,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "code":
		switch cmd.Action {
		case "run", "exec":
			return buildSourcePayload(params)
		}
	}
	return nil, nil
}

func buildSourcePayload(params Params) (interface{}, error) {
	sourceCode := params.Get("code")
	if (sourceCode == "" || sourceCode == FileMarker) && params.Get("file") != "" {
		var err error
		sourceCode, err = ReadFile(params.Get("file"))
		if err != nil {
			return nil, err
		}
	}
	if sourceCode == "" || sourceCode == FileMarker {
		return nil, fmt.Errorf("code or file is required")
	}

	payload := map[string]interface{}{
		"source_code": sourceCode,
	}
	if params.Get("language") != "" {
		payload["language"] = params.Get("language")
	}
	return payload, nil
}
