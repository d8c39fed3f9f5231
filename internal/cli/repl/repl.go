package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"coderunner/internal/cli/command"
	httpclient "coderunner/internal/cli/http"
	"coderunner/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "coderunner> "

// LineReader is the subset of *readline.Instance the session needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Options configures a Session.
type Options struct {
	Client     httpclient.Doer
	Commands   map[string]command.Command
	Prefs      *state.Preferences
	StatePath  string
	Timeout    time.Duration
	PrettyJSON bool
	Local      bool
}

// Session holds REPL state.
type Session struct {
	client     httpclient.Doer
	commands   map[string]command.Command
	prefs      *state.Preferences
	statePath  string
	timeout    time.Duration
	prettyJSON bool
	local      bool
	reader     LineReader
	out        io.Writer
}

func New(reader LineReader, out io.Writer, opts Options) *Session {
	prefs := opts.Prefs
	if prefs == nil {
		prefs = &state.Preferences{}
	}
	return &Session{
		client:     opts.Client,
		commands:   opts.Commands,
		prefs:      prefs,
		statePath:  opts.StatePath,
		timeout:    opts.Timeout,
		prettyJSON: opts.PrettyJSON,
		local:      opts.Local,
		reader:     reader,
		out:        out,
	}
}

// NewReadline creates a terminal line reader with history and completion.
func NewReadline(historyFile string, commands map[string]command.Command) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    newCompleter(commands),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func newCompleter(commands map[string]command.Command) *readline.PrefixCompleter {
	byService := map[string][]readline.PrefixCompleterInterface{}
	var services []string
	for _, key := range command.SortedKeys(commands) {
		cmd := commands[key]
		if _, ok := byService[cmd.Service]; !ok {
			services = append(services, cmd.Service)
		}
		byService[cmd.Service] = append(byService[cmd.Service], readline.PcItem(cmd.Action))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("lang")),
		readline.PcItem("show", readline.PcItem("config")),
	}
	for _, service := range services {
		items = append(items, readline.PcItem(service, byService[service]...))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads lines until exit, EOF, or ctx is done.
func (s *Session) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := s.reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if stop, handled := s.handleSystemCommand(line); handled {
			if stop {
				return
			}
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) (stop bool, handled bool) {
	switch line {
	case "exit", "quit":
		s.printLine("bye")
		return true, true
	case "help":
		s.printHelp()
		return false, true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return false, true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return false, true
	}
	return false, false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|lang")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8080")
			return
		}
		remote, ok := s.client.(*httpclient.Client)
		if !ok || s.local {
			s.printLine("base cannot be changed in local mode")
			return
		}
		remote.SetBaseURL(parts[1])
		s.prefs.BaseURL = parts[1]
		s.savePrefs()
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 30s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil || dur <= 0 {
			s.printLine("invalid duration: %s", parts[1])
			return
		}
		s.timeout = dur
		if remote, ok := s.client.(*httpclient.Client); ok {
			remote.SetTimeout(dur)
		}
		s.prefs.Timeout = dur.String()
		s.savePrefs()
		s.printLine("timeout set to %s", dur)
	case "lang", "language":
		if len(parts) < 2 {
			s.printLine("usage: set lang python")
			return
		}
		s.prefs.Language = parts[1]
		s.savePrefs()
		s.printLine("language set to %s", parts[1])
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) savePrefs() {
	if s.statePath == "" {
		return
	}
	if err := state.Save(s.statePath, *s.prefs); err != nil {
		s.printLine("save preferences failed: %v", err)
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "config":
		mode := "remote"
		base := s.prefs.BaseURL
		if remote, ok := s.client.(*httpclient.Client); ok {
			base = remote.BaseURL()
		}
		if s.local {
			mode = "local"
			base = "-"
		}
		s.printLine("mode: %s", mode)
		s.printLine("base: %s", base)
		s.printLine("language: %s", s.prefs.Language)
		s.printLine("timeout: %s", s.timeout)
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params, err := command.ParseParams(tokens[2:])
	if err != nil {
		return err
	}

	command.ApplyShortcuts(cmd, params, s.prefs.Language)
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range command.MissingFields(cmd, params) {
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(label string) (string, error) {
	s.reader.SetPrompt(label + ": ")
	defer s.reader.SetPrompt(prompt)
	line, err := s.reader.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration.Round(time.Millisecond))
	if len(resp.Body) == 0 {
		return
	}
	var plain struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(resp.Body, &plain); err == nil && plain.Output != nil {
		var fields map[string]json.RawMessage
		if json.Unmarshal(resp.Body, &fields) == nil && len(fields) == 1 {
			s.printLine("%s", strings.TrimRight(*plain.Output, "\n"))
			return
		}
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|lang | show config")
	s.printLine("commands:")
	for _, key := range command.SortedKeys(s.commands) {
		s.printLine("  %-14s %s", key, s.commands[key].Summary)
	}
	s.printLine("examples:")
	s.printLine("  code run lang=python code=\"print('hi')\"")
	s.printLine("  code exec lang=cpp file=./main.cpp")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
