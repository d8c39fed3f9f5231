package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"coderunner/internal/cli/command"
	"coderunner/internal/cli/config"
	"coderunner/internal/cli/http"
	"coderunner/internal/cli/repl"
	"coderunner/internal/cli/state"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/sandbox/workspace"
	"coderunner/internal/execution/server"
	"coderunner/pkg/utils/logger"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override request timeout (e.g. 30s)")
	language := flag.String("lang", "", "Override default language")
	statePath := flag.String("state", "", "Override preferences state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	local := flag.Bool("local", false, "Execute in-process instead of calling a server")
	verbose := flag.Bool("verbose", false, "Log service warnings to stderr in local mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	prefs, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load preferences failed: %v\n", err)
		return
	}
	applyPreferences(&cfg, prefs)
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *language != "" {
		cfg.Language = *language
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}
	prefs.Language = cfg.Language

	var client httpclient.Doer
	if *local {
		client, err = newLocalClient(*verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init local runner failed: %v\n", err)
			return
		}
	} else {
		client = httpclient.New(cfg.BaseURL, cfg.Timeout)
	}

	commands := command.Registry()
	reader, err := repl.NewReadline(cfg.HistoryFile, commands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init readline failed: %v\n", err)
		return
	}
	defer func() {
		_ = reader.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	session := repl.New(reader, reader.Stdout(), repl.Options{
		Client:     client,
		Commands:   commands,
		Prefs:      &prefs,
		StatePath:  cfg.StatePath,
		Timeout:    cfg.Timeout,
		PrettyJSON: cfg.PrettyJSON != nil && *cfg.PrettyJSON,
		Local:      *local,
	})
	session.Run(ctx)
}

// applyPreferences lets values saved with "set" win over the config file.
func applyPreferences(cfg *config.Config, prefs state.Preferences) {
	if prefs.BaseURL != "" {
		cfg.BaseURL = prefs.BaseURL
	}
	if prefs.Language != "" {
		cfg.Language = prefs.Language
	}
	if d := prefs.TimeoutValue(); d > 0 {
		cfg.Timeout = d
	}
}

func newLocalClient(verbose bool) (*httpclient.HandlerClient, error) {
	if verbose {
		if err := logger.Init(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"}); err != nil {
			return nil, err
		}
	} else {
		logger.SetLogger(logger.NewNop())
	}
	stack, err := server.NewStack(server.StackConfig{
		Workspace:       workspace.Config{},
		WorkspacePrefix: "coderunner_",
		Metrics:         observer.NoopMetricsRecorder{},
	})
	if err != nil {
		return nil, err
	}
	handler, err := server.NewRouter(server.RouterConfig{Mode: "release", MaxSourceBytes: 1 << 20}, stack.Service, nil)
	if err != nil {
		return nil, err
	}
	return httpclient.NewHandlerClient(handler), nil
}
