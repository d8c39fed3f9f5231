// Package server assembles the execution stack and its HTTP router.
package server

import (
	"fmt"
	"net/http"

	commonmw "coderunner/internal/common/http/middleware"
	"coderunner/internal/execution/controller"
	"coderunner/internal/execution/middleware"
	"coderunner/internal/execution/sandbox/engine"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/runner"
	"coderunner/internal/execution/sandbox/workspace"
	"coderunner/internal/execution/service"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

// GzipConfig controls response compression.
type GzipConfig struct {
	Enabled bool `yaml:"enabled"`
	MinSize int  `yaml:"minSize"`
}

// RouterConfig holds HTTP routing options.
type RouterConfig struct {
	Mode           string
	MaxSourceBytes int
	Gzip           GzipConfig
	RateLimit      middleware.RateLimitPolicy
}

// StackConfig describes the execution stack behind the router.
type StackConfig struct {
	Languages       []profile.LanguageSpec
	Workspace       workspace.Config
	WorkspacePrefix string
	Engine          engine.Config
	Metrics         observer.MetricsRecorder
}

// Stack is the assembled orchestrator with its workspace manager.
type Stack struct {
	Service    *service.ExecutionService
	Workspaces *workspace.Manager
}

// NewStack wires engine, workspace manager, pipeline registry and orchestrator.
func NewStack(cfg StackConfig) (*Stack, error) {
	wsManager, err := workspace.NewManager(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = profile.DefaultLanguages()
	}
	registry, err := runner.NewRegistry(languages, runner.Options{
		Engine:          engine.NewEngine(cfg.Engine),
		Workspaces:      wsManager,
		Metrics:         cfg.Metrics,
		WorkspacePrefix: cfg.WorkspacePrefix,
	})
	if err != nil {
		return nil, err
	}
	return &Stack{Service: service.NewExecutionService(registry), Workspaces: wsManager}, nil
}

// NewRouter builds the HTTP handler. A nil rateService disables rate limiting.
func NewRouter(cfg RouterConfig, execService *service.ExecutionService, rateService *service.RateLimitService) (http.Handler, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	execController := controller.NewExecutionController(execService, cfg.MaxSourceBytes)
	runCodeLimit := middleware.RateLimitMiddleware(rateService, "run-code", cfg.RateLimit, controller.RunCodeLimited)

	router.POST("/run-code", runCodeLimit, execController.RunCode)
	router.GET("/healthz", controller.Health)

	api := router.Group("/api/v1")
	api.POST("/run-code", runCodeLimit, execController.RunCode)
	api.POST("/executions", middleware.RateLimitMiddleware(rateService, "executions", cfg.RateLimit, nil), execController.CreateExecution)
	api.GET("/languages", execController.ListLanguages)

	if !cfg.Gzip.Enabled {
		return router, nil
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(cfg.Gzip.MinSize))
	if err != nil {
		return nil, fmt.Errorf("init gzip wrapper failed: %w", err)
	}
	return wrap(router), nil
}
