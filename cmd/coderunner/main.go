package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coderunner/internal/common/cache"
	"coderunner/internal/execution/sandbox/observer"
	"coderunner/internal/execution/server"
	"coderunner/internal/execution/service"
	"coderunner/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/coderunner.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	stack, err := server.NewStack(server.StackConfig{
		Languages:       appCfg.Language.Languages,
		Workspace:       appCfg.Workspace.Config,
		WorkspacePrefix: appCfg.Workspace.Prefix,
		Engine:          appCfg.Engine,
		Metrics:         observer.LogMetricsRecorder{},
	})
	if err != nil {
		logger.Error(context.Background(), "init execution stack failed", zap.Error(err))
		return
	}

	var rateService *service.RateLimitService
	if appCfg.RateLimit.Enabled {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		rateService = service.NewRateLimitService(redisCache, appCfg.RateLimit.Policy.Window, appCfg.RateLimit.RedisTimeout)
	}

	handler, err := server.NewRouter(routerConfig(appCfg), stack.Service, rateService)
	if err != nil {
		logger.Error(context.Background(), "init http router failed", zap.Error(err))
		return
	}
	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "coderunner http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("workspace_root", stack.Workspaces.Root()),
			zap.Int("languages", len(stack.Service.Languages())),
			zap.Bool("rate_limit", rateService != nil),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func routerConfig(cfg *AppConfig) server.RouterConfig {
	return server.RouterConfig{
		Mode:           cfg.Server.Mode,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		Gzip:           cfg.Server.Gzip,
		RateLimit:      cfg.RateLimit.Policy,
	}
}
