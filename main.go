package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/config"
	"github.com/any-hub/filecache/internal/coordinator"
	"github.com/any-hub/filecache/internal/logging"
	"github.com/any-hub/filecache/internal/server"
	"github.com/any-hub/filecache/internal/service"
	"github.com/any-hub/filecache/internal/upstream"
	"github.com/any-hub/filecache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["rules"] = config.RuleSummaries(cfg.Rules)
		fields["default_policy"] = cfg.Global.DefaultPolicy
		fields["auth_mode"] = cfg.Global.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘缓存 → 上游客户端 → 决策引擎 → Coordinator → Fiber server，
	// 所有请求共享同一份缓存与 ResultMap。
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化运行时失败: %v\n", err)
		return 1
	}
	defer rt.Close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["rules"] = config.RuleSummaries(cfg.Rules)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["destination"] = cfg.Global.Destination
	fields["auth_mode"] = cfg.Global.AuthMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, rt, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("filecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 FILECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("FILECACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// appRuntime 持有进程级组件，Close 负责有序卸载。
type appRuntime struct {
	store       cache.Store
	service     *service.Service
	coordinator *coordinator.Coordinator
	sink        *coordinator.AsyncSink
}

func buildRuntime(cfg *config.Config, logger *logrus.Logger) (*appRuntime, error) {
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	headers := upstream.StaticHeaders{Header: cfg.Global.AuthHeader, Token: cfg.Global.AuthToken}
	fetcher := upstream.NewFetcher(upstream.NewUpstreamClient(cfg), headers, logger)

	svc, err := service.New(service.Options{
		Fetcher:         fetcher,
		Store:           store,
		Destination:     cache.Destination(cfg.Global.Destination),
		Logger:          logger,
		CollapseFetches: cfg.Global.CollapseFetches,
	})
	if err != nil {
		return nil, err
	}

	sink := coordinator.NewAsyncSink(coordinator.LogSink{Logger: logger}, cfg.Global.ErrorSinkWorkers, cfg.Global.ErrorSinkQueue)
	coord, err := coordinator.New(coordinator.Options{
		Service:            svc,
		Store:              store,
		Sink:               sink,
		Logger:             logger,
		KeepStaleOnFailure: cfg.Global.KeepStaleOnFailure,
	})
	if err != nil {
		sink.Close()
		return nil, err
	}

	return &appRuntime{store: store, service: svc, coordinator: coord, sink: sink}, nil
}

// Close 等待后台刷新结束，排空错误通知队列，最后清空 ResultMap。
func (r *appRuntime) Close() {
	r.service.Wait()
	r.sink.Close()
	r.coordinator.Reset()
}

func startHTTPServer(cfg *config.Config, rt *appRuntime, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Config:      cfg,
		Coordinator: rt.coordinator,
		Store:       rt.store,
		ListenPort:  port,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   port,
		}).Info("Fiber 服务启动")
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.WithFields(logrus.Fields{"action": "shutdown"}).Info("收到退出信号，停止 Fiber 服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
