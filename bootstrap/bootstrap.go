// Package bootstrap 负责进程启动时的通用基础设施初始化：配置、日志、链路追踪与指标。
package bootstrap

import (
	"context"

	"github.com/wyfcoding/segtree/config"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/metrics"
	"github.com/wyfcoding/segtree/tracing"
)

// Bootstrapper 处理通用基础设施的初始化，并按逆序释放资源。
type Bootstrapper struct {
	ServiceName string
	Version     string
	Config      *config.Config
	Logger      *logging.Logger
	Metrics     *metrics.Metrics

	loader   *config.Loader
	cleanups []func()
}

// New 创建一个新的引导器实例
func New(serviceName, version string) *Bootstrapper {
	return &Bootstrapper{
		ServiceName: serviceName,
		Version:     version,
		loader:      config.NewLoader(),
	}
}

// Initialize 加载配置文件并按配置初始化日志系统。
// configPath 为空时使用 config.Default()，不开启热更新。
func (b *Bootstrapper) Initialize(configPath string) error {
	if configPath == "" {
		b.Config = config.Default()
	} else {
		cfg, err := b.loader.Load(configPath)
		if err != nil {
			// 配置加载失败时用临时 Logger 输出错误。
			logging.NewLogger(b.ServiceName, "bootstrap").Error("failed to load config", "error", err, "path", configPath)
			return err
		}
		b.Config = cfg
	}

	if b.Config.Version == "" {
		b.Config.Version = b.Version
	}

	b.Logger = logging.InitLogger(b.Config.LoggingConfig("bootstrap"))
	b.addCleanup(func() {
		_ = b.Logger.Close()
	})

	config.PrintWithMask(b.Config)
	b.Logger.Info("bootstrap initialized", "service", b.ServiceName, "version", b.Config.Version, "config", configPath)
	return nil
}

// SetupTracing 初始化 OpenTelemetry 追踪器，失败只记录日志，不阻断启动。
func (b *Bootstrapper) SetupTracing(ctx context.Context) {
	shutdown, err := tracing.InitTracer(ctx, b.Config.Tracing)
	if err != nil {
		b.Logger.Error("failed to init tracer", "error", err)
		return
	}
	b.addCleanup(func() {
		if err := shutdown(context.Background()); err != nil {
			b.Logger.Error("failed to shutdown tracer", "error", err)
		}
	})
}

// SetupMetrics 创建指标注册表，配置开启时额外启动独立的 /metrics 端口。
func (b *Bootstrapper) SetupMetrics() *metrics.Metrics {
	b.Metrics = metrics.NewMetrics(b.ServiceName)
	b.Metrics.RegisterBuildInfo(b.ServiceName, b.Config.Version)

	if b.Config.Metrics.Enabled {
		b.addCleanup(b.Metrics.ExposeHttp(b.Config.Metrics.Port))
		b.Logger.Info("metrics endpoint exposed", "port", b.Config.Metrics.Port)
	}
	return b.Metrics
}

// WatchConfig 开启配置热更新，hook 在每次成功重载后调用。
func (b *Bootstrapper) WatchConfig(hook func(*config.Config)) {
	b.loader.RegisterReloadHook(hook)
	b.loader.Watch()
}

// Shutdown 按注册的逆序释放资源。
func (b *Bootstrapper) Shutdown() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}

func (b *Bootstrapper) addCleanup(fn func()) {
	b.cleanups = append(b.cleanups, fn)
}
