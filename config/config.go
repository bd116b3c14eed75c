// Package config 提供了统一的配置加载与管理能力.
// 配置文件为 TOML，环境变量以 APP_ 为前缀覆盖（如 APP_LOG_LEVEL），支持热更新与脱敏打印.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/segtree/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  toml:"server"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
	Tree    TreeConfig    `mapstructure:"tree"    toml:"tree"`
	Version string        `mapstructure:"version" toml:"version"`
}

// ServerConfig 定义进程的基础运行参数.
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string          `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"` // 日志级别。
	File       string          `mapstructure:"file"        toml:"file"`                                                       // 日志文件路径。
	MaxSize    int             `mapstructure:"max_size"    toml:"max_size"    validate:"gte=0"`                               // 单个文件最大大小 (MB)。
	MaxBackups int             `mapstructure:"max_backups" toml:"max_backups" validate:"gte=0"`                               // 最大备份数。
	MaxAge     int             `mapstructure:"max_age"     toml:"max_age"     validate:"gte=0"`                               // 最大保留天数。
	Compress   bool            `mapstructure:"compress"    toml:"compress"`                                                   // 是否启用压缩。
	Remote     RemoteLogConfig `mapstructure:"remote"      toml:"remote"`                                                     // 远程日志写入配置。
}

// RemoteLogConfig 定义远程日志写入配置。
type RemoteLogConfig struct {
	Enabled       bool          `mapstructure:"enabled"        toml:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"       toml:"endpoint"       validate:"required_if=Enabled true"`
	AuthToken     string        `mapstructure:"auth_token"     toml:"auth_token"`
	Timeout       time.Duration `mapstructure:"timeout"        toml:"timeout"`
	BatchSize     int           `mapstructure:"batch_size"     toml:"batch_size"`
	BufferSize    int           `mapstructure:"buffer_size"    toml:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" toml:"flush_interval"`
	DropOnFull    bool          `mapstructure:"drop_on_full"   toml:"drop_on_full"`
}

// MetricsConfig 定义 Prometheus 指标暴露参数.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Port    string `mapstructure:"port"    toml:"port"    validate:"required_if=Enabled true"`
}

// TracingConfig 定义 OpenTelemetry 链路追踪参数.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"       toml:"enabled"`
	ServiceName  string `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
}

// TreeConfig 定义线段树的初始数据与查询模式.
type TreeConfig struct {
	Values       []int64 `mapstructure:"values"        toml:"values"`
	LenientQuery bool    `mapstructure:"lenient_query" toml:"lenient_query"`
}

// LoggingConfig 转换为 logging 包所需的配置.
func (c *Config) LoggingConfig(module string) logging.Config {
	return logging.Config{
		Service:    c.Server.Name,
		Module:     module,
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
		Remote: logging.RemoteConfig{
			Enabled:       c.Log.Remote.Enabled,
			Endpoint:      c.Log.Remote.Endpoint,
			AuthToken:     c.Log.Remote.AuthToken,
			Timeout:       c.Log.Remote.Timeout,
			BatchSize:     c.Log.Remote.BatchSize,
			BufferSize:    c.Log.Remote.BufferSize,
			FlushInterval: c.Log.Remote.FlushInterval,
			DropOnFull:    c.Log.Remote.DropOnFull,
		},
	}
}

// Default 返回不依赖配置文件的默认配置.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Name: "segtree", Environment: "dev"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Port: "9090"},
		Tracing: TracingConfig{ServiceName: "segtree"},
	}
}

// Loader 持有一个 viper 实例及其热更新回调.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate

	mu    sync.Mutex
	hooks []func(*Config)
}

// NewLoader 创建配置加载器.
func NewLoader() *Loader {
	return &Loader{v: viper.New(), validate: validator.New()}
}

// RegisterReloadHook 注册配置热更新回调。
func (l *Loader) RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("server.name", "segtree")
	l.v.SetDefault("server.environment", "dev")
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("metrics.port", "9090")
	l.v.SetDefault("tracing.service_name", "segtree")
}

// Load 读取、反序列化并校验配置.
func (l *Loader) Load(path string) (*Config, error) {
	l.setDefaults()
	l.v.SetConfigFile(path)
	l.v.SetConfigType("toml")

	l.v.SetEnvPrefix("APP")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	conf := new(Config)
	if err := l.v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := l.validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return conf, nil
}

// Watch 监听配置文件变化，每次成功重载后更新全局日志级别并依次调用回调.
// 校验失败的配置不会下发给回调.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(event fsnotify.Event) {
		ctx := context.Background()
		logging.Info(ctx, "detecting config change", "file", event.Name, "op", event.Op.String())

		conf, err := l.decode()
		if err != nil {
			logging.Error(ctx, "reload config failed", "error", err)
			return
		}

		logging.SetLevel(conf.Log.Level)
		logging.Info(ctx, "config hot-reloaded and validated successfully")

		l.mu.Lock()
		hooks := append([]func(*Config){}, l.hooks...)
		l.mu.Unlock()
		for _, hook := range hooks {
			hook(conf)
		}
	})
	l.v.WatchConfig()
}

// Viper 返回底层的 Viper 实例.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	masked, err := MaskedJSON(conf)
	if err != nil {
		slog.Error("failed to mask config for printing", "error", err)
		return
	}
	slog.Info("Current effective configuration", "config", masked)
}

// MaskedJSON 返回敏感字段被替换为 ****** 的 JSON 文本.
func MaskedJSON(conf any) (string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		return "", err
	}

	mask(configMap)

	out, err := json.MarshalIndent(configMap, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}
