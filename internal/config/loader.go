package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 FILECACHE_AUTHTOKEN。
const EnvPrefix = "FILECACHE"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectRuleLevelGlobals(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Rules {
		applyRuleDefaults(&cfg.Rules[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("Destination", "documents")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("DefaultPolicy", "always")
	v.SetDefault("AuthHeader", "Authorization")
	v.SetDefault("AuthToken", "")
	v.SetDefault("CollapseFetches", false)
	v.SetDefault("KeepStaleOnFailure", true)
	v.SetDefault("ErrorSinkWorkers", 1)
	v.SetDefault("ErrorSinkQueue", 256)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.Destination) == "" {
		g.Destination = "documents"
	}
	g.Destination = strings.ToLower(strings.TrimSpace(g.Destination))
	if strings.TrimSpace(g.DefaultPolicy) == "" {
		g.DefaultPolicy = "always"
	}
	g.DefaultPolicy = strings.ToLower(strings.TrimSpace(g.DefaultPolicy))
	if strings.TrimSpace(g.AuthHeader) == "" {
		g.AuthHeader = "Authorization"
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.ErrorSinkWorkers == 0 {
		g.ErrorSinkWorkers = 1
	}
	if g.ErrorSinkQueue == 0 {
		g.ErrorSinkQueue = 256
	}
}

func applyRuleDefaults(r *RuleConfig) {
	r.Name = strings.TrimSpace(r.Name)
	r.Prefix = strings.TrimSpace(r.Prefix)
	r.Policy = strings.ToLower(strings.TrimSpace(r.Policy))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// ruleOnlyKeys 之外的键只能出现在全局段。
var ruleOnlyKeys = map[string]struct{}{
	"name":      {},
	"prefix":    {},
	"policy":    {},
	"protected": {},
}

// rejectRuleLevelGlobals 拒绝在 [[Rule]] 中书写全局字段（例如 StoragePath、AuthToken）。
func rejectRuleLevelGlobals(v *viper.Viper) error {
	raw := v.Get("Rule")
	rules, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range rules {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		for key := range m {
			if _, allowed := ruleOnlyKeys[strings.ToLower(key)]; allowed {
				continue
			}
			name := fmt.Sprintf("#%d", idx)
			if rawName, ok := m["Name"].(string); ok && rawName != "" {
				name = rawName
			} else if rawName, ok := m["name"].(string); ok && rawName != "" {
				name = rawName
			}
			return newFieldError(ruleField(name, key), "规则中不支持该字段，请移到全局配置")
		}
	}

	return nil
}
