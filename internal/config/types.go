package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/filecache/internal/policy"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有请求共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	StoragePath string `mapstructure:"StoragePath"`
	Destination string `mapstructure:"Destination"`

	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`

	DefaultPolicy string `mapstructure:"DefaultPolicy"`
	AuthHeader    string `mapstructure:"AuthHeader"`
	AuthToken     string `mapstructure:"AuthToken"`

	CollapseFetches    bool `mapstructure:"CollapseFetches"`
	KeepStaleOnFailure bool `mapstructure:"KeepStaleOnFailure"`
	ErrorSinkWorkers   int  `mapstructure:"ErrorSinkWorkers"`
	ErrorSinkQueue     int  `mapstructure:"ErrorSinkQueue"`
}

// RuleConfig 按 URL 前缀为请求指定默认策略与鉴权标记。
type RuleConfig struct {
	Name      string `mapstructure:"Name"`
	Prefix    string `mapstructure:"Prefix"`
	Policy    string `mapstructure:"Policy"`
	Protected bool   `mapstructure:"Protected"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Rules  []RuleConfig `mapstructure:"Rule"`
}

// HasCredentials 表示是否配置了访问受保护资源的令牌。
func (g GlobalConfig) HasCredentials() bool {
	return strings.TrimSpace(g.AuthToken) != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (g GlobalConfig) AuthMode() string {
	if g.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// CachePolicy 解析全局默认策略；Validate 通过后不会失败。
func (g GlobalConfig) CachePolicy() policy.Policy {
	p, err := policy.Parse(g.DefaultPolicy)
	if err != nil {
		return policy.Always()
	}
	return p
}

// CachePolicy 解析规则策略；为空时返回零值，由调用方回退到全局策略。
func (r RuleConfig) CachePolicy() policy.Policy {
	if strings.TrimSpace(r.Policy) == "" {
		return policy.Policy{}
	}
	p, err := policy.Parse(r.Policy)
	if err != nil {
		return policy.Policy{}
	}
	return p
}

// RuleSummaries 返回所有规则的摘要，例如 private:required:1d，用于启动日志。
func RuleSummaries(rules []RuleConfig) []string {
	if len(rules) == 0 {
		return nil
	}
	result := make([]string, len(rules))
	for i, rule := range rules {
		p := rule.Policy
		if p == "" {
			p = "default"
		}
		result[i] = fmt.Sprintf("%s:%s", rule.Name, p)
	}
	return result
}
