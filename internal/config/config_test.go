package config

import (
	"testing"
	"time"

	"github.com/any-hub/filecache/internal/policy"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := fixture("valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.StoragePath == "" {
		t.Fatalf("StoragePath 应该被保留")
	}
	if cfg.Global.ListenPort == 0 {
		t.Fatalf("ListenPort 应当被解析")
	}
	if cfg.Global.InitialBackoff.DurationValue() != 500*time.Second {
		t.Fatalf("纯数字 Duration 应按秒解析, got %v", cfg.Global.InitialBackoff.DurationValue())
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 10*time.Second {
		t.Fatalf("UpstreamTimeout 解析错误")
	}
	if !cfg.Global.KeepStaleOnFailure || cfg.Global.ErrorSinkQueue != 256 || cfg.Global.AuthHeader != "Authorization" {
		t.Fatalf("未配置字段应使用默认值: %+v", cfg.Global)
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("应解析出两条规则, got %d", len(cfg.Rules))
	}
	if cfg.Global.AuthMode() != "credentialed" {
		t.Fatalf("配置 AuthToken 后应为 credentialed")
	}
}

func TestLoadEnvOverridesToken(t *testing.T) {
	t.Setenv("FILECACHE_AUTHTOKEN", "from-env")
	cfg, err := Load(fixture("valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.AuthToken != "from-env" {
		t.Fatalf("环境变量应覆盖 AuthToken, got %q", cfg.Global.AuthToken)
	}
}

func TestValidateRejectsBadRule(t *testing.T) {
	cfgPath := fixture("missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestResolveLongestPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.Rules = []RuleConfig{
		{Name: "files", Prefix: "https://files.example.com/", Policy: "always"},
		{Name: "private", Prefix: "https://files.example.com/private/", Policy: "required:1d", Protected: true},
		{Name: "inherit", Prefix: "https://cdn.example.com/"},
	}

	resolved := cfg.Resolve("https://files.example.com/private/report.pdf")
	if resolved.Rule != "private" || !resolved.Protected || resolved.Policy.Kind() != policy.KindRequired {
		t.Fatalf("最长前缀应命中 private: %+v", resolved)
	}

	resolved = cfg.Resolve("https://files.example.com/public/logo.png")
	if resolved.Rule != "files" || resolved.Protected || resolved.Policy.Kind() != policy.KindAlways {
		t.Fatalf("应命中 files: %+v", resolved)
	}

	resolved = cfg.Resolve("https://cdn.example.com/a.js")
	if resolved.Rule != "inherit" || resolved.Policy.String() != "lazy:3d" {
		t.Fatalf("规则未设置策略时应回退 DefaultPolicy: %+v", resolved)
	}

	resolved = cfg.Resolve("https://other.example.com/")
	if resolved.Rule != "" || resolved.Policy.String() != "lazy:3d" {
		t.Fatalf("未命中规则时应使用 DefaultPolicy: %+v", resolved)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestPolicyValidation(t *testing.T) {
	testCases := []struct {
		name      string
		policy    string
		shouldErr bool
	}{
		{"never ok", "never", false},
		{"lazy ok", "lazy:2w", false},
		{"required ok", "required:6h", false},
		{"empty inherits", "", false},
		{"missing cadence", "lazy", true},
		{"unsupported", "sometimes", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Rules[0].Policy = tc.policy
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for policy %q", tc.policy)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for policy %q: %v", tc.policy, err)
			}
		})
	}
}

func TestValidateRejectsDuplicateRuleNames(t *testing.T) {
	cfg := validConfig()
	cfg.Rules = append(cfg.Rules, cfg.Rules[0])
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok || fieldErr.Field != "Rule[files].Name" {
		t.Fatalf("重复规则名应返回 FieldError, got %v", err)
	}
}

func TestValidateRejectsUnknownDestination(t *testing.T) {
	cfg := validConfig()
	cfg.Global.Destination = "tmp"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未知 Destination 应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:       5000,
			LogLevel:         "info",
			StoragePath:      "./data",
			Destination:      "documents",
			MaxRetries:       1,
			InitialBackoff:   Duration(time.Second),
			UpstreamTimeout:  Duration(time.Second),
			DefaultPolicy:    "lazy:3d",
			AuthHeader:       "Authorization",
			ErrorSinkWorkers: 1,
			ErrorSinkQueue:   8,
		},
		Rules: []RuleConfig{
			{
				Name:   "files",
				Prefix: "https://files.example.com/",
				Policy: "always",
			},
		},
	}
}
