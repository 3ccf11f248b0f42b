package config

import (
	"strings"
	"testing"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(fixture("missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
UpstreamTimeout = "boom"
`
	path := writeConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsGlobalKeysInsideRule(t *testing.T) {
	cfg := `
StoragePath = "./data"

[[Rule]]
Name = "files"
Prefix = "https://files.example.com/"
AuthToken = "secret"
`
	path := writeConfig(t, cfg)
	_, err := Load(path)
	fieldErr, ok := err.(FieldError)
	if !ok || !strings.EqualFold(fieldErr.Field, "Rule[files].AuthToken") {
		t.Fatalf("规则中的全局字段应被拒绝, got %v", err)
	}
}

func TestLoadRejectsBadDefaultPolicy(t *testing.T) {
	path := writeConfig(t, `DefaultPolicy = "required"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("缺少 cadence 的默认策略应失败")
	}
}

func TestLoadWithoutRules(t *testing.T) {
	path := writeConfig(t, `StoragePath = "./data"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("无规则配置应可加载: %v", err)
	}
	if cfg.Global.DefaultPolicy != "always" || cfg.Global.Destination != "documents" {
		t.Fatalf("默认值错误: %+v", cfg.Global)
	}
}
