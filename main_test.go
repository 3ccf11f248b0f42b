package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/any-hub/filecache/internal/config"
	"github.com/any-hub/filecache/internal/coordinator"
	"github.com/any-hub/filecache/internal/logging"
	"github.com/any-hub/filecache/internal/policy"
	"github.com/any-hub/filecache/internal/resource"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("FILECACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	captureOutput(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	captureOutput(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunVersionOutput(t *testing.T) {
	out, _ := captureOutput(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(out.String(), "filecache") {
		t.Fatalf("version 输出应包含 filecache 标识")
	}
}

func TestParseCLIFlagsDefaultsToConfigToml(t *testing.T) {
	t.Setenv("FILECACHE_CONFIG", "")
	opts, err := parseCLIFlags([]string{"--check-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" || !opts.checkOnly {
		t.Fatalf("unexpected options %+v", opts)
	}
	if _, err := parseCLIFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestBuildRuntimeWiresComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Global: config.GlobalConfig{
		StoragePath:        filepath.Join(dir, "storage"),
		Destination:        "caches",
		AuthHeader:         "Authorization",
		KeepStaleOnFailure: true,
		ErrorSinkWorkers:   1,
		ErrorSinkQueue:     4,
	}}
	rt, err := buildRuntime(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("buildRuntime 失败: %v", err)
	}
	if rt.service.Destination() != "caches" {
		t.Fatalf("destination 应来自配置, got %s", rt.service.Destination())
	}

	// 未配置 token 的受保护请求在发起网络请求前失败。
	id := resource.MustParseIdentifier("https://files.example.com/private.pdf")
	outcome := rt.coordinator.Obtain(context.Background(), coordinator.Request{Identifier: id, Protected: true, Policy: policy.Never()})
	if outcome.IsLoaded() {
		t.Fatalf("expected failed outcome without credentials")
	}
	if rt.coordinator.State().Len() != 1 {
		t.Fatalf("outcome should be recorded")
	}

	rt.Close()
	if rt.coordinator.State().Len() != 0 {
		t.Fatalf("Close 应清空 ResultMap")
	}
}
