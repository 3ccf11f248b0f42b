package config

import (
	"os"
	"path/filepath"
	"testing"
)

func fixture(name string) string {
	return filepath.Join("testdata", name)
}

// writeConfig 把 TOML 片段写入临时目录，返回 config.toml 路径。
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
