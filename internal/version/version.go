package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("filecache %s (%s)", Version, Commit)
}

// Info 以结构化形式返回版本，供 /-/version 输出。
func Info() map[string]string {
	return map[string]string{
		"name":    "filecache",
		"version": Version,
		"commit":  Commit,
	}
}
