package resource

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Identifier 表示一个远端资源的规范 URL，可直接作为 map 键使用。
type Identifier string

// ParseIdentifier 校验 raw 为带 Host 的 http/https 绝对地址。
func ParseIdentifier(raw string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("resource url required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid resource url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %s", parsed.Scheme, raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("resource url missing host: %s", raw)
	}
	return Identifier(parsed.String()), nil
}

// MustParseIdentifier 在解析失败时 panic，仅用于常量和测试。
func MustParseIdentifier(raw string) Identifier {
	id, err := ParseIdentifier(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identifier) String() string {
	return string(id)
}

// URL 返回解析后的地址；Identifier 经 ParseIdentifier 构造时不会失败。
func (id Identifier) URL() (*url.URL, error) {
	return url.Parse(string(id))
}

// Extension 返回 URL 路径的扩展名（不含点），无扩展名时为空。
func (id Identifier) Extension() string {
	u, err := id.URL()
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	return strings.TrimPrefix(ext, ".")
}
