package resource

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	maxFileNameBytes  = 200
	maxExtensionBytes = 16
)

// FileName 将 Identifier 映射为可直接落盘的文件名。
//
// 规则：去掉路径扩展名后，仅保留 ASCII 字母、数字、'-'、'_'，再补回经过同样
// 过滤的扩展名。结果超过 maxFileNameBytes 时截断并追加完整 URL 的 sha1，避免
// 触及文件系统的文件名上限。相同输入总是得到相同输出。
func (id Identifier) FileName() string {
	raw := string(id)
	ext := filterSafe(id.Extension())
	if len(ext) > maxExtensionBytes {
		ext = ""
	}
	base := raw
	if ext != "" {
		base = stripPathExtension(raw, id.Extension())
	}

	name := filterSafe(base)
	if name == "" {
		name = "resource-" + digest(raw)
	}

	limit := maxFileNameBytes
	if ext != "" {
		limit -= len(ext) + 1
	}
	if len(name) > limit {
		sum := digest(raw)
		name = name[:limit-len(sum)-1] + "-" + sum
	}

	if ext == "" {
		return name
	}
	return name + "." + ext
}

// stripPathExtension 只移除路径部分的扩展名，查询串与片段保持原样参与编码。
func stripPathExtension(raw, ext string) string {
	suffix := "." + ext
	cut := len(raw)
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		cut = idx
	}
	head := raw[:cut]
	if !strings.HasSuffix(head, suffix) {
		return raw
	}
	return strings.TrimSuffix(head, suffix) + raw[cut:]
}

func filterSafe(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafeByte(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isSafeByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_':
		return true
	}
	return false
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
