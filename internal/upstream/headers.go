package upstream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/any-hub/filecache/internal/resource"
)

// HeadersProvider 为受保护请求提供鉴权头。返回的错误会原样短路 Fetch。
type HeadersProvider interface {
	Headers(ctx context.Context) (http.Header, error)
}

// HeadersProviderFunc adapts a function to HeadersProvider.
type HeadersProviderFunc func(ctx context.Context) (http.Header, error)

// Headers makes HeadersProviderFunc satisfy HeadersProvider.
func (f HeadersProviderFunc) Headers(ctx context.Context) (http.Header, error) {
	return f(ctx)
}

// ErrMissingCredentials 表示受保护请求缺少可用凭证。
var ErrMissingCredentials = errors.New("authorization token not configured")

// StaticHeaders 使用配置中的固定 token 生成鉴权头。
type StaticHeaders struct {
	Header string
	Token  string
}

func (s StaticHeaders) Headers(ctx context.Context) (http.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, resource.LoadFailed(err)
	}
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return nil, resource.Unauthorized(ErrMissingCredentials)
	}
	name := s.Header
	if name == "" {
		name = "Authorization"
	}
	if name == "Authorization" && !strings.Contains(token, " ") {
		token = "Bearer " + token
	}
	header := http.Header{}
	header.Set(name, token)
	return header, nil
}
