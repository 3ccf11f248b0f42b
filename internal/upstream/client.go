package upstream

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/any-hub/filecache/internal/config"
)

// NewUpstreamClient 返回共享 http.Client，复用 cleanhttp 的连接池 Transport 并集中配置超时。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout
	return client
}
