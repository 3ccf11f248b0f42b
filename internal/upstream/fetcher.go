package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/resource"
)

// StatusError 记录上游返回的非 2xx 状态，作为 resource.Error 的 cause。
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %s", e.URL, e.Status)
}

// Fetcher 负责回源下载资源正文，重试完全交给 retryablehttp。
type Fetcher struct {
	client  *http.Client
	headers HeadersProvider
	logger  *logrus.Logger
}

// NewFetcher constructs a fetcher with a shared HTTP client and optional headers provider.
func NewFetcher(client *http.Client, headers HeadersProvider, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = NewUpstreamClient(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{
		client:  client,
		headers: headers,
		logger:  logger,
	}
}

// Fetch 下载 id 指向的资源。protected 时先获取鉴权头，失败直接返回、不发起网络请求。
func (f *Fetcher) Fetch(ctx context.Context, id resource.Identifier, protected bool, retry *RetrySpec) ([]byte, error) {
	started := time.Now()

	var header http.Header
	if protected {
		if f.headers == nil {
			return nil, resource.Unauthorized(ErrMissingCredentials)
		}
		h, err := f.headers.Headers(ctx)
		if err != nil {
			return nil, resource.AsLoadError(err)
		}
		header = h
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, id.String(), nil)
	if err != nil {
		return nil, resource.LoadFailed(err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := f.retryClient(retry).Do(req)
	if err != nil {
		f.logResult(id, protected, 0, started, err)
		return nil, resource.LoadFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: id.String()}
		f.logResult(id, protected, resp.StatusCode, started, statusErr)
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, resource.Unauthorized(statusErr)
		}
		return nil, resource.LoadFailed(statusErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logResult(id, protected, resp.StatusCode, started, err)
		return nil, resource.LoadFailed(fmt.Errorf("read upstream body: %w", err))
	}
	if len(body) == 0 {
		noData := resource.LoadFailedNoData()
		f.logResult(id, protected, resp.StatusCode, started, noData)
		return nil, noData
	}

	f.logResult(id, protected, resp.StatusCode, started, nil)
	return body, nil
}

// retryClient 为单次 Fetch 构造 retryablehttp 客户端；retry 为空时只尝试一次。
func (f *Fetcher) retryClient(retry *RetrySpec) *retryablehttp.Client {
	client := &retryablehttp.Client{
		HTTPClient:   f.client,
		Logger:       leveledLogger{logger: f.logger},
		RetryMax:     0,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	if retry != nil && retry.Count > 0 {
		client.RetryMax = retry.Count
		client.Backoff = retry.backoff()
	}
	return client
}

func (f *Fetcher) logResult(id resource.Identifier, protected bool, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":          "upstream_fetch",
		"resource":        id.String(),
		"protected":       protected,
		"upstream_status": status,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		f.logger.WithFields(fields).Warn("upstream_fetch_failed")
		return
	}
	f.logger.WithFields(fields).Debug("upstream_fetch_complete")
}
