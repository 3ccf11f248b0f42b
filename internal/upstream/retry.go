package upstream

import (
	"net/http"
	"time"
)

// RetrySpec 描述传输层的重试：最多重试 Count 次，第 n 次重试前等待 Delay(n)。
type RetrySpec struct {
	Count int
	Delay func(attempt int) time.Duration
}

// ExponentialDelay 返回 initial * 2^(attempt-1) 的退避函数。
func ExponentialDelay(initial time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return initial * time.Duration(1<<(attempt-1))
	}
}

// ConstantDelay 每次重试等待相同时间。
func ConstantDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// backoff 适配 retryablehttp.Backoff，attemptNum 从 0 开始计数。
func (r *RetrySpec) backoff() func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		if r.Delay == nil {
			return 0
		}
		return r.Delay(attemptNum + 1)
	}
}
