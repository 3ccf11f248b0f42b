package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/resource"
)

// ErrorSink 接收失败通知；调用方不关心返回结果。
type ErrorSink interface {
	Send(ctx context.Context, err error)
}

// SinkFunc 允许把普通函数当作 ErrorSink。
type SinkFunc func(ctx context.Context, err error)

func (f SinkFunc) Send(ctx context.Context, err error) { f(ctx, err) }

// NopSink 丢弃所有通知。
type NopSink struct{}

func (NopSink) Send(context.Context, error) {}

// LogSink 将失败以 warn 级别写入 logrus。
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Send(_ context.Context, err error) {
	if err == nil {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fields := logrus.Fields{
		"action": "error_sink",
		"kind":   resource.KindOf(err).String(),
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		fields["resource"] = reqErr.Identifier.String()
		fields["origin"] = reqErr.Origin
	}
	logger.WithFields(fields).WithError(err).Warn("resource_failed")
}

// AsyncSink hands notifications to a fixed worker pool. When the queue is
// full, or after Close, notifications are dropped.
type AsyncSink struct {
	inner ErrorSink
	q     chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink 启动 workers 个消费者，队列长度为 queue。
func NewAsyncSink(inner ErrorSink, workers, queue int) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 256
	}
	s := &AsyncSink{inner: inner, q: make(chan func(), queue)}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.wg.Done()
			for f := range s.q {
				f()
			}
		}()
	}
	return s
}

// Send 不会阻塞；通知在 worker 中执行，不继承 ctx 的取消。
func (s *AsyncSink) Send(ctx context.Context, err error) {
	detached := context.WithoutCancel(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.q <- func() { s.inner.Send(detached, err) }:
	default: // drop
	}
}

// Close 停止接收新通知并等待队列排空。
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.q)
	s.mu.Unlock()
	s.wg.Wait()
}
