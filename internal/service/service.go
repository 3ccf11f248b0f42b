package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/logging"
	"github.com/any-hub/filecache/internal/policy"
	"github.com/any-hub/filecache/internal/resource"
	"github.com/any-hub/filecache/internal/upstream"
)

// Fetcher 下载资源正文，错误须已映射为 *resource.Error。
type Fetcher interface {
	Fetch(ctx context.Context, id resource.Identifier, protected bool, retry *upstream.RetrySpec) ([]byte, error)
}

// RefreshFunc 接收后台刷新的结果；err 为 nil 时 handle 指向新写入的文件。
type RefreshFunc func(id resource.Identifier, handle cache.Handle, err error)

// Options 描述 Service 的依赖。
type Options struct {
	Fetcher     Fetcher
	Store       cache.Store
	Destination cache.Destination
	Logger      *logrus.Logger
	Now         func() time.Time

	// CollapseFetches 为 true 时，同一文件名的并发回源合并为一次。
	CollapseFetches bool

	// OnRefresh 可为空，之后通过 SetRefreshHandler 设置。
	OnRefresh RefreshFunc
}

// Service 是缓存决策引擎。
type Service struct {
	fetcher  Fetcher
	store    cache.Store
	dest     cache.Destination
	logger   *logrus.Logger
	now      func() time.Time
	collapse bool

	group singleflight.Group

	refreshMu sync.RWMutex
	onRefresh RefreshFunc

	inflight sync.WaitGroup
}

// New 校验依赖并构建 Service。
func New(opts Options) (*Service, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher required")
	}
	if opts.Store == nil {
		return nil, errors.New("store required")
	}
	if opts.Destination == "" {
		opts.Destination = cache.DestinationDocuments
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		dest:      opts.Destination,
		logger:    opts.Logger,
		now:       opts.Now,
		collapse:  opts.CollapseFetches,
		onRefresh: opts.OnRefresh,
	}, nil
}

// Destination 返回 Service 写入的目录。
func (s *Service) Destination() cache.Destination {
	return s.dest
}

// SetRefreshHandler 替换后台刷新结果的接收方。
func (s *Service) SetRefreshHandler(fn RefreshFunc) {
	s.refreshMu.Lock()
	s.onRefresh = fn
	s.refreshMu.Unlock()
}

// Obtain returns a local handle for id according to p. Under Lazy a stale hit
// returns immediately and the refresh runs detached from ctx; its outcome is
// only reported to the RefreshFunc.
func (s *Service) Obtain(ctx context.Context, id resource.Identifier, p policy.Policy, protected bool, retry *upstream.RetrySpec) (cache.Handle, error) {
	key := id.FileName()

	switch p.Kind() {
	case policy.KindNever:
		return s.fetchAndPersist(ctx, id, key, protected, retry)

	case policy.KindAlways:
		if handle, ok := s.store.Exists(ctx, key, s.dest); ok {
			s.logDecision(id, p, protected, "cache_hit")
			return handle, nil
		}
		return s.fetchAndPersist(ctx, id, key, protected, retry)

	case policy.KindLazy, policy.KindRequired:
		cadence, _ := p.Cadence()
		handle, ok := s.store.Exists(ctx, key, s.dest)
		if !ok {
			return s.fetchAndPersist(ctx, id, key, protected, retry)
		}
		if s.isFresh(ctx, handle, cadence) {
			s.logDecision(id, p, protected, "cache_fresh")
			return handle, nil
		}
		if p.Kind() == policy.KindLazy {
			s.logDecision(id, p, protected, "cache_stale_refresh")
			s.refresh(ctx, id, key, protected, retry)
			return handle, nil
		}
		s.logDecision(id, p, protected, "cache_stale_fetch")
		return s.fetchAndPersist(ctx, id, key, protected, retry)

	default:
		return cache.Handle{}, resource.LoadFailed(fmt.Errorf("unsupported cache policy %q", p))
	}
}

// Wait 阻塞直到所有后台刷新结束，仅用于进程退出与测试。
func (s *Service) Wait() {
	s.inflight.Wait()
}

// isFresh 读取不到时间戳时视为过期。
func (s *Service) isFresh(ctx context.Context, handle cache.Handle, cadence policy.Cadence) bool {
	modTime, ok := s.store.Timestamp(ctx, handle)
	if !ok {
		return false
	}
	return !policy.IsExpired(modTime, s.now(), cadence)
}

// refresh 启动一个不被等待的 goroutine；它不继承 ctx 的取消，始终运行到结束。
func (s *Service) refresh(ctx context.Context, id resource.Identifier, key string, protected bool, retry *upstream.RetrySpec) {
	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		handle, err := s.fetchAndPersist(detached, id, key, protected, retry)
		if err != nil {
			s.logger.WithFields(logging.ResourceFields(id.String(), "lazy", protected)).
				WithError(err).Warn("refresh_failed")
		} else {
			s.logger.WithFields(logging.ResourceFields(id.String(), "lazy", protected)).
				Debug("refresh_complete")
		}

		s.refreshMu.RLock()
		fn := s.onRefresh
		s.refreshMu.RUnlock()
		if fn != nil {
			fn(id, handle, err)
		}
	}()
}

// fetchAndPersist 回源并覆盖写入；存储失败包装为 LoadFailed，传输错误原样返回。
func (s *Service) fetchAndPersist(ctx context.Context, id resource.Identifier, key string, protected bool, retry *upstream.RetrySpec) (cache.Handle, error) {
	if !s.collapse {
		return s.fetchAndPersistOnce(ctx, id, key, protected, retry)
	}
	// 共享的回源不随任一调用方取消；各调用方只在自己的 ctx 结束时提前返回。
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetchAndPersistOnce(shared, id, key, protected, retry)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return cache.Handle{}, res.Err
		}
		return res.Val.(cache.Handle), nil
	case <-ctx.Done():
		return cache.Handle{}, resource.LoadFailed(ctx.Err())
	}
}

func (s *Service) fetchAndPersistOnce(ctx context.Context, id resource.Identifier, key string, protected bool, retry *upstream.RetrySpec) (cache.Handle, error) {
	body, err := s.fetcher.Fetch(ctx, id, protected, retry)
	if err != nil {
		return cache.Handle{}, resource.AsLoadError(err)
	}
	handle, err := s.store.CreateOrReplace(ctx, body, key, s.dest)
	if err != nil {
		return cache.Handle{}, resource.LoadFailed(err)
	}
	return handle, nil
}

func (s *Service) logDecision(id resource.Identifier, p policy.Policy, protected bool, decision string) {
	fields := logging.ResourceFields(id.String(), p.String(), protected)
	fields["decision"] = decision
	s.logger.WithFields(fields).Debug("obtain_decision")
}
