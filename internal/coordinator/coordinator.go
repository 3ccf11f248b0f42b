package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/logging"
	"github.com/any-hub/filecache/internal/policy"
	"github.com/any-hub/filecache/internal/resource"
	"github.com/any-hub/filecache/internal/service"
	"github.com/any-hub/filecache/internal/state"
	"github.com/any-hub/filecache/internal/upstream"
)

// Request 是一次 obtain 请求。
type Request struct {
	Identifier resource.Identifier
	Protected  bool
	Policy     policy.Policy
	Retry      *upstream.RetrySpec
}

// PurgeRequest 是一次维护请求；Destination 为空时清理 Service 的目标目录。
type PurgeRequest struct {
	Destination cache.Destination
}

// Options 描述 Coordinator 的依赖。
type Options struct {
	Service *service.Service
	Store   cache.Store
	State   *state.Store
	Sink    ErrorSink
	Logger  *logrus.Logger

	// KeepStaleOnFailure 为 true 时，后台刷新失败不会覆盖已有的 Loaded 结果。
	KeepStaleOnFailure bool
}

// Coordinator 串联决策引擎、ResultMap 与 ErrorSink。
type Coordinator struct {
	svc       *service.Service
	store     cache.Store
	state     *state.Store
	sink      ErrorSink
	logger    *logrus.Logger
	keepStale bool

	// seq 为每次 Obtain 与每个刷新结果编号；refreshed 记录某资源最近一次
	// 刷新结果写入时的编号，由 mu 保护，登记与比较都发生在 state.Update 回调内。
	seq       atomic.Uint64
	mu        sync.Mutex
	refreshed map[resource.Identifier]uint64

	// afterObtain 在决策引擎返回后、结果写入 ResultMap 前调用，仅测试使用。
	afterObtain func(id resource.Identifier)
}

// New 构建 Coordinator 并接管 Service 的后台刷新结果。
func New(opts Options) (*Coordinator, error) {
	if opts.Service == nil {
		return nil, errors.New("service required")
	}
	if opts.Store == nil {
		return nil, errors.New("store required")
	}
	if opts.State == nil {
		opts.State = state.NewStore()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	c := &Coordinator{
		svc:       opts.Service,
		store:     opts.Store,
		state:     opts.State,
		sink:      opts.Sink,
		logger:    opts.Logger,
		keepStale: opts.KeepStaleOnFailure,
		refreshed: make(map[resource.Identifier]uint64),
	}
	opts.Service.SetRefreshHandler(c.Refreshed)
	return c, nil
}

// State 返回 Coordinator 写入的 ResultMap。
func (c *Coordinator) State() *state.Store {
	return c.state
}

// Obtain runs the decision engine for req and records the outcome. Failures
// are also forwarded to the error sink.
func (c *Coordinator) Obtain(ctx context.Context, req Request) state.Outcome {
	started := c.seq.Add(1)
	handle, err := c.svc.Obtain(ctx, req.Identifier, req.Policy, req.Protected, req.Retry)
	if c.afterObtain != nil {
		c.afterObtain(req.Identifier)
	}
	fields := logging.ResourceFields(req.Identifier.String(), req.Policy.String(), req.Protected)
	if err != nil {
		outcome := state.Failed(err)
		c.state.Apply(req.Identifier, outcome)
		c.sink.Send(ctx, &RequestError{Identifier: req.Identifier, Origin: OriginObtain, Err: outcome.Err()})
		fields["kind"] = resource.KindOf(err).String()
		c.logger.WithFields(fields).WithError(err).Warn("obtain_failed")
		return outcome
	}

	outcome := state.Loaded(handle)
	// 本次调用触发的后台刷新可能已先写入结果，此时不再用旧句柄覆盖。
	recorded := c.state.Update(req.Identifier, func(current state.Outcome, _ bool) (state.Outcome, bool) {
		if c.refreshedSince(req.Identifier, started) {
			return current, false
		}
		return outcome, true
	})
	fields["path"] = handle.Path()
	fields["recorded"] = recorded
	c.logger.WithFields(fields).Info("obtain_complete")
	return outcome
}

// Refreshed 接收后台刷新结果，作为 service.RefreshFunc 注册。
// KeepStaleOnFailure 时刷新失败不改动 ResultMap：触发刷新的 Obtain 总会写入旧句柄。
func (c *Coordinator) Refreshed(id resource.Identifier, handle cache.Handle, err error) {
	if err != nil {
		if c.keepStale {
			c.logger.WithFields(logrus.Fields{"resource": id.String()}).Debug("refresh_failed_keep_stale")
		} else {
			c.record(id, state.Failed(err))
		}
		c.sink.Send(context.Background(), &RequestError{Identifier: id, Origin: OriginRefresh, Err: resource.AsLoadError(err)})
		return
	}
	c.record(id, state.Loaded(handle))
}

// record 写入刷新结果并在同一把写锁内登记编号。
func (c *Coordinator) record(id resource.Identifier, outcome state.Outcome) {
	c.state.Update(id, func(state.Outcome, bool) (state.Outcome, bool) {
		c.mu.Lock()
		c.refreshed[id] = c.seq.Add(1)
		c.mu.Unlock()
		return outcome, true
	})
}

func (c *Coordinator) refreshedSince(id resource.Identifier, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshed[id] > seq
}

// Purge 尽力清空目标目录，单个文件失败只记录日志，不会返回错误。
func (c *Coordinator) Purge(ctx context.Context, req PurgeRequest) cache.PurgeReport {
	dest := req.Destination
	if dest == "" {
		dest = c.svc.Destination()
	}
	report := c.store.Purge(ctx, dest)
	for _, failure := range report.Failures {
		c.logger.WithFields(logrus.Fields{
			"action":      "purge",
			"destination": string(dest),
			"path":        failure.Path,
		}).WithError(failure.Err).Warn("purge_entry_failed")
	}
	c.logger.WithFields(logrus.Fields{
		"action":      "purge",
		"destination": string(dest),
		"removed":     report.Removed,
		"failed":      len(report.Failures),
	}).Info("purge_complete")
	return report
}

// Reset 清空 ResultMap，用于模块卸载。
func (c *Coordinator) Reset() {
	c.state.Reset()
	c.mu.Lock()
	c.refreshed = make(map[resource.Identifier]uint64)
	c.mu.Unlock()
}
