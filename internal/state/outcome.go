package state

import (
	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/resource"
)

// Outcome 是单个资源的终态：Loaded(handle) 或 Failed(err)，二者互斥。
type Outcome struct {
	handle cache.Handle
	err    error
}

// Loaded 构造成功结果。
func Loaded(h cache.Handle) Outcome {
	return Outcome{handle: h}
}

// Failed 构造失败结果，err 会被归一为 *resource.Error。
func Failed(err error) Outcome {
	if err == nil {
		err = resource.LoadFailedNoData()
	}
	return Outcome{err: resource.AsLoadError(err)}
}

// IsLoaded 表示结果为 Loaded。
func (o Outcome) IsLoaded() bool {
	return o.err == nil && !o.handle.IsZero()
}

// Handle 返回 Loaded 时的文件句柄。
func (o Outcome) Handle() (cache.Handle, bool) {
	if !o.IsLoaded() {
		return cache.Handle{}, false
	}
	return o.handle, true
}

// Err 返回 Failed 时的错误，Loaded 时为 nil。
func (o Outcome) Err() error {
	return o.err
}

// Path 返回本地文件路径，失败结果返回空串。
func (o Outcome) Path() string {
	if h, ok := o.Handle(); ok {
		return h.Path()
	}
	return ""
}

func (o Outcome) String() string {
	if o.IsLoaded() {
		return "loaded(" + o.handle.Path() + ")"
	}
	if o.err != nil {
		return "failed(" + o.err.Error() + ")"
	}
	return "empty"
}
