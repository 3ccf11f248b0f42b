package coordinator

import (
	"fmt"

	"github.com/any-hub/filecache/internal/resource"
)

// Origin 标记失败来自同步请求还是后台刷新。
type Origin string

const (
	OriginObtain  Origin = "obtain"
	OriginRefresh Origin = "refresh"
)

// RequestError 附带资源标识，发送给 ErrorSink；Unwrap 返回原始 *resource.Error。
type RequestError struct {
	Identifier resource.Identifier
	Origin     Origin
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Origin, e.Identifier, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
